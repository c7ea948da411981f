package main

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds all terrain-mesh settings.
type Config struct {
	DEMPath      string        `yaml:"dem_path"`
	GridWidth    int           `yaml:"grid_width"`
	GridHeight   int           `yaml:"grid_height"`
	Tessellation int           `yaml:"tessellation"`
	Workers      int           `yaml:"workers"`
	ElevationMin float64       `yaml:"elevation_min"`
	ElevationMax float64       `yaml:"elevation_max"`
	Output       string        `yaml:"output"`
	Preview      string        `yaml:"preview"`
	PreviewSize  int           `yaml:"preview_size"`
	Logging      LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaultConfig() Config {
	return Config{
		DEMPath:      os.Getenv("EU_DEM_PATH"),
		GridWidth:    256,
		GridHeight:   256,
		Tessellation: 1,
		Workers:      runtime.NumCPU(),
		ElevationMin: 0,
		ElevationMax: 4810,
		Output:       "mesh.bin",
		PreviewSize:  1024,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// loadConfig returns the default configuration overlaid with the YAML file at
// path, if path is not empty.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return config, nil
}
