package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"strconv"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/twpayne/go-terrainmesh"
)

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	demPath := flag.String("dem-path", "", "path to EU DEM data")
	gridWidth := flag.Int("grid-width", 0, "elevation grid width")
	gridHeight := flag.Int("grid-height", 0, "elevation grid height")
	tessellation := flag.Int("tessellation", 0, "tessellation factor")
	workers := flag.Int("workers", 0, "tessellation goroutines")
	output := flag.String("out", "", "output mesh file")
	preview := flag.String("preview", "", "output WebP preview file")
	logLevel := flag.String("log-level", "", "log level")
	flag.Parse()

	if flag.NArg() != 4 {
		return errors.New("syntax: terrain-mesh min-longitude min-latitude max-longitude max-latitude")
	}
	bounds := make([]float64, 4)
	for i := range bounds {
		var err error
		bounds[i], err = strconv.ParseFloat(flag.Arg(i), 64)
		if err != nil {
			return err
		}
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *demPath != "" {
		config.DEMPath = *demPath
	}
	if *gridWidth > 0 {
		config.GridWidth = *gridWidth
	}
	if *gridHeight > 0 {
		config.GridHeight = *gridHeight
	}
	if *tessellation > 0 {
		config.Tessellation = *tessellation
	}
	if *workers > 0 {
		config.Workers = *workers
	}
	if *output != "" {
		config.Output = *output
	}
	if *preview != "" {
		config.Preview = *preview
	}
	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}

	logger := newLogger(config.Logging.Level, config.Logging.File)
	defer func() {
		_ = logger.Sync()
	}()

	if config.DEMPath == "" {
		return errors.New("no DEM path, set -dem-path or EU_DEM_PATH")
	}

	euDEM, err := terrainmesh.NewEUDEM(os.DirFS(config.DEMPath))
	if err != nil {
		return err
	}
	service, err := terrainmesh.NewTerrainMeshService(euDEM,
		terrainmesh.WithElevationRange(config.ElevationMin, config.ElevationMax),
		terrainmesh.WithWorkers(config.Workers),
	)
	if err != nil {
		return err
	}

	start := time.Now()
	mesh, err := service.MeshForBounds4326(context.Background(),
		bounds[0], bounds[1], bounds[2], bounds[3],
		config.GridWidth, config.GridHeight, config.Tessellation,
	)
	if err != nil {
		return err
	}
	logger.Info("generated mesh",
		zap.Int("vertices", mesh.VertexCount),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := writeMesh(config.Output, mesh); err != nil {
		return err
	}
	logger.Info("wrote mesh", zap.String("path", config.Output))

	if config.Preview != "" {
		start = time.Now()
		if err := writePreview(config.Preview, mesh, config.PreviewSize); err != nil {
			return err
		}
		logger.Info("wrote preview",
			zap.String("path", config.Preview),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	return nil
}

// writeMesh writes mesh as a little-endian binary file: the vertex count as a
// uint32, then the vertex, color, and normal buffers in that order.
func writeMesh(path string, mesh *terrainmesh.MeshBuffers) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, value := range []any{
		uint32(mesh.VertexCount),
		mesh.Vertices,
		mesh.Colors,
		mesh.Normals,
	} {
		if err := binary.Write(f, binary.LittleEndian, value); err != nil {
			return err
		}
	}
	return f.Close()
}

// writePreview renders mesh at twice the target size and downsamples, which
// smooths triangle edges.
func writePreview(path string, mesh *terrainmesh.MeshBuffers, size int) error {
	var img image.Image = terrainmesh.RenderPreview(mesh, 2*size)
	img = resize.Resize(uint(size), uint(size), img, resize.MitchellNetravali)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := nativewebp.Encode(f, img, nil); err != nil {
		return err
	}
	return f.Close()
}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
