package terrainmesh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missingDEMCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_missing_dem_cache_hits_total",
		Help: "The total number of hits on the missing DEM cache",
	})
	missingDEMCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_missing_dem_cache_misses_total",
		Help: "The total number of misses on the missing DEM cache",
	})
	openDEMCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_open_dem_cache_hits_total",
		Help: "The total number of hits on the open DEM cache",
	})
	openDEMCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_open_dem_cache_misses_total",
		Help: "The total number of misses on the open DEM cache",
	})
	openDEMCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_open_dem_cache_evictions_total",
		Help: "The total number of evictions from the open DEM cache",
	})
)

// A TileCoordFunc returns the tile coordinate for a coordinate.
type TileCoordFunc func(Coord) (TileCoord, bool)

// A TileFilenameFunc returns the tile filename for a tile coordinate.
type TileFilenameFunc func(TileCoord) string

// A DEMTileSet is a set of GeoTIFF DEM files covering a region, addressed by
// tile coordinate. It implements [Raster].
type DEMTileSet struct {
	mutex             sync.Mutex
	fsys              fs.FS
	epsg              int
	tileCoordFunc     TileCoordFunc
	tileFilenameFunc  TileFilenameFunc
	missingTiles      sync.Map
	geoTIFFDEMOptions []GeoTIFFDEMOption
	cacheSize         int
	scaleX            int
	scaleY            int
	openDEMCache      *lru.Cache[TileCoord, *GeoTIFFDEM]
}

// A DEMTileSetOption sets an option on a DEMTileSet.
type DEMTileSetOption func(*DEMTileSet)

// NewDEMTileSet returns a new DEMTileSet with the given options.
func NewDEMTileSet(options ...DEMTileSetOption) (*DEMTileSet, error) {
	s := &DEMTileSet{
		cacheSize: 32,
	}
	for _, option := range options {
		option(s)
	}

	var err error
	s.openDEMCache, err = lru.NewWithEvict(s.cacheSize, func(key TileCoord, value *GeoTIFFDEM) {
		if value != nil {
			value.Close()
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func WithCacheSize(cacheSize int) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.cacheSize = cacheSize
	}
}

func WithFS(fsys fs.FS) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.fsys = fsys
	}
}

func WithGeoTIFFDEMOptions(geoTIFFDEMOptions ...GeoTIFFDEMOption) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.geoTIFFDEMOptions = geoTIFFDEMOptions
	}
}

func WithTileCoordFunc(tileCoordFunc TileCoordFunc) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.tileCoordFunc = tileCoordFunc
	}
}

func WithEPSG(epsg int) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.epsg = epsg
	}
}

func WithScale(scaleX, scaleY int) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.scaleX = scaleX
		s.scaleY = scaleY
	}
}

func WithTileFilenameFunc(tileFilenameFunc TileFilenameFunc) DEMTileSetOption {
	return func(s *DEMTileSet) {
		s.tileFilenameFunc = tileFilenameFunc
	}
}

// NewEUDEM returns a DEMTileSet for the EU DEM v1.1 dataset, which covers
// Europe with 25m resolution GeoTIFF tiles in EPSG:3035.
func NewEUDEM(fsys fs.FS, options ...DEMTileSetOption) (*DEMTileSet, error) {
	return NewDEMTileSet(slices.Concat(
		[]DEMTileSetOption{
			WithFS(fsys),
			WithEPSG(3035),
			WithScale(25, 25),
			WithTileCoordFunc(func(coord Coord) (TileCoord, bool) {
				return TileCoord{
					C: 10 * (coord.X / 1000000),
					R: 10 * (coord.Y / 1000000),
				}, true
			}),
			WithTileFilenameFunc(func(tileCoord TileCoord) string {
				return fmt.Sprintf("eu_dem_v11_E%02dN%02d.TIF", tileCoord.C, tileCoord.R)
			}),
		},
		options,
	)...)
}

// Samples returns the samples at coords. Missing samples are represented by
// NaNs.
func (s *DEMTileSet) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by tile coord.
	type groupStruct struct {
		coords  []Coord
		indexes []int
	}
	groupsByTileCoord := make(map[TileCoord]groupStruct)
	for index, coord := range coords {
		tileCoord, ok := s.tileCoordFunc(coord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		if group, ok := groupsByTileCoord[tileCoord]; ok {
			group.coords = append(group.coords, coord)
			group.indexes = append(group.indexes, index)
			groupsByTileCoord[tileCoord] = group
		} else {
			group := groupStruct{
				coords:  []Coord{coord},
				indexes: []int{index},
			}
			groupsByTileCoord[tileCoord] = group
		}
	}

	// Populate samples one tile at a time.
	for tileCoord, group := range groupsByTileCoord {
		tile, err := s.getTileCached(tileCoord)
		if err != nil {
			return nil, err
		}
		if tile == nil {
			for _, index := range group.indexes {
				samples[index] = math.NaN()
			}
			continue
		}
		localSamples, err := tile.Samples(ctx, group.coords)
		if err != nil {
			return nil, err
		}
		for localIndex, index := range group.indexes {
			samples[index] = localSamples[localIndex]
		}
	}

	return samples, nil
}

// EPSG returns the EPSG code of s's CRS.
func (s *DEMTileSet) EPSG() int {
	return s.epsg
}

// Scale returns s's scale.
func (s *DEMTileSet) Scale() (int, int) {
	return s.scaleX, s.scaleY
}

// getTile returns the tile at the given tile coordinate.
func (s *DEMTileSet) getTile(tileCoord TileCoord) (*GeoTIFFDEM, error) {
	filename := s.tileFilenameFunc(tileCoord)
	switch geoTIFFDEM, err := NewGeoTIFFDEM(s.fsys, filename, s.geoTIFFDEMOptions...); {
	case errors.Is(err, fs.ErrNotExist):
		s.missingTiles.Store(tileCoord, struct{}{})
		missingDEMCacheMisses.Inc()
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return geoTIFFDEM, nil
	}
}

// getTileCached returns the tile at the given tile coordinate, using the
// cache if possible.
func (s *DEMTileSet) getTileCached(tileCoord TileCoord) (*GeoTIFFDEM, error) {
	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingDEMCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.openDEMCache.Get(tileCoord); ok {
		openDEMCacheHits.Inc()
		return tile, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.missingTiles.Load(tileCoord); ok {
		missingDEMCacheHits.Inc()
		return nil, nil
	}

	if tile, ok := s.openDEMCache.Get(tileCoord); ok {
		openDEMCacheHits.Inc()
		return tile, nil
	}

	openDEMCacheMisses.Inc()

	tile, err := s.getTile(tileCoord)
	if err != nil {
		return nil, err
	}
	if tile == nil {
		return nil, nil
	}

	if eviction := s.openDEMCache.Add(tileCoord, tile); eviction {
		openDEMCacheEvictions.Inc()
	}

	return tile, nil
}
