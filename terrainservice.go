package terrainmesh

import (
	"context"
	"fmt"
	"math"

	"github.com/twpayne/go-proj/v10"
)

// A TerrainMeshService generates terrain meshes from a DEM tile set,
// accepting bounding boxes in WGS84 (EPSG:4326) and reprojecting them into
// the DEM's CRS.
type TerrainMeshService struct {
	dem          *DEMTileSet
	pj           *proj.PJ
	elevationMin float64
	elevationMax float64
	ramp         ColorRamp
	workers      int
}

// A TerrainMeshServiceOption sets an option on a TerrainMeshService.
type TerrainMeshServiceOption func(*TerrainMeshService)

// WithElevationRange sets the elevation range, in the DEM's units, that maps
// onto the color ramp's [0,1] domain.
func WithElevationRange(elevationMin, elevationMax float64) TerrainMeshServiceOption {
	return func(s *TerrainMeshService) {
		s.elevationMin = elevationMin
		s.elevationMax = elevationMax
	}
}

// WithRamp sets the color ramp used for generated meshes.
func WithRamp(ramp ColorRamp) TerrainMeshServiceOption {
	return func(s *TerrainMeshService) {
		s.ramp = ramp
	}
}

// WithWorkers sets the number of goroutines used to tessellate each mesh.
func WithWorkers(workers int) TerrainMeshServiceOption {
	return func(s *TerrainMeshService) {
		s.workers = workers
	}
}

// NewTerrainMeshService returns a new TerrainMeshService reading elevations
// from dem.
func NewTerrainMeshService(dem *DEMTileSet, options ...TerrainMeshServiceOption) (*TerrainMeshService, error) {
	pj, err := proj.NewCRSToCRS("epsg:4326", fmt.Sprintf("epsg:%d", dem.EPSG()), nil)
	if err != nil {
		return nil, err
	}
	s := &TerrainMeshService{
		dem:          dem,
		pj:           pj,
		elevationMin: 0,
		elevationMax: 4810, // Mont Blanc.
		ramp:         DefaultColorRamp(),
		workers:      1,
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Elevations4326 returns the interpolated elevations at coords, given as
// (longitude, latitude) pairs.
func (s *TerrainMeshService) Elevations4326(ctx context.Context, coords4326 [][]float64) ([]float64, error) {
	projected := cloneCoords(coords4326)
	flipCoords(projected)
	if err := s.pj.ForwardFloat64Slices(projected); err != nil {
		return nil, err
	}
	flipCoords(projected)
	return InterpolateBilinear(ctx, s.dem, projected)
}

// MeshForBounds4326 generates a mesh for the bounding box (minLon, minLat) to
// (maxLon, maxLat). It samples a gridWidth×gridHeight lattice of elevations
// over the projected bounding box, northernmost row first, rescales them into
// the color ramp's [0,1] domain with missing samples treated as sea level,
// and tessellates the result. The mesh's XY coordinates span [-1,1] over the
// bounding box; its Z coordinates are the rescaled elevations.
func (s *TerrainMeshService) MeshForBounds4326(ctx context.Context, minLon, minLat, maxLon, maxLat float64, gridWidth, gridHeight, tessellationFactor int) (*MeshBuffers, error) {
	if gridWidth < 2 || gridHeight < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, gridWidth, gridHeight)
	}
	if tessellationFactor < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTessellation, tessellationFactor)
	}

	corners := cloneCoords([][]float64{{minLon, minLat}, {maxLon, maxLat}})
	flipCoords(corners)
	if err := s.pj.ForwardFloat64Slices(corners); err != nil {
		return nil, err
	}
	flipCoords(corners)
	minX, minY := corners[0][0], corners[0][1]
	maxX, maxY := corners[1][0], corners[1][1]

	lattice := make([][]float64, gridWidth*gridHeight)
	latticeFlat := make([]float64, 2*len(lattice))
	for y := range gridHeight {
		// Row 0 is the northernmost row.
		py := maxY + (minY-maxY)*float64(y)/float64(gridHeight-1)
		for x := range gridWidth {
			px := minX + (maxX-minX)*float64(x)/float64(gridWidth-1)
			coord := latticeFlat[2*(y*gridWidth+x) : 2*(y*gridWidth+x)+2]
			coord[0] = px
			coord[1] = py
			lattice[y*gridWidth+x] = coord
		}
	}

	elevations, err := InterpolateBilinear(ctx, s.dem, lattice)
	if err != nil {
		return nil, err
	}

	grid := make([]float32, len(elevations))
	for i, elevation := range elevations {
		if math.IsNaN(elevation) {
			elevation = 0
		}
		v := (elevation - s.elevationMin) / (s.elevationMax - s.elevationMin)
		grid[i] = float32(max(0, min(1, v)))
	}

	return Generate(grid, gridWidth, gridHeight, tessellationFactor,
		WithColorRamp(s.ramp),
		WithParallelism(s.workers),
	)
}

func cloneCoords(coords [][]float64) [][]float64 {
	clonedCoordsFlat := make([]float64, 2*len(coords))
	clonedCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		copy(clonedCoordsFlat[2*i:2*i+2], coord)
		clonedCoords[i] = clonedCoordsFlat[2*i : 2*i+2]
	}
	return clonedCoords
}

func flipCoords(coords [][]float64) {
	for i, coord := range coords {
		coords[i][0], coords[i][1] = coord[1], coord[0]
	}
}
