package terrainmesh

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	meshesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_meshes_generated_total",
		Help: "The total number of meshes generated",
	})
	verticesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_vertices_generated_total",
		Help: "The total number of mesh vertices generated",
	})
	generateErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terrainmesh_generate_errors_total",
		Help: "The total number of mesh generation failures",
	})
)

var (
	ErrInvalidDimension    = errors.New("width and height must be at least 2")
	ErrInvalidTessellation = errors.New("tessellation factor must be at least 1")
	ErrElevationCount      = errors.New("elevation count does not match dimensions")
)

// MeshBuffers is a triangle mesh as three parallel flat buffers. Vertices,
// Colors, and Normals each hold VertexCount tightly-packed triples, laid out
// (x,y,z), (r,g,b), and (nx,ny,nz) respectively. Vertices are not indexed:
// grid corners shared by several triangles are repeated.
type MeshBuffers struct {
	Vertices    []float32
	Colors      []float32
	Normals     []float32
	VertexCount int
}

type generateOptions struct {
	ramp        ColorRamp
	parallelism int
}

// A GenerateOption sets an option on a call to Generate.
type GenerateOption func(*generateOptions)

// WithColorRamp sets the color ramp used to color vertices.
func WithColorRamp(ramp ColorRamp) GenerateOption {
	return func(o *generateOptions) {
		o.ramp = ramp
	}
}

// WithParallelism sets the number of goroutines that tessellate cell rows.
func WithParallelism(parallelism int) GenerateOption {
	return func(o *generateOptions) {
		o.parallelism = parallelism
	}
}

// Generate converts a width×height row-major grid of elevations into a
// flat-shaded triangle mesh. The grid is first upsampled by
// tessellationFactor along both axes, then each cell of the upsampled grid is
// split into two triangles. XY positions are normalized to [-1,1]; Z is the
// interpolated elevation, unmodified. Each triangle's three vertices share
// its flat normal and are colored by looking the corner's elevation up in the
// color ramp.
func Generate(elevations []float32, width, height, tessellationFactor int, options ...GenerateOption) (*MeshBuffers, error) {
	if width < 2 || height < 2 {
		generateErrors.Inc()
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	if tessellationFactor < 1 {
		generateErrors.Inc()
		return nil, fmt.Errorf("%w: %d", ErrInvalidTessellation, tessellationFactor)
	}
	if len(elevations) != width*height {
		generateErrors.Inc()
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrElevationCount, len(elevations), width*height)
	}

	o := generateOptions{
		ramp:        DefaultColorRamp(),
		parallelism: 1,
	}
	for _, option := range options {
		option(&o)
	}

	newWidth := width * tessellationFactor
	newHeight := height * tessellationFactor
	grid, err := InterpolateGrid(elevations, width, height, newWidth, newHeight)
	if err != nil {
		generateErrors.Inc()
		return nil, err
	}

	vertexCount := (newWidth - 1) * (newHeight - 1) * 6
	buffers := &MeshBuffers{
		Vertices:    make([]float32, 3*vertexCount),
		Colors:      make([]float32, 3*vertexCount),
		Normals:     make([]float32, 3*vertexCount),
		VertexCount: vertexCount,
	}
	if err := tessellate(grid, newWidth, newHeight, o.ramp, o.parallelism, buffers); err != nil {
		generateErrors.Inc()
		return nil, err
	}

	meshesGenerated.Inc()
	verticesGenerated.Add(float64(vertexCount))
	return buffers, nil
}
