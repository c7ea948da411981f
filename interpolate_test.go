package terrainmesh_test

import (
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-terrainmesh"
)

func TestInterpolateGrid(t *testing.T) {
	for _, tc := range []struct {
		name       string
		elevations []float32
		width      int
		height     int
		newWidth   int
		newHeight  int
		expected   []float32
	}{
		{
			name:       "identity",
			elevations: []float32{0, 0.25, 0.5, 0.75},
			width:      2,
			height:     2,
			newWidth:   2,
			newHeight:  2,
			expected:   []float32{0, 0.25, 0.5, 0.75},
		},
		{
			name:       "upsample_2x2_to_3x3",
			elevations: []float32{0, 1, 2, 3},
			width:      2,
			height:     2,
			newWidth:   3,
			newHeight:  3,
			expected: []float32{
				0, 0.5, 1,
				1, 1.5, 2,
				2, 2.5, 3,
			},
		},
		{
			name: "upsample_3x2_to_5x2",
			elevations: []float32{
				0, 2, 4,
				0, 2, 4,
			},
			width:     3,
			height:    2,
			newWidth:  5,
			newHeight: 2,
			expected: []float32{
				0, 1, 2, 3, 4,
				0, 1, 2, 3, 4,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := terrainmesh.InterpolateGrid(tc.elevations, tc.width, tc.height, tc.newWidth, tc.newHeight)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestInterpolateGrid_Identity(t *testing.T) {
	elevations := []float32{
		12.5, -3, 7.25, 0,
		1e6, 0.1, -42, 3.5,
		0, 6.75, 2.5, -0.125,
	}
	actual, err := terrainmesh.InterpolateGrid(elevations, 4, 3, 4, 3)
	assert.NoError(t, err)
	assert.Equal(t, elevations, actual)
}

// TestInterpolateGrid_SourceSamplesExact checks that target cells mapping to
// integral source coordinates reproduce the source samples without blending
// error.
func TestInterpolateGrid_SourceSamplesExact(t *testing.T) {
	elevations := []float32{
		0.1, 0.9, 0.4,
		0.7, 0.2, 0.8,
		0.3, 0.6, 0.5,
	}
	width, height := 3, 3
	newWidth, newHeight := 9, 9
	actual, err := terrainmesh.InterpolateGrid(elevations, width, height, newWidth, newHeight)
	assert.NoError(t, err)
	// Target index 4*i maps to source coordinate i: 4*i*(3-1)/(9-1) = i.
	for sy := range height {
		for sx := range width {
			assert.Equal(t, elevations[sy*width+sx], actual[4*sy*newWidth+4*sx])
		}
	}
}

func TestInterpolateGrid_Errors(t *testing.T) {
	for _, tc := range []struct {
		name       string
		elevations []float32
		width      int
		height     int
		newWidth   int
		newHeight  int
		expected   error
	}{
		{
			name:       "narrow_source",
			elevations: []float32{0, 1},
			width:      1,
			height:     2,
			newWidth:   2,
			newHeight:  2,
			expected:   terrainmesh.ErrInvalidDimension,
		},
		{
			name:       "narrow_target",
			elevations: []float32{0, 1, 2, 3},
			width:      2,
			height:     2,
			newWidth:   1,
			newHeight:  2,
			expected:   terrainmesh.ErrInvalidDimension,
		},
		{
			name:       "length_mismatch",
			elevations: []float32{0, 1, 2},
			width:      2,
			height:     2,
			newWidth:   4,
			newHeight:  4,
			expected:   terrainmesh.ErrElevationCount,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := terrainmesh.InterpolateGrid(tc.elevations, tc.width, tc.height, tc.newWidth, tc.newHeight)
			assert.IsError(t, err, tc.expected)
		})
	}
}

type testRaster struct {
	scaleX  int
	scaleY  int
	samples [][]float64
}

func (t *testRaster) Samples(ctx context.Context, coords []terrainmesh.Coord) ([]float64, error) {
	samples := make([]float64, len(coords))
	for i, coord := range coords {
		samples[i] = t.samples[coord.Y/t.scaleY][coord.X/t.scaleX]
	}
	return samples, nil
}

func (t *testRaster) Scale() (int, int) {
	return t.scaleX, t.scaleY
}

func TestInterpolateBilinear(t *testing.T) {
	simpleRaster := &testRaster{
		scaleX: 10,
		scaleY: 10,
		samples: [][]float64{
			{0, 1, 2},
			{2, 3, 4},
			{4, 5, 6},
		},
	}
	for _, tc := range []struct {
		raster   terrainmesh.Raster
		coords   [][]float64
		expected []float64
	}{
		{
			raster: simpleRaster,
			coords: [][]float64{
				{0, 0},
				{10, 0},
				{0, 10},
				{10, 10},
				{5, 5},
				{5, 0},
				{0, 5},
				{10, 5},
				{5, 10},
			},
			expected: []float64{
				0,
				1,
				2,
				3,
				1.5,
				0.5,
				1,
				2,
				2.5,
			},
		},
	} {
		actual, err := terrainmesh.InterpolateBilinear(t.Context(), tc.raster, tc.coords)
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}
}
