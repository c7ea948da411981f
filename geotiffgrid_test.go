package terrainmesh

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewGeoTIFFDEM(t *testing.T) {
	geoTIFFDEM, err := NewGeoTIFFDEM(os.DirFS("testdata/eu_dem"), "eu_dem_v11_E00N20.TIF")
	if errors.Is(err, fs.ErrNotExist) {
		t.Skip(err)
	}
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, geoTIFFDEM.Close())
	}()

	// EU DEM tiles describe their projected CRS as user-defined, so EPSG
	// falls back to the geodetic CRS.
	assert.Equal(t, 4258, geoTIFFDEM.EPSG())

	for r := range geoTIFFDEM.tilesDown {
		for c := range geoTIFFDEM.tilesAcross {
			_, err := geoTIFFDEM.getTileSamplesCached(t.Context(), TileCoord{C: c, R: r})
			if !errors.Is(err, errEmptyTile) {
				assert.NoError(t, err)
			}
		}
	}
}

func TestGeoTIFFDEM_Sample(t *testing.T) {
	geoTIFFDEM, err := NewGeoTIFFDEM(os.DirFS("testdata/eu_dem"), "eu_dem_v11_E00N20.TIF")
	if errors.Is(err, fs.ErrNotExist) {
		t.Skip(err)
	}
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, geoTIFFDEM.Close())
	}()

	testCases := []struct {
		coord    Coord
		expected float64
	}{
		{coord: Coord{X: 970705, Y: 2789764}, expected: 517},
		{coord: Coord{X: 971739, Y: 2793094}, expected: 79},
		{coord: Coord{X: 969236, Y: 2787499}, expected: 6},
		{coord: Coord{X: 950258, Y: 2769570}, expected: 586},
	}

	for _, tc := range testCases {
		actual, err := geoTIFFDEM.Sample(t.Context(), tc.coord)
		assert.NoError(t, err)
		assert.Equal(t, tc.expected, actual)
	}

	coords := make([]Coord, len(testCases))
	expected := make([]float64, len(testCases))
	for i, tc := range testCases {
		coords[i] = tc.coord
		expected[i] = tc.expected
	}
	actual, err := geoTIFFDEM.Samples(t.Context(), coords)
	assert.NoError(t, err)
	assert.Equal(t, expected, actual)
}

func TestGeoTIFFDEM_Region(t *testing.T) {
	geoTIFFDEM, err := NewGeoTIFFDEM(os.DirFS("testdata/eu_dem"), "eu_dem_v11_E00N20.TIF")
	if errors.Is(err, fs.ErrNotExist) {
		t.Skip(err)
	}
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, geoTIFFDEM.Close())
	}()

	width, height := 16, 12
	region, err := geoTIFFDEM.Region(t.Context(), 1000, 2000, width, height)
	assert.NoError(t, err)
	assert.Equal(t, width*height, len(region))

	// The region must agree with per-coordinate sampling.
	for y := range height {
		for x := range width {
			coord := Coord{
				X: geoTIFFDEM.translateX + geoTIFFDEM.scaleX*(1000+x),
				Y: geoTIFFDEM.translateY - geoTIFFDEM.scaleY*(2000+y),
			}
			sample, err := geoTIFFDEM.Sample(t.Context(), coord)
			assert.NoError(t, err)
			if math.IsNaN(sample) {
				assert.True(t, math.IsNaN(float64(region[y*width+x])))
			} else {
				assert.Equal(t, float32(sample), region[y*width+x])
			}
		}
	}

	_, err = geoTIFFDEM.Region(t.Context(), -1, 0, width, height)
	assert.Error(t, err)
}

func TestGeoTIFFDEM_RegionMesh(t *testing.T) {
	geoTIFFDEM, err := NewGeoTIFFDEM(os.DirFS("testdata/eu_dem"), "eu_dem_v11_E00N20.TIF")
	if errors.Is(err, fs.ErrNotExist) {
		t.Skip(err)
	}
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, geoTIFFDEM.Close())
	}()

	width, height := 32, 32
	region, err := geoTIFFDEM.Region(t.Context(), 1000, 2000, width, height)
	assert.NoError(t, err)
	mesh, err := Generate(region, width, height, 2)
	assert.NoError(t, err)
	assert.Equal(t, (2*width-1)*(2*height-1)*6, mesh.VertexCount)
}
