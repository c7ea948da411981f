package terrainmesh_test

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-terrainmesh"
)

func TestTriangleNormal(t *testing.T) {
	for _, tc := range []struct {
		name     string
		p1       terrainmesh.Vec3
		p2       terrainmesh.Vec3
		p3       terrainmesh.Vec3
		expected terrainmesh.Vec3
	}{
		{
			name:     "flat_ccw",
			p1:       terrainmesh.Vec3{-1, -1, 0},
			p2:       terrainmesh.Vec3{1, -1, 0},
			p3:       terrainmesh.Vec3{-1, 1, 0},
			expected: terrainmesh.Vec3{0, 0, 1},
		},
		{
			name:     "flat_cw",
			p1:       terrainmesh.Vec3{-1, -1, 0},
			p2:       terrainmesh.Vec3{-1, 1, 0},
			p3:       terrainmesh.Vec3{1, -1, 0},
			expected: terrainmesh.Vec3{0, 0, -1},
		},
		{
			name: "slanted",
			p1:   terrainmesh.Vec3{1, -1, 0},
			p2:   terrainmesh.Vec3{1, 1, 1},
			p3:   terrainmesh.Vec3{-1, 1, 0},
			expected: terrainmesh.Vec3{
				-1 / math.Sqrt(6),
				-1 / math.Sqrt(6),
				2 / math.Sqrt(6),
			},
		},
		{
			name:     "degenerate_collinear",
			p1:       terrainmesh.Vec3{0, 0, 0},
			p2:       terrainmesh.Vec3{1, 1, 1},
			p3:       terrainmesh.Vec3{2, 2, 2},
			expected: terrainmesh.Vec3{},
		},
		{
			name:     "degenerate_coincident",
			p1:       terrainmesh.Vec3{3, 4, 5},
			p2:       terrainmesh.Vec3{3, 4, 5},
			p3:       terrainmesh.Vec3{3, 4, 5},
			expected: terrainmesh.Vec3{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := terrainmesh.TriangleNormal(tc.p1, tc.p2, tc.p3)
			for i := range 3 {
				assertInDelta(t, tc.expected[i], actual[i], 1e-12)
			}
		})
	}
}

func TestTriangleNormal_UnitLength(t *testing.T) {
	triangles := [][3]terrainmesh.Vec3{
		{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		{{0, 0, 0}, {1, 0, 3}, {0, 1, -2}},
		{{-5, 2, 0.5}, {7, -3, 12}, {0.1, 0.2, 0.3}},
		{{100, 200, 300}, {101, 200, 300}, {100, 201, 299}},
	}
	for _, triangle := range triangles {
		normal := terrainmesh.TriangleNormal(triangle[0], triangle[1], triangle[2])
		assertInDelta(t, 1, normal.Len(), 1e-12)
	}
}

func TestTriangleNormal_DegenerateIsExactlyZero(t *testing.T) {
	normal := terrainmesh.TriangleNormal(
		terrainmesh.Vec3{1, 2, 3},
		terrainmesh.Vec3{1, 2, 3},
		terrainmesh.Vec3{4, 5, 6},
	)
	assert.Equal(t, terrainmesh.Vec3{}, normal)
}
