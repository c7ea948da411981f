// Package terrainmesh converts rectangular grids of elevation samples into
// flat-shaded, colored triangle meshes suitable for upload to a GPU.
package terrainmesh

import "context"

// A Coord is a coordinate.
type Coord struct {
	X int
	Y int
}

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A Raster is a source of elevation samples on a regular grid.
type Raster interface {
	Samples(ctx context.Context, coords []Coord) ([]float64, error)
	Scale() (int, int)
}
