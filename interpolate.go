package terrainmesh

import (
	"context"
	"fmt"
	"math"
)

// InterpolateGrid upsamples a width×height row-major grid of elevations to
// newWidth×newHeight by bilinear interpolation over the source extent. When
// the dimensions are unchanged the output equals the input exactly.
func InterpolateGrid(elevations []float32, width, height, newWidth, newHeight int) ([]float32, error) {
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, width, height)
	}
	if newWidth < 2 || newHeight < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimension, newWidth, newHeight)
	}
	if len(elevations) != width*height {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrElevationCount, len(elevations), width*height)
	}

	result := make([]float32, newWidth*newHeight)
	for y := range newHeight {
		origY := float64(y) * float64(height-1) / float64(newHeight-1)
		y1 := int(math.Floor(origY))
		y2 := min(y1+1, height-1)
		dy := origY - float64(y1)
		for x := range newWidth {
			origX := float64(x) * float64(width-1) / float64(newWidth-1)
			x1 := int(math.Floor(origX))
			x2 := min(x1+1, width-1)
			dx := origX - float64(x1)
			z1 := float64(elevations[y1*width+x1])
			z2 := float64(elevations[y1*width+x2])
			z3 := float64(elevations[y2*width+x1])
			z4 := float64(elevations[y2*width+x2])
			result[y*newWidth+x] = float32(0 +
				z1*(1-dx)*(1-dy) +
				z2*dx*(1-dy) +
				z3*(1-dx)*dy +
				z4*dx*dy)
		}
	}
	return result, nil
}

// InterpolateBilinear samples raster at coords, interpolating bilinearly
// between the four surrounding raster samples.
func InterpolateBilinear(ctx context.Context, raster Raster, coords [][]float64) ([]float64, error) {
	scaleX, scaleY := raster.Scale()
	rasterCoords := make([]Coord, 4*len(coords))
	for i, coord := range coords {
		x0 := scaleX * (int(coord[0]) / scaleX)
		y0 := scaleY * (int(coord[1]) / scaleY)
		x1 := x0 + scaleX
		y1 := y0 + scaleY
		rasterCoords[4*i+0] = Coord{X: x0, Y: y0}
		rasterCoords[4*i+1] = Coord{X: x1, Y: y0}
		rasterCoords[4*i+2] = Coord{X: x0, Y: y1}
		rasterCoords[4*i+3] = Coord{X: x1, Y: y1}
	}
	samples, err := raster.Samples(ctx, rasterCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(coords))
	for i, coord := range coords {
		dx := (coord[0] - float64(scaleX*(int(coord[0])/scaleX))) / float64(scaleX)
		dy := (coord[1] - float64(scaleY*(int(coord[1])/scaleY))) / float64(scaleY)
		result[i] = 0 +
			samples[4*i+0]*(1-dx)*(1-dy) +
			samples[4*i+1]*dx*(1-dy) +
			samples[4*i+2]*(1-dx)*dy +
			samples[4*i+3]*dx*dy
	}
	return result, nil
}
