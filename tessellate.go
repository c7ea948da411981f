package terrainmesh

import "golang.org/x/sync/errgroup"

// triangleIndexes splits a cell's four corners, ordered top-left, top-right,
// bottom-left, bottom-right, into two triangles. The winding must not change:
// renderers depend on it for face orientation.
var triangleIndexes = [2][3]int{
	{0, 1, 2},
	{1, 3, 2},
}

// tessellate fills buffers from a newWidth×newHeight interpolated grid. Each
// cell's six vertices land at an offset computed from the cell's position
// alone, so row ranges can be processed concurrently without coordination.
func tessellate(grid []float32, newWidth, newHeight int, ramp ColorRamp, parallelism int, buffers *MeshBuffers) error {
	cellRows := newHeight - 1
	if parallelism < 2 || cellRows < 2 {
		tessellateRows(grid, newWidth, newHeight, 0, cellRows, ramp, buffers)
		return nil
	}
	parallelism = min(parallelism, cellRows)
	rowsPerWorker := (cellRows + parallelism - 1) / parallelism
	var group errgroup.Group
	for rowStart := 0; rowStart < cellRows; rowStart += rowsPerWorker {
		rowEnd := min(rowStart+rowsPerWorker, cellRows)
		group.Go(func() error {
			tessellateRows(grid, newWidth, newHeight, rowStart, rowEnd, ramp, buffers)
			return nil
		})
	}
	return group.Wait()
}

// tessellateRows emits the two triangles of every cell in rows
// [rowStart, rowEnd). It writes only to the buffer ranges owned by those
// rows.
func tessellateRows(grid []float32, newWidth, newHeight, rowStart, rowEnd int, ramp ColorRamp, buffers *MeshBuffers) {
	cellsPerRow := newWidth - 1
	for y := rowStart; y < rowEnd; y++ {
		y1 := float64(y)/float64(newHeight-1)*2 - 1
		y2 := float64(y+1)/float64(newHeight-1)*2 - 1
		for x := range cellsPerRow {
			x1 := float64(x)/float64(newWidth-1)*2 - 1
			x2 := float64(x+1)/float64(newWidth-1)*2 - 1

			z1 := float64(grid[y*newWidth+x])
			z2 := float64(grid[y*newWidth+x+1])
			z3 := float64(grid[(y+1)*newWidth+x])
			z4 := float64(grid[(y+1)*newWidth+x+1])

			corners := [4]Vec3{
				{x1, y1, z1},
				{x2, y1, z2},
				{x1, y2, z3},
				{x2, y2, z4},
			}

			// 6 vertices per cell, 3 floats per vertex.
			offset := (y*cellsPerRow + x) * 6 * 3
			for _, indexes := range triangleIndexes {
				normal := TriangleNormal(corners[indexes[0]], corners[indexes[1]], corners[indexes[2]])
				for _, index := range indexes {
					corner := corners[index]
					buffers.Vertices[offset+0] = float32(corner[0])
					buffers.Vertices[offset+1] = float32(corner[1])
					buffers.Vertices[offset+2] = float32(corner[2])
					buffers.Normals[offset+0] = float32(normal[0])
					buffers.Normals[offset+1] = float32(normal[1])
					buffers.Normals[offset+2] = float32(normal[2])
					r, g, b := ramp.Lookup(corner[2])
					buffers.Colors[offset+0] = float32(r)
					buffers.Colors[offset+1] = float32(g)
					buffers.Colors[offset+2] = float32(b)
					offset += 3
				}
			}
		}
	}
}
