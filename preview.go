package terrainmesh

import (
	"image"
	"math"
)

// previewLight is the direction toward the light used to shade previews.
var previewLight = func() Vec3 {
	v := Vec3{0.3, -0.4, 0.85}
	length := v.Len()
	return Vec3{v[0] / length, v[1] / length, v[2] / length}
}()

// RenderPreview rasterizes buffers into a top-down size×size image. Triangles
// are filled with barycentrically interpolated vertex colors, shaded by the
// triangle's flat normal against a fixed light. It is a diagnostic rendering,
// not a substitute for the caller's GPU pipeline.
func RenderPreview(buffers *MeshBuffers, size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))

	for triangle := 0; triangle < buffers.VertexCount/3; triangle++ {
		i0 := 3 * 3 * triangle
		i1 := i0 + 3
		i2 := i0 + 6

		// Mesh XY spans [-1,1]; map to pixel coordinates.
		x0 := (float64(buffers.Vertices[i0+0]) + 1) / 2 * float64(size-1)
		y0 := (float64(buffers.Vertices[i0+1]) + 1) / 2 * float64(size-1)
		x1 := (float64(buffers.Vertices[i1+0]) + 1) / 2 * float64(size-1)
		y1 := (float64(buffers.Vertices[i1+1]) + 1) / 2 * float64(size-1)
		x2 := (float64(buffers.Vertices[i2+0]) + 1) / 2 * float64(size-1)
		y2 := (float64(buffers.Vertices[i2+1]) + 1) / 2 * float64(size-1)

		// All three vertices share the flat normal.
		normal := Vec3{
			float64(buffers.Normals[i0+0]),
			float64(buffers.Normals[i0+1]),
			float64(buffers.Normals[i0+2]),
		}
		shade := 0.35 + 0.65*math.Abs(normal[0]*previewLight[0]+normal[1]*previewLight[1]+normal[2]*previewLight[2])

		r0, g0, b0 := vertexColor(buffers, i0)
		r1, g1, b1 := vertexColor(buffers, i1)
		r2, g2, b2 := vertexColor(buffers, i2)

		minX := max(int(math.Min(math.Min(x0, x1), x2)), 0)
		maxX := min(int(math.Max(math.Max(x0, x1), x2))+1, size-1)
		minY := max(int(math.Min(math.Min(y0, y1), y2)), 0)
		maxY := min(int(math.Max(math.Max(y0, y1), y2))+1, size-1)
		if minX > maxX || minY > maxY {
			continue
		}

		det := (y1-y2)*(x0-x2) + (x2-x1)*(y0-y2)
		if det > -1e-8 && det < 1e-8 {
			continue
		}
		invDet := 1 / det
		dy12 := y1 - y2
		dx21 := x2 - x1
		dy20 := y2 - y0
		dx02 := x0 - x2

		for sy := minY; sy <= maxY; sy++ {
			dsy := float64(sy) - y2
			for sx := minX; sx <= maxX; sx++ {
				dsx := float64(sx) - x2
				w0 := (dy12*dsx + dx21*dsy) * invDet
				w1 := (dy20*dsx + dx02*dsy) * invDet
				w2 := 1 - w0 - w1
				if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
					continue
				}

				r := shade * (w0*r0 + w1*r1 + w2*r2)
				g := shade * (w0*g0 + w1*g1 + w2*g2)
				b := shade * (w0*b0 + w1*b1 + w2*b2)

				offset := img.PixOffset(sx, sy)
				img.Pix[offset+0] = previewChannel(r)
				img.Pix[offset+1] = previewChannel(g)
				img.Pix[offset+2] = previewChannel(b)
				img.Pix[offset+3] = 0xff
			}
		}
	}

	return img
}

func vertexColor(buffers *MeshBuffers, offset int) (float64, float64, float64) {
	return float64(buffers.Colors[offset+0]),
		float64(buffers.Colors[offset+1]),
		float64(buffers.Colors[offset+2])
}

func previewChannel(value float64) uint8 {
	return uint8(math.Max(0, math.Min(255, value*255)))
}
