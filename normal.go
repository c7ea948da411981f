package terrainmesh

import "math"

// A Vec3 is a 3-component vector.
type Vec3 [3]float64

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// TriangleNormal returns the unit normal of the triangle p1, p2, p3. The
// winding of the corners determines the normal's direction. A degenerate
// triangle has a zero cross product and returns the zero vector.
func TriangleNormal(p1, p2, p3 Vec3) Vec3 {
	normal := p2.Sub(p1).Cross(p3.Sub(p1))
	length := normal.Len()
	if length == 0 {
		return Vec3{}
	}
	return Vec3{normal[0] / length, normal[1] / length, normal[2] / length}
}
