package scene

import "github.com/go-gl/mathgl/mgl64"

// Cube returns a flat shaded cube of edge 2*half centered at the origin,
// with 8 shared vertices and 6 quads.
func Cube(half float64) *Mesh {
	m := &Mesh{Name: "Cube"}
	for i := 0; i < 8; i++ {
		co := mgl64.Vec3{-half, -half, -half}
		if i&1 != 0 {
			co[0] = half
		}
		if i&2 != 0 {
			co[1] = half
		}
		if i&4 != 0 {
			co[2] = half
		}
		m.Vertices = append(m.Vertices, Vertex{Co: co})
	}
	faces := [][]int{
		{0, 2, 3, 1}, // -z
		{4, 5, 7, 6}, // +z
		{0, 1, 5, 4}, // -y
		{2, 6, 7, 3}, // +y
		{0, 4, 6, 2}, // -x
		{1, 3, 7, 5}, // +x
	}
	for _, f := range faces {
		m.AddPolygon(f, 0, false)
	}
	return m
}
