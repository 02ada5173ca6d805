package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

type GroupWeight struct {
	Group  int
	Weight float64
}

type Vertex struct {
	Co     mgl64.Vec3
	Normal mgl64.Vec3
	Groups []GroupWeight
}

// Polygon indexes Mesh.Vertices. Loop data for polygon vertex k lives at LoopStart+k.
type Polygon struct {
	Vertices      []int
	LoopStart     int
	MaterialIndex int
	Smooth        bool
	Normal        mgl64.Vec3
}

// UVLayer stores one texcoord per loop.
type UVLayer struct {
	Name string
	Data []mgl64.Vec2
}

// Mesh is evaluated geometry, modifiers already applied.
type Mesh struct {
	Name      string
	Vertices  []Vertex
	Polygons  []Polygon
	UVLayers  []UVLayer
	Materials []*Material // nil entry is an empty slot
}

// AddPolygon appends a polygon and assigns its loop range.
func (m *Mesh) AddPolygon(vertices []int, material int, smooth bool) *Polygon {
	m.Polygons = append(m.Polygons, Polygon{
		Vertices:      vertices,
		LoopStart:     m.LoopCount(),
		MaterialIndex: material,
		Smooth:        smooth,
	})
	return &m.Polygons[len(m.Polygons)-1]
}

func (m *Mesh) LoopCount() int {
	if len(m.Polygons) == 0 {
		return 0
	}
	last := &m.Polygons[len(m.Polygons)-1]
	return last.LoopStart + len(last.Vertices)
}

// UV returns the texcoord of polygon vertex k in layer l.
func (m *Mesh) UV(l int, p *Polygon, k int) mgl64.Vec2 {
	data := m.UVLayers[l].Data
	if idx := p.LoopStart + k; idx < len(data) {
		return data[idx]
	}
	return mgl64.Vec2{}
}

// CalcNormals fills zero face normals with Newell normals and zero vertex
// normals with the normalized sum of adjacent face normals.
func (m *Mesh) CalcNormals() {
	for i := range m.Polygons {
		p := &m.Polygons[i]
		if p.Normal != (mgl64.Vec3{}) {
			continue
		}
		p.Normal = m.newellNormal(p)
	}

	needVertex := false
	for i := range m.Vertices {
		if m.Vertices[i].Normal == (mgl64.Vec3{}) {
			needVertex = true
			break
		}
	}
	if !needVertex {
		return
	}

	sums := make([]mgl64.Vec3, len(m.Vertices))
	for i := range m.Polygons {
		p := &m.Polygons[i]
		for _, v := range p.Vertices {
			sums[v] = sums[v].Add(p.Normal)
		}
	}
	for i := range m.Vertices {
		if m.Vertices[i].Normal != (mgl64.Vec3{}) {
			continue
		}
		if sums[i].Len() > 0 {
			m.Vertices[i].Normal = sums[i].Normalize()
		}
	}
}

func (m *Mesh) newellNormal(p *Polygon) mgl64.Vec3 {
	var n mgl64.Vec3
	count := len(p.Vertices)
	if count < 3 {
		return n
	}
	for k := 0; k < count; k++ {
		a := m.Vertices[p.Vertices[k]].Co
		b := m.Vertices[p.Vertices[(k+1)%count]].Co
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	if n.Len() == 0 {
		return n
	}
	return n.Normalize()
}
