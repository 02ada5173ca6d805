// Package geometry welds mesh attributes into deduplicated pools and
// partitions faces by material and arity.
package geometry

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

// Polygon is a source polygon resolved into pool indices. Vertices, Normals
// and every TexCoords channel have the same length.
type Polygon struct {
	Material  int
	Vertices  []int
	Normals   []int
	TexCoords [][]int
}

// IndexStreams holds parallel per-corner index lists for one face group.
type IndexStreams struct {
	Position []int
	Normal   []int
	TexCoord [][]int
}

// Faces returns the number of faces given the corner count per face.
func (s *IndexStreams) Faces(arity int) int {
	return len(s.Position) / arity
}

func (s *IndexStreams) Empty() bool { return len(s.Position) == 0 }

type FaceGroup struct {
	Material  int
	Quads     IndexStreams
	Triangles IndexStreams
}

type Buffer struct {
	Positions []mgl64.Vec3
	Normals   []mgl64.Vec3
	TexCoords [][]mgl64.Vec2
	Polygons  []Polygon
	Groups    []FaceGroup
	// Degenerate counts polygons dropped for having fewer than 3 vertices.
	Degenerate int
}

// TexCoordSets is the number of exported texcoord channels.
func (b *Buffer) TexCoordSets() int { return len(b.TexCoords) }

// Build indexes mesh. At most maxTexCoordSets uv layers are exported.
func Build(mesh *scene.Mesh, maxTexCoordSets int) *Buffer {
	channels := len(mesh.UVLayers)
	if channels > maxTexCoordSets {
		channels = maxTexCoordSets
	}
	if channels < 0 {
		channels = 0
	}

	b := &Buffer{
		Positions: make([]mgl64.Vec3, len(mesh.Vertices)),
		TexCoords: make([][]mgl64.Vec2, channels),
	}
	for i := range mesh.Vertices {
		b.Positions[i] = mesh.Vertices[i].Co
	}

	polys := make([]*scene.Polygon, 0, len(mesh.Polygons))
	for i := range mesh.Polygons {
		p := &mesh.Polygons[i]
		if len(p.Vertices) < 3 {
			b.Degenerate++
			continue
		}
		polys = append(polys, p)
	}

	// collect
	normals := make([]mgl64.Vec3, 0, mesh.LoopCount())
	tcoords := make([][]mgl64.Vec2, channels)
	for _, p := range polys {
		for k, v := range p.Vertices {
			if p.Smooth {
				normals = append(normals, mesh.Vertices[v].Normal)
			} else if k == 0 {
				normals = append(normals, p.Normal)
			}
			for c := 0; c < channels; c++ {
				tcoords[c] = append(tcoords[c], mesh.UV(c, p, k))
			}
		}
	}

	var normalIndex map[mgl64.Vec3]int
	b.Normals, normalIndex = poolVec3(normals)
	texIndex := make([]map[mgl64.Vec2]int, channels)
	for c := 0; c < channels; c++ {
		b.TexCoords[c], texIndex[c] = poolVec2(tcoords[c])
	}

	// resolve
	slots := SlotCount(mesh)
	b.Polygons = make([]Polygon, 0, len(polys))
	for _, p := range polys {
		rp := Polygon{
			Material:  clampSlot(p.MaterialIndex, slots),
			Vertices:  append([]int(nil), p.Vertices...),
			Normals:   make([]int, len(p.Vertices)),
			TexCoords: make([][]int, channels),
		}
		for c := range rp.TexCoords {
			rp.TexCoords[c] = make([]int, len(p.Vertices))
		}
		for k, v := range p.Vertices {
			if p.Smooth {
				rp.Normals[k] = normalIndex[mesh.Vertices[v].Normal]
			} else {
				rp.Normals[k] = normalIndex[p.Normal]
			}
			for c := 0; c < channels; c++ {
				rp.TexCoords[c][k] = texIndex[c][mesh.UV(c, p, k)]
			}
		}
		b.Polygons = append(b.Polygons, rp)
	}

	// partition
	b.Groups = make([]FaceGroup, slots)
	for m := range b.Groups {
		b.Groups[m] = FaceGroup{
			Material:  m,
			Quads:     IndexStreams{TexCoord: make([][]int, channels)},
			Triangles: IndexStreams{TexCoord: make([][]int, channels)},
		}
	}
	for i := range b.Polygons {
		p := &b.Polygons[i]
		g := &b.Groups[p.Material]
		if len(p.Vertices) == 4 {
			g.Quads.Position = append(g.Quads.Position, p.Vertices...)
			g.Quads.Normal = append(g.Quads.Normal, p.Normals...)
			for c := 0; c < channels; c++ {
				g.Quads.TexCoord[c] = append(g.Quads.TexCoord[c], p.TexCoords[c]...)
			}
		} else {
			g.Triangles.Position = append(g.Triangles.Position, Fan(p.Vertices)...)
			g.Triangles.Normal = append(g.Triangles.Normal, Fan(p.Normals)...)
			for c := 0; c < channels; c++ {
				g.Triangles.TexCoord[c] = append(g.Triangles.TexCoord[c], Fan(p.TexCoords[c])...)
			}
		}
	}

	return b
}

// Fan triangulates a convex polygon from its first corner:
// (v0,v1,v2), (v0,v2,v3), ...
func Fan(corners []int) []int {
	if len(corners) < 3 {
		return nil
	}
	out := make([]int, 0, (len(corners)-2)*3)
	for i := 2; i < len(corners); i++ {
		out = append(out, corners[0], corners[i-1], corners[i])
	}
	return out
}

// SlotCount is the number of material groups; a mesh without slots has one implicit default.
func SlotCount(mesh *scene.Mesh) int {
	if len(mesh.Materials) == 0 {
		return 1
	}
	return len(mesh.Materials)
}

// SlotNames returns the material id written for every slot. Empty slots are
// named default_1, default_2, ... and a mesh without slots uses "default".
func SlotNames(mesh *scene.Mesh) []string {
	if len(mesh.Materials) == 0 {
		return []string{DefaultMaterial}
	}
	names := make([]string, len(mesh.Materials))
	counter := 1
	for i, m := range mesh.Materials {
		if m != nil {
			names[i] = utils.SafeName(m.Name)
		} else {
			names[i] = fmt.Sprintf("%s_%d", DefaultMaterial, counter)
			counter++
		}
	}
	return names
}

const DefaultMaterial = "default"

func clampSlot(index, slots int) int {
	if index < 0 {
		return 0
	}
	if index >= slots {
		return slots - 1
	}
	return index
}

func lessVec3(a, b mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func lessVec2(a, b mgl64.Vec2) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	return a[1] < b[1]
}

// poolVec3 sorts values, drops adjacent exact duplicates and indexes the result.
func poolVec3(values []mgl64.Vec3) ([]mgl64.Vec3, map[mgl64.Vec3]int) {
	sort.Slice(values, func(i, j int) bool { return lessVec3(values[i], values[j]) })
	pool := make([]mgl64.Vec3, 0, len(values))
	index := make(map[mgl64.Vec3]int, len(values))
	for i, v := range values {
		if i != 0 && v == values[i-1] {
			continue
		}
		index[v] = len(pool)
		pool = append(pool, v)
	}
	return pool, index
}

func poolVec2(values []mgl64.Vec2) ([]mgl64.Vec2, map[mgl64.Vec2]int) {
	sort.Slice(values, func(i, j int) bool { return lessVec2(values[i], values[j]) })
	pool := make([]mgl64.Vec2, 0, len(values))
	index := make(map[mgl64.Vec2]int, len(values))
	for i, v := range values {
		if i != 0 && v == values[i-1] {
			continue
		}
		index[v] = len(pool)
		pool = append(pool, v)
	}
	return pool, index
}
