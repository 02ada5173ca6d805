package gltfsrc

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
)

// Only the first two texcoord sets are loaded.
const maxTexCoordSets = 2

func texCoordAttribute(set int) string {
	return fmt.Sprintf("TEXCOORD_%d", set)
}

func uvLayerName(set int) string {
	if set == 0 {
		return "UVMap"
	}
	return fmt.Sprintf("UVMap.%03d", set)
}

func (l *loader) accessor(i uint32) (*gltf.Accessor, error) {
	if int(i) >= len(l.doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", i)
	}
	return l.doc.Accessors[i], nil
}

// mesh merges every triangle primitive of mesh mi into one polygon mesh.
// Primitive materials become slots; primitives without one share a nil slot.
func (l *loader) mesh(mi uint32) (*scene.Mesh, error) {
	if m, ok := l.meshes[mi]; ok {
		return m, nil
	}
	if int(mi) >= len(l.doc.Meshes) {
		return nil, errors.Errorf("mesh %d out of range", mi)
	}
	src := l.doc.Meshes[mi]
	m := &scene.Mesh{Name: src.Name}

	sets := 0
	for _, p := range src.Primitives {
		for s := sets; s < maxTexCoordSets; s++ {
			if _, ok := p.Attributes[texCoordAttribute(s)]; ok {
				sets = s + 1
			}
		}
	}
	for s := 0; s < sets; s++ {
		m.UVLayers = append(m.UVLayers, scene.UVLayer{Name: uvLayerName(s)})
	}

	slots := make(map[int64]int)
	for pi, p := range src.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			logger.Warn("[gltf] primitive skipped", zap.String("mesh", src.Name), zap.Int("primitive", pi),
				zap.Int("mode", int(p.Mode)))
			continue
		}
		key := int64(-1)
		if p.Material != nil {
			key = int64(*p.Material)
		}
		slot, ok := slots[key]
		if !ok {
			slot = len(m.Materials)
			slots[key] = slot
			var mat *scene.Material
			if p.Material != nil {
				var err error
				if mat, err = l.material(*p.Material); err != nil {
					return nil, err
				}
			}
			m.Materials = append(m.Materials, mat)
		}
		if err := l.primitive(m, p, slot, sets); err != nil {
			return nil, errors.Wrapf(err, "mesh %q primitive %d", src.Name, pi)
		}
	}

	m.CalcNormals()
	l.meshes[mi] = m
	return m, nil
}

func (l *loader) primitive(m *scene.Mesh, p *gltf.Primitive, slot, sets int) error {
	posIndex, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return errors.New("no POSITION attribute")
	}
	acr, err := l.accessor(posIndex)
	if err != nil {
		return err
	}
	positions, err := modeler.ReadPosition(l.doc, acr, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read positions")
	}

	var normals [][3]float32
	if i, ok := p.Attributes[gltf.NORMAL]; ok {
		if acr, err = l.accessor(i); err != nil {
			return err
		}
		if normals, err = modeler.ReadNormal(l.doc, acr, nil); err != nil {
			return errors.Wrapf(err, "Failed to read normals")
		}
	}

	uvs := make([][][2]float32, sets)
	for s := 0; s < sets; s++ {
		i, ok := p.Attributes[texCoordAttribute(s)]
		if !ok {
			continue
		}
		if acr, err = l.accessor(i); err != nil {
			return err
		}
		if uvs[s], err = modeler.ReadTextureCoord(l.doc, acr, nil); err != nil {
			return errors.Wrapf(err, "Failed to read texcoords %d", s)
		}
	}

	var joints [][4]uint16
	var weights [][4]float32
	if ji, ok := p.Attributes[gltf.JOINTS_0]; ok {
		if wi, ok := p.Attributes[gltf.WEIGHTS_0]; ok {
			if acr, err = l.accessor(ji); err != nil {
				return err
			}
			if joints, err = modeler.ReadJoints(l.doc, acr, nil); err != nil {
				return errors.Wrapf(err, "Failed to read joints")
			}
			if acr, err = l.accessor(wi); err != nil {
				return err
			}
			if weights, err = modeler.ReadWeights(l.doc, acr, nil); err != nil {
				return errors.Wrapf(err, "Failed to read weights")
			}
		}
	}

	base := len(m.Vertices)
	for i, pos := range positions {
		v := scene.Vertex{Co: vec(pos)}
		if i < len(normals) {
			v.Normal = vec(normals[i])
		}
		if i < len(joints) && i < len(weights) {
			for k := 0; k < 4; k++ {
				if weights[i][k] > 0 {
					v.Groups = append(v.Groups, scene.GroupWeight{Group: int(joints[i][k]), Weight: float64(weights[i][k])})
				}
			}
		}
		m.Vertices = append(m.Vertices, v)
	}

	var indices []uint32
	if p.Indices != nil {
		if acr, err = l.accessor(*p.Indices); err != nil {
			return err
		}
		if indices, err = modeler.ReadIndices(l.doc, acr, nil); err != nil {
			return errors.Wrapf(err, "Failed to read indices")
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	for t := 0; t+2 < len(indices); t += 3 {
		corners := []int{int(indices[t]), int(indices[t+1]), int(indices[t+2])}
		valid := true
		for _, c := range corners {
			if c >= len(positions) {
				valid = false
			}
		}
		if !valid {
			return errors.Errorf("index out of range in triangle %d", t/3)
		}
		m.AddPolygon([]int{base + corners[0], base + corners[1], base + corners[2]}, slot, normals != nil)
		for s := 0; s < sets; s++ {
			for _, c := range corners {
				var uv mgl64.Vec2
				if c < len(uvs[s]) {
					// glTF puts the texture origin at the top left
					uv = mgl64.Vec2{float64(uvs[s][c][0]), 1 - float64(uvs[s][c][1])}
				}
				m.UVLayers[s].Data = append(m.UVLayers[s].Data, uv)
			}
		}
	}
	return nil
}
