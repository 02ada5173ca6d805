package yamlsrc

import (
	"bytes"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

// Save writes sc to path in the form Load reads.
func Save(path string, sc *scene.Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	defer f.Close()
	if err := Write(f, sc); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	return f.Close()
}

func Write(w io.Writer, sc *scene.Scene) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromScene(sc)); err != nil {
		return err
	}
	return enc.Close()
}

func Marshal(sc *scene.Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, sc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromScene captures sc as a document. Vertex normals are left out since
// loading recomputes them from the faces.
func FromScene(sc *scene.Scene) *Document {
	doc := &Document{
		Name:       sc.Name,
		Properties: sc.Properties,
		Objects:    make([]Object, 0, len(sc.Objects)),
	}
	if tl := sc.Timeline; tl != nil {
		doc.Timeline = &Timeline{Start: tl.FrameStart, End: tl.FrameEnd, FPS: tl.FPS, FPSBase: tl.FPSBase}
	}
	if sc.World.Ambient != nil || len(sc.World.Properties) != 0 {
		doc.World = &World{Properties: sc.World.Properties}
		if sc.World.Ambient != nil {
			doc.World.Ambient = sc.World.Ambient[:]
		}
	}
	for _, m := range sc.Materials {
		doc.Materials = append(doc.Materials, material(m))
	}
	for _, a := range sc.Library {
		doc.Actions = append(doc.Actions, action(a))
	}
	for _, o := range sc.Objects {
		doc.Objects = append(doc.Objects, object(o))
	}
	return doc
}

// transform writes TRS parts when they reproduce m, the raw matrix otherwise.
func transform(m mgl64.Mat4) Transform {
	if m == mgl64.Ident4() {
		return Transform{}
	}
	t, r, s := utils.Decompose(m)
	if !scene.ComposeTRS(t, r, s).ApproxEqualThreshold(m, 1e-9) {
		return Transform{Matrix: append([]float64(nil), m[:]...)}
	}
	var tr Transform
	if t != (mgl64.Vec3{}) {
		tr.Location = t[:]
	}
	if !r.ApproxEqual(mgl64.QuatIdent()) {
		tr.Rotation = []float64{r.W, r.V[0], r.V[1], r.V[2]}
	}
	if s != (mgl64.Vec3{1, 1, 1}) {
		tr.Scale = s[:]
	}
	return tr
}

func object(o *scene.Object) Object {
	dst := Object{
		Name:         o.Name,
		Type:         o.Type.String(),
		Hidden:       o.Hidden,
		Selected:     o.Selected,
		Transform:    transform(o.Transform),
		VertexGroups: o.VertexGroups,
		Properties:   o.Properties,
	}
	if o.Type == scene.TypeUnsupported {
		dst.Type = o.Properties["type"]
		props := make(map[string]string, len(o.Properties))
		for k, v := range o.Properties {
			if k != "type" {
				props[k] = v
			}
		}
		dst.Properties = props
	}
	if len(dst.Properties) == 0 {
		dst.Properties = nil
	}
	if o.Parent != nil {
		dst.Parent = o.Parent.Name
	}
	if o.Action != nil {
		dst.Action = o.Action.Name
	}
	for _, arm := range o.ArmatureModifiers {
		dst.Armatures = append(dst.Armatures, arm.Name)
	}
	if o.Mesh != nil {
		dst.Mesh = mesh(o.Mesh)
	}
	if o.Armature != nil {
		for _, b := range o.Armature.Bones {
			bone := Bone{Name: b.Name, Transform: transform(b.Rest)}
			if b.Parent >= 0 {
				bone.Parent = o.Armature.Bones[b.Parent].Name
			}
			dst.Bones = append(dst.Bones, bone)
		}
	}
	if l := o.Light; l != nil {
		dst.Light = &Light{
			Type:           string(l.Type),
			Color:          l.Color[:],
			UseShadow:      l.UseShadow,
			SpotSize:       l.SpotSize,
			SpotBlend:      l.SpotBlend,
			ClipStart:      l.ClipStart,
			CutoffDistance: l.CutoffDistance,
			ShadowSoftSize: l.ShadowSoftSize,
			Size:           l.Size,
			SizeY:          l.SizeY,
		}
	}
	if c := o.Camera; c != nil {
		dst.Camera = &Camera{FOV: c.FOV, Near: c.Near, Far: c.Far}
	}
	if o.Instance != nil {
		dst.Instance = o.Instance.Library
	}
	return dst
}

func mesh(m *scene.Mesh) *Mesh {
	dst := &Mesh{Name: m.Name}
	for _, v := range m.Vertices {
		vert := Vertex{Co: []float64{v.Co[0], v.Co[1], v.Co[2]}}
		if len(v.Groups) != 0 {
			vert.Groups = make(map[int]float64, len(v.Groups))
			for _, g := range v.Groups {
				vert.Groups[g.Group] = g.Weight
			}
		}
		dst.Vertices = append(dst.Vertices, vert)
	}
	for _, p := range m.Polygons {
		dst.Polygons = append(dst.Polygons, Polygon{Vertices: p.Vertices, Material: p.MaterialIndex, Smooth: p.Smooth})
	}
	for _, l := range m.UVLayers {
		layer := UVLayer{Name: l.Name, Data: make([][]float64, len(l.Data))}
		for i, uv := range l.Data {
			layer.Data[i] = []float64{uv[0], uv[1]}
		}
		dst.UVLayers = append(dst.UVLayers, layer)
	}
	for _, mat := range m.Materials {
		name := ""
		if mat != nil {
			name = mat.Name
		}
		dst.Materials = append(dst.Materials, name)
	}
	return dst
}

func material(m *scene.Material) Material {
	di, si := m.DiffuseIntensity, m.SpecularIntensity
	dst := Material{
		Name:              m.Name,
		DiffuseColor:      []float64{m.DiffuseColor[0], m.DiffuseColor[1], m.DiffuseColor[2]},
		DiffuseIntensity:  &di,
		SpecularColor:     []float64{m.SpecularColor[0], m.SpecularColor[1], m.SpecularColor[2]},
		SpecularIntensity: &si,
	}
	if m.Graph == nil {
		return dst
	}
	for _, n := range m.Graph.Nodes {
		node := Node{
			Name:       n.Name,
			Kind:       n.Kind,
			Label:      n.Label,
			Image:      n.Image,
			Extension:  n.Extension,
			BlendType:  n.BlendType,
			VectorType: n.VectorType,
			UVMap:      n.UVMap,
			Inputs:     defaults(n.Inputs),
			Outputs:    defaults(n.Outputs),
		}
		dst.Nodes = append(dst.Nodes, node)
		for _, in := range n.Inputs {
			if in.Link == nil {
				continue
			}
			dst.Links = append(dst.Links, Link{
				From:   m.Graph.Nodes[in.Link.Node].Name,
				Output: in.Link.Output,
				To:     n.Name,
				Input:  in.Name,
			})
		}
	}
	return dst
}

func defaults(sockets []scene.Socket) map[string][]float64 {
	if len(sockets) == 0 {
		return nil
	}
	result := make(map[string][]float64, len(sockets))
	for _, s := range sockets {
		if s.Type == scene.SocketShader {
			continue
		}
		result[s.Name] = []float64{s.Default[0], s.Default[1], s.Default[2], s.Default[3]}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func action(a *scene.Action) Action {
	dst := Action{Name: a.Name, Channels: make(map[string]*Channel, len(a.Channels))}
	for target, ch := range a.Channels {
		c := &Channel{}
		for _, k := range ch.Translation {
			c.Translation = append(c.Translation, []float64{k.Frame, k.Value[0], k.Value[1], k.Value[2]})
		}
		for _, k := range ch.Rotation {
			c.Rotation = append(c.Rotation, []float64{k.Frame, k.Value.W, k.Value.V[0], k.Value.V[1], k.Value.V[2]})
		}
		for _, k := range ch.Scale {
			c.Scale = append(c.Scale, []float64{k.Frame, k.Value[0], k.Value[1], k.Value[2]})
		}
		dst.Channels[target] = c
	}
	return dst
}
