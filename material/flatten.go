package material

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

const (
	IssueUnsupportedNode   = "UnsupportedNodeType"
	IssueUnresolvedTexture = "UnresolvedTexture"
	IssueBadAttributes     = "BadInputAttributes"
)

// Issue is a recoverable problem met while flattening.
type Issue struct {
	Kind     string
	Material string
	Detail   string
}

// TextureResolver turns a shader image path into the exported file name.
type TextureResolver interface {
	Resolve(image string) (string, error)
}

type Flattener struct {
	Textures TextureResolver
	Issues   []Issue

	graph    *scene.ShaderGraph
	material string
	visiting map[*scene.ShaderNode]bool
	err      error
}

func NewFlattener(textures TextureResolver) *Flattener {
	return &Flattener{Textures: textures}
}

func (f *Flattener) issue(kind, format string, args ...interface{}) {
	f.Issues = append(f.Issues, Issue{Kind: kind, Material: f.material, Detail: fmt.Sprintf(format, args...)})
}

// Err returns the first texture failure that is not a missing file, such as
// an unwritable output directory. Those are fatal, not issues.
func (f *Flattener) Err() error {
	return f.err
}

// Flatten converts m. The graph is only read.
func (f *Flattener) Flatten(m *scene.Material) *Material {
	out := &Material{ID: utils.SafeName(m.Name)}
	f.material = out.ID
	if m.Graph == nil {
		out.Parts = legacyParts(m)
		return out
	}

	f.graph = m.Graph
	f.visiting = make(map[*scene.ShaderNode]bool)
	defer func() { f.graph, f.visiting = nil, nil }()

	var normal *scene.Socket

	if p := f.graph.ByKind(scene.KindPrincipled); p != nil {
		if base := p.InputAt(0); base != nil && !unlinkedBlack(base) {
			out.Parts = append(out.Parts, f.part(PartDiffuse, p, base, 0, false))
		}
		if spec := p.Input("Specular"); spec.Linked() {
			out.Parts = append(out.Parts, f.part(PartSpecular, p, spec, 0, false))
		}
		if em := p.Input("Emission"); em != nil && !unlinkedBlack(em) {
			out.Parts = append(out.Parts, f.part(PartConstant, p, em, 0, false))
		}
		normal = p.Input("Normal")
	}

	if d := f.graph.ByKind(scene.KindDiffuse); d != nil {
		if color := d.InputAt(0); color != nil {
			out.Parts = append(out.Parts, f.part(PartDiffuse, d, color, 0, false))
		}
		normal = d.InputAt(2)
	}

	if g := f.graph.ByKind(scene.KindGlossy); g != nil {
		if color := g.InputAt(0); color != nil {
			level := 0.0
			if r := g.InputAt(1); r != nil {
				level = r.Default[0] * 1000
			}
			out.Parts = append(out.Parts, f.part(PartSpecular, g, color, level, true))
		}
	}

	if e := f.graph.ByKind(scene.KindEmission); e != nil {
		if color := e.InputAt(0); color != nil {
			out.Parts = append(out.Parts, f.part(PartConstant, e, color, 0, false))
		}
	}

	if nm := f.graph.From(normal); nm != nil && nm.Kind == scene.KindNormalMap {
		if color := nm.InputAt(1); color.Linked() {
			strength := 1.0
			if s := nm.InputAt(0); s != nil {
				strength = s.Default[0]
			}
			out.Parts = append(out.Parts, f.part(PartNormal, nm, color, strength, true))
		}
	}

	return out
}

func legacyParts(m *scene.Material) []Part {
	parts := []Part{{
		ID:    PartDiffuse,
		Input: &Color{Value: m.DiffuseColor.Mul(m.DiffuseIntensity)},
	}}
	spec := m.SpecularColor.Mul(m.SpecularIntensity)
	if spec[0] > 0 || spec[1] > 0 || spec[2] > 0 {
		parts = append(parts, Part{ID: PartSpecular, Input: &Color{Value: spec}})
	}
	return parts
}

func unlinkedBlack(s *scene.Socket) bool {
	return !s.Linked() && s.Default[0] == 0 && s.Default[1] == 0 && s.Default[2] == 0
}

func (f *Flattener) part(id string, owner *scene.ShaderNode, socket *scene.Socket, level float64, hasLevel bool) Part {
	p := Part{ID: id, Level: level, HasLevel: hasLevel}
	if src := f.graph.From(socket); src != nil {
		p.Input = f.input(src, nil)
	} else {
		p.Input = &Color{Attrs: f.attrs(owner), Value: socket.Default.Vec3()}
	}
	return p
}

func (f *Flattener) attrs(n *scene.ShaderNode) Attributes {
	a, err := LabelAttributes(n.Label)
	if err != nil {
		f.issue(IssueBadAttributes, "node %q: %v", n.Name, err)
	}
	return a
}

func (f *Flattener) input(n *scene.ShaderNode, tint *mgl64.Vec3) Input {
	if f.visiting[n] {
		f.issue(IssueUnsupportedNode, "node %q feeds itself", n.Name)
		return &Unsupported{Kind: n.Kind}
	}
	f.visiting[n] = true
	defer delete(f.visiting, n)

	switch n.Kind {
	case scene.KindTexImage:
		return f.texture(n, tint)
	case scene.KindMixRGB:
		return f.mix(n)
	case scene.KindRGB:
		c := &Color{Attrs: f.attrs(n)}
		if len(n.Outputs) != 0 {
			c.Value = n.Outputs[0].Default.Vec3()
		}
		return c
	case scene.KindInvert:
		inv := &Invert{}
		for i := range n.Inputs {
			in := &n.Inputs[i]
			if in.Type != scene.SocketRGBA && in.Type != scene.SocketValue {
				continue
			}
			if src := f.graph.From(in); src != nil {
				inv.Inputs = append(inv.Inputs, f.input(src, nil))
			}
		}
		return inv
	case scene.KindRGBToBW:
		if in := n.InputAt(0); in != nil {
			if src := f.graph.From(in); src != nil {
				return f.input(src, nil)
			}
			return &Color{Attrs: f.attrs(n), Value: in.Default.Vec3()}
		}
		return &Color{Attrs: f.attrs(n)}
	default:
		f.issue(IssueUnsupportedNode, "node %q of type %s", n.Name, n.Kind)
		return &Unsupported{Attrs: f.attrs(n), Kind: n.Kind}
	}
}

// mix skips the factor input. A multiply against a constant RGB node
// becomes a tinted texture.
func (f *Flattener) mix(n *scene.ShaderNode) Input {
	if n.BlendType == "MULTIPLY" {
		a, b := f.graph.From(n.InputAt(1)), f.graph.From(n.InputAt(2))
		if a != nil && b != nil {
			if a.Kind == scene.KindRGB && len(a.Outputs) != 0 {
				tint := a.Outputs[0].Default.Vec3()
				return f.input(b, &tint)
			}
			if b.Kind == scene.KindRGB && len(b.Outputs) != 0 {
				tint := b.Outputs[0].Default.Vec3()
				return f.input(a, &tint)
			}
		}
	}

	mix := &Mix{}
	for i := range n.Inputs {
		in := &n.Inputs[i]
		if in.Name == "Fac" {
			continue
		}
		if src := f.graph.From(in); src != nil {
			mix.Inputs = append(mix.Inputs, f.input(src, nil))
		}
	}
	return mix
}

func (f *Flattener) texture(n *scene.ShaderNode, tint *mgl64.Vec3) Input {
	t := &Texture{
		Attrs: f.attrs(n),
		Tint:  tint,
		Image: n.Image,
		Scale: mgl64.Vec2{1, 1},
		Clamp: n.Extension == "CLIP",
	}

	if f.Textures != nil {
		src, err := f.Textures.Resolve(n.Image)
		switch {
		case err == nil:
			t.Src = src
		case errors.Cause(err) == ErrUnresolvedTexture:
			f.issue(IssueUnresolvedTexture, "%v", err)
		case f.err == nil:
			f.err = err
		}
	}

	v := f.vectorSource(n)
	if v != nil && v.Kind == scene.KindMapping {
		switch v.VectorType {
		case "POINT", "VECTOR":
			if s := v.Input("Scale"); s != nil {
				t.Scale = mgl64.Vec2{s.Default[0], s.Default[1]}
			}
		default:
			f.issue(IssueUnsupportedNode, "mapping %q with vector type %s", v.Name, v.VectorType)
		}
		v = f.vectorSource(v)
	}
	if v != nil {
		if v.Kind == scene.KindUVMap {
			t.AltUV = v.UVMap != ""
		} else {
			f.issue(IssueUnsupportedNode, "texture vector from %q of type %s", v.Name, v.Kind)
		}
	}
	return t
}

// vectorSource returns the node feeding the first linked vector input of n.
func (f *Flattener) vectorSource(n *scene.ShaderNode) *scene.ShaderNode {
	for i := range n.Inputs {
		in := &n.Inputs[i]
		if in.Type == scene.SocketVector && in.Linked() {
			return f.graph.From(in)
		}
	}
	return nil
}
