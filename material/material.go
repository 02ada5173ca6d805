// Package material flattens shader node graphs into declarative XSG
// material parts.
package material

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Input is one of Color, Texture, Mix, Invert or Unsupported.
type Input interface {
	isInput()
}

type Color struct {
	Attrs Attributes
	Value mgl64.Vec3
}

type Texture struct {
	Attrs Attributes
	// Tint is set when the texture was multiplied by a constant color.
	Tint *mgl64.Vec3
	// Src is the exported file name, empty when the image was not found.
	Src   string
	Image string
	Scale mgl64.Vec2
	Clamp bool
	// AltUV selects the second texcoord set.
	AltUV bool
}

type Mix struct {
	Inputs []Input
}

type Invert struct {
	Inputs []Input
}

type Unsupported struct {
	Attrs Attributes
	Kind  string
}

func (*Color) isInput()       {}
func (*Texture) isInput()     {}
func (*Mix) isInput()         {}
func (*Invert) isInput()      {}
func (*Unsupported) isInput() {}

const (
	PartDiffuse  = "diffuse"
	PartSpecular = "specular"
	PartConstant = "constant"
	PartNormal   = "normal"
)

type Part struct {
	ID       string
	Level    float64
	HasLevel bool
	Input    Input
}

type Material struct {
	ID    string
	Parts []Part
}

// DefaultID names the synthetic material used by meshes without slots.
const DefaultID = "default"

func Default() *Material {
	return &Material{
		ID: DefaultID,
		Parts: []Part{{
			ID:    PartDiffuse,
			Input: &Color{Value: mgl64.Vec3{0.5, 0.5, 0.5}},
		}},
	}
}

// Walk calls fn for in and every nested input, parents first.
func Walk(in Input, fn func(Input)) {
	if in == nil {
		return
	}
	fn(in)
	switch v := in.(type) {
	case *Mix:
		for _, c := range v.Inputs {
			Walk(c, fn)
		}
	case *Invert:
		for _, c := range v.Inputs {
			Walk(c, fn)
		}
	}
}

// Textures returns all textures referenced by m in part order.
func (m *Material) Textures() []*Texture {
	result := make([]*Texture, 0)
	for _, p := range m.Parts {
		Walk(p.Input, func(in Input) {
			if t, ok := in.(*Texture); ok {
				result = append(result, t)
			}
		})
	}
	return result
}
