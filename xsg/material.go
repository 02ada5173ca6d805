package xsg

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/material"
)

func (e *writer) material(m *material.Material) {
	if m.ID == material.DefaultID && isDefault(m) {
		e.line(`<material id="default"><part id="diffuse"><input color="0.5 0.5 0.5"/></part></material>`)
		return
	}
	e.line(`<material id="%s">`, m.ID)
	e.tabsInc()
	for i := range m.Parts {
		e.part(&m.Parts[i])
	}
	e.tabsDec()
	e.line("</material>")
}

func isDefault(m *material.Material) bool {
	if len(m.Parts) != 1 || m.Parts[0].ID != material.PartDiffuse || m.Parts[0].HasLevel {
		return false
	}
	c, ok := m.Parts[0].Input.(*material.Color)
	return ok && c.Attrs.Empty() && c.Value == mgl64.Vec3{0.5, 0.5, 0.5}
}

func (e *writer) part(p *material.Part) {
	e.fillTabs(0)
	e.printf(`<part id="%s"`, p.ID)
	if p.HasLevel {
		e.printf(` level="%f"`, p.Level)
	}
	e.print(">\n")
	e.tabsInc()
	e.input(p.Input)
	e.tabsDec()
	e.line("</part>")
}

func color(v mgl64.Vec3) string {
	return fmt.Sprintf(`color="%f %f %f"`, clean(v[0]), clean(v[1]), clean(v[2]))
}

// inputTag writes <input> with the user attributes first, then the given ones.
func (e *writer) inputTag(attrs material.Attributes, fields ...string) {
	e.fillTabs(0)
	e.print("<input")
	if !attrs.Empty() {
		e.print(" ")
		e.print(attrs.String())
	}
	for _, f := range fields {
		e.print(" ")
		e.print(f)
	}
	e.print("/>\n")
}

func (e *writer) input(in material.Input) {
	switch v := in.(type) {
	case *material.Color:
		e.inputTag(v.Attrs, color(v.Value))
	case *material.Texture:
		fields := make([]string, 0, 5)
		if v.Tint != nil {
			fields = append(fields, color(*v.Tint))
		}
		if v.Src != "" {
			fields = append(fields,
				fmt.Sprintf(`scale="%s %s"`, num(v.Scale[0]), num(-v.Scale[1])),
				fmt.Sprintf(`src="%s"`, v.Src))
		}
		if v.Clamp {
			fields = append(fields, `addr="rclamp"`)
		}
		if v.AltUV {
			fields = append(fields, `tcoord="1"`)
		}
		e.inputTag(v.Attrs, fields...)
	case *material.Mix:
		e.line("<mix>")
		e.tabsInc()
		for _, c := range v.Inputs {
			e.input(c)
		}
		e.tabsDec()
		e.line("</mix>")
	case *material.Invert:
		e.line(`<mix type="inv">`)
		e.tabsInc()
		for _, c := range v.Inputs {
			e.input(c)
		}
		e.tabsDec()
		e.line("</mix>")
	case *material.Unsupported:
		e.inputTag(v.Attrs, fmt.Sprintf(`type="%s"`, v.Kind))
	}
}
