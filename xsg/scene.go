package xsg

import (
	"io"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/scene"
)

// Write serializes doc into w. Flags is a bit set, see FlagSeparate.
func Write(w io.Writer, doc *Document, flags int) error {
	e := newWriter(w, flags)
	e.header(doc)
	for _, text := range doc.Extra {
		e.block(text)
	}

	e.tabsInc()
	for _, m := range doc.Materials {
		e.material(m)
	}
	e.tabsDec()
	e.print("\n")

	e.tabsInc()
	for _, n := range sortNodes(doc.Nodes) {
		e.node(n)
	}
	for _, set := range doc.Animations {
		e.animation(set)
	}
	e.tabsDec()

	e.print("\n</scene>\n</xsg>\n")
	if err := e.close(); err != nil {
		return errors.Wrapf(err, "Failed to flush xsg output")
	}
	return nil
}

func (e *writer) header(doc *Document) {
	ambient := DefaultAmbient
	if doc.Ambient != nil {
		ambient = *doc.Ambient
	}
	e.print("<?xml version=\"1.0\"?>\n<xsg version=\"0.99\">\n")
	e.printf("<scene ambient=\"%s\">\n", vec3(ambient))
}

func sortNodes(nodes []*Node) []*Node {
	result := append([]*Node(nil), nodes...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (e *writer) node(n *Node) {
	t := n.Transform
	if e.flags&FlagSeparate != 0 {
		switch n.Kind {
		case NodeNull, NodeCamera, NodeLight:
			t = coord.ClearTranslation(t)
		}
	}

	e.nodeBegin(n.ID, t)
	switch n.Kind {
	case NodeMesh:
		if n.Mesh != nil {
			e.mesh(n.Mesh)
		}
	case NodeCamera:
		e.line("<camera/>")
	case NodeLight:
		if n.Light != nil {
			e.light(n.Light)
		}
	case NodeSkin:
		for _, b := range sortNodes(n.Bones) {
			e.node(b)
		}
	case NodeReference:
		e.reference(n.Reference)
	}
	for _, c := range sortNodes(n.Children) {
		e.node(c)
	}
	e.nodeEnd()
}

func (e *writer) reference(r *Reference) {
	if r == nil {
		return
	}
	e.fillTabs(0)
	e.printf(`<object src="%s"`, r.Src)
	if r.Object == "" {
		e.print("/>\n")
		return
	}
	e.print(">\n")
	e.block(r.Object)
	e.line("</>")
}

// LightParams are the attribute values of a <light> element.
type LightParams struct {
	Inner, Outer  float64
	Begin, End    float64
	Width, Height float64
}

// Params derives light attributes from the source light settings.
func Params(l *scene.Light) LightParams {
	p := LightParams{Begin: 20, End: 100, Inner: 50, Outer: 60, Width: 50, Height: 60}
	switch l.Type {
	case scene.LightSpot:
		p.Begin = l.ClipStart
		p.End = l.CutoffDistance
		p.Outer = mgl64.RadToDeg(l.SpotSize)
		p.Inner = p.Outer - p.Outer*l.SpotBlend
	case scene.LightArea:
		p.Begin = l.ClipStart
		p.End = l.CutoffDistance
		p.Inner, p.Outer = l.Size, l.Size
		p.Width, p.Height = l.Size, l.SizeY
		if p.Height == 0 {
			p.Height = p.Width
		}
	case scene.LightPoint:
		p.Inner, p.Outer = l.ShadowSoftSize, l.ShadowSoftSize
	case scene.LightSun:
		p.Begin, p.End = -1, -1
		p.Inner, p.Outer = l.ShadowSoftSize, l.ShadowSoftSize
	}
	return p
}

func (e *writer) light(l *scene.Light) {
	p := Params(l)
	e.fillTabs(0)
	e.printf(`<light color="%s" `, vec3(l.Color))
	if l.UseShadow {
		e.print(`param="shadow:1" `)
	}
	switch l.Type {
	case scene.LightSpot:
		e.printf(`type="spot" inner="%s" outer="%s" begin="%s" end="%s"/>`,
			num(p.Inner), num(p.Outer), num(p.Begin), num(p.End))
	case scene.LightArea:
		e.printf(`inner="%s" outer="%s" begin="%s" end="%s" width="%s" height="%s"/>`,
			num(p.Inner), num(p.Outer), num(p.Begin), num(p.End), num(p.Width), num(p.Height))
	case scene.LightPoint:
		e.printf(`type="point" inner="%s" outer="%s"/>`, num(p.Inner), num(p.Outer))
	case scene.LightSun:
		e.printf(`begin="%s" end="%s" inner="%s" outer="%s"/>`,
			num(p.Begin), num(p.End), num(p.Inner), num(p.Outer))
	default:
		e.print("/>")
	}
	e.print("\n")
}

// clean drops negative zero so output does not depend on sign of zero.
func clean(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
