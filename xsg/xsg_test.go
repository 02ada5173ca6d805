package xsg

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/xsg_export/anim"
	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/geometry"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/skin"
)

const identity = `transform="1.000000 0.000000 0.000000  0.000000 1.000000 0.000000  0.000000 0.000000 1.000000  0.000000 0.000000 0.000000  "`

func write(t *testing.T, doc *Document, flags int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, flags))
	return buf.String()
}

func TestWriteEmptyScene(t *testing.T) {
	out := write(t, &Document{}, 0)
	assert.Equal(t, "<?xml version=\"1.0\"?>\n<xsg version=\"0.99\">\n<scene ambient=\"0.25 0.25 0.25\">\n\n\n</scene>\n</xsg>\n", out)
}

func TestWriteAmbientAndExtra(t *testing.T) {
	ambient := mgl64.Vec3{0.1, 0.2, 0.3}
	out := write(t, &Document{Ambient: &ambient, Extra: []string{`<fog color="1 1 1"/>`}}, 0)
	assert.Contains(t, out, "<scene ambient=\"0.1 0.2 0.3\">\n\t<fog color=\"1 1 1\"/>\n")
}

func TestWriteNodesSortedAndNested(t *testing.T) {
	child := &Node{ID: "child", Transform: mgl64.Ident4()}
	doc := &Document{Nodes: []*Node{
		{ID: "b", Transform: mgl64.Ident4()},
		{ID: "a", Transform: mgl64.Ident4(), Children: []*Node{child}},
	}}
	out := write(t, doc, 0)
	expected := "\t<node id=\"a\" " + identity + ">\n" +
		"\t\t<node id=\"child\" " + identity + ">\n" +
		"\t\t</node>\n" +
		"\t</node>\n" +
		"\t<node id=\"b\" " + identity + ">\n" +
		"\t</node>\n"
	assert.Contains(t, out, expected)
}

func TestWriteCharmapReplacesUnsupported(t *testing.T) {
	require.NoError(t, config.SetEncoding("Windows 1252"))
	defer config.SetEncoding("")

	doc := &Document{Nodes: []*Node{
		{ID: "caf\u00e9", Transform: mgl64.Ident4()},
		{ID: "\u2603", Transform: mgl64.Ident4()},
	}}
	out := write(t, doc, 0)
	assert.Contains(t, out, "<node id=\"caf\xe9\" ")
	assert.Contains(t, out, "<node id=\"\x1a\" ")
	assert.True(t, strings.HasSuffix(out, "</scene>\n</xsg>\n"))
}

func TestWriteTransformColumns(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3)
	out := write(t, &Document{Nodes: []*Node{{ID: "n", Transform: m}}}, 0)
	assert.Contains(t, out, `0.000000 0.000000 1.000000  1.000000 2.000000 3.000000  "`)
}

func TestSeparateFlagClearsTranslation(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3)
	doc := &Document{Nodes: []*Node{
		{ID: "null", Kind: NodeNull, Transform: m},
		{ID: "cam", Kind: NodeCamera, Transform: m},
		{ID: "mesh", Kind: NodeMesh, Transform: m},
	}}
	out := write(t, doc, FlagSeparate)
	assert.Contains(t, out, "<node id=\"null\" "+identity+">")
	assert.Contains(t, out, "<node id=\"cam\" "+identity+">\n\t\t<camera/>\n")
	assert.Contains(t, out, `1.000000 2.000000 3.000000  "`)
}

func TestWriteMesh(t *testing.T) {
	buf := &geometry.Buffer{
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   []mgl64.Vec3{{0, 0, 1}},
		TexCoords: [][]mgl64.Vec2{{{0, 0}, {1, 0.5}}},
		Groups: []geometry.FaceGroup{{
			Triangles: geometry.IndexStreams{
				Position: []int{0, 1, 2},
				Normal:   []int{0, 0, 0},
				TexCoord: [][]int{{0, 1, 1}},
			},
		}},
	}
	doc := &Document{Nodes: []*Node{{
		ID: "tri", Kind: NodeMesh, Transform: mgl64.Ident4(),
		Mesh: &Mesh{Buffer: buf, Materials: []string{"stone"}},
	}}}
	out := write(t, doc, 0)
	expected := "\t\t<mesh>\n" +
		"\t\t\t<position>0.000000 0.000000 0.000000  1.000000 0.000000 0.000000  0.000000 0.000000 1.000000  </position>\n" +
		"\t\t\t<normal>0.000000 1.000000 0.000000  </normal>\n" +
		"\t\t\t<texture>0.000000 0.000000  1.000000 0.500000  </texture>\n" +
		"\t\t\t<material id=\"stone\">\n" +
		"\t\t\t\t<faces size=3>\n" +
		"\t\t\t\t\t<position>0 1 2  </position>\n" +
		"\t\t\t\t\t<normal>0 0 0  </normal>\n" +
		"\t\t\t\t\t<texture>0 1 1  </texture>\n" +
		"\t\t\t\t</faces>\n" +
		"\t\t\t</material>\n" +
		"\t\t</mesh>\n"
	assert.Contains(t, out, expected)
	assert.NotContains(t, out, "<faces size=4>")
}

func TestWriteQuadsBeforeTriangles(t *testing.T) {
	buf := &geometry.Buffer{
		Positions: []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:   []mgl64.Vec3{{0, 0, 1}},
		Groups: []geometry.FaceGroup{{
			Quads:     geometry.IndexStreams{Position: []int{0, 1, 2, 3, 3, 2, 1, 0}, Normal: []int{0, 0, 0, 0, 0, 0, 0, 0}},
			Triangles: geometry.IndexStreams{Position: []int{0, 1, 2}, Normal: []int{0, 0, 0}},
		}},
	}
	out := write(t, &Document{Nodes: []*Node{{ID: "q", Kind: NodeMesh, Transform: mgl64.Ident4(), Mesh: &Mesh{Buffer: buf}}}}, 0)
	assert.Contains(t, out, "<material id=\"default\">\n\t\t\t\t<faces size=4>\n\t\t\t\t\t<position>0 1 2 3  3 2 1 0  </position>\n")
	quads := bytes.Index([]byte(out), []byte("<faces size=4>"))
	tris := bytes.Index([]byte(out), []byte("<faces size=3>"))
	assert.True(t, quads < tris)
}

func TestWriteInfluence(t *testing.T) {
	buf := &geometry.Buffer{Groups: []geometry.FaceGroup{{}}}
	s := &skin.Skin{Clusters: []*skin.Cluster{{
		Bone: "bone", ID: "bone", Transform: mgl64.Ident4(),
		Vertices: []int{0, 2}, Weights: []float64{1, 0.5},
	}}}
	out := write(t, &Document{Nodes: []*Node{{ID: "m", Kind: NodeMesh, Transform: mgl64.Ident4(), Mesh: &Mesh{Buffer: buf, Skin: s}}}}, 0)
	expected := "\t\t\t<influence id=\"bone\" vertices=\"2\" " + identity + ">\n" +
		"\t\t\t\t<vertex>0 2</>\n" +
		"\t\t\t\t<weight>1.000000  0.500000 </>\n" +
		"\t\t\t</influence>\n" +
		"\t\t\t<position></position>\n"
	assert.Contains(t, out, expected)
}

func TestWriteSkinBones(t *testing.T) {
	root := &Node{ID: "root", Transform: mgl64.Ident4(), Children: []*Node{
		{ID: "z", Transform: mgl64.Ident4()},
		{ID: "arm", Transform: mgl64.Ident4()},
	}}
	doc := &Document{Nodes: []*Node{{ID: "rig", Kind: NodeSkin, Transform: mgl64.Ident4(), Bones: []*Node{root}}}}
	out := write(t, doc, 0)
	expected := "\t<node id=\"rig\" " + identity + ">\n" +
		"\t\t<node id=\"root\" " + identity + ">\n" +
		"\t\t\t<node id=\"arm\" " + identity + ">\n" +
		"\t\t\t</node>\n" +
		"\t\t\t<node id=\"z\" " + identity + ">\n" +
		"\t\t\t</node>\n" +
		"\t\t</node>\n" +
		"\t</node>\n"
	assert.Contains(t, out, expected)
}

func TestWriteReference(t *testing.T) {
	doc := &Document{Nodes: []*Node{
		{ID: "plain", Kind: NodeReference, Transform: mgl64.Ident4(), Reference: &Reference{Src: "lib/tree.xsg"}},
		{ID: "tuned", Kind: NodeReference, Transform: mgl64.Ident4(), Reference: &Reference{Src: "rock.xsg", Object: `<param id="lod"/>`}},
	}}
	out := write(t, doc, 0)
	assert.Contains(t, out, "\t\t<object src=\"lib/tree.xsg\"/>\n")
	assert.Contains(t, out, "\t\t<object src=\"rock.xsg\">\n\t\t\t<param id=\"lod\"/>\n\t\t</>\n")
}

var lightTests = []struct {
	light *scene.Light
	out   string
}{
	{&scene.Light{Type: scene.LightPoint, Color: mgl64.Vec3{1, 0.5, 0}, ShadowSoftSize: 0.25},
		`<light color="1 0.5 0" type="point" inner="0.25" outer="0.25"/>`},
	{&scene.Light{Type: scene.LightSun, Color: mgl64.Vec3{1, 1, 1}, UseShadow: true, ShadowSoftSize: 2},
		`<light color="1 1 1" param="shadow:1" begin="-1" end="-1" inner="2" outer="2"/>`},
	{&scene.Light{Type: scene.LightArea, Color: mgl64.Vec3{1, 1, 1}, Size: 2, ClipStart: 0.5, CutoffDistance: 40},
		`<light color="1 1 1" inner="2" outer="2" begin="0.5" end="40" width="2" height="2"/>`},
	{&scene.Light{Type: scene.LightArea, Color: mgl64.Vec3{1, 1, 1}, Size: 2, SizeY: 3, ClipStart: 0.5, CutoffDistance: 40},
		`<light color="1 1 1" inner="2" outer="2" begin="0.5" end="40" width="2" height="3"/>`},
}

func TestWriteLights(t *testing.T) {
	for _, test := range lightTests {
		doc := &Document{Nodes: []*Node{{ID: "l", Kind: NodeLight, Transform: mgl64.Ident4(), Light: test.light}}}
		out := write(t, doc, 0)
		assert.Contains(t, out, "\t\t"+test.out+"\n", "light %v", test.light.Type)
	}
}

func TestSpotParams(t *testing.T) {
	p := Params(&scene.Light{Type: scene.LightSpot, SpotSize: math.Pi / 2, SpotBlend: 0.5, ClipStart: 0.1, CutoffDistance: 30})
	assert.InDelta(t, 90, p.Outer, 1e-9)
	assert.InDelta(t, 45, p.Inner, 1e-9)
	assert.Equal(t, 0.1, p.Begin)
	assert.Equal(t, 30.0, p.End)
}

func TestWriteMaterials(t *testing.T) {
	tint := mgl64.Vec3{1, 0, 0}
	m := &material.Material{ID: "brick", Parts: []material.Part{
		{ID: material.PartDiffuse, Input: &material.Texture{
			Attrs: material.Attributes{Pairs: []material.Attr{{Name: "blend", Value: "add"}}},
			Tint:  &tint, Src: "brick.png", Scale: mgl64.Vec2{1, 2}, Clamp: true, AltUV: true,
		}},
		{ID: material.PartNormal, Level: -1, HasLevel: true, Input: &material.Texture{Image: "missing.png", Scale: mgl64.Vec2{1, 1}}},
		{ID: material.PartConstant, Input: &material.Invert{Inputs: []material.Input{
			&material.Mix{Inputs: []material.Input{
				&material.Color{Value: mgl64.Vec3{0.5, 0.25, 1}},
				&material.Unsupported{Kind: "TEX_NOISE"},
			}},
		}}},
	}}
	out := write(t, &Document{Materials: []*material.Material{m, material.Default()}}, 0)
	expected := "\t<material id=\"brick\">\n" +
		"\t\t<part id=\"diffuse\">\n" +
		"\t\t\t<input blend=\"add\" color=\"1.000000 0.000000 0.000000\" scale=\"1 -2\" src=\"brick.png\" addr=\"rclamp\" tcoord=\"1\"/>\n" +
		"\t\t</part>\n" +
		"\t\t<part id=\"normal\" level=\"-1.000000\">\n" +
		"\t\t\t<input/>\n" +
		"\t\t</part>\n" +
		"\t\t<part id=\"constant\">\n" +
		"\t\t\t<mix type=\"inv\">\n" +
		"\t\t\t\t<mix>\n" +
		"\t\t\t\t\t<input color=\"0.500000 0.250000 1.000000\"/>\n" +
		"\t\t\t\t\t<input type=\"TEX_NOISE\"/>\n" +
		"\t\t\t\t</mix>\n" +
		"\t\t\t</mix>\n" +
		"\t\t</part>\n" +
		"\t</material>\n" +
		"\t<material id=\"default\"><part id=\"diffuse\"><input color=\"0.5 0.5 0.5\"/></part></material>\n" +
		"\n"
	assert.Contains(t, out, expected)
}

func TestWriteAnimation(t *testing.T) {
	moving := &anim.Track{
		Name:     "cube",
		Rotation: []anim.QuatKey{{Time: 0, Value: mgl64.QuatIdent()}},
		Scale:    []anim.VecKey{{Time: 0, Value: mgl64.Vec3{1, 1, 1}}},
		Position: []anim.VecKey{{Time: 0}, {Time: 1, Value: mgl64.Vec3{1, 2, 3}}},
	}
	still := &anim.Track{Name: "still", Position: []anim.VecKey{{Time: 0}}}
	turning := &anim.Track{
		Name:     "wheel",
		Rotation: []anim.QuatKey{{Time: 0, Value: mgl64.QuatIdent()}, {Time: 0.5, Value: mgl64.Quat{W: 0, V: mgl64.Vec3{0, 1, 0}}}},
	}
	set := &anim.Set{Name: anim.GlobalSet, Period: 0.5, Tracks: []*anim.Track{moving, still, turning}}
	out := write(t, &Document{Animations: []*anim.Set{set}}, 0)

	expected := "\n\t<animation period=\"0.5\" seq=\"l\">\n" +
		"\t\t<channel id=\"cube\" target=\"node\">\n" +
		"\t\t\t<keyframes dest=\"position\">\n" +
		"\t\t\t\t<time> 0.000000  1.000000 </time>\n" +
		"\t\t\t\t<value> 0.000000  0.000000  0.000000   1.000000  2.000000  3.000000  </value>\n" +
		"\t\t\t</keyframes>\n" +
		"\t\t</channel>\n" +
		"\t\t<channel id=\"wheel\" target=\"node\">\n" +
		"\t\t\t<keyframes dest=\"rotation\">\n" +
		"\t\t\t\t<time> 0.000000  0.500000 </time>\n" +
		"\t\t\t\t<value> 0.000000  0.000000  0.000000  1.000000  0.000000  1.000000  0.000000  0.000000 </value>\n" +
		"\t\t\t</keyframes>\n" +
		"\t\t</channel>\n" +
		"\t</animation>\n"
	assert.Contains(t, out, expected)
	assert.NotContains(t, out, `channel id="still"`)
}
