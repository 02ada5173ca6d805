package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Material without a Graph is a legacy flat material.
type Material struct {
	Name              string
	Graph             *ShaderGraph
	DiffuseColor      mgl64.Vec3
	DiffuseIntensity  float64
	SpecularColor     mgl64.Vec3
	SpecularIntensity float64
}

type SocketType string

const (
	SocketRGBA   SocketType = "RGBA"
	SocketValue  SocketType = "VALUE"
	SocketVector SocketType = "VECTOR"
	SocketShader SocketType = "SHADER"
)

// Node kinds as named by the authoring tool.
const (
	KindPrincipled = "BSDF_PRINCIPLED"
	KindDiffuse    = "BSDF_DIFFUSE"
	KindGlossy     = "BSDF_GLOSSY"
	KindEmission   = "EMISSION"
	KindTexImage   = "TEX_IMAGE"
	KindMixRGB     = "MIX_RGB"
	KindRGB        = "RGB"
	KindInvert     = "INVERT"
	KindRGBToBW    = "RGBTOBW"
	KindNormalMap  = "NORMAL_MAP"
	KindMapping    = "MAPPING"
	KindUVMap      = "UVMAP"
	KindOutput     = "OUTPUT_MATERIAL"
)

// Link points at the output socket feeding an input.
type Link struct {
	Node   int
	Output int
}

type Socket struct {
	Name    string
	Type    SocketType
	Default mgl64.Vec4
	Link    *Link
}

func (s *Socket) Linked() bool { return s != nil && s.Link != nil }

type ShaderNode struct {
	Name    string
	Kind    string
	Label   string
	Inputs  []Socket
	Outputs []Socket

	Image      string // TEX_IMAGE file path, "//" prefix is source relative
	Extension  string // TEX_IMAGE REPEAT, EXTEND or CLIP
	BlendType  string // MIX_RGB
	VectorType string // MAPPING POINT, TEXTURE, VECTOR or NORMAL
	UVMap      string // UVMAP layer name
}

// Input returns the input socket called name, or nil.
func (n *ShaderNode) Input(name string) *Socket {
	for i := range n.Inputs {
		if n.Inputs[i].Name == name {
			return &n.Inputs[i]
		}
	}
	return nil
}

// InputAt returns input i, or nil when out of range.
func (n *ShaderNode) InputAt(i int) *Socket {
	if i < 0 || i >= len(n.Inputs) {
		return nil
	}
	return &n.Inputs[i]
}

// ShaderGraph is a snapshot of a material node tree. Nodes reference each
// other by index through input links.
type ShaderGraph struct {
	Nodes []ShaderNode
}

// Add inserts n, making its name unique the way the authoring tool does, and returns its index.
func (g *ShaderGraph) Add(n ShaderNode) int {
	base := n.Name
	for i := 1; g.Find(n.Name) >= 0; i++ {
		n.Name = fmt.Sprintf("%s.%03d", base, i)
	}
	g.Nodes = append(g.Nodes, n)
	return len(g.Nodes) - 1
}

// Connect links output fromOutput of node from into the named input of node to.
func (g *ShaderGraph) Connect(from, fromOutput, to int, input string) error {
	if from < 0 || from >= len(g.Nodes) || to < 0 || to >= len(g.Nodes) {
		return fmt.Errorf("node index out of range (%d -> %d)", from, to)
	}
	if fromOutput < 0 || fromOutput >= len(g.Nodes[from].Outputs) {
		return fmt.Errorf("node %q has no output %d", g.Nodes[from].Name, fromOutput)
	}
	sock := g.Nodes[to].Input(input)
	if sock == nil {
		return fmt.Errorf("node %q has no input %q", g.Nodes[to].Name, input)
	}
	sock.Link = &Link{Node: from, Output: fromOutput}
	return nil
}

// Find returns the index of the node called name, or -1.
func (g *ShaderGraph) Find(name string) int {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return i
		}
	}
	return -1
}

// Node returns the node called name, or nil.
func (g *ShaderGraph) Node(name string) *ShaderNode {
	if i := g.Find(name); i >= 0 {
		return &g.Nodes[i]
	}
	return nil
}

// ByKind returns the first node of kind, or nil.
func (g *ShaderGraph) ByKind(kind string) *ShaderNode {
	for i := range g.Nodes {
		if g.Nodes[i].Kind == kind {
			return &g.Nodes[i]
		}
	}
	return nil
}

// From returns the node feeding socket s, or nil when unlinked.
func (g *ShaderGraph) From(s *Socket) *ShaderNode {
	if !s.Linked() || s.Link.Node < 0 || s.Link.Node >= len(g.Nodes) {
		return nil
	}
	return &g.Nodes[s.Link.Node]
}

func rgba(c mgl64.Vec3) mgl64.Vec4 { return c.Vec4(1) }
func value(v float64) mgl64.Vec4   { return mgl64.Vec4{v, 0, 0, 0} }

func NewPrincipledNode(base mgl64.Vec3) ShaderNode {
	return ShaderNode{
		Name: "Principled BSDF",
		Kind: KindPrincipled,
		Inputs: []Socket{
			{Name: "Base Color", Type: SocketRGBA, Default: rgba(base)},
			{Name: "Metallic", Type: SocketValue},
			{Name: "Specular", Type: SocketValue, Default: value(0.5)},
			{Name: "Roughness", Type: SocketValue, Default: value(0.5)},
			{Name: "Emission", Type: SocketRGBA, Default: rgba(mgl64.Vec3{})},
			{Name: "Alpha", Type: SocketValue, Default: value(1)},
			{Name: "Normal", Type: SocketVector},
		},
		Outputs: []Socket{{Name: "BSDF", Type: SocketShader}},
	}
}

func NewDiffuseNode(color mgl64.Vec3) ShaderNode {
	return ShaderNode{
		Name: "Diffuse BSDF",
		Kind: KindDiffuse,
		Inputs: []Socket{
			{Name: "Color", Type: SocketRGBA, Default: rgba(color)},
			{Name: "Roughness", Type: SocketValue},
			{Name: "Normal", Type: SocketVector},
		},
		Outputs: []Socket{{Name: "BSDF", Type: SocketShader}},
	}
}

func NewGlossyNode(color mgl64.Vec3, roughness float64) ShaderNode {
	return ShaderNode{
		Name: "Glossy BSDF",
		Kind: KindGlossy,
		Inputs: []Socket{
			{Name: "Color", Type: SocketRGBA, Default: rgba(color)},
			{Name: "Roughness", Type: SocketValue, Default: value(roughness)},
			{Name: "Normal", Type: SocketVector},
		},
		Outputs: []Socket{{Name: "BSDF", Type: SocketShader}},
	}
}

func NewEmissionNode(color mgl64.Vec3, strength float64) ShaderNode {
	return ShaderNode{
		Name: "Emission",
		Kind: KindEmission,
		Inputs: []Socket{
			{Name: "Color", Type: SocketRGBA, Default: rgba(color)},
			{Name: "Strength", Type: SocketValue, Default: value(strength)},
		},
		Outputs: []Socket{{Name: "Emission", Type: SocketShader}},
	}
}

func NewTexImageNode(path, extension string) ShaderNode {
	if extension == "" {
		extension = "REPEAT"
	}
	return ShaderNode{
		Name:      "Image Texture",
		Kind:      KindTexImage,
		Image:     path,
		Extension: extension,
		Inputs:    []Socket{{Name: "Vector", Type: SocketVector}},
		Outputs: []Socket{
			{Name: "Color", Type: SocketRGBA},
			{Name: "Alpha", Type: SocketValue},
		},
	}
}

func NewMixRGBNode(blendType string) ShaderNode {
	return ShaderNode{
		Name:      "Mix",
		Kind:      KindMixRGB,
		BlendType: blendType,
		Inputs: []Socket{
			{Name: "Fac", Type: SocketValue, Default: value(0.5)},
			{Name: "Color1", Type: SocketRGBA, Default: rgba(mgl64.Vec3{0.5, 0.5, 0.5})},
			{Name: "Color2", Type: SocketRGBA, Default: rgba(mgl64.Vec3{0.5, 0.5, 0.5})},
		},
		Outputs: []Socket{{Name: "Color", Type: SocketRGBA}},
	}
}

func NewRGBNode(color mgl64.Vec3) ShaderNode {
	return ShaderNode{
		Name:    "RGB",
		Kind:    KindRGB,
		Outputs: []Socket{{Name: "Color", Type: SocketRGBA, Default: rgba(color)}},
	}
}

func NewInvertNode() ShaderNode {
	return ShaderNode{
		Name: "Invert",
		Kind: KindInvert,
		Inputs: []Socket{
			{Name: "Fac", Type: SocketValue, Default: value(1)},
			{Name: "Color", Type: SocketRGBA},
		},
		Outputs: []Socket{{Name: "Color", Type: SocketRGBA}},
	}
}

func NewRGBToBWNode() ShaderNode {
	return ShaderNode{
		Name:    "RGB to BW",
		Kind:    KindRGBToBW,
		Inputs:  []Socket{{Name: "Color", Type: SocketRGBA}},
		Outputs: []Socket{{Name: "Val", Type: SocketValue}},
	}
}

func NewNormalMapNode(strength float64) ShaderNode {
	return ShaderNode{
		Name: "Normal Map",
		Kind: KindNormalMap,
		Inputs: []Socket{
			{Name: "Strength", Type: SocketValue, Default: value(strength)},
			{Name: "Color", Type: SocketRGBA, Default: mgl64.Vec4{0.5, 0.5, 1, 1}},
		},
		Outputs: []Socket{{Name: "Normal", Type: SocketVector}},
	}
}

func NewMappingNode(vectorType string, scale mgl64.Vec3) ShaderNode {
	return ShaderNode{
		Name:       "Mapping",
		Kind:       KindMapping,
		VectorType: vectorType,
		Inputs: []Socket{
			{Name: "Vector", Type: SocketVector},
			{Name: "Location", Type: SocketVector},
			{Name: "Rotation", Type: SocketVector},
			{Name: "Scale", Type: SocketVector, Default: scale.Vec4(0)},
		},
		Outputs: []Socket{{Name: "Vector", Type: SocketVector}},
	}
}

func NewUVMapNode(layer string) ShaderNode {
	return ShaderNode{
		Name:    "UV Map",
		Kind:    KindUVMap,
		UVMap:   layer,
		Outputs: []Socket{{Name: "UV", Type: SocketVector}},
	}
}

func NewOutputNode() ShaderNode {
	return ShaderNode{
		Name:   "Material Output",
		Kind:   KindOutput,
		Inputs: []Socket{{Name: "Surface", Type: SocketShader}},
	}
}

// NewNode returns a node of kind with its standard sockets. Unknown kinds get no sockets.
func NewNode(kind string) ShaderNode {
	switch kind {
	case KindPrincipled:
		return NewPrincipledNode(mgl64.Vec3{0.8, 0.8, 0.8})
	case KindDiffuse:
		return NewDiffuseNode(mgl64.Vec3{0.8, 0.8, 0.8})
	case KindGlossy:
		return NewGlossyNode(mgl64.Vec3{0.8, 0.8, 0.8}, 0.5)
	case KindEmission:
		return NewEmissionNode(mgl64.Vec3{1, 1, 1}, 1)
	case KindTexImage:
		return NewTexImageNode("", "")
	case KindMixRGB:
		return NewMixRGBNode("MIX")
	case KindRGB:
		return NewRGBNode(mgl64.Vec3{0.5, 0.5, 0.5})
	case KindInvert:
		return NewInvertNode()
	case KindRGBToBW:
		return NewRGBToBWNode()
	case KindNormalMap:
		return NewNormalMapNode(1)
	case KindMapping:
		return NewMappingNode("POINT", mgl64.Vec3{1, 1, 1})
	case KindUVMap:
		return NewUVMapNode("")
	case KindOutput:
		return NewOutputNode()
	default:
		return ShaderNode{
			Name:    kind,
			Kind:    kind,
			Outputs: []Socket{{Name: "Color", Type: SocketRGBA}},
		}
	}
}
