// Package yamlsrc reads and writes scenes in a direct YAML form of the
// scene model. It is handy for fixtures and for inspecting what a loader
// produced.
package yamlsrc

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/xsg_export/scene"
)

type Document struct {
	Name       string            `yaml:"name,omitempty"`
	Timeline   *Timeline         `yaml:"timeline,omitempty"`
	World      *World            `yaml:"world,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	Materials  []Material        `yaml:"materials,omitempty"`
	Objects    []Object          `yaml:"objects"`
	Actions    []Action          `yaml:"actions,omitempty"`
}

type Timeline struct {
	Start   int     `yaml:"start"`
	End     int     `yaml:"end"`
	FPS     float64 `yaml:"fps"`
	FPSBase float64 `yaml:"fps_base,omitempty"`
}

type World struct {
	Ambient    []float64         `yaml:"ambient,omitempty,flow"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Transform is either a column-major matrix or separate TRS parts.
// Rotation is a quaternion written w, x, y, z.
type Transform struct {
	Matrix   []float64 `yaml:"matrix,omitempty,flow"`
	Location []float64 `yaml:"location,omitempty,flow"`
	Rotation []float64 `yaml:"rotation,omitempty,flow"`
	Scale    []float64 `yaml:"scale,omitempty,flow"`
}

type Object struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type,omitempty"`
	Parent   string `yaml:"parent,omitempty"`
	Hidden   bool   `yaml:"hidden,omitempty"`
	Selected bool   `yaml:"selected,omitempty"`

	Transform `yaml:",inline"`

	Action       string            `yaml:"action,omitempty"`
	Mesh         *Mesh             `yaml:"mesh,omitempty"`
	Bones        []Bone            `yaml:"bones,omitempty"`
	Light        *Light            `yaml:"light,omitempty"`
	Camera       *Camera           `yaml:"camera,omitempty"`
	Instance     string            `yaml:"instance,omitempty"`
	Armatures    []string          `yaml:"armatures,omitempty,flow"`
	VertexGroups []string          `yaml:"vertex_groups,omitempty,flow"`
	Properties   map[string]string `yaml:"properties,omitempty"`
}

type Mesh struct {
	Name      string    `yaml:"name,omitempty"`
	Vertices  []Vertex  `yaml:"vertices"`
	Polygons  []Polygon `yaml:"polygons"`
	UVLayers  []UVLayer `yaml:"uv_layers,omitempty"`
	Materials []string  `yaml:"materials,omitempty,flow"`
}

// Vertex is written as a bare [x, y, z] when it has no normal or groups.
type Vertex struct {
	Co     []float64       `yaml:"co,flow"`
	Normal []float64       `yaml:"normal,omitempty,flow"`
	Groups map[int]float64 `yaml:"groups,omitempty,flow"`
}

type vertexFields Vertex

func (v *Vertex) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		*v = Vertex{}
		return node.Decode(&v.Co)
	}
	return node.Decode((*vertexFields)(v))
}

func (v Vertex) MarshalYAML() (interface{}, error) {
	if len(v.Normal) == 0 && len(v.Groups) == 0 {
		return flowSeq(v.Co), nil
	}
	return vertexFields(v), nil
}

type Polygon struct {
	Vertices []int `yaml:"v,flow"`
	Material int   `yaml:"material,omitempty"`
	Smooth   bool  `yaml:"smooth,omitempty"`
}

type UVLayer struct {
	Name string      `yaml:"name"`
	Data [][]float64 `yaml:"data,flow"`
}

type Bone struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`

	Transform `yaml:",inline"`
}

type Light struct {
	Type           string    `yaml:"type"`
	Color          []float64 `yaml:"color,omitempty,flow"`
	UseShadow      bool      `yaml:"use_shadow,omitempty"`
	SpotSize       float64   `yaml:"spot_size,omitempty"`
	SpotBlend      float64   `yaml:"spot_blend,omitempty"`
	ClipStart      float64   `yaml:"clip_start,omitempty"`
	CutoffDistance float64   `yaml:"cutoff_distance,omitempty"`
	ShadowSoftSize float64   `yaml:"shadow_soft_size,omitempty"`
	Size           float64   `yaml:"size,omitempty"`
	SizeY          float64   `yaml:"size_y,omitempty"`
}

type Camera struct {
	FOV  float64 `yaml:"fov"`
	Near float64 `yaml:"near"`
	Far  float64 `yaml:"far"`
}

type Material struct {
	Name              string    `yaml:"name"`
	DiffuseColor      []float64 `yaml:"diffuse_color,omitempty,flow"`
	DiffuseIntensity  *float64  `yaml:"diffuse_intensity,omitempty"`
	SpecularColor     []float64 `yaml:"specular_color,omitempty,flow"`
	SpecularIntensity *float64  `yaml:"specular_intensity,omitempty"`
	Nodes             []Node    `yaml:"nodes,omitempty"`
	Links             []Link    `yaml:"links,omitempty"`
}

// Node starts from the standard sockets of its kind. Inputs and Outputs
// override socket defaults by name.
type Node struct {
	Name       string               `yaml:"name,omitempty"`
	Kind       string               `yaml:"kind"`
	Label      string               `yaml:"label,omitempty"`
	Image      string               `yaml:"image,omitempty"`
	Extension  string               `yaml:"extension,omitempty"`
	BlendType  string               `yaml:"blend_type,omitempty"`
	VectorType string               `yaml:"vector_type,omitempty"`
	UVMap      string               `yaml:"uv_map,omitempty"`
	Inputs     map[string][]float64 `yaml:"inputs,omitempty"`
	Outputs    map[string][]float64 `yaml:"outputs,omitempty"`
}

type Link struct {
	From   string `yaml:"from"`
	Output int    `yaml:"output,omitempty"`
	To     string `yaml:"to"`
	Input  string `yaml:"input"`
}

type Action struct {
	Name     string              `yaml:"name"`
	Channels map[string]*Channel `yaml:"channels"`
}

// Channel keys are [frame, x, y, z] and [frame, w, x, y, z] for rotations.
type Channel struct {
	Translation [][]float64 `yaml:"translation,omitempty,flow"`
	Rotation    [][]float64 `yaml:"rotation,omitempty,flow"`
	Scale       [][]float64 `yaml:"scale,omitempty,flow"`
}

func flowSeq(values []float64) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		item := &yaml.Node{}
		_ = item.Encode(v)
		n.Content = append(n.Content, item)
	}
	return n
}

func vec3(v []float64, def mgl64.Vec3) (mgl64.Vec3, error) {
	if len(v) == 0 {
		return def, nil
	}
	if len(v) != 3 {
		return def, errors.Errorf("expected 3 components, got %d", len(v))
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}

// matrix resolves t into a local transform.
func (t *Transform) matrix() (mgl64.Mat4, error) {
	if len(t.Matrix) != 0 {
		if len(t.Matrix) != 16 {
			return mgl64.Ident4(), errors.Errorf("matrix needs 16 values, got %d", len(t.Matrix))
		}
		var m mgl64.Mat4
		copy(m[:], t.Matrix)
		return m, nil
	}
	loc, err := vec3(t.Location, mgl64.Vec3{})
	if err != nil {
		return mgl64.Ident4(), errors.Wrapf(err, "location")
	}
	scale, err := vec3(t.Scale, mgl64.Vec3{1, 1, 1})
	if err != nil {
		return mgl64.Ident4(), errors.Wrapf(err, "scale")
	}
	rot := mgl64.QuatIdent()
	if len(t.Rotation) != 0 {
		if len(t.Rotation) != 4 {
			return mgl64.Ident4(), errors.Errorf("rotation needs w x y z, got %d values", len(t.Rotation))
		}
		rot = mgl64.Quat{W: t.Rotation[0], V: mgl64.Vec3{t.Rotation[1], t.Rotation[2], t.Rotation[3]}}
	}
	return scene.ComposeTRS(loc, rot, scale), nil
}
