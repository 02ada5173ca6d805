// Package scene is the read-only host scene the exporter converts from.
// Everything is immutable after loading except the timeline cursor,
// which drives action evaluation for MatrixLocal and bone poses.
package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

type ObjectType int

const (
	TypeEmpty ObjectType = iota
	TypeMesh
	TypeArmature
	TypeCamera
	TypeLight
	// TypeUnsupported covers source objects with no XSG counterpart.
	TypeUnsupported
)

var objectTypeNames = map[ObjectType]string{
	TypeEmpty:    "EMPTY",
	TypeMesh:     "MESH",
	TypeArmature: "ARMATURE",
	TypeCamera:   "CAMERA",
	TypeLight:    "LIGHT",
}

func (t ObjectType) String() string {
	if s, ok := objectTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseObjectType is the inverse of ObjectType.String.
func ParseObjectType(s string) (ObjectType, bool) {
	for t, name := range objectTypeNames {
		if name == s {
			return t, true
		}
	}
	return TypeEmpty, false
}

type Scene struct {
	Name       string
	SourcePath string
	Objects    []*Object
	Materials  []*Material
	World      World
	Timeline   *Timeline
	Properties map[string]string
	// Library holds every loaded action, assigned to an object or not.
	Library []*Action
}

type World struct {
	// nil when the source carries no background color
	Ambient    *mgl64.Vec3
	Properties map[string]string
}

// Instance references an externally linked scene, placed by an empty.
type Instance struct {
	Library string
}

type Object struct {
	Name     string
	Type     ObjectType
	Parent   *Object
	Children []*Object
	Hidden   bool
	Selected bool

	// Transform is the rest local-to-parent transform.
	Transform mgl64.Mat4
	Action    *Action

	Mesh     *Mesh
	Armature *Armature
	Light    *Light
	Camera   *Camera
	Instance *Instance

	// ArmatureModifiers lists enabled armature deformers.
	ArmatureModifiers []*Object
	VertexGroups      []string
	Properties        map[string]string

	timeline *Timeline
}

type LightType string

const (
	LightPoint LightType = "POINT"
	LightSpot  LightType = "SPOT"
	LightSun   LightType = "SUN"
	LightArea  LightType = "AREA"
)

type Light struct {
	Type           LightType
	Color          mgl64.Vec3
	UseShadow      bool
	SpotSize       float64 // radians
	SpotBlend      float64
	ClipStart      float64
	CutoffDistance float64
	ShadowSoftSize float64
	Size           float64
	SizeY          float64
}

type Camera struct {
	FOV  float64
	Near float64
	Far  float64
}

func New(name string) *Scene {
	return &Scene{
		Name:       name,
		Timeline:   NewTimeline(1, 250, 24, 1),
		Properties: make(map[string]string),
		World:      World{Properties: make(map[string]string)},
	}
}

// Add registers o under parent (nil for a root object).
func (s *Scene) Add(o *Object, parent *Object) *Object {
	if o.Transform == (mgl64.Mat4{}) {
		o.Transform = mgl64.Ident4()
	}
	if o.Properties == nil {
		o.Properties = make(map[string]string)
	}
	o.timeline = s.Timeline
	o.Parent = parent
	if parent != nil {
		parent.Children = append(parent.Children, o)
	}
	s.Objects = append(s.Objects, o)
	return o
}

func (s *Scene) Object(name string) *Object {
	for _, o := range s.Objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (s *Scene) Material(name string) *Material {
	for _, m := range s.Materials {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AddMaterial registers m unless a material with the same name exists,
// returning the registered one.
func (s *Scene) AddMaterial(m *Material) *Material {
	if existing := s.Material(m.Name); existing != nil {
		return existing
	}
	s.Materials = append(s.Materials, m)
	return m
}

// Selected returns objects flagged as selected, in scene order.
func (s *Scene) Selected() []*Object {
	result := make([]*Object, 0)
	for _, o := range s.Objects {
		if o.Selected {
			result = append(result, o)
		}
	}
	return result
}

// Actions returns all distinct actions in scene order.
func (s *Scene) Actions() []*Action {
	seen := make(map[*Action]struct{})
	result := make([]*Action, 0)
	for _, o := range s.Objects {
		if o.Action == nil {
			continue
		}
		if _, ok := seen[o.Action]; !ok {
			seen[o.Action] = struct{}{}
			result = append(result, o.Action)
		}
	}
	return result
}

// FreeActions returns library actions no object is using.
func (s *Scene) FreeActions() []*Action {
	used := make(map[*Action]struct{})
	for _, a := range s.Actions() {
		used[a] = struct{}{}
	}
	result := make([]*Action, 0)
	for _, a := range s.Library {
		if _, ok := used[a]; !ok {
			result = append(result, a)
		}
	}
	return result
}

// MatrixLocal is the local transform at the current frame.
func (o *Object) MatrixLocal() mgl64.Mat4 {
	if o.Action != nil && o.timeline != nil {
		if ch := o.Action.Channel(""); ch != nil {
			return ch.Evaluate(float64(o.timeline.Frame()), o.Transform)
		}
	}
	return o.Transform
}

// MatrixWorld is the world transform at the current frame.
func (o *Object) MatrixWorld() mgl64.Mat4 {
	if o.Parent == nil {
		return o.MatrixLocal()
	}
	return o.Parent.MatrixWorld().Mul4(o.MatrixLocal())
}

// SortedChildren returns children ordered by name.
func (o *Object) SortedChildren() []*Object {
	return SortByName(o.Children)
}

func (o *Object) Property(name string) (string, bool) {
	v, ok := o.Properties[name]
	return v, ok
}

// VertexGroupIndex returns the group index for name, or -1.
func (o *Object) VertexGroupIndex(name string) int {
	for i, g := range o.VertexGroups {
		if g == name {
			return i
		}
	}
	return -1
}

func SortByName(objects []*Object) []*Object {
	result := append([]*Object(nil), objects...)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
