package yamlsrc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
)

// Load reads the YAML scene at path.
func Load(path string) (*scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read scene %q", path)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to parse scene %q", path)
	}
	sc, err := Convert(&doc, path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to load scene %q", path)
	}
	logger.Info("[yaml] loaded", zap.String("path", path), zap.Int("objects", len(sc.Objects)),
		zap.Int("materials", len(sc.Materials)), zap.Int("actions", len(sc.Library)))
	return sc, nil
}

type converter struct {
	sc      *scene.Scene
	actions map[string]*scene.Action
	objects map[string]*scene.Object
	parents map[*scene.Object]string
}

// Convert builds a scene from an already decoded document. path is used
// for the scene name and texture lookups.
func Convert(doc *Document, path string) (*scene.Scene, error) {
	name := doc.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	c := &converter{
		sc:      scene.New(name),
		actions: make(map[string]*scene.Action),
		objects: make(map[string]*scene.Object),
		parents: make(map[*scene.Object]string),
	}
	c.sc.SourcePath = path
	if abs, err := filepath.Abs(path); err == nil {
		c.sc.SourcePath = abs
	}
	for k, v := range doc.Properties {
		c.sc.Properties[k] = v
	}

	if t := doc.Timeline; t != nil {
		tl := c.sc.Timeline
		tl.FrameStart, tl.FrameEnd, tl.FPS, tl.FPSBase = t.Start, t.End, t.FPS, t.FPSBase
		if tl.FPSBase == 0 {
			tl.FPSBase = 1
		}
		if tl.FPS <= 0 {
			return nil, errors.Errorf("timeline fps must be positive, got %v", t.FPS)
		}
		tl.SetFrame(tl.FrameStart)
	}
	if w := doc.World; w != nil {
		if len(w.Ambient) != 0 {
			amb, err := vec3(w.Ambient, mgl64.Vec3{})
			if err != nil {
				return nil, errors.Wrapf(err, "world ambient")
			}
			c.sc.World.Ambient = &amb
		}
		for k, v := range w.Properties {
			c.sc.World.Properties[k] = v
		}
	}

	for i := range doc.Materials {
		if err := c.material(&doc.Materials[i]); err != nil {
			return nil, errors.Wrapf(err, "material %q", doc.Materials[i].Name)
		}
	}
	for i := range doc.Actions {
		if err := c.action(&doc.Actions[i]); err != nil {
			return nil, errors.Wrapf(err, "action %q", doc.Actions[i].Name)
		}
	}

	created := make([]*scene.Object, 0, len(doc.Objects))
	for i := range doc.Objects {
		o, err := c.object(&doc.Objects[i])
		if err != nil {
			return nil, errors.Wrapf(err, "object %q", doc.Objects[i].Name)
		}
		created = append(created, o)
	}
	for i, o := range created {
		if err := c.modifiers(o, doc.Objects[i].Armatures); err != nil {
			return nil, errors.Wrapf(err, "object %q", o.Name)
		}
	}
	added := make(map[*scene.Object]bool)
	for _, o := range created {
		if err := c.add(o, added); err != nil {
			return nil, err
		}
	}
	return c.sc, nil
}

// add registers o after its parent chain. added tracks state: false while
// in progress, true once registered.
func (c *converter) add(o *scene.Object, added map[*scene.Object]bool) error {
	if done, seen := added[o]; seen {
		if !done {
			return errors.Errorf("object %q is its own ancestor", o.Name)
		}
		return nil
	}
	added[o] = false

	var parent *scene.Object
	if name := c.parents[o]; name != "" {
		parent = c.objects[name]
		if parent == nil {
			return errors.Errorf("object %q: parent %q not found", o.Name, name)
		}
		if err := c.add(parent, added); err != nil {
			return err
		}
	}
	c.sc.Add(o, parent)
	added[o] = true
	return nil
}

func (c *converter) object(src *Object) (*scene.Object, error) {
	if src.Name == "" {
		return nil, errors.New("object without name")
	}
	if _, exists := c.objects[src.Name]; exists {
		return nil, errors.New("duplicate object name")
	}
	transform, err := src.Transform.matrix()
	if err != nil {
		return nil, err
	}
	o := &scene.Object{
		Name:         src.Name,
		Type:         scene.TypeEmpty,
		Hidden:       src.Hidden,
		Selected:     src.Selected,
		Transform:    transform,
		VertexGroups: src.VertexGroups,
		Properties:   make(map[string]string),
	}
	for k, v := range src.Properties {
		o.Properties[k] = v
	}
	if src.Type != "" {
		t, ok := scene.ParseObjectType(strings.ToUpper(src.Type))
		if !ok {
			t = scene.TypeUnsupported
			o.Properties["type"] = src.Type
		}
		o.Type = t
	}

	if src.Action != "" {
		if o.Action = c.actions[src.Action]; o.Action == nil {
			return nil, errors.Errorf("action %q not found", src.Action)
		}
	}
	if src.Mesh != nil {
		if o.Mesh, err = c.mesh(src.Mesh); err != nil {
			return nil, errors.Wrapf(err, "mesh")
		}
	}
	if len(src.Bones) != 0 || o.Type == scene.TypeArmature {
		if o.Armature, err = armature(src.Bones); err != nil {
			return nil, errors.Wrapf(err, "bones")
		}
	}
	if l := src.Light; l != nil {
		o.Light = &scene.Light{
			Type:           scene.LightType(strings.ToUpper(l.Type)),
			Color:          mgl64.Vec3{1, 1, 1},
			UseShadow:      l.UseShadow,
			SpotSize:       l.SpotSize,
			SpotBlend:      l.SpotBlend,
			ClipStart:      l.ClipStart,
			CutoffDistance: l.CutoffDistance,
			ShadowSoftSize: l.ShadowSoftSize,
			Size:           l.Size,
			SizeY:          l.SizeY,
		}
		if o.Light.Color, err = vec3(l.Color, o.Light.Color); err != nil {
			return nil, errors.Wrapf(err, "light color")
		}
	}
	if cam := src.Camera; cam != nil {
		o.Camera = &scene.Camera{FOV: cam.FOV, Near: cam.Near, Far: cam.Far}
	}
	if src.Instance != "" {
		o.Instance = &scene.Instance{Library: src.Instance}
	}
	if src.Type == "" {
		switch {
		case o.Mesh != nil:
			o.Type = scene.TypeMesh
		case o.Armature != nil:
			o.Type = scene.TypeArmature
		case o.Light != nil:
			o.Type = scene.TypeLight
		case o.Camera != nil:
			o.Type = scene.TypeCamera
		}
	}

	c.objects[o.Name] = o
	c.parents[o] = src.Parent
	return o, nil
}

func (c *converter) modifiers(o *scene.Object, names []string) error {
	for _, name := range names {
		arm := c.objects[name]
		if arm == nil || arm.Type != scene.TypeArmature {
			return errors.Errorf("armature %q not found", name)
		}
		o.ArmatureModifiers = append(o.ArmatureModifiers, arm)
	}
	return nil
}

func armature(bones []Bone) (*scene.Armature, error) {
	arm := &scene.Armature{}
	for _, b := range bones {
		parent := -1
		if b.Parent != "" {
			if parent = arm.Find(b.Parent); parent < 0 {
				return nil, errors.Errorf("bone %q: parent %q must be listed before it", b.Name, b.Parent)
			}
		}
		if arm.Find(b.Name) >= 0 {
			return nil, errors.Errorf("duplicate bone %q", b.Name)
		}
		rest, err := b.Transform.matrix()
		if err != nil {
			return nil, errors.Wrapf(err, "bone %q", b.Name)
		}
		arm.AddBone(b.Name, parent, rest)
	}
	return arm, nil
}

func (c *converter) mesh(src *Mesh) (*scene.Mesh, error) {
	m := &scene.Mesh{Name: src.Name}
	for i, v := range src.Vertices {
		co, err := vec3(v.Co, mgl64.Vec3{})
		if err != nil || len(v.Co) == 0 {
			return nil, errors.Errorf("vertex %d: bad position", i)
		}
		normal, err := vec3(v.Normal, mgl64.Vec3{})
		if err != nil {
			return nil, errors.Wrapf(err, "vertex %d normal", i)
		}
		vert := scene.Vertex{Co: co, Normal: normal}
		groups := make([]int, 0, len(v.Groups))
		for g := range v.Groups {
			groups = append(groups, g)
		}
		sort.Ints(groups)
		for _, g := range groups {
			vert.Groups = append(vert.Groups, scene.GroupWeight{Group: g, Weight: v.Groups[g]})
		}
		m.Vertices = append(m.Vertices, vert)
	}

	for i, p := range src.Polygons {
		for _, v := range p.Vertices {
			if v < 0 || v >= len(m.Vertices) {
				return nil, errors.Errorf("polygon %d: vertex %d out of range", i, v)
			}
		}
		m.AddPolygon(append([]int(nil), p.Vertices...), p.Material, p.Smooth)
	}

	loops := m.LoopCount()
	for _, l := range src.UVLayers {
		if len(l.Data) != loops {
			return nil, errors.Errorf("uv layer %q has %d entries for %d loops", l.Name, len(l.Data), loops)
		}
		layer := scene.UVLayer{Name: l.Name, Data: make([]mgl64.Vec2, loops)}
		for i, uv := range l.Data {
			if len(uv) != 2 {
				return nil, errors.Errorf("uv layer %q entry %d needs 2 values", l.Name, i)
			}
			layer.Data[i] = mgl64.Vec2{uv[0], uv[1]}
		}
		m.UVLayers = append(m.UVLayers, layer)
	}

	for _, name := range src.Materials {
		if name == "" {
			m.Materials = append(m.Materials, nil)
			continue
		}
		mat := c.sc.Material(name)
		if mat == nil {
			return nil, errors.Errorf("material %q not found", name)
		}
		m.Materials = append(m.Materials, mat)
	}

	m.CalcNormals()
	return m, nil
}

func (c *converter) material(src *Material) error {
	if src.Name == "" {
		return errors.New("material without name")
	}
	m := &scene.Material{
		Name:              src.Name,
		DiffuseColor:      mgl64.Vec3{0.8, 0.8, 0.8},
		DiffuseIntensity:  0.8,
		SpecularColor:     mgl64.Vec3{1, 1, 1},
		SpecularIntensity: 0.5,
	}
	var err error
	if m.DiffuseColor, err = vec3(src.DiffuseColor, m.DiffuseColor); err != nil {
		return errors.Wrapf(err, "diffuse color")
	}
	if m.SpecularColor, err = vec3(src.SpecularColor, m.SpecularColor); err != nil {
		return errors.Wrapf(err, "specular color")
	}
	if src.DiffuseIntensity != nil {
		m.DiffuseIntensity = *src.DiffuseIntensity
	}
	if src.SpecularIntensity != nil {
		m.SpecularIntensity = *src.SpecularIntensity
	}

	if len(src.Nodes) != 0 {
		if m.Graph, err = graph(src.Nodes, src.Links); err != nil {
			return err
		}
	}
	c.sc.AddMaterial(m)
	return nil
}

func graph(nodes []Node, links []Link) (*scene.ShaderGraph, error) {
	g := &scene.ShaderGraph{}
	for i, src := range nodes {
		n := scene.NewNode(src.Kind)
		if src.Name != "" {
			n.Name = src.Name
		}
		n.Label = src.Label
		if src.Image != "" {
			n.Image = src.Image
		}
		if src.Extension != "" {
			n.Extension = src.Extension
		}
		if src.BlendType != "" {
			n.BlendType = src.BlendType
		}
		if src.VectorType != "" {
			n.VectorType = src.VectorType
		}
		n.UVMap = src.UVMap
		if err := setDefaults(n.Inputs, src.Inputs); err != nil {
			return nil, errors.Wrapf(err, "node %d (%s) inputs", i, src.Kind)
		}
		if err := setDefaults(n.Outputs, src.Outputs); err != nil {
			return nil, errors.Wrapf(err, "node %d (%s) outputs", i, src.Kind)
		}
		g.Add(n)
	}
	for _, l := range links {
		from, to := g.Find(l.From), g.Find(l.To)
		if from < 0 || to < 0 {
			return nil, errors.Errorf("link %q -> %q: node not found", l.From, l.To)
		}
		if err := g.Connect(from, l.Output, to, l.Input); err != nil {
			return nil, errors.Wrapf(err, "link %q -> %q", l.From, l.To)
		}
	}
	return g, nil
}

func setDefaults(sockets []scene.Socket, values map[string][]float64) error {
	for name, def := range values {
		found := false
		for k := range sockets {
			if sockets[k].Name != name {
				continue
			}
			if len(def) > 4 {
				return errors.Errorf("socket %q has %d values", name, len(def))
			}
			sockets[k].Default = mgl64.Vec4{}
			copy(sockets[k].Default[:], def)
			found = true
			break
		}
		if !found {
			return errors.Errorf("no socket %q", name)
		}
	}
	return nil
}

func (c *converter) action(src *Action) error {
	if src.Name == "" {
		return errors.New("action without name")
	}
	if _, exists := c.actions[src.Name]; exists {
		return errors.New("duplicate action name")
	}
	act := scene.NewAction(src.Name)
	for target, ch := range src.Channels {
		if ch == nil {
			continue
		}
		dst := act.Ensure(target)
		for _, k := range ch.Translation {
			if len(k) != 4 {
				return errors.Errorf("%q translation key needs frame x y z", target)
			}
			dst.Translation = append(dst.Translation, scene.VecKey{Frame: k[0], Value: mgl64.Vec3{k[1], k[2], k[3]}})
		}
		for _, k := range ch.Rotation {
			if len(k) != 5 {
				return errors.Errorf("%q rotation key needs frame w x y z", target)
			}
			dst.Rotation = append(dst.Rotation, scene.QuatKey{Frame: k[0], Value: mgl64.Quat{W: k[1], V: mgl64.Vec3{k[2], k[3], k[4]}}})
		}
		for _, k := range ch.Scale {
			if len(k) != 4 {
				return errors.Errorf("%q scale key needs frame x y z", target)
			}
			dst.Scale = append(dst.Scale, scene.VecKey{Frame: k[0], Value: mgl64.Vec3{k[1], k[2], k[3]}})
		}
		dst.Sort()
	}
	c.actions[src.Name] = act
	c.sc.Library = append(c.sc.Library, act)
	return nil
}
