// Package gltfsrc loads glTF 2.0 files (.gltf, .glb) into the scene model.
// glTF is Y-up; everything is rotated into the Z-up scene convention on load.
package gltfsrc

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

// Frames per second used to place animation keys on the timeline.
const FPS = 24

// basis maps glTF (x, y, z) to scene (x, -z, y).
var basis = mgl64.Mat4{
	1, 0, 0, 0,
	0, 0, 1, 0,
	0, -1, 0, 0,
	0, 0, 0, 1,
}

var basisInverse = basis.Inv()

// projectorFix turns the glTF projector axis (-Z local) into the scene one.
var projectorFix = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})

func vec(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), -float64(v[2]), float64(v[1])}
}

func quat(q [4]float32) mgl64.Quat {
	if q == [4]float32{} {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: float64(q[3]), V: mgl64.Vec3{float64(q[0]), -float64(q[2]), float64(q[1])}}
}

func scale(s [3]float32) mgl64.Vec3 {
	if s == [3]float32{} {
		return mgl64.Vec3{1, 1, 1}
	}
	return mgl64.Vec3{float64(s[0]), float64(s[2]), float64(s[1])}
}

func matrix(m [16]float32) mgl64.Mat4 {
	var r mgl64.Mat4
	for i := range m {
		r[i] = float64(m[i])
	}
	return r
}

var identity32 = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// nodeMatrix is the node local transform in scene space.
func nodeMatrix(n *gltf.Node) mgl64.Mat4 {
	if n.Matrix != identity32 && n.Matrix != ([16]float32{}) {
		return basis.Mul4(matrix(n.Matrix)).Mul4(basisInverse)
	}
	return scene.ComposeTRS(vec(n.Translation), quat(n.Rotation), scale(n.Scale))
}

type loader struct {
	doc  *gltf.Document
	path string
	sc   *scene.Scene

	names   utils.NameRegistry
	parents map[uint32]uint32

	objects   map[uint32]*scene.Object
	meshes    map[uint32]*scene.Mesh
	materials map[uint32]*scene.Material

	// joint node -> skin index and bone index
	jointSkin map[uint32]int
	jointBone map[uint32]int
	armatures []*scene.Object

	imageDir string
}

// Load reads the glTF or glb file at path.
func Load(path string) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open gltf %q", path)
	}
	return FromDocument(doc, path)
}

// FromDocument converts an already decoded document. path locates external
// images and names the scene.
func FromDocument(doc *gltf.Document, path string) (*scene.Scene, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	l := &loader{
		doc:       doc,
		path:      path,
		sc:        scene.New(name),
		parents:   make(map[uint32]uint32),
		objects:   make(map[uint32]*scene.Object),
		meshes:    make(map[uint32]*scene.Mesh),
		materials: make(map[uint32]*scene.Material),
		jointSkin: make(map[uint32]int),
		jointBone: make(map[uint32]int),
	}
	l.sc.SourcePath = path
	if abs, err := filepath.Abs(path); err == nil {
		l.sc.SourcePath = abs
	}

	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			l.parents[c] = uint32(i)
		}
	}

	if err := l.load(); err != nil {
		return nil, errors.Wrapf(err, "Failed to convert gltf %q", path)
	}
	logger.Info("[gltf] loaded", zap.String("path", path), zap.Int("objects", len(l.sc.Objects)),
		zap.Int("materials", len(l.sc.Materials)), zap.Int("actions", len(l.sc.Library)))
	return l.sc, nil
}

func (l *loader) load() error {
	if len(l.doc.Scenes) != 0 {
		s := l.doc.Scenes[0]
		if l.doc.Scene != nil && int(*l.doc.Scene) < len(l.doc.Scenes) {
			s = l.doc.Scenes[*l.doc.Scene]
		}
		copyExtras(s.Extras, l.sc.Properties)
	}

	l.collectJoints()
	for si := range l.doc.Skins {
		l.armature(si)
	}

	for _, root := range l.roots() {
		if err := l.node(root, nil, false); err != nil {
			return err
		}
	}

	if err := l.animations(); err != nil {
		return err
	}
	return nil
}

// roots returns the nodes of the active scene, or every parentless node.
func (l *loader) roots() []uint32 {
	if len(l.doc.Scenes) != 0 {
		s := l.doc.Scenes[0]
		if l.doc.Scene != nil && int(*l.doc.Scene) < len(l.doc.Scenes) {
			s = l.doc.Scenes[*l.doc.Scene]
		}
		return s.Nodes
	}
	roots := make([]uint32, 0)
	for i := range l.doc.Nodes {
		if _, ok := l.parents[uint32(i)]; !ok {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func isProjector(n *gltf.Node) bool {
	if n.Camera != nil {
		return true
	}
	_, ok := n.Extensions[lightsExtension]
	return ok
}

// node creates the object for node index i and recurses into its children.
// Joints become bones instead; their non-joint children are attached at
// their world rest transform.
func (l *loader) node(i uint32, parent *scene.Object, parentProjector bool) error {
	n := l.doc.Nodes[i]
	if _, isJoint := l.jointSkin[i]; isJoint {
		for _, c := range n.Children {
			if _, ok := l.jointSkin[c]; ok {
				continue
			}
			if err := l.node(c, nil, false); err != nil {
				return err
			}
			if o := l.objects[c]; o != nil {
				o.Transform = l.restWorld(i).Mul4(o.Transform)
			}
		}
		return nil
	}

	o := &scene.Object{
		Name:      l.names.Unique(n.Name),
		Type:      scene.TypeEmpty,
		Transform: nodeMatrix(n),
	}
	if parentProjector {
		o.Transform = basisInverse.Mul4(o.Transform)
	}
	projector := isProjector(n)
	if projector {
		o.Transform = o.Transform.Mul4(projectorFix.Mat4())
	}
	o.Properties = make(map[string]string)
	copyExtras(n.Extras, o.Properties)

	switch {
	case n.Mesh != nil:
		m, err := l.mesh(*n.Mesh)
		if err != nil {
			return err
		}
		o.Type = scene.TypeMesh
		o.Mesh = m
		if n.Skin != nil && int(*n.Skin) < len(l.armatures) {
			arm := l.armatures[*n.Skin]
			o.ArmatureModifiers = []*scene.Object{arm}
			o.VertexGroups = l.jointNames(int(*n.Skin))
			// skinned vertices are bound in armature space
			o.Transform = mgl64.Ident4()
			parent = arm
		}
	case n.Camera != nil:
		o.Type = scene.TypeCamera
		o.Camera = l.camera(*n.Camera)
	case projector:
		light, err := l.light(n)
		if err != nil {
			return err
		}
		o.Type = scene.TypeLight
		o.Light = light
	}

	l.sc.Add(o, parent)
	l.objects[i] = o
	logger.Debug("[gltf] node", zap.Uint32("index", i), zap.String("name", o.Name), zap.Stringer("type", o.Type))

	for _, c := range n.Children {
		if err := l.node(c, o, projector); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) camera(i uint32) *scene.Camera {
	cam := &scene.Camera{FOV: 50 * math.Pi / 180, Near: 0.1, Far: 100}
	if int(i) >= len(l.doc.Cameras) {
		return cam
	}
	c := l.doc.Cameras[i]
	if c.Perspective != nil {
		cam.FOV = float64(c.Perspective.Yfov)
		cam.Near = float64(c.Perspective.Znear)
		if c.Perspective.Zfar != nil {
			cam.Far = float64(*c.Perspective.Zfar)
		}
	} else if c.Orthographic != nil {
		cam.Near = float64(c.Orthographic.Znear)
		cam.Far = float64(c.Orthographic.Zfar)
	}
	return cam
}

// copyExtras keeps scalar extras as string properties.
func copyExtras(extras interface{}, props map[string]string) {
	m, ok := extras.(map[string]interface{})
	if !ok {
		return
	}
	for k, v := range m {
		switch v := v.(type) {
		case string:
			props[k] = v
		case float64, bool:
			props[k] = fmt.Sprint(v)
		}
	}
}
