package xsg

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/anim"
	"github.com/mogaika/xsg_export/geometry"
	"github.com/mogaika/xsg_export/material"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/skin"
)

type NodeKind int

const (
	NodeNull NodeKind = iota
	NodeMesh
	NodeCamera
	NodeLight
	NodeSkin
	NodeReference
)

func (k NodeKind) String() string {
	switch k {
	case NodeNull:
		return "null"
	case NodeMesh:
		return "mesh"
	case NodeCamera:
		return "camera"
	case NodeLight:
		return "light"
	case NodeSkin:
		return "skin"
	case NodeReference:
		return "reference"
	}
	return "unknown"
}

// Document is a complete scene ready to be serialized.
type Document struct {
	// nil writes the default ambient
	Ambient *mgl64.Vec3
	// Extra holds raw scene level markup, written verbatim after the header.
	Extra      []string
	Materials  []*material.Material
	Nodes      []*Node
	Animations []*anim.Set
}

// Node is one <node> element. Transform is already in target convention.
type Node struct {
	ID        string
	Kind      NodeKind
	Transform mgl64.Mat4
	Children  []*Node

	Mesh      *Mesh
	Light     *scene.Light
	Bones     []*Node
	Reference *Reference
}

type Mesh struct {
	Buffer    *geometry.Buffer
	Skin      *skin.Skin
	Materials []string
}

type Reference struct {
	Src string
	// Object is raw markup placed inside the <object> element.
	Object string
}

// DefaultAmbient is written when the scene has no world color.
var DefaultAmbient = mgl64.Vec3{0.25, 0.25, 0.25}
