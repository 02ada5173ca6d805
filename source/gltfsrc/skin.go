package gltfsrc

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/scene"
)

// collectJoints marks joint nodes. A node used by several skins belongs to
// the first one.
func (l *loader) collectJoints() {
	for si, skin := range l.doc.Skins {
		for _, j := range skin.Joints {
			if _, ok := l.jointSkin[j]; !ok {
				l.jointSkin[j] = si
			}
		}
	}
}

// restWorld is the world transform of node i in its default pose.
func (l *loader) restWorld(i uint32) mgl64.Mat4 {
	m := nodeMatrix(l.doc.Nodes[i])
	if p, ok := l.parents[i]; ok {
		return l.restWorld(p).Mul4(m)
	}
	return m
}

// parentJoint returns the closest ancestor of i that is a joint of skin si.
func (l *loader) parentJoint(i uint32, si int) (uint32, bool) {
	for {
		p, ok := l.parents[i]
		if !ok {
			return 0, false
		}
		if s, isJoint := l.jointSkin[p]; isJoint && s == si {
			return p, true
		}
		i = p
	}
}

func (l *loader) jointDepth(i uint32, si int) int {
	depth := 0
	for {
		p, ok := l.parentJoint(i, si)
		if !ok {
			return depth
		}
		depth++
		i = p
	}
}

// armature builds the armature object of skin si. Bones are added parents
// first with their world rest transform, the armature itself sits at the
// origin.
func (l *loader) armature(si int) {
	skin := l.doc.Skins[si]

	joints := make([]uint32, 0, len(skin.Joints))
	for _, j := range skin.Joints {
		if l.jointSkin[j] == si {
			joints = append(joints, j)
		}
	}
	sort.SliceStable(joints, func(a, b int) bool {
		return l.jointDepth(joints[a], si) < l.jointDepth(joints[b], si)
	})

	arm := &scene.Armature{}
	for _, j := range joints {
		parent := -1
		if p, ok := l.parentJoint(j, si); ok {
			parent = l.jointBone[p]
		}
		name := l.names.Unique(l.doc.Nodes[j].Name)
		l.jointBone[j] = arm.AddBone(name, parent, l.restWorld(j))
	}

	name := skin.Name
	if name == "" {
		name = "Armature"
	}
	o := l.sc.Add(&scene.Object{
		Name:     l.names.Unique(name),
		Type:     scene.TypeArmature,
		Armature: arm,
	}, nil)
	l.armatures = append(l.armatures, o)
}

// jointNames lists vertex group names in skin joint order, so JOINTS_0
// values index them directly.
func (l *loader) jointNames(si int) []string {
	skin := l.doc.Skins[si]
	arm := l.armatures[si].Armature
	names := make([]string, len(skin.Joints))
	for k, j := range skin.Joints {
		if l.jointSkin[j] == si {
			names[k] = arm.Bones[l.jointBone[j]].Name
		} else {
			names[k] = l.doc.Nodes[j].Name
		}
	}
	return names
}

// restRelative is the rest of bone i relative to its parent bone.
func restRelative(arm *scene.Armature, i int) mgl64.Mat4 {
	b := &arm.Bones[i]
	if b.Parent < 0 {
		return b.Rest
	}
	return arm.Bones[b.Parent].Rest.Inv().Mul4(b.Rest)
}
