package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Bone lives in the Armature arena and references relatives by index.
type Bone struct {
	Name     string
	Parent   int
	Children []int
	Rest     mgl64.Mat4 // armature-space bind transform
}

type Armature struct {
	Bones []Bone
}

// AddBone appends a bone under parent (-1 for a root) and returns its index.
func (a *Armature) AddBone(name string, parent int, rest mgl64.Mat4) int {
	idx := len(a.Bones)
	a.Bones = append(a.Bones, Bone{Name: name, Parent: parent, Rest: rest})
	if parent >= 0 {
		a.Bones[parent].Children = append(a.Bones[parent].Children, idx)
	}
	return idx
}

// Find returns the bone index for name, or -1.
func (a *Armature) Find(name string) int {
	for i := range a.Bones {
		if a.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

func (a *Armature) Roots() []int {
	roots := make([]int, 0)
	for i := range a.Bones {
		if a.Bones[i].Parent < 0 {
			roots = append(roots, i)
		}
	}
	return roots
}

// Hierarchy returns bone indices parents-first.
func (a *Armature) Hierarchy() []int {
	order := make([]int, 0, len(a.Bones))
	var walk func(i int)
	walk = func(i int) {
		order = append(order, i)
		for _, c := range a.Bones[i].Children {
			walk(c)
		}
	}
	for _, r := range a.Roots() {
		walk(r)
	}
	return order
}

// restRelative is the bone rest transform relative to its parent.
func (a *Armature) restRelative(i int) mgl64.Mat4 {
	b := &a.Bones[i]
	if b.Parent < 0 {
		return b.Rest
	}
	return a.Bones[b.Parent].Rest.Inv().Mul4(b.Rest)
}

// PoseMatrix is the armature-space pose of bone i at the current frame.
// Pose bases come from the owning object's action, keyed by bone name.
func (o *Object) PoseMatrix(i int) mgl64.Mat4 {
	a := o.Armature
	b := &a.Bones[i]

	basis := mgl64.Ident4()
	if o.Action != nil && o.timeline != nil {
		if ch := o.Action.Channel(b.Name); ch != nil {
			basis = ch.Evaluate(float64(o.timeline.Frame()), mgl64.Ident4())
		}
	}

	local := a.restRelative(i).Mul4(basis)
	if b.Parent < 0 {
		return local
	}
	return o.PoseMatrix(b.Parent).Mul4(local)
}

// PoseBoneNames lists bone names in arena order.
func (o *Object) PoseBoneNames() []string {
	if o.Armature == nil {
		return nil
	}
	names := make([]string, len(o.Armature.Bones))
	for i := range o.Armature.Bones {
		names[i] = o.Armature.Bones[i].Name
	}
	return names
}
