// Package skin builds per-bone influence clusters for meshes deformed by an armature.
package skin

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

var (
	ErrMultipleArmatures = errors.New("more than one armature deforms the mesh")
	ErrMissingBone       = errors.New("no vertex group matches a bone of the armature")
)

// Cluster is the set of vertices one bone moves.
type Cluster struct {
	Bone string
	ID   string
	// Transform maps skinned mesh space into bone space at bind time.
	Transform mgl64.Mat4
	Vertices  []int
	Weights   []float64
}

type Skin struct {
	Armature      *scene.Object
	Clusters      []*Cluster
	MaxInfluences int
	// ZeroWeight lists vertices whose matched weights sum to zero.
	ZeroWeight []int
}

// Armature returns the single armature deforming obj, nil if there is none.
func Armature(obj *scene.Object) (*scene.Object, error) {
	switch len(obj.ArmatureModifiers) {
	case 0:
		return nil, nil
	case 1:
		if obj.ArmatureModifiers[0] == nil || obj.ArmatureModifiers[0].Armature == nil {
			return nil, nil
		}
		return obj.ArmatureModifiers[0], nil
	default:
		return nil, errors.Wrapf(ErrMultipleArmatures, "mesh %q has %d armatures", obj.Name, len(obj.ArmatureModifiers))
	}
}

// Build computes clusters for obj. A nil Skin with nil error means the mesh
// is not skinned. Errors are recoverable: the mesh is exported unskinned.
func Build(obj *scene.Object, mesh *scene.Mesh) (*Skin, error) {
	armObj, err := Armature(obj)
	if err != nil || armObj == nil {
		return nil, err
	}
	arm := armObj.Armature

	bones := make(map[string]int, len(arm.Bones))
	for i, name := range armObj.PoseBoneNames() {
		bones[name] = i
	}

	meshToArmature := armObj.MatrixWorld().Inv().Mul4(obj.MatrixWorld())

	groupCluster := make(map[int]*Cluster)
	clusters := make([]*Cluster, 0)
	for gi, name := range obj.VertexGroups {
		bi, ok := bones[name]
		if !ok {
			continue
		}
		c := &Cluster{
			Bone:      name,
			ID:        utils.SafeName(name),
			Transform: coord.Convert(arm.Bones[bi].Rest.Inv().Mul4(meshToArmature)),
		}
		groupCluster[gi] = c
		clusters = append(clusters, c)
	}
	if len(clusters) == 0 {
		return nil, errors.Wrapf(ErrMissingBone, "mesh %q armature %q", obj.Name, armObj.Name)
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Bone < clusters[j].Bone })

	s := &Skin{Armature: armObj, Clusters: clusters}
	for vi := range mesh.Vertices {
		groups := mesh.Vertices[vi].Groups

		total := 0.0
		influences := 0
		for _, g := range groups {
			if _, ok := groupCluster[g.Group]; ok {
				total += g.Weight
				influences++
			}
		}
		if influences > s.MaxInfluences {
			s.MaxInfluences = influences
		}
		if total == 0 {
			s.ZeroWeight = append(s.ZeroWeight, vi)
			continue
		}
		for _, g := range groups {
			if c, ok := groupCluster[g.Group]; ok {
				c.Vertices = append(c.Vertices, vi)
				c.Weights = append(c.Weights, g.Weight/total)
			}
		}
	}
	return s, nil
}
