package skin

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/scene"
)

func rig(t *testing.T) (*scene.Scene, *scene.Object, *scene.Object) {
	t.Helper()
	s := scene.New("skin")
	arm := &scene.Armature{}
	root := arm.AddBone("root", -1, mgl64.Ident4())
	arm.AddBone("arm", root, mgl64.Translate3D(0, 0, 1))
	armObj := s.Add(&scene.Object{Name: "Armature", Type: scene.TypeArmature, Armature: arm}, nil)

	mesh := &scene.Mesh{Name: "body"}
	mesh.Vertices = []scene.Vertex{
		{Co: mgl64.Vec3{0, 0, 0}, Groups: []scene.GroupWeight{{Group: 0, Weight: 0.5}, {Group: 1, Weight: 0.5}}},
		{Co: mgl64.Vec3{0, 0, 2}, Groups: []scene.GroupWeight{{Group: 1, Weight: 2}}},
		{Co: mgl64.Vec3{1, 0, 0}, Groups: []scene.GroupWeight{{Group: 2, Weight: 1}}},
	}
	meshObj := s.Add(&scene.Object{
		Name:              "body",
		Type:              scene.TypeMesh,
		Mesh:              mesh,
		ArmatureModifiers: []*scene.Object{armObj},
		VertexGroups:      []string{"root", "arm", "not_a_bone"},
	}, armObj)
	return s, armObj, meshObj
}

func TestBuildNormalizesWeights(t *testing.T) {
	_, armObj, meshObj := rig(t)

	sk, err := Build(meshObj, meshObj.Mesh)
	require.NoError(t, err)
	require.NotNil(t, sk)
	assert.Equal(t, armObj, sk.Armature)
	require.Len(t, sk.Clusters, 2)

	// ordered by bone name
	assert.Equal(t, "arm", sk.Clusters[0].Bone)
	assert.Equal(t, "root", sk.Clusters[1].Bone)

	assert.Equal(t, []int{0, 1}, sk.Clusters[0].Vertices)
	assert.InDeltaSlice(t, []float64{0.5, 1}, sk.Clusters[0].Weights, 1e-12)
	assert.Equal(t, []int{0}, sk.Clusters[1].Vertices)
	assert.InDeltaSlice(t, []float64{0.5}, sk.Clusters[1].Weights, 1e-12)

	assert.Equal(t, 2, sk.MaxInfluences)
	assert.Equal(t, []int{2}, sk.ZeroWeight)
}

func TestClusterTransform(t *testing.T) {
	_, _, meshObj := rig(t)
	sk, err := Build(meshObj, meshObj.Mesh)
	require.NoError(t, err)

	expected := coord.Convert(mgl64.Translate3D(0, 0, -1))
	assert.True(t, expected.ApproxEqual(sk.Clusters[0].Transform))
	assert.True(t, mgl64.Ident4().ApproxEqual(sk.Clusters[1].Transform))
}

func TestWeightsSumToOne(t *testing.T) {
	_, _, meshObj := rig(t)
	sk, err := Build(meshObj, meshObj.Mesh)
	require.NoError(t, err)

	sums := make(map[int]float64)
	for _, c := range sk.Clusters {
		for i, v := range c.Vertices {
			sums[v] += c.Weights[i]
		}
	}
	for v, sum := range sums {
		assert.InDelta(t, 1.0, sum, 1e-9, "vertex %d", v)
	}
}

func TestUnskinnedMesh(t *testing.T) {
	s := scene.New("plain")
	obj := s.Add(&scene.Object{Name: "box", Type: scene.TypeMesh, Mesh: scene.Cube(1)}, nil)
	sk, err := Build(obj, obj.Mesh)
	assert.NoError(t, err)
	assert.Nil(t, sk)
}

func TestMultipleArmatures(t *testing.T) {
	s, _, meshObj := rig(t)
	other := s.Add(&scene.Object{Name: "Other", Type: scene.TypeArmature, Armature: &scene.Armature{}}, nil)
	meshObj.ArmatureModifiers = append(meshObj.ArmatureModifiers, other)

	sk, err := Build(meshObj, meshObj.Mesh)
	assert.Nil(t, sk)
	assert.Equal(t, ErrMultipleArmatures, errors.Cause(err))
}

func TestMissingBone(t *testing.T) {
	_, _, meshObj := rig(t)
	meshObj.VertexGroups = []string{"hand", "foot"}

	sk, err := Build(meshObj, meshObj.Mesh)
	assert.Nil(t, sk)
	assert.Equal(t, ErrMissingBone, errors.Cause(err))
}

func TestBuildTwoBoneSplit(t *testing.T) {
	s := scene.New("split")
	arm := &scene.Armature{}
	upper := arm.AddBone("upper", -1, mgl64.Ident4())
	arm.AddBone("lower", upper, mgl64.Translate3D(0, 0, 1))
	armObj := s.Add(&scene.Object{Name: "Armature", Type: scene.TypeArmature, Armature: arm}, nil)

	mesh := scene.Cube(1)
	for i := range mesh.Vertices {
		group := 0
		if mesh.Vertices[i].Co.Z() < 0 {
			group = 1
		}
		mesh.Vertices[i].Groups = []scene.GroupWeight{{Group: group, Weight: 1}}
	}
	meshObj := s.Add(&scene.Object{
		Name:              "leg",
		Type:              scene.TypeMesh,
		Mesh:              mesh,
		ArmatureModifiers: []*scene.Object{armObj},
		VertexGroups:      []string{"upper", "lower"},
	}, armObj)

	sk, err := Build(meshObj, mesh)
	require.NoError(t, err)
	require.NotNil(t, sk)
	require.Len(t, sk.Clusters, 2)
	assert.Empty(t, sk.ZeroWeight)
	assert.Equal(t, 1, sk.MaxInfluences)

	owner := make(map[int]string)
	for _, c := range sk.Clusters {
		require.Len(t, c.Weights, len(c.Vertices))
		assert.Len(t, c.Vertices, 4, c.Bone)
		for i, v := range c.Vertices {
			prev, taken := owner[v]
			assert.False(t, taken, "vertex %d in %s and %s", v, prev, c.Bone)
			owner[v] = c.Bone
			assert.Equal(t, 1.0, c.Weights[i])
		}
	}
	assert.Len(t, owner, len(mesh.Vertices))
}
