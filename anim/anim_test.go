package anim

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/scene"
)

func constantKeys(n int, v mgl64.Vec3) []VecKey {
	keys := make([]VecKey, n)
	for i := range keys {
		keys[i] = VecKey{Time: float64(i), Value: v}
	}
	return keys
}

func TestOptimizeConstantCollapses(t *testing.T) {
	keys := OptimizeVec(constantKeys(10, mgl64.Vec3{1, 2, 3}), 0.01)
	require.Len(t, keys, 1)
	assert.Equal(t, 0.0, keys[0].Time)

	track := &Track{Name: "still", Position: constantKeys(10, mgl64.Vec3{}), Scale: constantKeys(10, mgl64.Vec3{1, 1, 1})}
	for i := 0; i < 10; i++ {
		track.Rotation = append(track.Rotation, QuatKey{Time: float64(i), Value: mgl64.QuatIdent()})
	}
	track.Optimize(DefaultThresholds())
	assert.True(t, track.IsStatic())
	assert.Equal(t, 3, track.Keys())
}

func TestOptimizeLinearMotion(t *testing.T) {
	keys := make([]VecKey, 0)
	for i := 0; i < 10; i++ {
		keys = append(keys, VecKey{Time: float64(i), Value: mgl64.Vec3{float64(i), 0, 0}})
	}
	keys = OptimizeVec(keys, 0.01)
	require.Len(t, keys, 2)
	assert.Equal(t, 0.0, keys[0].Time)
	assert.Equal(t, 9.0, keys[1].Time)
}

func TestOptimizeKeepsCorners(t *testing.T) {
	keys := []VecKey{
		{Time: 0, Value: mgl64.Vec3{0, 0, 0}},
		{Time: 1, Value: mgl64.Vec3{1, 0, 0}},
		{Time: 2, Value: mgl64.Vec3{2, 0, 0}},
		{Time: 3, Value: mgl64.Vec3{2, 1, 0}},
		{Time: 4, Value: mgl64.Vec3{2, 2, 0}},
	}
	keys = OptimizeVec(keys, 0.01)
	times := make([]float64, len(keys))
	for i, k := range keys {
		times[i] = k.Time
	}
	assert.Equal(t, []float64{0, 2, 4}, times)
}

func TestOptimizeTwoKeys(t *testing.T) {
	near := []VecKey{{Time: 0, Value: mgl64.Vec3{0, 0, 0}}, {Time: 1, Value: mgl64.Vec3{0.005, 0, 0}}}
	assert.Len(t, OptimizeVec(near, 0.01), 1)
	far := []VecKey{{Time: 0, Value: mgl64.Vec3{0, 0, 0}}, {Time: 1, Value: mgl64.Vec3{1, 0, 0}}}
	assert.Len(t, OptimizeVec(far, 0.01), 2)
}

func TestOptimizeRotation(t *testing.T) {
	keys := make([]QuatKey, 0)
	for i := 0; i <= 8; i++ {
		keys = append(keys, QuatKey{Time: float64(i), Value: mgl64.QuatRotate(float64(i)*math.Pi/16, mgl64.Vec3{0, 1, 0})})
	}
	keys = OptimizeQuat(keys, 0.0001)
	require.Len(t, keys, 2)
	assert.Equal(t, 8.0, keys[1].Time)
}

func TestRangeFor(t *testing.T) {
	tl := scene.NewTimeline(1, 251, 25, 1)
	r := RangeFor(tl, config.AnimationConfig{})
	assert.Equal(t, 1, r.Start)
	assert.Equal(t, 251, r.End)
	assert.InDelta(t, 0.04, r.FramePeriod, 1e-12)
	assert.InDelta(t, 10.0, r.Period(), 1e-9)
	assert.InDelta(t, 0.4, r.Time(11), 1e-12)

	start, end := 10, 20
	r = RangeFor(tl, config.AnimationConfig{FrameStart: &start, FrameEnd: &end, FPS: 30, FPSBase: 1.001})
	assert.Equal(t, 10, r.Start)
	assert.Equal(t, 20, r.End)
	assert.InDelta(t, 1.001/30, r.FramePeriod, 1e-12)
}

func movingScene() (*scene.Scene, *scene.Object) {
	s := scene.New("anim")
	s.Timeline = scene.NewTimeline(1, 11, 10, 1)
	box := s.Add(&scene.Object{Name: "box", Type: scene.TypeMesh}, nil)
	box.Action = scene.NewAction("slide")
	box.Action.Ensure("").Translation = []scene.VecKey{
		{Frame: 1, Value: mgl64.Vec3{0, 0, 0}},
		{Frame: 11, Value: mgl64.Vec3{0, 10, 0}},
	}
	s.Library = []*scene.Action{box.Action}
	return s, box
}

func TestSamplerNodeTrack(t *testing.T) {
	s, box := movingScene()
	s.Timeline.SetFrame(5)

	sampler := NewSampler(s.Timeline, RangeFor(s.Timeline, config.AnimationConfig{}))
	tracks := sampler.Add(box)
	require.NoError(t, sampler.Run(context.Background()))
	require.Len(t, tracks, 1)

	track := tracks[0]
	assert.Equal(t, "box", track.Name)
	require.Len(t, track.Position, 10)
	assert.InDelta(t, 0.0, track.Position[0].Time, 1e-12)
	assert.InDelta(t, 0.9, track.Position[9].Time, 1e-12)
	// source +Y becomes target +Z
	assert.True(t, track.Position[9].Value.ApproxEqual(mgl64.Vec3{0, 0, 9}))
	assert.Equal(t, 5, s.Timeline.Frame())
}

func TestSamplerRestoresFrameOnCancel(t *testing.T) {
	s, box := movingScene()
	s.Timeline.SetFrame(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sampler := NewSampler(s.Timeline, RangeFor(s.Timeline, config.AnimationConfig{}))
	sampler.Add(box)
	assert.Error(t, sampler.Run(ctx))
	assert.Equal(t, 7, s.Timeline.Frame())

	// released: a second pass can acquire the cursor
	assert.NoError(t, NewSampler(s.Timeline, Range{}).Run(context.Background()))
}

func TestSamplerDisabledEntities(t *testing.T) {
	s, _ := movingScene()
	cam := s.Add(&scene.Object{Name: "cam", Type: scene.TypeCamera, Camera: &scene.Camera{}}, nil)
	arm := s.Add(&scene.Object{Name: "rig", Type: scene.TypeArmature, Armature: &scene.Armature{}}, nil)
	skinned := s.Add(&scene.Object{Name: "body", Type: scene.TypeMesh, ArmatureModifiers: []*scene.Object{arm}}, arm)

	sampler := NewSampler(s.Timeline, Range{})
	assert.Nil(t, sampler.AddNode(cam))
	assert.Nil(t, sampler.AddNode(skinned))
	sampler.SetCameraAnimation(true)
	assert.NotNil(t, sampler.AddNode(cam))
}

func TestBoneTracksAreCompatible(t *testing.T) {
	s := scene.New("rig")
	s.Timeline = scene.NewTimeline(0, 40, 24, 1)
	arm := &scene.Armature{}
	root := arm.AddBone("root", -1, mgl64.Ident4())
	arm.AddBone("child", root, mgl64.Translate3D(0, 1, 0))
	rig := s.Add(&scene.Object{Name: "rig", Type: scene.TypeArmature, Armature: arm}, nil)
	rig.Action = scene.NewAction("twist")
	ch := rig.Action.Ensure("child")
	for f := 0; f <= 40; f += 10 {
		ch.Rotation = append(ch.Rotation, scene.QuatKey{
			Frame: float64(f),
			Value: mgl64.QuatRotate(float64(f)*math.Pi/20, mgl64.Vec3{0, 0, 1}),
		})
	}

	sampler := NewSampler(s.Timeline, RangeFor(s.Timeline, config.AnimationConfig{}))
	tracks := sampler.Add(rig)
	require.NoError(t, sampler.Run(context.Background()))
	require.Len(t, tracks, 3)
	assert.Equal(t, []string{"rig", "root", "child"}, []string{tracks[0].Name, tracks[1].Name, tracks[2].Name})

	child := tracks[2]
	require.Len(t, child.Rotation, 40)
	for i := 1; i < len(child.Rotation); i++ {
		assert.GreaterOrEqual(t, child.Rotation[i].Value.Dot(child.Rotation[i-1].Value), 0.0, "key %d", i)
	}
	// child rest offset (0,1,0) becomes (0,0,1)
	assert.True(t, child.Position[0].Value.ApproxEqual(mgl64.Vec3{0, 0, 1}))
}

func TestBoneTracksParentsFirst(t *testing.T) {
	s := scene.New("rig")
	s.Timeline = scene.NewTimeline(0, 2, 24, 1)
	arm := &scene.Armature{Bones: []scene.Bone{
		{Name: "tip", Parent: 3, Rest: mgl64.Translate3D(0, 2, 0)},
		{Name: "other", Parent: -1, Rest: mgl64.Ident4()},
		{Name: "base", Parent: -1, Children: []int{3}, Rest: mgl64.Ident4()},
		{Name: "mid", Parent: 2, Children: []int{0}, Rest: mgl64.Translate3D(0, 1, 0)},
	}}
	rig := s.Add(&scene.Object{Name: "rig", Type: scene.TypeArmature, Armature: arm}, nil)

	sampler := NewSampler(s.Timeline, RangeFor(s.Timeline, config.AnimationConfig{}))
	tracks := sampler.Add(rig)
	require.NoError(t, sampler.Run(context.Background()))

	names := make([]string, len(tracks))
	for i, tr := range tracks {
		names[i] = tr.Name
	}
	assert.Equal(t, []string{"rig", "other", "base", "mid", "tip"}, names)
}

func TestBuildSetsJoined(t *testing.T) {
	s, box := movingScene()
	still := s.Add(&scene.Object{Name: "still", Type: scene.TypeEmpty}, nil)

	cfg := config.Default()
	sets, err := BuildSets(context.Background(), s, []*scene.Object{box, still}, OptionsFromConfig(cfg, s.Timeline))
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, GlobalSet, sets[0].Name)
	assert.InDelta(t, 1.0, sets[0].Period, 1e-12)
	require.Len(t, sets[0].Tracks, 2)
	assert.Equal(t, 1, sets[0].Channels())
	assert.True(t, sets[0].Tracks[1].IsStatic())
	// linear slide keeps only its end points
	assert.Len(t, sets[0].Tracks[0].Position, 2)
}

func TestBuildSetsSplit(t *testing.T) {
	s, box := movingScene()
	still := s.Add(&scene.Object{Name: "still", Type: scene.TypeEmpty}, nil)
	rig := s.Add(&scene.Object{Name: "rig", Type: scene.TypeArmature, Armature: &scene.Armature{}}, nil)
	idle := scene.NewAction("idle pose")
	s.Library = append(s.Library, idle)

	cfg := config.Default()
	cfg.Animation.ActionsAsSets = true
	cfg.Animation.AttachToFirstArmature = true
	objects := []*scene.Object{box, rig, still}

	sets, err := BuildSets(context.Background(), s, objects, OptionsFromConfig(cfg, s.Timeline))
	require.NoError(t, err)
	require.Len(t, sets, 3)
	assert.Equal(t, "slide", sets[0].Name)
	assert.Equal(t, "idle pose", sets[1].Name)
	assert.Equal(t, DefaultActionSet, sets[2].Name)
	assert.Len(t, sets[2].Tracks, 1)
	assert.Nil(t, rig.Action)
}
