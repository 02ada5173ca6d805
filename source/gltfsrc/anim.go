package gltfsrc

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/logger"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

func frameAt(t float32) float64 {
	return 1 + float64(t)*FPS
}

// track gathers the sampled channels of one node inside one animation.
type track struct {
	node   uint32
	owner  *scene.Object
	target string
	raw    scene.Channel
	frames map[float64]struct{}
}

// animations turns every glTF animation into one action per animated
// object. Bone channels go to the action of their armature.
func (l *loader) animations() error {
	last := 0.0
	for ai, anim := range l.doc.Animations {
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("Action_%d", ai)
		}

		tracks := make(map[uint32]*track)
		order := make([]uint32, 0)
		for ci, ch := range anim.Channels {
			if ch.Target.Node == nil || ch.Sampler == nil || int(*ch.Sampler) >= len(anim.Samplers) {
				continue
			}
			node := *ch.Target.Node
			tr, ok := tracks[node]
			if !ok {
				tr = l.track(node)
				if tr == nil {
					logger.Debug("[gltf] channel target not exported", zap.String("animation", name), zap.Uint32("node", node))
					continue
				}
				tracks[node] = tr
				order = append(order, node)
			}
			if err := l.sample(tr, anim.Samplers[*ch.Sampler], ch.Target.Path); err != nil {
				return errors.Wrapf(err, "animation %q channel %d", name, ci)
			}
		}

		owners := make([]*scene.Object, 0)
		actions := make(map[*scene.Object]*scene.Action)
		for _, node := range order {
			tr := tracks[node]
			if _, ok := actions[tr.owner]; !ok {
				actions[tr.owner] = nil
				owners = append(owners, tr.owner)
			}
		}
		for _, owner := range owners {
			actionName := name
			if len(owners) > 1 {
				actionName = name + "_" + owner.Name
			}
			act := scene.NewAction(actionName)
			actions[owner] = act
			l.sc.Library = append(l.sc.Library, act)
			if owner.Action == nil {
				owner.Action = act
			}
		}

		for _, node := range order {
			tr := tracks[node]
			if f := l.bake(tr, actions[tr.owner]); f > last {
				last = f
			}
		}
	}

	if len(l.sc.Library) != 0 {
		tl := l.sc.Timeline
		tl.FrameStart = 1
		tl.FrameEnd = int(math.Ceil(last))
		if tl.FrameEnd < tl.FrameStart {
			tl.FrameEnd = tl.FrameStart
		}
		tl.FPS = FPS
		tl.FPSBase = 1
		tl.SetFrame(tl.FrameStart)
	}
	return nil
}

// track resolves the animated object of node, or nil when nothing owns it.
func (l *loader) track(node uint32) *track {
	tr := &track{node: node, frames: make(map[float64]struct{})}
	if si, isJoint := l.jointSkin[node]; isJoint {
		arm := l.armatures[si]
		tr.owner = arm
		tr.target = arm.Armature.Bones[l.jointBone[node]].Name
		return tr
	}
	o := l.objects[node]
	if o == nil || len(o.ArmatureModifiers) != 0 {
		return nil
	}
	tr.owner = o
	return tr
}

// sample reads one sampler into the raw scene space channel of tr.
func (l *loader) sample(tr *track, s *gltf.AnimationSampler, path gltf.TRSProperty) error {
	if s.Input == nil || s.Output == nil {
		return errors.New("sampler without input or output")
	}
	acr, err := l.accessor(*s.Input)
	if err != nil {
		return err
	}
	in, err := modeler.ReadAccessor(l.doc, acr, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read sampler input")
	}
	times, ok := in.([]float32)
	if !ok {
		return errors.Errorf("sampler input is %T, want float", in)
	}
	if acr, err = l.accessor(*s.Output); err != nil {
		return err
	}
	out, err := modeler.ReadAccessor(l.doc, acr, nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read sampler output")
	}

	// cubic spline stores in-tangent, value and out-tangent per key
	stride, offset := 1, 0
	if s.Interpolation == gltf.InterpolationCubicSpline {
		stride, offset = 3, 1
	}

	switch path {
	case gltf.TRSTranslation, gltf.TRSScale:
		values, ok := out.([][3]float32)
		if !ok {
			return errors.Errorf("%v output is %T", path, out)
		}
		for k, t := range times {
			vi := k*stride + offset
			if vi >= len(values) {
				break
			}
			key := scene.VecKey{Frame: frameAt(t)}
			if path == gltf.TRSTranslation {
				key.Value = vec(values[vi])
				tr.raw.Translation = append(tr.raw.Translation, key)
			} else {
				key.Value = scale(values[vi])
				tr.raw.Scale = append(tr.raw.Scale, key)
			}
			tr.frames[key.Frame] = struct{}{}
		}
	case gltf.TRSRotation:
		values, ok := out.([][4]float32)
		if !ok {
			logger.Warn("[gltf] rotation keys skipped", zap.String("type", fmt.Sprintf("%T", out)))
			return nil
		}
		for k, t := range times {
			vi := k*stride + offset
			if vi >= len(values) {
				break
			}
			key := scene.QuatKey{Frame: frameAt(t), Value: quat(values[vi])}
			tr.raw.Rotation = append(tr.raw.Rotation, key)
			tr.frames[key.Frame] = struct{}{}
		}
	default:
		logger.Debug("[gltf] channel path ignored", zap.String("path", fmt.Sprint(path)))
	}
	return nil
}

// bake evaluates the raw channel of tr at every keyed frame, applies the
// same fixups as the rest transform and keys the result into act. It
// returns the last keyed frame.
func (l *loader) bake(tr *track, act *scene.Action) float64 {
	tr.raw.Sort()
	frames := make([]float64, 0, len(tr.frames))
	for f := range tr.frames {
		frames = append(frames, f)
	}
	sort.Float64s(frames)

	rest := nodeMatrix(l.doc.Nodes[tr.node])
	pre, post := mgl64.Ident4(), mgl64.Ident4()
	if tr.target != "" {
		arm := tr.owner.Armature
		pre = restRelative(arm, arm.Find(tr.target)).Inv()
	} else {
		if p, ok := l.parents[tr.node]; ok {
			if _, parentJoint := l.jointSkin[p]; parentJoint {
				pre = l.restWorld(p)
			} else if isProjector(l.doc.Nodes[p]) {
				pre = basisInverse
			}
		}
		if isProjector(l.doc.Nodes[tr.node]) {
			post = projectorFix.Mat4()
		}
	}

	ch := act.Ensure(tr.target)
	for _, f := range frames {
		m := pre.Mul4(tr.raw.Evaluate(f, rest)).Mul4(post)
		t, r, s := utils.Decompose(m)
		ch.Translation = append(ch.Translation, scene.VecKey{Frame: f, Value: t})
		ch.Rotation = append(ch.Rotation, scene.QuatKey{Frame: f, Value: r})
		ch.Scale = append(ch.Scale, scene.VecKey{Frame: f, Value: s})
	}
	ch.Sort()

	if len(frames) == 0 {
		return 0
	}
	return frames[len(frames)-1]
}
