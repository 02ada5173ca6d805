package anim

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/coord"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

// Range is the half-open frame interval [Start, End) being sampled.
type Range struct {
	Start       int
	End         int
	FramePeriod float64
}

func (r Range) Time(frame int) float64 {
	return float64(frame-r.Start) * r.FramePeriod
}

// Period is the animation length in seconds.
func (r Range) Period() float64 {
	return float64(r.End-r.Start) * r.FramePeriod
}

// RangeFor applies frame range and fps overrides from cfg to the timeline values.
func RangeFor(tl *scene.Timeline, cfg config.AnimationConfig) Range {
	r := Range{Start: tl.FrameStart, End: tl.FrameEnd}
	if cfg.FrameStart != nil {
		r.Start = *cfg.FrameStart
	}
	if cfg.FrameEnd != nil {
		r.End = *cfg.FrameEnd
	}

	fps, base := tl.FPS, tl.FPSBase
	if cfg.FPS > 0 {
		fps = cfg.FPS
	}
	if cfg.FPSBase > 0 {
		base = cfg.FPSBase
	}
	if base == 0 {
		base = 1
	}
	if fps > 0 {
		r.FramePeriod = base / fps
	}
	return r
}

type entity struct {
	track      *Track
	sample     func() mgl64.Mat4
	compatible bool
}

// Sampler steps the timeline once over the range and records every
// registered entity at each frame.
type Sampler struct {
	rng             Range
	timeline        *scene.Timeline
	entities        []entity
	cameraAnimation bool
}

func NewSampler(tl *scene.Timeline, rng Range) *Sampler {
	return &Sampler{rng: rng, timeline: tl}
}

func (s *Sampler) SetCameraAnimation(enabled bool) { s.cameraAnimation = enabled }

// Disabled reports objects that get no node track. Skinned meshes move
// through their armature.
func (s *Sampler) Disabled(o *scene.Object) bool {
	if o.Type == scene.TypeCamera && !s.cameraAnimation {
		return true
	}
	return len(o.ArmatureModifiers) != 0
}

// Add registers o and, for armatures, each of its bones.
func (s *Sampler) Add(o *scene.Object) []*Track {
	tracks := make([]*Track, 0)
	if t := s.AddNode(o); t != nil {
		tracks = append(tracks, t)
	}
	if o.Type == scene.TypeArmature && o.Armature != nil {
		tracks = append(tracks, s.AddBones(o)...)
	}
	return tracks
}

// AddNode registers the local transform of o. Returns nil for disabled objects.
func (s *Sampler) AddNode(o *scene.Object) *Track {
	if s.Disabled(o) {
		return nil
	}
	projector := o.Type == scene.TypeCamera || o.Type == scene.TypeLight
	t := &Track{Name: utils.SafeName(o.Name)}
	s.entities = append(s.entities, entity{
		track: t,
		sample: func() mgl64.Mat4 {
			m := coord.Convert(o.MatrixLocal())
			if projector {
				m = coord.AdjustProjector(m)
			}
			return m
		},
	})
	return t
}

// AddBones registers every bone of armature object o relative to its parent
// bone. Tracks come parents-first.
func (s *Sampler) AddBones(o *scene.Object) []*Track {
	arm := o.Armature
	tracks := make([]*Track, 0, len(arm.Bones))
	for _, bone := range arm.Hierarchy() {
		bone := bone
		t := &Track{Name: utils.SafeName(arm.Bones[bone].Name)}
		s.entities = append(s.entities, entity{
			track:      t,
			compatible: true,
			sample: func() mgl64.Mat4 {
				pose := o.PoseMatrix(bone)
				if parent := arm.Bones[bone].Parent; parent >= 0 {
					pose = o.PoseMatrix(parent).Inv().Mul4(pose)
				}
				return coord.Convert(pose)
			},
		})
		tracks = append(tracks, t)
	}
	return tracks
}

// Run samples all entities. The timeline frame is restored on return.
func (s *Sampler) Run(ctx context.Context) error {
	tc := s.timeline.Acquire()
	defer tc.Release()

	for frame := s.rng.Start; frame < s.rng.End; frame++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "Sampling interrupted at frame %d", frame)
		}
		tc.SetFrame(frame)
		time := s.rng.Time(frame)
		for _, e := range s.entities {
			e.track.add(time, e.sample(), e.compatible)
		}
	}
	return nil
}
