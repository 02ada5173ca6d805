package anim

import (
	"context"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/scene"
	"github.com/mogaika/xsg_export/utils"
)

const (
	GlobalSet        = "Global"
	DefaultActionSet = "Default_Action"
)

type Options struct {
	Range                 Range
	ActionsAsSets         bool
	AttachToFirstArmature bool
	CameraAnimation       bool
	Optimize              bool
	Thresholds            Thresholds
}

func OptionsFromConfig(cfg *config.Config, tl *scene.Timeline) Options {
	return Options{
		Range:                 RangeFor(tl, cfg.Animation),
		ActionsAsSets:         cfg.Animation.ActionsAsSets,
		AttachToFirstArmature: cfg.Animation.AttachToFirstArmature,
		CameraAnimation:       cfg.Animation.CameraAnimation,
		Optimize:              cfg.Optimize.Enabled,
		Thresholds:            ThresholdsFromConfig(cfg.Optimize),
	}
}

// BuildSets samples objects, given in export order, into animation sets.
// Joined mode produces one Global set. Split mode produces a set per action,
// plus Default_Action for objects without one.
func BuildSets(ctx context.Context, sc *scene.Scene, objects []*scene.Object, opts Options) ([]*Set, error) {
	if !opts.ActionsAsSets {
		set, err := opts.sample(ctx, sc, GlobalSet, objects)
		if err != nil {
			return nil, err
		}
		return []*Set{set}, nil
	}

	var order []*scene.Action
	byAction := make(map[*scene.Action][]*scene.Object)
	actionless := make([]*scene.Object, 0)
	for _, o := range objects {
		if o.Action == nil {
			actionless = append(actionless, o)
			continue
		}
		if _, ok := byAction[o.Action]; !ok {
			order = append(order, o.Action)
		}
		byAction[o.Action] = append(byAction[o.Action], o)
	}

	sets := make([]*Set, 0, len(order)+1)
	for _, a := range order {
		set, err := opts.sample(ctx, sc, utils.SafeName(a.Name), byAction[a])
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if opts.AttachToFirstArmature {
		attached, rest, err := opts.attachFree(ctx, sc, objects, actionless)
		if err != nil {
			return nil, err
		}
		sets = append(sets, attached...)
		actionless = rest
	}

	if len(actionless) != 0 {
		set, err := opts.sample(ctx, sc, DefaultActionSet, actionless)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// attachFree plays every unassigned action on the first armature.
func (opts Options) attachFree(ctx context.Context, sc *scene.Scene, objects, actionless []*scene.Object) ([]*Set, []*scene.Object, error) {
	var armature *scene.Object
	for _, o := range objects {
		if o.Type == scene.TypeArmature {
			armature = o
			break
		}
	}
	free := sc.FreeActions()
	if armature == nil || len(free) == 0 {
		return nil, actionless, nil
	}

	rest := make([]*scene.Object, 0, len(actionless))
	for _, o := range actionless {
		if o != armature {
			rest = append(rest, o)
		}
	}

	previous := armature.Action
	defer func() { armature.Action = previous }()

	sets := make([]*Set, 0, len(free))
	for _, a := range free {
		armature.Action = a
		set, err := opts.sample(ctx, sc, utils.SafeName(a.Name), []*scene.Object{armature})
		if err != nil {
			return nil, nil, err
		}
		sets = append(sets, set)
	}
	return sets, rest, nil
}

func (opts Options) sample(ctx context.Context, sc *scene.Scene, name string, objects []*scene.Object) (*Set, error) {
	sampler := NewSampler(sc.Timeline, opts.Range)
	sampler.SetCameraAnimation(opts.CameraAnimation)

	set := &Set{Name: name, Period: opts.Range.Period()}
	for _, o := range objects {
		set.Tracks = append(set.Tracks, sampler.Add(o)...)
	}
	if err := sampler.Run(ctx); err != nil {
		return nil, err
	}
	if opts.Optimize {
		for _, t := range set.Tracks {
			t.Optimize(opts.Thresholds)
		}
	}
	return set, nil
}
