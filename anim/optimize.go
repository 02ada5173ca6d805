package anim

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/utils"
)

type Thresholds struct {
	Position float64
	Scale    float64
	Rotation float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Position: 0.01, Scale: 0.01, Rotation: 0.0001}
}

func ThresholdsFromConfig(cfg config.OptimizeConfig) Thresholds {
	return Thresholds{
		Position: cfg.PositionThreshold,
		Scale:    cfg.ScaleThreshold,
		Rotation: cfg.RotationThreshold,
	}
}

// Optimize removes keys reproducible by interpolating their neighbours.
func (t *Track) Optimize(th Thresholds) {
	t.Position = OptimizeVec(t.Position, th.Position)
	t.Scale = OptimizeVec(t.Scale, th.Scale)
	t.Rotation = OptimizeQuat(t.Rotation, th.Rotation)
}

// OptimizeVec drops the middle key of any triple whose lerp at the middle
// time lies within threshold of it, rescanning from the start after every
// removal. Two remaining keys collapse to one when they are within threshold.
func OptimizeVec(keys []VecKey, threshold float64) []VecKey {
	for {
		removed := false
		for i := 0; i+2 < len(keys); i++ {
			k0, k1, k2 := keys[i], keys[i+1], keys[i+2]
			alpha := (k1.Time - k0.Time) / (k2.Time - k0.Time)
			interp := k0.Value.Add(k2.Value.Sub(k0.Value).Mul(alpha))
			if interp.Sub(k1.Value).Len() <= threshold {
				keys = append(keys[:i+1], keys[i+2:]...)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}
	if len(keys) == 2 && keys[1].Value.Sub(keys[0].Value).Len() <= threshold {
		keys = keys[:1]
	}
	return keys
}

// OptimizeQuat is OptimizeVec for rotations, using slerp and the squared
// 4D difference.
func OptimizeQuat(keys []QuatKey, threshold float64) []QuatKey {
	for {
		removed := false
		for i := 0; i+2 < len(keys); i++ {
			k0, k1, k2 := keys[i], keys[i+1], keys[i+2]
			alpha := (k1.Time - k0.Time) / (k2.Time - k0.Time)
			interp := mgl64.QuatSlerp(k0.Value, k2.Value, alpha)
			if utils.QuatDistanceSquared(interp, k1.Value) <= threshold {
				keys = append(keys[:i+1], keys[i+2:]...)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}
	if len(keys) == 2 && utils.QuatDistanceSquared(keys[1].Value, keys[0].Value) <= threshold {
		keys = keys[:1]
	}
	return keys
}
