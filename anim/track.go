// Package anim samples object and bone motion over the frame range into
// keyframe tracks and decimates redundant keys.
package anim

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/utils"
)

type VecKey struct {
	Time  float64
	Value mgl64.Vec3
}

type QuatKey struct {
	Time  float64
	Value mgl64.Quat
}

// Track is the keyed motion of one node, written as one animation channel.
type Track struct {
	Name     string
	Rotation []QuatKey
	Scale    []VecKey
	Position []VecKey
}

// IsStatic reports that no component carries more than one key.
func (t *Track) IsStatic() bool {
	return len(t.Rotation) < 2 && len(t.Scale) < 2 && len(t.Position) < 2
}

// Keys is the total key count over all components.
func (t *Track) Keys() int {
	return len(t.Rotation) + len(t.Scale) + len(t.Position)
}

func (t *Track) add(time float64, m mgl64.Mat4, compatible bool) {
	pos, rot, scale := utils.Decompose(m)
	if compatible && len(t.Rotation) != 0 {
		rot = utils.CompatibleQuaternion(rot, t.Rotation[len(t.Rotation)-1].Value)
	}
	t.Rotation = append(t.Rotation, QuatKey{Time: time, Value: rot})
	t.Scale = append(t.Scale, VecKey{Time: time, Value: scale})
	t.Position = append(t.Position, VecKey{Time: time, Value: pos})
}

// Set is one <animation> block.
type Set struct {
	Name   string
	Period float64
	Tracks []*Track
}

// Channels counts the tracks that survive static filtering.
func (s *Set) Channels() int {
	count := 0
	for _, t := range s.Tracks {
		if !t.IsStatic() {
			count++
		}
	}
	return count
}
