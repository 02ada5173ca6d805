package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/xsg_export/utils"
)

type VecKey struct {
	Frame float64
	Value mgl64.Vec3
}

type QuatKey struct {
	Frame float64
	Value mgl64.Quat
}

// Channel holds keyed local TRS for one target. Components without keys
// keep the rest value.
type Channel struct {
	Translation []VecKey
	Rotation    []QuatKey
	Scale       []VecKey
}

// Action is a named set of channels. The empty target addresses the owning
// object, any other target names a bone.
type Action struct {
	Name     string
	Channels map[string]*Channel
}

func NewAction(name string) *Action {
	return &Action{Name: name, Channels: make(map[string]*Channel)}
}

func (a *Action) Channel(target string) *Channel {
	if a == nil {
		return nil
	}
	return a.Channels[target]
}

// Ensure returns the channel for target, creating it when missing.
func (a *Action) Ensure(target string) *Channel {
	ch, ok := a.Channels[target]
	if !ok {
		ch = &Channel{}
		a.Channels[target] = ch
	}
	return ch
}

// Sort orders keys by frame. Loaders call it once after filling keys.
func (ch *Channel) Sort() {
	sort.SliceStable(ch.Translation, func(i, j int) bool { return ch.Translation[i].Frame < ch.Translation[j].Frame })
	sort.SliceStable(ch.Rotation, func(i, j int) bool { return ch.Rotation[i].Frame < ch.Rotation[j].Frame })
	sort.SliceStable(ch.Scale, func(i, j int) bool { return ch.Scale[i].Frame < ch.Scale[j].Frame })
}

// Evaluate composes T·R·S at frame. rest supplies unkeyed components.
func (ch *Channel) Evaluate(frame float64, rest mgl64.Mat4) mgl64.Mat4 {
	t, r, s := utils.Decompose(rest)
	if len(ch.Translation) != 0 {
		t = sampleVec(ch.Translation, frame)
	}
	if len(ch.Rotation) != 0 {
		r = sampleQuat(ch.Rotation, frame)
	}
	if len(ch.Scale) != 0 {
		s = sampleVec(ch.Scale, frame)
	}
	return ComposeTRS(t, r, s)
}

func ComposeTRS(t mgl64.Vec3, r mgl64.Quat, s mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(r.Normalize().Mat4()).Mul4(mgl64.Scale3D(s[0], s[1], s[2]))
}

// keyInterval finds the keys around frame. Frames outside the keyed range clamp.
func keyInterval(count int, frameAt func(int) float64, frame float64) (int, int, float64) {
	if frame <= frameAt(0) {
		return 0, 0, 0
	}
	last := count - 1
	if frame >= frameAt(last) {
		return last, last, 0
	}
	i := sort.Search(count, func(i int) bool { return frameAt(i) > frame }) - 1
	f0, f1 := frameAt(i), frameAt(i+1)
	return i, i + 1, (frame - f0) / (f1 - f0)
}

func sampleVec(keys []VecKey, frame float64) mgl64.Vec3 {
	a, b, alpha := keyInterval(len(keys), func(i int) float64 { return keys[i].Frame }, frame)
	if a == b {
		return keys[a].Value
	}
	return keys[a].Value.Mul(1 - alpha).Add(keys[b].Value.Mul(alpha))
}

func sampleQuat(keys []QuatKey, frame float64) mgl64.Quat {
	a, b, alpha := keyInterval(len(keys), func(i int) float64 { return keys[i].Frame }, frame)
	if a == b {
		return keys[a].Value.Normalize()
	}
	q0 := keys[a].Value.Normalize()
	q1 := utils.CompatibleQuaternion(keys[b].Value.Normalize(), q0)
	return mgl64.QuatSlerp(q0, q1, alpha).Normalize()
}
