package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestDecompose(t *testing.T) {
	rot := mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{0, 0, 1})
	m := mgl64.Translate3D(1, 2, 3).Mul4(rot.Mat4()).Mul4(mgl64.Scale3D(2, 3, 4))

	tr, q, s := Decompose(m)
	assert.True(t, tr.ApproxEqual(mgl64.Vec3{1, 2, 3}))
	assert.True(t, s.ApproxEqualThreshold(mgl64.Vec3{2, 3, 4}, 1e-9))
	assert.InDelta(t, 1, math.Abs(q.Dot(rot)), 1e-9)
}

func TestDecomposeMirrored(t *testing.T) {
	_, _, s := Decompose(mgl64.Scale3D(-1, 1, 1))
	assert.InDelta(t, -1, s[0], 1e-12)
	assert.InDelta(t, 1, s[1], 1e-12)
}

func TestCompatibleQuaternion(t *testing.T) {
	a := mgl64.QuatRotate(0.1, mgl64.Vec3{1, 0, 0})
	b := a.Scale(-1)

	fixed := CompatibleQuaternion(b, a)
	assert.GreaterOrEqual(t, fixed.Dot(a), 0.0)
	assert.Equal(t, a, CompatibleQuaternion(a, a))
}

func TestQuatDistanceSquared(t *testing.T) {
	a := mgl64.QuatIdent()
	assert.Equal(t, 0.0, QuatDistanceSquared(a, a))
	assert.InDelta(t, 4.0, QuatDistanceSquared(a, a.Scale(-1)), 1e-12)
}

func TestAffineColumns(t *testing.T) {
	cols := AffineColumns(mgl64.Translate3D(5, 6, 7))
	assert.Equal(t, [12]float64{1, 0, 0, 0, 1, 0, 0, 0, 1, 5, 6, 7}, cols)
}
