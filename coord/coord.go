// Package coord converts transforms from the Z-up right-handed source
// convention into the Y-up left-handed XSG convention.
package coord

import "github.com/go-gl/mathgl/mgl64"

// flipAxis swaps Y and Z. It is its own inverse.
var flipAxis = mgl64.Mat4{
	1, 0, 0, 0,
	0, 0, 1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

var flipAxisInverse = flipAxis.Inv()

// Convert maps a source transform into the target convention.
func Convert(t mgl64.Mat4) mgl64.Mat4 {
	return flipAxisInverse.Mul4(t).Mul4(flipAxis)
}

// ConvertInverse maps a target transform back into the source convention.
func ConvertInverse(t mgl64.Mat4) mgl64.Mat4 {
	return flipAxis.Mul4(t).Mul4(flipAxisInverse)
}

// AdjustProjector remaps the local looking axis of cameras and lights.
// Target projectors look along local +Z while source ones look along -Y
// after conversion.
func AdjustProjector(t mgl64.Mat4) mgl64.Mat4 {
	out := mgl64.Ident4()
	out.SetCol(0, t.Col(0).Vec3().Vec4(0))
	out.SetCol(1, t.Col(2).Vec3().Vec4(0))
	out.SetCol(2, t.Col(1).Vec3().Mul(-1).Vec4(0))
	out.SetCol(3, t.Col(3).Vec3().Vec4(1))
	return out
}

// Vector swaps the Y and Z components of a position or direction.
func Vector(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], v[2], v[1]}
}

// ClearTranslation zeroes the translation of t.
func ClearTranslation(t mgl64.Mat4) mgl64.Mat4 {
	t[12], t[13], t[14] = 0, 0, 0
	return t
}
