package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// result in radians
func QuatToEuler(q mgl64.Quat) (e mgl64.Vec3) {
	sinr_cosp := 2 * (q.W*q.X() + q.Y()*q.Z())
	cosr_cosp := 1 - 2*(q.X()*q.X()+q.Y()*q.Y())

	e[0] = math.Atan2(sinr_cosp, cosr_cosp)

	sinp := 2 * (q.W*q.Y() - q.Z()*q.X())
	if math.Abs(sinp) >= 1 {
		e[1] = math.Copysign(math.Pi/2, sinp)
	} else {
		e[1] = math.Asin(sinp)
	}

	siny_cosp := 2 * (q.W*q.Z() + q.X()*q.Y())
	cosy_cosp := 1 - 2*(q.Y()*q.Y()+q.Z()*q.Z())
	e[2] = math.Atan2(siny_cosp, cosy_cosp)

	return e
}

func RadiansToDegreeV3(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// Decompose splits an affine transform into translation, normalized rotation and scale.
// A mirrored basis is reported as a negative x scale.
func Decompose(m mgl64.Mat4) (translation mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) {
	translation = m.Col(3).Vec3()

	var axes [3]mgl64.Vec3
	for i := 0; i < 3; i++ {
		axes[i] = m.Col(i).Vec3()
		scale[i] = axes[i].Len()
	}

	if axes[0].Dot(axes[1].Cross(axes[2])) < 0 {
		scale[0] = -scale[0]
	}

	rot := mgl64.Ident4()
	for i := 0; i < 3; i++ {
		if scale[i] == 0 {
			continue
		}
		col := axes[i].Mul(1 / scale[i])
		rot.SetCol(i, col.Vec4(0))
	}

	rotation = mgl64.Mat4ToQuat(rot).Normalize()
	return translation, rotation, scale
}

// CompatibleQuaternion returns a, or -a when a lies more than a half turn away from b.
func CompatibleQuaternion(a, b mgl64.Quat) mgl64.Quat {
	if a.Normalize().Dot(b.Normalize()) < 0 {
		return a.Scale(-1)
	}
	return a
}

// QuatDistanceSquared is the squared 4D chord between two quaternions.
func QuatDistanceSquared(a, b mgl64.Quat) float64 {
	d := a.Sub(b)
	return d.W*d.W + d.V.Dot(d.V)
}

// AffineColumns returns the 12 affine components in column order.
func AffineColumns(m mgl64.Mat4) [12]float64 {
	return [12]float64{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
		m[12], m[13], m[14],
	}
}
