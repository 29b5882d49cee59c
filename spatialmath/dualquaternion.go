// Package spatialmath defines the rotation and vector algebra consumed by the kinematics package.
package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// DualQuaternion represents a rigid transformation (rotation then translation) in 3D.
type DualQuaternion struct {
	Quat dualquat.Number
}

// NewDualQuaternion returns a pointer to a new DualQuaternion object whose Quaternion is an identity Quaternion.
// Since the real part of a qual quaternion should be a unit quaternion, not all zeroes, this should be used
// instead of &DualQuaternion{}.
func NewDualQuaternion() *DualQuaternion {
	return &DualQuaternion{dualquat.Number{
		Real: quat.Number{Real: 1},
		Dual: quat.Number{},
	}}
}

// NewDualQuaternionFromPose returns the transform which rotates by the unit quaternion rot and then translates by pt.
func NewDualQuaternionFromPose(rot quat.Number, pt r3.Vector) *DualQuaternion {
	q := &DualQuaternion{dualquat.Number{Real: rot}}
	q.SetTranslation(pt)
	return q
}

// NewDualQuaternionFromDH returns a pointer to a new DualQuaternion object created from a DH parameter.
func NewDualQuaternionFromDH(a, d, alpha float64) *DualQuaternion {
	return DHTransform(a, alpha, d, 0)
}

// DHTransform returns the modified (Craig) Denavit-Hartenberg transform Tx(a) * Rx(alpha) * Tz(d) * Rz(theta).
func DHTransform(a, alpha, d, theta float64) *DualQuaternion {
	return NewDualQuaternionFromMat4(DHMat4(a, alpha, d, theta))
}

// DHMat4 returns the homogeneous matrix of DHTransform.
func DHMat4(a, alpha, d, theta float64) mgl64.Mat4 {
	return mgl64.Translate3D(a, 0, 0).
		Mul4(mgl64.HomogRotate3DX(alpha)).
		Mul4(mgl64.Translate3D(0, 0, d)).
		Mul4(mgl64.HomogRotate3DZ(theta))
}

// NewDualQuaternionFromMat4 converts a homogeneous rigid transformation matrix.
func NewDualQuaternionFromMat4(m mgl64.Mat4) *DualQuaternion {
	qRot := mgl64.Mat4ToQuat(m).Normalize()
	t := m.Col(3)
	return NewDualQuaternionFromPose(
		quat.Number{Real: qRot.W, Imag: qRot.X(), Jmag: qRot.Y(), Kmag: qRot.Z()},
		r3.Vector{X: t.X(), Y: t.Y(), Z: t.Z()},
	)
}

// Clone returns a DualQuaternion object identical to this one.
func (q *DualQuaternion) Clone() *DualQuaternion {
	// No need for deep copies here, dualquats are primitives all the way down
	return &DualQuaternion{q.Quat}
}

// Rotation returns the rotation quaternion.
func (q *DualQuaternion) Rotation() quat.Number {
	return q.Quat.Real
}

// SetTranslation sets the translation applied after the rotation.
func (q *DualQuaternion) SetTranslation(pt r3.Vector) {
	q.Quat.Dual = quat.Scale(0.5, quat.Mul(quat.Number{Imag: pt.X, Jmag: pt.Y, Kmag: pt.Z}, q.Quat.Real))
}

// Point returns the translation of the transform.
func (q *DualQuaternion) Point() r3.Vector {
	t := quat.Scale(2, quat.Mul(q.Quat.Dual, quat.Conj(q.Quat.Real)))
	return r3.Vector{X: t.Imag, Y: t.Jmag, Z: t.Kmag}
}

// Transformation multiplies the dual quat contained in this DualQuaternion by another dual quat, i.e. applies by
// in the frame of q.
func (q *DualQuaternion) Transformation(by dualquat.Number) dualquat.Number {
	return dualquat.Mul(q.Quat, by)
}

// Compose returns q followed by other, expressed as a new transform.
func (q *DualQuaternion) Compose(other *DualQuaternion) *DualQuaternion {
	return &DualQuaternion{q.Transformation(other.Quat)}
}

// TransformPoint applies the transform to pt.
func (q *DualQuaternion) TransformPoint(pt r3.Vector) r3.Vector {
	return QuatRotate(q.Quat.Real, pt).Add(q.Point())
}
