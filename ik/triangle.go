// Package ik solves inverse kinematics for simple arm geometries in closed form.
package ik

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rkd/spatialmath"
	"go.viam.com/rkd/utils"
)

// ErrUnreachable is returned when no arm configuration places the wrist at the target.
var ErrUnreachable = errors.New("target is out of reach")

// TriangleSolver solves a four degree of freedom arm made of two segments joined by an elbow: a
// ball shoulder at the origin followed by an upper segment and a lower segment.
//
// The shoulder, elbow and wrist form a triangle with sides Upper, Lower and the distance to the target. That
// triangle may spin about the shoulder-to-target line; RefTheta picks the spin, with zero placing the elbow in
// the vertical plane through the target, on the side of the z axis.
type TriangleSolver struct {
	Upper    float64
	Lower    float64
	RefTheta float64
}

// Solve returns the joint angles that place the wrist at target:
//
//	[0] azimuth of the elbow, measured in the x-y plane from x
//	[1] polar angle of the elbow, measured from z
//	[2] the spin of the arm triangle about the target direction, RefTheta
//	[3] interior angle at the elbow between the two segments
func (s *TriangleSolver) Solve(target r3.Vector) ([4]float64, error) {
	var ans [4]float64
	if s.Upper <= 0 || s.Lower <= 0 {
		return ans, errors.Errorf("segment lengths must be positive, got upper %g and lower %g", s.Upper, s.Lower)
	}
	a, b := s.Upper, s.Lower
	c := target.Norm()
	if c == 0 || c > a+b || c < math.Abs(a-b) {
		return ans, errors.Wrapf(ErrUnreachable, "distance %g is outside [%g, %g]", c, math.Abs(a-b), a+b)
	}

	elbowAngle := lawOfCosines(a, b, c)
	shoulderAngle := lawOfCosines(a, c, b)
	polar := math.Acos(utils.Clamp(target.Z/c, -1, 1))

	// horizontal direction of the target, x when the target is straight up or down
	horizontal := r3.Vector{X: 1}
	if h := math.Hypot(target.X, target.Y); h > 0 {
		horizontal = r3.Vector{X: target.X / h, Y: target.Y / h}
	}
	sin, cos := math.Sincos(polar - shoulderAngle)
	elbow := horizontal.Mul(a * sin).Add(r3.Vector{Z: a * cos})
	elbow = spatialmath.QuatRotate(spatialmath.AxisAngleToQuat(target.Mul(1/c), s.RefTheta), elbow)

	ans[0] = math.Atan2(elbow.Y, elbow.X)
	ans[1] = math.Acos(utils.Clamp(elbow.Z/a, -1, 1))
	ans[2] = s.RefTheta
	ans[3] = elbowAngle
	return ans, nil
}

// Elbow returns the elbow position described by a solution of Solve.
func (s *TriangleSolver) Elbow(ans [4]float64) r3.Vector {
	sinP, cosP := math.Sincos(ans[1])
	sinA, cosA := math.Sincos(ans[0])
	return r3.Vector{X: s.Upper * sinP * cosA, Y: s.Upper * sinP * sinA, Z: s.Upper * cosP}
}

// lawOfCosines returns the angle between sides x and y of a triangle whose third side is opposite.
func lawOfCosines(x, y, opposite float64) float64 {
	return math.Acos(utils.Clamp((x*x+y*y-opposite*opposite)/(2*x*y), -1, 1))
}
