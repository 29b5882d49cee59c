package kinematics

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rkd/spatialmath"
)

// Limit represents the limits of motion of a revolute joint, in radians. The zero value means unlimited.
type Limit struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// IsZero reports whether the limit is unset.
func (lim Limit) IsZero() bool {
	return lim.Min == 0 && lim.Max == 0
}

// Contains reports whether q is inside the limit. An unset limit contains everything.
func (lim Limit) Contains(q float64) bool {
	return lim.IsZero() || (q >= lim.Min && q <= lim.Max)
}

// Link is one rigid body of a kinematic tree. Its origin is the joint connecting it to its parent.
//
// Static fields describe the body and its joint; Q, DQ and DDQ are the joint state consumed by a
// forward pass; the remaining exported fields are outputs, overwritten by every pass.
type Link struct {
	Name string

	Mass float64
	// COM is the center of mass in the link's own frame.
	COM r3.Vector
	// Inertia is taken about the center of mass, with axes parallel to the link's own frame.
	Inertia spatialmath.Inertia
	// Axis is the unit joint axis in the link's own frame.
	Axis r3.Vector
	// Offset is the joint origin relative to the parent's origin, in the parent's frame.
	Offset r3.Vector
	Limit  Limit

	Q   float64
	DQ  float64
	DDQ float64

	// Orientation maps the link frame to the world frame. Position is in the world frame.
	Orientation quat.Number
	Position    r3.Vector
	// Omega, Alpha, Accel (of the joint origin) and COMAccel are expressed in the link's own frame.
	Omega    r3.Vector
	Alpha    r3.Vector
	Accel    r3.Vector
	COMAccel r3.Vector

	// Force and Moment are transmitted through the joint into this link, in its own frame.
	Force  r3.Vector
	Moment r3.Vector

	id       int
	parent   int
	children []int

	// joint state and axis consumed by the last forward pass
	propagatedState [3]float64
	propagatedAxis  r3.Vector
}

// ID returns the index of the link in its tree.
func (l *Link) ID() int {
	return l.id
}

// Parent returns the id of the parent link. The root is its own parent.
func (l *Link) Parent() int {
	return l.parent
}

// Children returns the ids of the child links in traversal order.
func (l *Link) Children() []int {
	out := make([]int, len(l.children))
	copy(out, l.children)
	return out
}

// IsRoot reports whether the link is the root of its tree.
func (l *Link) IsRoot() bool {
	return l.id == 0
}

// JointRotation returns the rotation from the parent frame to this link's frame for the current joint angle.
func (l *Link) JointRotation() quat.Number {
	return spatialmath.AxisAngleToQuat(l.Axis, l.Q)
}

// Pose returns the world pose of the link as of the last forward pass.
func (l *Link) Pose() *spatialmath.DualQuaternion {
	return spatialmath.NewDualQuaternionFromPose(l.Orientation, l.Position)
}

// InLimits reports whether the joint angle is within the joint limit.
func (l *Link) InLimits() bool {
	return l.Limit.Contains(l.Q)
}

func (l *Link) String() string {
	if l.Name != "" {
		return fmt.Sprintf("link %d (%s)", l.id, l.Name)
	}
	return fmt.Sprintf("link %d", l.id)
}

func (l *Link) resetState() {
	l.Orientation = spatialmath.NewZeroQuaternion()
	l.Position = r3.Vector{}
	l.Omega = r3.Vector{}
	l.Alpha = r3.Vector{}
	l.Accel = r3.Vector{}
	l.COMAccel = r3.Vector{}
	l.Force = r3.Vector{}
	l.Moment = r3.Vector{}
}
