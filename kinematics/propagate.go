package kinematics

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rkd/spatialmath"
)

// PropagateKinematics recomputes the orientation, position, angular velocity and acceleration, joint origin
// acceleration and center of mass acceleration of every link from the current joint states, visiting parents
// before children. The root's seeded motion is kept; only its center of mass acceleration is recomputed.
//
// The tree is validated first if its structure changed; on a validation error nothing is modified.
func (t *Tree) PropagateKinematics() error {
	if err := t.ensureValid(); err != nil {
		return err
	}
	root := &t.links[0]
	root.COMAccel = comAccel(root)

	for _, id := range t.order[1:] {
		l := &t.links[id]
		p := &t.links[l.parent]
		pr := l.JointRotation()

		l.Orientation = spatialmath.QuatNormalize(quat.Mul(p.Orientation, pr))
		l.Position = p.Position.Add(spatialmath.QuatRotate(p.Orientation, l.Offset))

		// parent angular velocity seen from this link's frame
		parentOmega := spatialmath.QuatInverseRotate(pr, p.Omega)
		jointRate := l.Axis.Mul(l.DQ)
		l.Omega = parentOmega.Add(jointRate)
		l.Alpha = spatialmath.QuatInverseRotate(pr, p.Alpha).
			Add(l.Axis.Mul(l.DDQ)).
			Add(parentOmega.Cross(jointRate))

		originAccel := p.Accel.
			Add(p.Alpha.Cross(l.Offset)).
			Add(p.Omega.Cross(p.Omega.Cross(l.Offset)))
		l.Accel = spatialmath.QuatInverseRotate(pr, originAccel)
		l.COMAccel = comAccel(l)
		l.propagatedState = [3]float64{l.Q, l.DQ, l.DDQ}
		l.propagatedAxis = l.Axis
	}
	t.fresh = true
	return nil
}

func comAccel(l *Link) r3.Vector {
	return l.Accel.Add(l.Alpha.Cross(l.COM)).Add(l.Omega.Cross(l.Omega.Cross(l.COM)))
}

// PropagateDynamics runs the backward Newton-Euler pass over the state left by PropagateKinematics and returns
// the torque about the joint axis of links 1 through Len()-1, in id order: element k is the torque of link k+1,
// and a root-only tree yields an empty slice. Use Torque(id) to look a torque up by link id. The returned slice
// is owned by the tree and overwritten by the next call.
//
// ErrStaleKinematics is returned if the joint state or structure changed since the last forward pass.
func (t *Tree) PropagateDynamics() ([]float64, error) {
	if err := t.ensureValid(); err != nil {
		return nil, err
	}
	if !t.fresh {
		return nil, ErrStaleKinematics
	}
	// catches joint state written through a *Link rather than SetJointState
	for i := 1; i < len(t.links); i++ {
		l := &t.links[i]
		if l.propagatedState != [3]float64{l.Q, l.DQ, l.DDQ} || l.propagatedAxis != l.Axis {
			return nil, errors.Wrapf(ErrStaleKinematics, "%s changed since the last forward pass", l)
		}
	}

	// reverse pre-order finalizes every child before its parent
	for i := len(t.order) - 1; i >= 0; i-- {
		l := &t.links[t.order[i]]
		inertialForce := l.COMAccel.Mul(l.Mass)
		inertialMoment := l.Inertia.MulVec(l.Alpha).Add(l.Omega.Cross(l.Inertia.MulVec(l.Omega)))

		force := inertialForce
		moment := inertialMoment.Add(l.COM.Cross(inertialForce))
		for _, c := range l.children {
			child := &t.links[c]
			pr := child.JointRotation()
			childForce := spatialmath.QuatRotate(pr, child.Force)
			force = force.Add(childForce)
			moment = moment.
				Add(spatialmath.QuatRotate(pr, child.Moment)).
				Add(child.Offset.Cross(childForce))
		}
		l.Force = force
		l.Moment = moment
		t.torques[l.id] = moment.Dot(l.Axis)
	}
	t.torques[0] = 0
	return t.torques[1:len(t.links)], nil
}

// Torque returns the joint torque of link id computed by the last PropagateDynamics. The root has no joint and
// always reports zero.
func (t *Tree) Torque(id int) (float64, error) {
	if id < 0 || id >= len(t.links) {
		return 0, NewLinkNotFoundError(id)
	}
	return t.torques[id], nil
}
