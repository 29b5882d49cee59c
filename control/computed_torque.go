package control

import (
	"sync"

	"go.viam.com/rkd/kinematics"
)

// ComputedTorque tracks joint position targets on a kinematic tree. A controller per joint turns the position
// error into a commanded joint acceleration, and the inverse dynamics of the tree turn those accelerations into
// joint torques, compensating for gravity and the coupling between links.
type ComputedTorque struct {
	mu          sync.Mutex
	tree        *kinematics.Tree
	controllers []Controller
	ddq         []float64
}

// NewComputedTorque returns a computed torque controller with one controller per joint, in link id order. The
// tree is used as working storage by every call to Torques.
func NewComputedTorque(tree *kinematics.Tree, controllers []Controller) (*ComputedTorque, error) {
	if n := tree.Len() - 1; len(controllers) != n {
		return nil, kinematics.NewIncorrectJointStateLengthError(len(controllers), n)
	}
	return &ComputedTorque{
		tree:        tree,
		controllers: controllers,
		ddq:         make([]float64, len(controllers)),
	}, nil
}

// Torques returns the joint torques that drive the measured joint state q, dq towards target. The returned slice
// is owned by the tree and overwritten by the next call.
func (c *ComputedTorque) Torques(target, q, dq []float64) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, vals := range [][]float64{target, q} {
		if len(vals) != len(c.ddq) {
			return nil, kinematics.NewIncorrectJointStateLengthError(len(vals), len(c.ddq))
		}
	}
	for i, ctrl := range c.controllers {
		c.ddq[i] = ctrl.Update(target[i], q[i])
	}
	if err := c.tree.SetJointStates(q, dq, c.ddq); err != nil {
		return nil, err
	}
	if err := c.tree.PropagateKinematics(); err != nil {
		return nil, err
	}
	return c.tree.PropagateDynamics()
}

// Reset resets every joint controller.
func (c *ComputedTorque) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctrl := range c.controllers {
		ctrl.Reset()
	}
}
