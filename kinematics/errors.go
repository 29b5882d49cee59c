package kinematics

import (
	"github.com/pkg/errors"
)

var (
	// ErrCapacityExceeded is returned when a link is added to a tree that already holds its maximum number of links.
	ErrCapacityExceeded = errors.New("kinematic tree is at capacity")

	// ErrCircularReference is returned when the parent relation of a tree or model loops back on itself.
	ErrCircularReference = errors.New("infinite loop finding path from link to root")

	// ErrNeedOneRoot is returned when a model does not have exactly one link without a parent.
	ErrNeedOneRoot = errors.New("need exactly one root link")

	// ErrStaleKinematics is returned when dynamics are requested before kinematics were propagated
	// for the current joint state.
	ErrStaleKinematics = errors.New("kinematics have not been propagated since the joint state last changed")

	// ErrNoModelInformation is used when there is no model information.
	ErrNoModelInformation = errors.New("no model information")
)

// NewLinkNotFoundError is used when a link id is not part of the tree.
func NewLinkNotFoundError(id int) error {
	return errors.Errorf("link %d not found", id)
}

// NewParentNotFoundError is used when a link names a parent id that has not been added yet.
func NewParentNotFoundError(parent int) error {
	return errors.Errorf("parent link %d not found", parent)
}

// NewParentNameNotFoundError is used when a model link names a parent that is not in the model.
func NewParentNameNotFoundError(link, parent string) error {
	return errors.Errorf("parent %q of link %q not found in model", parent, link)
}

// NewDuplicateLinkNameError is used when two links in a model share a name.
func NewDuplicateLinkNameError(name string) error {
	return errors.Errorf("link name %q is not unique", name)
}

// NewIncorrectJointStateLengthError is used when the number of joint values does not match the number of joints.
func NewIncorrectJointStateLengthError(got, want int) error {
	return errors.Errorf("number of joint values given (%d) does not match number of joints (%d)", got, want)
}
