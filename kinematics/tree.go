// Package kinematics computes forward kinematics and inverse dynamics of trees of revolute links
// with the recursive Newton-Euler method.
package kinematics

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/spatialmath"
)

// axisTolerance bounds how far a joint axis may drift from unit length before validation fails.
const axisTolerance = 1e-9

// Tree is an arena of links indexed by id, rooted at link 0. All storage is sized when the tree is created so
// that the propagation passes never allocate.
//
// A Tree is not safe for concurrent use; it is the working storage of whichever goroutine runs the passes.
type Tree struct {
	logger logging.Logger

	links   []Link
	order   []int
	stack   []int
	torques []float64

	// gravity as last given to SetGravity
	gravity    r3.Vector
	hasGravity bool

	validated bool
	fresh     bool
}

// NewTree creates a tree able to hold capacity links, including root. The root keeps its static fields; its
// orientation is the identity and it sits at the origin with no motion until seeded otherwise.
func NewTree(capacity int, root Link, logger logging.Logger) (*Tree, error) {
	if capacity < 1 {
		return nil, errors.Errorf("tree capacity must be at least 1, got %d", capacity)
	}
	if logger == nil {
		logger = logging.Global()
	}
	if root.Axis == (r3.Vector{}) {
		root.Axis = r3.Vector{Z: 1}
	}
	if err := prepareStatic(&root); err != nil {
		return nil, errors.Wrap(err, "invalid root link")
	}
	t := &Tree{
		logger:  logger,
		links:   make([]Link, 0, capacity),
		order:   make([]int, 0, capacity),
		stack:   make([]int, 0, capacity),
		torques: make([]float64, capacity),
	}
	root.id, root.parent, root.children = 0, 0, nil
	root.resetState()
	t.links = append(t.links, root)
	return t, nil
}

// AddLink attaches a copy of link to parent and returns the new link's id. The joint axis is normalized.
// Computed fields of the given link are ignored.
func (t *Tree) AddLink(parent int, link Link) (int, error) {
	if len(t.links) == cap(t.links) {
		return -1, errors.Wrapf(ErrCapacityExceeded, "cannot add %s beyond %d links", linkLabel(&link), cap(t.links))
	}
	if parent < 0 || parent >= len(t.links) {
		return -1, NewParentNotFoundError(parent)
	}
	if err := prepareStatic(&link); err != nil {
		return -1, errors.Wrapf(err, "invalid %s", linkLabel(&link))
	}
	id := len(t.links)
	link.id, link.parent, link.children = id, parent, nil
	link.resetState()
	t.links = append(t.links, link)
	t.links[parent].children = append(t.links[parent].children, id)
	t.invalidate()
	t.logger.Debugw("added link", "id", id, "name", link.Name, "parent", parent)
	return id, nil
}

func linkLabel(l *Link) string {
	if l.Name != "" {
		return "link " + l.Name
	}
	return "link"
}

func prepareStatic(l *Link) error {
	if l.Axis.Norm() == 0 {
		return spatialmath.ErrZeroAxis
	}
	l.Axis = l.Axis.Normalize()
	return checkStatic(l)
}

func checkStatic(l *Link) error {
	var err error
	if math.IsNaN(l.Mass) || math.IsInf(l.Mass, 0) || l.Mass < 0 {
		err = multierr.Append(err, errors.Errorf("mass must be finite and non-negative, got %g", l.Mass))
	}
	if math.Abs(l.Axis.Norm()-1) > axisTolerance {
		err = multierr.Append(err, errors.Errorf("joint axis %v is not unit length", l.Axis))
	}
	if l.Limit.Min > l.Limit.Max {
		err = multierr.Append(err, errors.Errorf("joint limit min %g exceeds max %g", l.Limit.Min, l.Limit.Max))
	}
	return multierr.Append(err, l.Inertia.Validate())
}

// ReorderChildren replaces the sibling order of link id. order must be a permutation of its current children.
func (t *Tree) ReorderChildren(id int, order []int) error {
	l, err := t.Link(id)
	if err != nil {
		return err
	}
	if len(order) != len(l.children) {
		return errors.Errorf("%s has %d children, got %d ids", l, len(l.children), len(order))
	}
	seen := make(map[int]bool, len(order))
	for _, c := range order {
		if c < 0 || c >= len(t.links) || t.links[c].parent != id || c == id {
			return errors.Errorf("link %d is not a child of %s", c, l)
		}
		if seen[c] {
			return errors.Errorf("child %d repeated in new order for %s", c, l)
		}
		seen[c] = true
	}
	copy(l.children, order)
	t.invalidate()
	return nil
}

func (t *Tree) invalidate() {
	t.validated = false
	t.fresh = false
}

// Len returns the number of links, including the root.
func (t *Tree) Len() int {
	return len(t.links)
}

// Cap returns the maximum number of links the tree can hold.
func (t *Tree) Cap() int {
	return cap(t.links)
}

// Root returns the root link.
func (t *Tree) Root() *Link {
	return &t.links[0]
}

// Link returns the link with the given id. The pointer stays valid for the lifetime of the tree.
//
// The link is the tree's own storage: set joint state with SetJointState or SetJointStates, which mark the
// kinematics stale, and do not change static fields after AddLink. PropagateDynamics reports ErrStaleKinematics
// if a joint state or axis was written through the pointer after the last forward pass.
func (t *Tree) Link(id int) (*Link, error) {
	if id < 0 || id >= len(t.links) {
		return nil, NewLinkNotFoundError(id)
	}
	return &t.links[id], nil
}

// LinkByName returns the first link with the given name.
func (t *Tree) LinkByName(name string) (*Link, error) {
	for i := range t.links {
		if t.links[i].Name == name {
			return &t.links[i], nil
		}
	}
	return nil, errors.Errorf("link %q not found", name)
}

// Order returns the parent-before-child order the passes visit links in.
func (t *Tree) Order() ([]int, error) {
	if err := t.ensureValid(); err != nil {
		return nil, err
	}
	out := make([]int, len(t.order))
	copy(out, t.order)
	return out, nil
}

// SetJointState sets the joint angle, rate and acceleration of link id.
func (t *Tree) SetJointState(id int, q, dq, ddq float64) error {
	l, err := t.Link(id)
	if err != nil {
		return err
	}
	if l.IsRoot() {
		return errors.New("the root link has no joint")
	}
	l.Q, l.DQ, l.DDQ = q, dq, ddq
	t.fresh = false
	return nil
}

// SetJointStates sets the joint state of every non-root link, in id order. dq and ddq may be nil to mean zero.
func (t *Tree) SetJointStates(q, dq, ddq []float64) error {
	n := len(t.links) - 1
	for _, vals := range [][]float64{q, dq, ddq} {
		if vals != nil && len(vals) != n {
			return NewIncorrectJointStateLengthError(len(vals), n)
		}
	}
	at := func(vals []float64, i int) float64 {
		if vals == nil {
			return 0
		}
		return vals[i]
	}
	for i := 0; i < n; i++ {
		l := &t.links[i+1]
		l.Q, l.DQ, l.DDQ = at(q, i), at(dq, i), at(ddq, i)
	}
	t.fresh = false
	return nil
}

// SetGravity models gravity g (e.g. {0, 0, -9.81}) as an acceleration of the root in the opposite direction.
func (t *Tree) SetGravity(g r3.Vector) {
	t.links[0].Accel = g.Mul(-1)
	t.gravity, t.hasGravity = g, true
	t.fresh = false
}

// SetBaseMotion seeds the root with a moving base. Omega, alpha and accel are expressed in the root frame.
func (t *Tree) SetBaseMotion(orientation quat.Number, position, omega, alpha, accel r3.Vector) {
	root := &t.links[0]
	root.Orientation = spatialmath.QuatNormalize(orientation)
	root.Position = position
	root.Omega = omega
	root.Alpha = alpha
	root.Accel = accel
	t.fresh = false
}

// InLimits returns an error naming every joint whose angle is outside its limit.
func (t *Tree) InLimits() error {
	var err error
	for i := 1; i < len(t.links); i++ {
		l := &t.links[i]
		if !l.InLimits() {
			err = multierr.Append(err, errors.Errorf("%s angle %.5f input out of bounds %v", l, l.Q, l.Limit))
		}
	}
	return err
}

func (t *Tree) ensureValid() error {
	if t.validated {
		return nil
	}
	return t.Validate()
}

// Validate checks that the links form a tree rooted at link 0 whose children lists agree with the parent of
// every link, and that every link's static parameters are sound. It is run automatically before the first pass
// following a structural change.
func (t *Tree) Validate() error {
	if err := t.validateStructure(); err != nil {
		t.validated = false
		return err
	}
	t.computeOrder()
	t.validated = true
	t.logger.Debugw("validated kinematic tree", "links", len(t.links), "order", t.order)
	return nil
}

func (t *Tree) validateStructure() error {
	var err error
	n := len(t.links)
	if t.links[0].parent != 0 {
		err = multierr.Append(err, errors.Errorf("root parent must be itself, got %d", t.links[0].parent))
	}

	g := simple.NewDirectedGraph()
	for i := range t.links {
		g.AddNode(simple.Node(i))
	}
	childCount := 0
	for i := range t.links {
		l := &t.links[i]
		if l.id != i {
			err = multierr.Append(err, errors.Errorf("link at index %d has id %d", i, l.id))
		}
		if serr := checkStatic(l); serr != nil {
			err = multierr.Append(err, errors.Wrapf(serr, "%s", l))
		}
		if i != 0 {
			switch {
			case l.parent < 0 || l.parent >= n:
				err = multierr.Append(err, errors.Wrapf(NewParentNotFoundError(l.parent), "%s", l))
			case l.parent == i:
				err = multierr.Append(err, errors.Wrapf(ErrCircularReference, "%s is its own parent", l))
			default:
				g.SetEdge(g.NewEdge(simple.Node(l.parent), simple.Node(i)))
			}
		}
		seen := map[int]bool{}
		for _, c := range l.children {
			childCount++
			switch {
			case c <= 0 || c >= n:
				err = multierr.Append(err, errors.Errorf("%s lists unknown child %d", l, c))
			case t.links[c].parent != i:
				err = multierr.Append(err, errors.Errorf("%s lists child %d whose parent is %d", l, c, t.links[c].parent))
			case seen[c]:
				err = multierr.Append(err, errors.Errorf("%s lists child %d twice", l, c))
			}
			seen[c] = true
		}
	}
	if childCount != n-1 {
		err = multierr.Append(err, errors.Errorf("children lists name %d links, expected %d", childCount, n-1))
	}
	if err != nil {
		return err
	}

	if _, serr := topo.Sort(g); serr != nil {
		var cycles topo.Unorderable
		if errors.As(serr, &cycles) {
			return errors.Wrapf(ErrCircularReference, "%d cyclic component(s)", len(cycles))
		}
		return serr
	}
	reached := 0
	var dfs traverse.DepthFirst
	dfs.Visit = func(graph.Node) { reached++ }
	dfs.Walk(g, simple.Node(0), nil)
	if reached != n {
		return errors.Errorf("%d of %d links are not reachable from the root", n-reached, n)
	}
	return nil
}

// computeOrder fills t.order with a depth first pre-order from the root using the preallocated work stack.
// Children are visited in the order they are listed.
func (t *Tree) computeOrder() {
	t.order = t.order[:0]
	t.stack = append(t.stack[:0], 0)
	for len(t.stack) > 0 {
		id := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.order = append(t.order, id)
		children := t.links[id].children
		for i := len(children) - 1; i >= 0; i-- {
			t.stack = append(t.stack, children[i])
		}
	}
}
