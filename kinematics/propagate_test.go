package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/spatialmath"
)

const (
	gravity = 9.81

	armL1  = 1.0
	armM1  = 2.0
	armM2  = 1.5
	armLg1 = 0.5
	armLg2 = 0.4
	armI1  = 0.2
	armI2  = 0.1
)

var zAxis = r3.Vector{Z: 1}

// newPlanarArm builds a two link arm moving in the x-y plane with gravity along -y.
func newPlanarArm(t *testing.T) *Tree {
	t.Helper()
	tree, err := NewTree(3, Link{Name: "base", Axis: zAxis}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	upper, err := tree.AddLink(0, Link{
		Name:    "upper",
		Mass:    armM1,
		COM:     r3.Vector{X: armLg1},
		Inertia: spatialmath.NewDiagonalInertia(0, 0, armI1),
		Axis:    zAxis,
	})
	test.That(t, err, test.ShouldBeNil)
	_, err = tree.AddLink(upper, Link{
		Name:    "forearm",
		Mass:    armM2,
		COM:     r3.Vector{X: armLg2},
		Inertia: spatialmath.NewDiagonalInertia(0, 0, armI2),
		Axis:    zAxis,
		Offset:  r3.Vector{X: armL1},
	})
	test.That(t, err, test.ShouldBeNil)
	tree.SetGravity(r3.Vector{Y: -gravity})
	return tree
}

// planarArmTorques is the textbook two link manipulator model tau = M(q) ddq + C(q, dq) + G(q).
func planarArmTorques(q, dq, ddq []float64) []float64 {
	c1, c2 := math.Cos(q[0]), math.Cos(q[1])
	s2 := math.Sin(q[1])
	c12 := math.Cos(q[0] + q[1])

	m11 := armI1 + armI2 + armM1*armLg1*armLg1 + armM2*(armL1*armL1+armLg2*armLg2+2*armL1*armLg2*c2)
	m12 := armI2 + armM2*(armLg2*armLg2+armL1*armLg2*c2)
	m22 := armI2 + armM2*armLg2*armLg2
	massMatrix := mat.NewSymDense(2, []float64{m11, m12, m12, m22})

	h := armM2 * armL1 * armLg2 * s2
	bias := mat.NewVecDense(2, []float64{
		-h*(2*dq[0]*dq[1]+dq[1]*dq[1]) + armM1*gravity*armLg1*c1 + armM2*gravity*(armL1*c1+armLg2*c12),
		h*dq[0]*dq[0] + armM2*gravity*armLg2*c12,
	})

	var tau mat.VecDense
	tau.MulVec(massMatrix, mat.NewVecDense(2, ddq))
	tau.AddVec(&tau, bias)
	return []float64{tau.AtVec(0), tau.AtVec(1)}
}

func propagate(t *testing.T, tree *Tree) []float64 {
	t.Helper()
	test.That(t, tree.PropagateKinematics(), test.ShouldBeNil)
	torques, err := tree.PropagateDynamics()
	test.That(t, err, test.ShouldBeNil)
	return torques
}

func TestTwoLinkPlanarArm(t *testing.T) {
	for _, tc := range []struct {
		name     string
		q        []float64
		dq       []float64
		ddq      []float64
		expected []float64
	}{
		{
			name:     "bent",
			q:        []float64{0.2, 0.3},
			dq:       []float64{0.5, -0.7},
			ddq:      []float64{1.2, 0.4},
			expected: []float64{34.02778462861353, 6.441621262456371},
		},
		{
			name:     "straight",
			q:        []float64{0, 0},
			dq:       []float64{0.5, -0.7},
			ddq:      []float64{1.2, 0.4},
			expected: []float64{35.275, 7.15},
		},
		{
			name:     "at rest",
			q:        []float64{0, 0},
			dq:       []float64{0, 0},
			ddq:      []float64{0, 0},
			expected: []float64{30.411, 5.886},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tree := newPlanarArm(t)
			test.That(t, tree.SetJointStates(tc.q, tc.dq, tc.ddq), test.ShouldBeNil)
			torques := propagate(t, tree)
			test.That(t, torques, test.ShouldHaveLength, 2)

			reference := planarArmTorques(tc.q, tc.dq, tc.ddq)
			for i := range torques {
				test.That(t, torques[i], test.ShouldAlmostEqual, reference[i], 1e-6)
				test.That(t, torques[i], test.ShouldAlmostEqual, tc.expected[i], 1e-6)
			}

			upperTorque, err := tree.Torque(1)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, upperTorque, test.ShouldEqual, torques[0])
			rootTorque, err := tree.Torque(0)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, rootTorque, test.ShouldEqual, 0.)
		})
	}
}

func TestSingleLinkPendulum(t *testing.T) {
	const (
		length = 0.7
		lg     = 0.35
		mass   = 1.3
		izz    = 0.05
	)
	newPendulum := func(t *testing.T) *Tree {
		t.Helper()
		tree, err := NewTree(2, Link{Axis: zAxis}, nil)
		test.That(t, err, test.ShouldBeNil)
		_, err = tree.AddLink(0, Link{
			Mass:    mass,
			COM:     r3.Vector{X: lg},
			Inertia: spatialmath.NewDiagonalInertia(0, 0, izz),
			Axis:    zAxis,
			Offset:  r3.Vector{X: length},
		})
		test.That(t, err, test.ShouldBeNil)
		tree.SetGravity(r3.Vector{Y: -gravity})
		return tree
	}

	t.Run("position at zero", func(t *testing.T) {
		tree := newPendulum(t)
		propagate(t, tree)
		link, err := tree.Link(1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, spatialmath.R3VectorAlmostEqual(link.Position, r3.Vector{X: length}, 1e-12), test.ShouldBeTrue)
	})

	for _, q := range []float64{0, 0.4, -1.1, math.Pi / 2} {
		for _, state := range []struct{ dq, ddq float64 }{{0, 0}, {0.8, 0}, {-1.5, 2.5}} {
			tree := newPendulum(t)
			test.That(t, tree.SetJointState(1, q, state.dq, state.ddq), test.ShouldBeNil)
			torques := propagate(t, tree)
			link, err := tree.Link(1)
			test.That(t, err, test.ShouldBeNil)

			sin, cos := math.Sincos(q)
			expectedAccel := r3.Vector{
				X: sin*gravity - lg*state.dq*state.dq,
				Y: cos*gravity + lg*state.ddq,
			}
			test.That(t, spatialmath.R3VectorAlmostEqual(link.COMAccel, expectedAccel, 1e-9), test.ShouldBeTrue)
			test.That(t, torques[0], test.ShouldAlmostEqual, izz*state.ddq+mass*lg*(gravity*cos+lg*state.ddq), 1e-9)
		}
	}
}

func TestRootInvariance(t *testing.T) {
	tree := newPlanarArm(t)
	test.That(t, tree.SetJointStates([]float64{0.9, -2.1}, []float64{3, 1}, []float64{-4, 7}), test.ShouldBeNil)
	propagate(t, tree)

	root := tree.Root()
	test.That(t, spatialmath.QuaternionAlmostEqual(root.Orientation, spatialmath.NewZeroQuaternion(), 1e-15), test.ShouldBeTrue)
	test.That(t, root.Position.Norm(), test.ShouldEqual, 0.)
	test.That(t, root.Omega.Norm(), test.ShouldEqual, 0.)
	test.That(t, root.Alpha.Norm(), test.ShouldEqual, 0.)
	test.That(t, spatialmath.R3VectorAlmostEqual(root.Accel, r3.Vector{Y: gravity}, 1e-15), test.ShouldBeTrue)

	// a second cycle must not drift the root
	propagate(t, tree)
	test.That(t, root.Position.Norm(), test.ShouldEqual, 0.)
	test.That(t, spatialmath.R3VectorAlmostEqual(root.Accel, r3.Vector{Y: gravity}, 1e-15), test.ShouldBeTrue)
}

// newBranchingTree returns a tree whose root has two children, one of which has children of its own.
// Axes and offsets are deliberately not aligned so every cross term is exercised.
func newBranchingTree(t *testing.T) *Tree {
	t.Helper()
	tree, err := NewTree(6, Link{Name: "base"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	add := func(parent int, l Link) int {
		id, err := tree.AddLink(parent, l)
		test.That(t, err, test.ShouldBeNil)
		return id
	}
	shoulder := add(0, Link{
		Name: "shoulder", Mass: 1.2, COM: r3.Vector{X: 0.1, Z: 0.2},
		Inertia: spatialmath.NewInertia(0.02, 0.03, 0.01, 0.001, 0, 0.002),
		Axis:    r3.Vector{Z: 1}, Offset: r3.Vector{Z: 0.3},
	})
	add(0, Link{
		Name: "tail", Mass: 0.4, COM: r3.Vector{Y: -0.1},
		Inertia: spatialmath.NewDiagonalInertia(0.001, 0.002, 0.003),
		Axis:    r3.Vector{X: 1, Y: 1}, Offset: r3.Vector{X: -0.2},
	})
	elbow := add(shoulder, Link{
		Name: "elbow", Mass: 0.8, COM: r3.Vector{X: 0.25},
		Inertia: spatialmath.NewDiagonalInertia(0.004, 0.02, 0.02),
		Axis:    r3.Vector{Y: 1}, Offset: r3.Vector{X: 0.1, Z: 0.2},
	})
	add(shoulder, Link{
		Name: "camera", Mass: 0.3, COM: r3.Vector{Z: 0.05},
		Inertia: spatialmath.NewDiagonalInertia(0.001, 0.001, 0.001),
		Axis:    r3.Vector{X: 1}, Offset: r3.Vector{Y: 0.05, Z: 0.1},
	})
	add(elbow, Link{
		Name: "wrist", Mass: 0.5, COM: r3.Vector{X: 0.05, Y: 0.02},
		Inertia: spatialmath.NewInertia(0.002, 0.002, 0.001, 0, 0.0005, 0),
		Axis:    r3.Vector{X: 1, Z: 1}, Offset: r3.Vector{X: 0.5},
	})
	tree.SetGravity(r3.Vector{Z: -gravity})
	test.That(t, tree.SetJointStates(
		[]float64{0.3, -0.7, 1.1, 0.2, -0.4},
		[]float64{1.5, 0.5, -2.0, 0.8, 3.0},
		[]float64{-0.6, 2.2, 0.9, -1.7, 0.3},
	), test.ShouldBeNil)
	return tree
}

func linksAlmostEqual(t *testing.T, a, b *Link, tol float64) {
	t.Helper()
	test.That(t, spatialmath.QuaternionAlmostEqual(a.Orientation, b.Orientation, tol), test.ShouldBeTrue)
	for _, pair := range [][2]r3.Vector{
		{a.Position, b.Position},
		{a.Omega, b.Omega},
		{a.Alpha, b.Alpha},
		{a.Accel, b.Accel},
		{a.COMAccel, b.COMAccel},
		{a.Force, b.Force},
		{a.Moment, b.Moment},
	} {
		test.That(t, spatialmath.R3VectorAlmostEqual(pair[0], pair[1], tol), test.ShouldBeTrue)
	}
}

func TestOrderIndependence(t *testing.T) {
	reference := newBranchingTree(t)
	referenceTorques := append([]float64(nil), propagate(t, reference)...)

	permuted := newBranchingTree(t)
	test.That(t, permuted.ReorderChildren(0, []int{2, 1}), test.ShouldBeNil)
	test.That(t, permuted.ReorderChildren(1, []int{4, 3}), test.ShouldBeNil)
	order, err := permuted.Order()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, order, test.ShouldResemble, []int{0, 2, 1, 4, 3, 5})

	permutedTorques := propagate(t, permuted)
	test.That(t, permutedTorques, test.ShouldHaveLength, permuted.Len()-1)
	for i := range referenceTorques {
		test.That(t, permutedTorques[i], test.ShouldAlmostEqual, referenceTorques[i], 1e-12)
		// element i belongs to link i+1 whatever the traversal order
		byID, err := permuted.Torque(i + 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, byID, test.ShouldEqual, permutedTorques[i])
	}
	_, err = permuted.Torque(permuted.Len())
	test.That(t, err, test.ShouldNotBeNil)
	for id := 0; id < reference.Len(); id++ {
		a, err := reference.Link(id)
		test.That(t, err, test.ShouldBeNil)
		b, err := permuted.Link(id)
		test.That(t, err, test.ShouldBeNil)
		linksAlmostEqual(t, a, b, 1e-12)
	}
}

func TestZeroMotion(t *testing.T) {
	tree := newBranchingTree(t)
	tree.SetGravity(r3.Vector{})
	test.That(t, tree.SetJointStates(make([]float64, 5), nil, nil), test.ShouldBeNil)
	torques := propagate(t, tree)

	for id := 1; id < tree.Len(); id++ {
		link, err := tree.Link(id)
		test.That(t, err, test.ShouldBeNil)
		expected := r3.Vector{}
		for cur := link; !cur.IsRoot(); {
			parent, err := tree.Link(cur.Parent())
			test.That(t, err, test.ShouldBeNil)
			expected = expected.Add(cur.Offset)
			cur = parent
		}
		test.That(t, spatialmath.R3VectorAlmostEqual(link.Position, expected, 1e-12), test.ShouldBeTrue)
		test.That(t, spatialmath.QuaternionAlmostEqual(link.Orientation, spatialmath.NewZeroQuaternion(), 1e-12), test.ShouldBeTrue)
		test.That(t, link.Omega.Norm(), test.ShouldEqual, 0.)
		test.That(t, link.Alpha.Norm(), test.ShouldEqual, 0.)
		test.That(t, torques[id-1], test.ShouldAlmostEqual, 0.)
	}
}

func TestMasslessTransmission(t *testing.T) {
	var (
		shoulderOffset = r3.Vector{X: 0.1, Z: 0.4}
		spacerOffset   = r3.Vector{X: 0.6, Y: 0.1}
		shoulder       = Link{
			Name: "shoulder", Mass: 1.7, COM: r3.Vector{X: 0.3, Z: 0.1},
			Inertia: spatialmath.NewInertia(0.03, 0.05, 0.04, 0.002, 0.001, 0),
			Axis:    r3.Vector{Y: 1}, Offset: shoulderOffset,
		}
		hand = Link{
			Name: "hand", Mass: 0.9, COM: r3.Vector{X: 0.1, Y: 0.05},
			Inertia: spatialmath.NewInertia(0.01, 0.02, 0.015, 0, 0.001, 0.003),
			Axis:    zAxis,
		}
	)

	// Folding the spacer into the hand's joint is only exact when the hand's joint origin does not move relative
	// to the shoulder: either the spacer joint is still, or the hand sits on the spacer's axis.
	for _, tc := range []struct {
		name       string
		handOffset r3.Vector
		qs         [3]float64
		dqs        [3]float64
		ddqs       [3]float64
	}{
		{
			name:       "spacer held still",
			handOffset: r3.Vector{X: 0.3, Y: -0.2, Z: 0.05},
			qs:         [3]float64{0.4, -0.9, 0.6},
			dqs:        [3]float64{1.1, 0, -1.3},
			ddqs:       [3]float64{-0.5, 0, 0.8},
		},
		{
			name:       "hand on spacer axis",
			handOffset: r3.Vector{Z: 0.05},
			qs:         [3]float64{0.4, -0.9, 0.6},
			dqs:        [3]float64{1.1, 0.7, -1.3},
			ddqs:       [3]float64{-0.5, 2.0, 0.8},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// base -> shoulder -> spacer (no mass) -> hand
			withSpacer, err := NewTree(4, Link{}, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			_, err = withSpacer.AddLink(0, shoulder)
			test.That(t, err, test.ShouldBeNil)
			_, err = withSpacer.AddLink(1, Link{Name: "spacer", Axis: zAxis, Offset: spacerOffset})
			test.That(t, err, test.ShouldBeNil)
			handWithOffset := hand
			handWithOffset.Offset = tc.handOffset
			_, err = withSpacer.AddLink(2, handWithOffset)
			test.That(t, err, test.ShouldBeNil)
			withSpacer.SetGravity(r3.Vector{Z: -gravity})
			test.That(t, withSpacer.SetJointStates(tc.qs[:], tc.dqs[:], tc.ddqs[:]), test.ShouldBeNil)

			// base -> shoulder -> hand, with the spacer folded into the hand's joint
			direct, err := NewTree(3, Link{}, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			_, err = direct.AddLink(0, shoulder)
			test.That(t, err, test.ShouldBeNil)
			folded := hand
			folded.Offset = spacerOffset.Add(spatialmath.QuatRotate(spatialmath.AxisAngleToQuat(zAxis, tc.qs[1]), tc.handOffset))
			_, err = direct.AddLink(1, folded)
			test.That(t, err, test.ShouldBeNil)
			direct.SetGravity(r3.Vector{Z: -gravity})
			test.That(t, direct.SetJointStates(
				[]float64{tc.qs[0], tc.qs[1] + tc.qs[2]},
				[]float64{tc.dqs[0], tc.dqs[1] + tc.dqs[2]},
				[]float64{tc.ddqs[0], tc.ddqs[1] + tc.ddqs[2]},
			), test.ShouldBeNil)

			spacerTorques := propagate(t, withSpacer)
			directTorques := propagate(t, direct)
			test.That(t, spacerTorques[0], test.ShouldAlmostEqual, directTorques[0], 1e-9)
			test.That(t, spacerTorques[2], test.ShouldAlmostEqual, directTorques[1], 1e-9)

			spacerHand, err := withSpacer.Link(3)
			test.That(t, err, test.ShouldBeNil)
			directHand, err := direct.Link(2)
			test.That(t, err, test.ShouldBeNil)
			linksAlmostEqual(t, spacerHand, directHand, 1e-9)
		})
	}
}

func TestRootOnlyTree(t *testing.T) {
	tree, err := NewTree(1, Link{Mass: 3}, nil)
	test.That(t, err, test.ShouldBeNil)
	tree.SetGravity(r3.Vector{Z: -gravity})
	torques := propagate(t, tree)
	test.That(t, torques, test.ShouldBeEmpty)
	test.That(t, tree.SetJointStates(nil, nil, nil), test.ShouldBeNil)
	test.That(t, tree.SetJointStates([]float64{1}, nil, nil), test.ShouldBeError,
		NewIncorrectJointStateLengthError(1, 0))
}

func TestStaleKinematics(t *testing.T) {
	tree := newPlanarArm(t)
	_, err := tree.PropagateDynamics()
	test.That(t, err, test.ShouldBeError, ErrStaleKinematics)

	propagate(t, tree)
	test.That(t, tree.SetJointState(2, 0.1, 0, 0), test.ShouldBeNil)
	_, err = tree.PropagateDynamics()
	test.That(t, err, test.ShouldBeError, ErrStaleKinematics)

	test.That(t, tree.PropagateKinematics(), test.ShouldBeNil)
	tree.SetGravity(r3.Vector{Z: -gravity})
	_, err = tree.PropagateDynamics()
	test.That(t, err, test.ShouldBeError, ErrStaleKinematics)
}

func TestStaleKinematicsThroughLink(t *testing.T) {
	tree := newPlanarArm(t)
	test.That(t, tree.SetJointStates(armQ, armDQ, armDDQ), test.ShouldBeNil)
	expected := append([]float64(nil), propagate(t, tree)...)

	forearm, err := tree.Link(2)
	test.That(t, err, test.ShouldBeNil)
	for _, tc := range []struct {
		name  string
		write func()
	}{
		{"angle", func() { forearm.Q += 0.1 }},
		{"rate", func() { forearm.DQ = 3 }},
		{"acceleration", func() { forearm.DDQ = -2 }},
		{"axis", func() { forearm.Axis = r3.Vector{X: 1} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			restore := *forearm
			test.That(t, tree.PropagateKinematics(), test.ShouldBeNil)
			tc.write()
			_, err := tree.PropagateDynamics()
			test.That(t, err, test.ShouldWrap, ErrStaleKinematics)
			test.That(t, err.Error(), test.ShouldContainSubstring, "forearm")

			forearm.Q, forearm.DQ, forearm.DDQ, forearm.Axis = restore.Q, restore.DQ, restore.DDQ, restore.Axis
			torques := propagate(t, tree)
			test.That(t, torques[0], test.ShouldAlmostEqual, expected[0], 1e-12)
			test.That(t, torques[1], test.ShouldAlmostEqual, expected[1], 1e-12)
		})
	}
}

func TestMovingBase(t *testing.T) {
	// Spinning the base about z at a constant rate looks, to the links, exactly like adding that rate to the
	// first joint of a planar arm.
	const spin = 0.6
	q := []float64{0.2, 0.3}
	dq := []float64{0.5, -0.7}
	ddq := []float64{1.2, 0.4}

	spinning := newPlanarArm(t)
	baseRotation := spatialmath.AxisAngleToQuat(zAxis, 0.25)
	spinning.SetBaseMotion(baseRotation, r3.Vector{X: 2, Y: -1, Z: 0.5},
		r3.Vector{Z: spin}, r3.Vector{}, spatialmath.QuatInverseRotate(baseRotation, r3.Vector{Y: gravity}))
	test.That(t, spinning.SetJointStates(q, dq, ddq), test.ShouldBeNil)
	spinningTorques := propagate(t, spinning)

	expected := planarArmTorques([]float64{q[0] + 0.25, q[1]}, []float64{dq[0] + spin, dq[1]}, ddq)
	test.That(t, spinningTorques[0], test.ShouldAlmostEqual, expected[0], 1e-9)
	test.That(t, spinningTorques[1], test.ShouldAlmostEqual, expected[1], 1e-9)

	forearm, err := spinning.LinkByName("forearm")
	test.That(t, err, test.ShouldBeNil)
	expectedPosition := r3.Vector{X: 2, Y: -1, Z: 0.5}.Add(
		spatialmath.QuatRotate(quat.Mul(baseRotation, spatialmath.AxisAngleToQuat(zAxis, q[0])), r3.Vector{X: armL1}))
	test.That(t, spatialmath.R3VectorAlmostEqual(forearm.Position, expectedPosition, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(forearm.Pose().Point(), expectedPosition, 1e-9), test.ShouldBeTrue)
}

func TestPropagationDoesNotAllocate(t *testing.T) {
	tree := newBranchingTree(t)
	propagate(t, tree)
	allocs := testing.AllocsPerRun(100, func() {
		//nolint:errcheck
		tree.PropagateKinematics()
		//nolint:errcheck
		tree.PropagateDynamics()
	})
	test.That(t, allocs, test.ShouldEqual, 0.)
}
