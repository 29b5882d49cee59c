package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Inertia is a symmetric 3x3 inertia tensor stored by its six independent components.
type Inertia struct {
	XX float64 `json:"ixx" yaml:"ixx"`
	YY float64 `json:"iyy" yaml:"iyy"`
	ZZ float64 `json:"izz" yaml:"izz"`
	XY float64 `json:"ixy" yaml:"ixy"`
	XZ float64 `json:"ixz" yaml:"ixz"`
	YZ float64 `json:"iyz" yaml:"iyz"`
}

// NewInertia returns the tensor with the given moments and products of inertia.
func NewInertia(ixx, iyy, izz, ixy, ixz, iyz float64) Inertia {
	return Inertia{XX: ixx, YY: iyy, ZZ: izz, XY: ixy, XZ: ixz, YZ: iyz}
}

// NewDiagonalInertia returns a tensor with only principal moments.
func NewDiagonalInertia(ixx, iyy, izz float64) Inertia {
	return Inertia{XX: ixx, YY: iyy, ZZ: izz}
}

// NewInertiaFromSym converts a 3x3 gonum symmetric matrix.
func NewInertiaFromSym(s mat.Symmetric) (Inertia, error) {
	if n := s.SymmetricDim(); n != 3 {
		return Inertia{}, errors.Errorf("inertia tensor must be 3x3, got %dx%d", n, n)
	}
	return Inertia{
		XX: s.At(0, 0), YY: s.At(1, 1), ZZ: s.At(2, 2),
		XY: s.At(0, 1), XZ: s.At(0, 2), YZ: s.At(1, 2),
	}, nil
}

// NewInertiaFromMatrix converts a general 3x3 matrix, rejecting it if it is not symmetric within tol.
func NewInertiaFromMatrix(m mat.Matrix, tol float64) (Inertia, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return Inertia{}, errors.Errorf("inertia tensor must be 3x3, got %dx%d", r, c)
	}
	if !mat.EqualApprox(m, m.T(), tol) {
		return Inertia{}, errors.New("inertia tensor is not symmetric")
	}
	return Inertia{
		XX: m.At(0, 0), YY: m.At(1, 1), ZZ: m.At(2, 2),
		XY: m.At(0, 1), XZ: m.At(0, 2), YZ: m.At(1, 2),
	}, nil
}

// Sym returns the tensor as a gonum symmetric matrix.
func (in Inertia) Sym() *mat.SymDense {
	return mat.NewSymDense(3, []float64{
		in.XX, in.XY, in.XZ,
		in.XY, in.YY, in.YZ,
		in.XZ, in.YZ, in.ZZ,
	})
}

// MulVec returns I*v.
func (in Inertia) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: in.XX*v.X + in.XY*v.Y + in.XZ*v.Z,
		Y: in.XY*v.X + in.YY*v.Y + in.YZ*v.Z,
		Z: in.XZ*v.X + in.YZ*v.Y + in.ZZ*v.Z,
	}
}

// IsZero reports whether every component is zero.
func (in Inertia) IsZero() bool {
	return in == Inertia{}
}

// Validate checks that the tensor is finite with non-negative moments.
func (in Inertia) Validate() error {
	for _, v := range []float64{in.XX, in.YY, in.ZZ, in.XY, in.XZ, in.YZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("inertia tensor has non-finite components")
		}
	}
	if in.XX < 0 || in.YY < 0 || in.ZZ < 0 {
		return errors.Errorf("inertia tensor has negative moments (%g, %g, %g)", in.XX, in.YY, in.ZZ)
	}
	return nil
}
