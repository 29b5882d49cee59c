package spatialmath

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// SpaceDelimitedStringToVector is a helper method to split up space-delimited fields in URDFs, such as xyz or
// rpy attributes. An empty string is the zero vector.
func SpaceDelimitedStringToVector(s string) (r3.Vector, error) {
	slice := strings.Fields(s)
	if len(slice) == 0 {
		return r3.Vector{}, nil
	}
	if len(slice) != 3 {
		return r3.Vector{}, errors.Errorf("expected 3 space delimited values, got %q", s)
	}
	var converted [3]float64
	for i, value := range slice {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "cannot parse %q", s)
		}
		converted[i] = f
	}
	return r3.Vector{X: converted[0], Y: converted[1], Z: converted[2]}, nil
}
