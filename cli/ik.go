package cli

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/rkd/ik"
	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/utils"
)

func ikAction(c *cli.Context, logger logging.Logger) error {
	coords, err := utils.ParseFloatList(c.String(ikFlagTarget))
	if err != nil {
		return errors.Wrapf(err, "error parsing %s flag", ikFlagTarget)
	}
	if len(coords) != 3 {
		return errors.Errorf("%s needs 3 coordinates, got %d", ikFlagTarget, len(coords))
	}
	target := r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]}

	solver := &ik.TriangleSolver{
		Upper:    c.Float64(ikFlagUpper),
		Lower:    c.Float64(ikFlagLower),
		RefTheta: c.Float64(ikFlagRef),
	}
	ans, err := solver.Solve(target)
	if err != nil {
		return err
	}
	logger.Debugw("solved", "target", target, "elbow", solver.Elbow(ans))

	unit := "rad"
	if c.Bool(generalFlagDegrees) {
		unit = "deg"
		for i := range ans {
			ans[i] = utils.RadToDeg(ans[i])
		}
	}
	for i, name := range []string{"azimuth", "polar", "ref", "elbow"} {
		printf(c.App.Writer, "%-8s %.6f %s", name, ans[i], unit)
	}
	return nil
}
