package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/rkd/kinematics"
	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/utils"
)

func dynamicsAction(c *cli.Context, logger logging.Logger) error {
	tree, err := kinematics.ParseModelFile(c.String(dynamicsFlagModel), logger)
	if err != nil {
		return err
	}

	states := make([][]float64, 0, 3)
	for _, flag := range []string{dynamicsFlagQ, dynamicsFlagDQ, dynamicsFlagDDQ} {
		vals, err := jointValuesFlag(c, flag)
		if err != nil {
			return err
		}
		states = append(states, vals)
	}
	if err := tree.SetJointStates(states[0], states[1], states[2]); err != nil {
		return err
	}
	if err := tree.InLimits(); err != nil {
		warningf(c.App.ErrWriter, "%v", err)
	}

	if err := tree.PropagateKinematics(); err != nil {
		return err
	}
	if _, err := tree.PropagateDynamics(); err != nil {
		return err
	}

	order, err := tree.Order()
	if err != nil {
		return err
	}
	for _, id := range order {
		link, err := tree.Link(id)
		if err != nil {
			return err
		}
		torque, err := tree.Torque(id)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%-16s position (%.6f, %.6f, %.6f) torque %.6f",
			link.Name, link.Position.X, link.Position.Y, link.Position.Z, torque)
	}
	return nil
}

// jointValuesFlag parses a list of joint values, converting from degrees when asked. An unset flag is nil.
func jointValuesFlag(c *cli.Context, flag string) ([]float64, error) {
	if c.String(flag) == "" {
		return nil, nil
	}
	vals, err := utils.ParseFloatList(c.String(flag))
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing %s flag", flag)
	}
	if c.Bool(generalFlagDegrees) {
		for i := range vals {
			vals[i] = utils.DegToRad(vals[i])
		}
	}
	return vals, nil
}
