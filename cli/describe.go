package cli

import (
	"encoding/json"

	"github.com/urfave/cli/v2"

	"go.viam.com/rkd/kinematics"
	"go.viam.com/rkd/logging"
)

func describeAction(c *cli.Context, logger logging.Logger) error {
	tree, err := kinematics.ParseModelFile(c.String(dynamicsFlagModel), logger)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", tree.String())
	return nil
}

func schemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(kinematics.ModelConfigSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
