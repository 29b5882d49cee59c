package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"go.viam.com/rkd/kinematics"
	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/utils"
)

func sweepAction(c *cli.Context, logger logging.Logger) error {
	modelFile := c.String(dynamicsFlagModel)
	tree, err := kinematics.ParseModelFile(modelFile, logger)
	if err != nil {
		return err
	}
	states, err := readJointStates(c.String(sweepFlagStates))
	if err != nil {
		return err
	}
	if c.Bool(generalFlagDegrees) {
		for i := range states {
			for _, vals := range [][]float64{states[i].Q, states[i].DQ, states[i].DDQ} {
				for j := range vals {
					vals[j] = utils.DegToRad(vals[j])
				}
			}
		}
	}
	if workers := c.Int(sweepFlagWorkers); workers > 0 {
		utils.ParallelFactor = workers
	}

	name := strings.TrimSuffix(filepath.Base(modelFile), filepath.Ext(modelFile))
	results, err := kinematics.InverseDynamicsBatch(c.Context, tree.ModelConfig(name), states, logger)
	if err != nil {
		return err
	}
	for i, tau := range results {
		line := lo.Map(tau, func(v float64, _ int) string { return fmt.Sprintf("%.6f", v) })
		printf(c.App.Writer, "%-6d %s", i, strings.Join(line, " "))
	}
	if !c.Bool(sweepFlagSummary) {
		return nil
	}

	summary, err := kinematics.SummarizeTorques(results)
	if err != nil {
		return err
	}
	order, err := tree.Order()
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Joint", "Min", "Max", "Mean", "RMS", "Peak"})
	for _, id := range order {
		if id == 0 {
			continue
		}
		link, err := tree.Link(id)
		if err != nil {
			return err
		}
		st := summary[id-1]
		tw.AppendRow(table.Row{
			link.Name,
			fmt.Sprintf("%.6f", st.Min),
			fmt.Sprintf("%.6f", st.Max),
			fmt.Sprintf("%.6f", st.Mean),
			fmt.Sprintf("%.6f", st.RMS),
			fmt.Sprintf("%.6f", st.Peak),
		})
	}
	printf(c.App.Writer, "%s", tw.Render())
	return nil
}

// readJointStates loads a list of joint states from a JSON or YAML file.
func readJointStates(filename string) ([]kinematics.JointState, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read states file")
	}
	var states []kinematics.JointState
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, &states)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &states)
	default:
		return nil, errors.Errorf("unsupported states file extension %q, supported are .json, .yaml and .yml", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal states file %q", filename)
	}
	if len(states) == 0 {
		return nil, errors.Errorf("states file %q has no states", filename)
	}
	return states, nil
}
