// Package cli contains the rkd command line tool.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/rkd/logging"
)

const (
	// Flags.
	generalFlagDebug   = "debug"
	generalFlagDegrees = "degrees"

	dynamicsFlagModel = "model"
	dynamicsFlagQ     = "q"
	dynamicsFlagDQ    = "dq"
	dynamicsFlagDDQ   = "ddq"

	ikFlagUpper  = "upper"
	ikFlagLower  = "lower"
	ikFlagTarget = "target"
	ikFlagRef    = "ref"

	sweepFlagStates  = "states"
	sweepFlagWorkers = "workers"
	sweepFlagSummary = "summary"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:            "rkd",
		Usage:           "evaluate kinematics and dynamics of articulated robots",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(generalFlagDebug) {
				logger = logging.NewDebugLogger("rkd")
			} else {
				logger = logging.NewBlankLogger("rkd")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "dynamics",
				Usage:     "compute link poses and joint torques of a model for one joint state",
				UsageText: "rkd dynamics --model FILE --q Q1,Q2,... [--dq ...] [--ddq ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     dynamicsFlagModel,
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "load the model from `FILE` (.json, .yaml or .urdf)",
					},
					&cli.StringFlag{
						Name:  dynamicsFlagQ,
						Usage: "joint angles in link id order, comma separated; zero if omitted",
					},
					&cli.StringFlag{
						Name:  dynamicsFlagDQ,
						Usage: "joint velocities; zero if omitted",
					},
					&cli.StringFlag{
						Name:  dynamicsFlagDDQ,
						Usage: "joint accelerations; zero if omitted",
					},
					&cli.BoolFlag{
						Name:  generalFlagDegrees,
						Usage: "read joint values in degrees instead of radians",
					},
				},
				Action: func(c *cli.Context) error {
					return dynamicsAction(c, logger)
				},
			},
			{
				Name:      "describe",
				Usage:     "print the links of a model as a table",
				UsageText: "rkd describe --model FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     dynamicsFlagModel,
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "load the model from `FILE` (.json, .yaml or .urdf)",
					},
				},
				Action: func(c *cli.Context) error {
					return describeAction(c, logger)
				},
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of model files",
				Action: schemaAction,
			},
			{
				Name:      "sweep",
				Usage:     "compute joint torques of a model for many joint states in parallel",
				UsageText: "rkd sweep --model FILE --states FILE [--workers N]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     dynamicsFlagModel,
						Aliases:  []string{"m"},
						Required: true,
						Usage:    "load the model from `FILE` (.json, .yaml or .urdf)",
					},
					&cli.StringFlag{
						Name:     sweepFlagStates,
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "read the list of joint states from `FILE` (.json or .yaml)",
					},
					&cli.IntFlag{
						Name:  sweepFlagWorkers,
						Usage: "number of parallel workers; one per CPU if unset",
					},
					&cli.BoolFlag{
						Name:  sweepFlagSummary,
						Usage: "print a table of per joint torque statistics after the torques",
					},
					&cli.BoolFlag{
						Name:  generalFlagDegrees,
						Usage: "read joint values in degrees instead of radians",
					},
				},
				Action: func(c *cli.Context) error {
					return sweepAction(c, logger)
				},
			},
			{
				Name:      "ik",
				Usage:     "solve a two segment arm for a wrist target",
				UsageText: "rkd ik --upper A --lower B --target X,Y,Z [--ref R]",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:     ikFlagUpper,
						Required: true,
						Usage:    "length of the upper segment",
					},
					&cli.Float64Flag{
						Name:     ikFlagLower,
						Required: true,
						Usage:    "length of the lower segment",
					},
					&cli.StringFlag{
						Name:     ikFlagTarget,
						Required: true,
						Usage:    "wrist target x,y,z",
					},
					&cli.Float64Flag{
						Name:  ikFlagRef,
						Usage: "rotation of the arm plane about the target direction, in radians",
					},
					&cli.BoolFlag{
						Name:  generalFlagDegrees,
						Usage: "print angles in degrees instead of radians",
					},
				},
				Action: func(c *cli.Context) error {
					return ikAction(c, logger)
				},
			},
		},
	}
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, "\033[1;33mWarning:\033[0m "+format+"\n", a...)
}
