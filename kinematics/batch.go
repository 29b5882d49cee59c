package kinematics

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/rkd/logging"
	"go.viam.com/rkd/utils"
)

// JointState is the angle, rate and acceleration of every non-root joint, in id order. DQ and DDQ may be nil to
// mean zero.
type JointState struct {
	Q   []float64 `json:"q" yaml:"q"`
	DQ  []float64 `json:"dq,omitempty" yaml:"dq,omitempty"`
	DDQ []float64 `json:"ddq,omitempty" yaml:"ddq,omitempty"`
}

// InverseDynamicsBatch evaluates the joint torques of the model for every state. States are split across up to
// utils.ParallelFactor workers, each building its own tree from cfg, since a Tree is single-goroutine storage.
// The result has one torque slice per state, in the order given.
func InverseDynamicsBatch(ctx context.Context, cfg *ModelConfig, states []JointState, logger logging.Logger) ([][]float64, error) {
	if logger == nil {
		logger = logging.Global()
	}
	// parse once up front so a bad model fails before any worker starts
	if _, err := cfg.ParseConfig(logger); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, nil
	}

	results := make([][]float64, len(states))
	ranges := utils.SplitWork(len(states), utils.ParallelFactor)
	workers := make([]utils.SimpleFunc, 0, len(ranges))
	for _, r := range ranges {
		from, to := r[0], r[1]
		workers = append(workers, func(ctx context.Context) error {
			tree, err := cfg.ParseConfig(logger)
			if err != nil {
				return err
			}
			for i := from; i < to; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				tau, err := evaluateState(tree, states[i])
				if err != nil {
					return errors.Wrapf(err, "state %d", i)
				}
				results[i] = tau
			}
			return nil
		})
	}
	if err := utils.RunInParallel(ctx, workers); err != nil {
		return nil, err
	}
	logger.Debugw("evaluated inverse dynamics batch", "model", cfg.Name, "states", len(states), "workers", len(workers))
	return results, nil
}

func evaluateState(tree *Tree, state JointState) ([]float64, error) {
	if err := tree.SetJointStates(state.Q, state.DQ, state.DDQ); err != nil {
		return nil, err
	}
	if err := tree.PropagateKinematics(); err != nil {
		return nil, err
	}
	tau, err := tree.PropagateDynamics()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(tau))
	copy(out, tau)
	return out, nil
}

// TorqueStats summarizes the torque of one joint over a batch of states.
type TorqueStats struct {
	Min  float64
	Max  float64
	Mean float64
	RMS  float64
	// Peak is the largest magnitude, the figure an actuator has to be sized for.
	Peak float64
}

// SummarizeTorques returns per joint statistics of the results of InverseDynamicsBatch.
func SummarizeTorques(results [][]float64) ([]TorqueStats, error) {
	if len(results) == 0 {
		return nil, errors.New("no torques to summarize")
	}
	joints := len(results[0])
	out := make([]TorqueStats, joints)
	for j := 0; j < joints; j++ {
		column := make(stats.Float64Data, 0, len(results))
		for i, tau := range results {
			if len(tau) != joints {
				return nil, errors.Errorf("state %d has %d torques, expected %d", i, len(tau), joints)
			}
			column = append(column, tau[j])
		}
		minTau, err := column.Min()
		if err != nil {
			return nil, err
		}
		maxTau, err := column.Max()
		if err != nil {
			return nil, err
		}
		mean, err := column.Mean()
		if err != nil {
			return nil, err
		}
		meanSquare, err := stats.Mean(lo.Map(column, func(v float64, _ int) float64 { return v * v }))
		if err != nil {
			return nil, err
		}
		out[j] = TorqueStats{
			Min:  minTau,
			Max:  maxTau,
			Mean: mean,
			RMS:  math.Sqrt(meanSquare),
			Peak: math.Max(math.Abs(minTau), math.Abs(maxTau)),
		}
	}
	return out, nil
}
