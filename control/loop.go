package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rkd/logging"
)

const maxLoopFrequency = 1000.0

// LoopConfig configures a periodic control loop.
type LoopConfig struct {
	Name      string  `json:"name" yaml:"name"`
	Frequency float64 `json:"frequency_hz" yaml:"frequency_hz"`
}

// Step is one iteration of a control loop. dt is the loop period.
type Step func(ctx context.Context, dt time.Duration) error

// Loop calls a step at a fixed frequency on a background goroutine. The step owns whatever state it touches,
// e.g. a kinematic tree, for as long as the loop runs. The first step error stops the loop.
type Loop struct {
	mu                      sync.Mutex
	cfg                     LoopConfig
	step                    Step
	logger                  logging.Logger
	dt                      time.Duration
	clock                   clock.Clock
	ticker                  *clock.Ticker
	activeBackgroundWorkers sync.WaitGroup
	cancel                  context.CancelFunc
	running                 bool
	iterations              int
	err                     error
}

// NewLoop constructs a new control loop running step.
func NewLoop(logger logging.Logger, cfg LoopConfig, step Step) (*Loop, error) {
	if cfg.Frequency <= 0 || cfg.Frequency > maxLoopFrequency {
		return nil, errors.Errorf("loop frequency shouldn't be 0 or above %.0fHz, got %g", maxLoopFrequency, cfg.Frequency)
	}
	if step == nil {
		return nil, errors.Errorf("loop %s has no step", cfg.Name)
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Loop{
		cfg:    cfg,
		step:   step,
		logger: logger.Sublogger(cfg.Name),
		dt:     time.Duration(float64(time.Second) / cfg.Frequency),
		clock:  clock.New(),
	}, nil
}

// Start starts the loop.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.Errorf("loop %s is already running", l.cfg.Name)
	}
	l.logger.Infof("running loop at %1.4fHz (%v)", l.cfg.Frequency, l.dt)
	cancelCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.ticker = l.clock.Ticker(l.dt)
	l.err = nil
	l.running = true

	ticker := l.ticker
	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := l.runStep(cancelCtx); err != nil {
				l.logger.Errorw("stopping loop after failed step", "error", err)
				return
			}
		}
	}, l.activeBackgroundWorkers.Done)
	return nil
}

func (l *Loop) runStep(ctx context.Context) error {
	err := l.step(ctx, l.dt)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = err
		return err
	}
	l.iterations++
	return nil
}

// Run calls the step n times back to back on the calling goroutine, without waiting for the period. It is meant
// for simulation and benchmarks and cannot be used while the loop is running.
func (l *Loop) Run(ctx context.Context, n int) error {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if running {
		return errors.Errorf("loop %s is already running", l.cfg.Name)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.runStep(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the loop and returns the error that stopped it early, if any.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.logger.Debug("closing loop")
	l.cancel()
	l.ticker.Stop()
	l.mu.Unlock()

	l.activeBackgroundWorkers.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
	return l.err
}

// Iterations returns the number of successful steps since the loop was created.
func (l *Loop) Iterations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.iterations
}

// Period returns the time between two steps.
func (l *Loop) Period() time.Duration {
	return l.dt
}

// Config returns the control loop config.
func (l *Loop) Config() LoopConfig {
	return l.cfg
}
