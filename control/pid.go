// Package control implements the discrete feedback controllers used to track joint trajectories.
package control

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/rkd/utils"
)

// Controller computes a control output from a target value r and a measured value y. It is called once per
// control period.
type Controller interface {
	Update(r, y float64) float64
	Reset()
}

// PIDConfig describes the gains of a PID controller.
type PIDConfig struct {
	Name string  `json:"name" yaml:"name"`
	Kp   float64 `json:"kp,omitempty" yaml:"kp,omitempty"`
	Ki   float64 `json:"ki,omitempty" yaml:"ki,omitempty"`
	Kd   float64 `json:"kd,omitempty" yaml:"kd,omitempty"`
	// IClamp bounds the magnitude of the integral term of a positional PID. Zero means 1.
	IClamp float64 `json:"i_clamp,omitempty" yaml:"i_clamp,omitempty"`
	// Dt is the control period used by the velocity form. Zero means 1.
	Dt float64 `json:"dt,omitempty" yaml:"dt,omitempty"`
}

// Validate checks the gains and fills in defaults.
func (cfg *PIDConfig) Validate() error {
	if cfg.Kp == 0 && cfg.Ki == 0 && cfg.Kd == 0 {
		return errors.Errorf("pid %s should have at least one Ki, Kp or Kd field", cfg.Name)
	}
	if cfg.IClamp < 0 {
		return errors.Errorf("pid %s integral clamp must be positive, got %g", cfg.Name, cfg.IClamp)
	}
	if cfg.Dt < 0 {
		return errors.Errorf("pid %s dt must be positive, got %g", cfg.Name, cfg.Dt)
	}
	if cfg.IClamp == 0 {
		cfg.IClamp = 1
	}
	if cfg.Dt == 0 {
		cfg.Dt = 1
	}
	return nil
}

// PID is the positional form of a discrete PID controller with a clamped integral term.
type PID struct {
	mu    sync.Mutex
	cfg   PIDConfig
	error float64
	sum   float64
}

// NewPID returns a positional PID controller.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

// Update returns Kp*e + clamp(Ki*sum(e)) + Kd*(e - e_prev) where e = r - y.
func (p *PID) Update(r, y float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := r - y
	p.sum += e
	integral := utils.Clamp(p.cfg.Ki*p.sum, -p.cfg.IClamp, p.cfg.IClamp)
	output := p.cfg.Kp*e + integral + p.cfg.Kd*(e-p.error)
	p.error = e
	return output
}

// Reset clears the accumulated error.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.error = 0
	p.sum = 0
}

// Config returns the configuration of the controller, with defaults filled in.
func (p *PID) Config() PIDConfig {
	return p.cfg
}

// VelocityPID is the velocity (incremental) form of a discrete PID controller. Each update adjusts the
// previous output, so it has no integral state to wind up.
type VelocityPID struct {
	mu     sync.Mutex
	cfg    PIDConfig
	output float64
	e1     float64
	e2     float64
}

// NewVelocityPID returns a velocity form PID controller.
func NewVelocityPID(cfg PIDConfig) (*VelocityPID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &VelocityPID{cfg: cfg}, nil
}

// Update returns u_prev + Kp*(e - e1) + Ki*dt*e + Kd*(e - 2*e1 + e2)/dt where e1 and e2 are the two
// previous errors.
func (p *VelocityPID) Update(r, y float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := r - y
	p.output += p.cfg.Kp*(e-p.e1) + p.cfg.Ki*p.cfg.Dt*e + p.cfg.Kd*(e-2*p.e1+p.e2)/p.cfg.Dt
	p.e2 = p.e1
	p.e1 = e
	return p.output
}

// Reset clears the error history and the output.
func (p *VelocityPID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = 0
	p.e1 = 0
	p.e2 = 0
}

// Config returns the configuration of the controller, with defaults filled in.
func (p *VelocityPID) Config() PIDConfig {
	return p.cfg
}
