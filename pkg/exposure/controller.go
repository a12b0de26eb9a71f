// Package exposure implements the PID loop that turns a brightness error into
// a camera gain command.
package exposure

import (
	"sync"

	"armor-exposure/pkg/config"
)

// State is the controller memory for one camera stream.
type State struct {
	Integral        float64 `json:"integral"`
	LastError       float64 `json:"lastError"`
	CurrentGain     float64 `json:"currentGain"`
	CurrentExposure float64 `json:"currentExposure"`
}

// Terms breaks down the most recent step, for diagnostics.
type Terms struct {
	Error      float64 `json:"error"`
	Derivative float64 `json:"derivative"`
	Delta      float64 `json:"delta"`
}

// Controller is a PID controller acting on gain. Step, Reconfigure, Reset and
// Snapshot may be called from different goroutines; the read-modify-write in
// Step is serialized.
type Controller struct {
	mu sync.Mutex

	cfg   config.Config
	state State
	last  Terms
	steps uint64
}

// New creates a controller with gain and exposure taken from cfg's initial
// values. cfg must already be validated.
func New(cfg config.Config) *Controller {
	return &Controller{
		cfg: cfg,
		state: State{
			CurrentGain:     cfg.InitialGain,
			CurrentExposure: cfg.InitialExposure,
		},
	}
}

// Step runs one PID update and returns the new gain, always within
// [GainMin, GainMax]. Callers skip Step entirely while the loop is disabled.
func (c *Controller) Step(measured, setpoint float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg := &c.cfg
	s := &c.state

	err := setpoint - measured
	s.Integral += err
	if cfg.IntegralLimit > 0 {
		s.Integral = clamp(s.Integral, -cfg.IntegralLimit, cfg.IntegralLimit)
	}
	derivative := err - s.LastError
	s.LastError = err

	delta := cfg.Kp*err + cfg.Ki*s.Integral + cfg.Kd*derivative
	s.CurrentGain = clamp(s.CurrentGain+delta, cfg.GainMin, cfg.GainMax)

	c.last = Terms{Error: err, Derivative: derivative, Delta: delta}
	c.steps++

	return s.CurrentGain
}

// Enabled reports whether the current configuration runs the loop.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Enabled
}

// Config returns the configuration in effect.
func (c *Controller) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Reconfigure swaps in a new validated configuration between frames.
// The controller state survives; the current gain is pulled inside the new
// bounds, and with ResetOnEnable a disabled->enabled transition clears the
// integral and last error.
func (c *Controller) Reconfigure(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.ResetOnEnable && cfg.Enabled && !c.cfg.Enabled {
		c.state.Integral = 0
		c.state.LastError = 0
	}
	c.cfg = cfg
	c.state.CurrentGain = clamp(c.state.CurrentGain, cfg.GainMin, cfg.GainMax)
}

// Reset clears the accumulated error terms and returns gain and exposure to
// their configured initial values.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = State{
		CurrentGain:     c.cfg.InitialGain,
		CurrentExposure: c.cfg.InitialExposure,
	}
	c.last = Terms{}
}

// Snapshot returns a copy of the controller state, the last step's terms and
// the number of steps taken.
func (c *Controller) Snapshot() (State, Terms, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.last, c.steps
}

// Gain returns the current gain.
func (c *Controller) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentGain
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
