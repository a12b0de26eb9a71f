package exposure

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armor-exposure/pkg/config"
)

const eps = 1e-9

func TestStep_Arithmetic(t *testing.T) {
	c := New(config.Default())

	// uniform frame of 50 metered globally against the default setpoint 10
	gain := c.Step(50, 10)

	state, terms, steps := c.Snapshot()
	assert.InDelta(t, 0.0, gain, eps)
	assert.InDelta(t, -40.0, terms.Error, eps)
	assert.InDelta(t, -40.0, state.Integral, eps)
	assert.InDelta(t, -40.0, terms.Derivative, eps)
	assert.InDelta(t, -8.0, terms.Delta, eps)
	assert.InDelta(t, -40.0, state.LastError, eps)
	assert.Equal(t, 2500.0, state.CurrentExposure)
	assert.Equal(t, uint64(1), steps)
}

func TestStep_SecondStepUsesDerivative(t *testing.T) {
	c := New(config.Default())

	c.Step(20, 30)
	// error 10, derivative 10, delta 2
	assert.InDelta(t, 10.0, c.Gain(), eps)

	c.Step(25, 30)
	// error 5, derivative -5, delta 0.5 - 0.5 = 0
	assert.InDelta(t, 10.0, c.Gain(), eps)

	state, _, _ := c.Snapshot()
	assert.InDelta(t, 15.0, state.Integral, eps)
	assert.InDelta(t, 5.0, state.LastError, eps)
}

func TestStep_AlwaysWithinBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Ki = 0.05
	cfg.GainMin = 2
	cfg.GainMax = 16
	cfg.InitialGain = 8
	c := New(cfg)

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		measured := r.Float64() * 255
		setpoint := r.Float64() * 255
		gain := c.Step(measured, setpoint)
		require.GreaterOrEqual(t, gain, cfg.GainMin)
		require.LessOrEqual(t, gain, cfg.GainMax)
		require.Equal(t, gain, c.Gain())
	}
}

func TestStep_IntegralUnboundedByDefault(t *testing.T) {
	c := New(config.Default())
	for i := 0; i < 100; i++ {
		c.Step(255, 10)
	}
	state, _, _ := c.Snapshot()
	assert.InDelta(t, -24500.0, state.Integral, eps)
	assert.Equal(t, 0.0, state.CurrentGain)
}

func TestStep_IntegralLimit(t *testing.T) {
	cfg := config.Default()
	cfg.IntegralLimit = 100
	c := New(cfg)
	for i := 0; i < 100; i++ {
		c.Step(255, 10)
	}
	state, _, _ := c.Snapshot()
	assert.InDelta(t, -100.0, state.Integral, eps)

	for i := 0; i < 100; i++ {
		c.Step(0, 255)
	}
	state, _, _ = c.Snapshot()
	assert.InDelta(t, 100.0, state.Integral, eps)
}

func TestReconfigure_KeepsStateAcrossDisable(t *testing.T) {
	c := New(config.Default())
	c.Step(50, 10)
	before, _, _ := c.Snapshot()

	cfg := config.Default()
	cfg.Enabled = false
	c.Reconfigure(cfg)
	assert.False(t, c.Enabled())

	cfg.Enabled = true
	c.Reconfigure(cfg)
	after, _, _ := c.Snapshot()
	assert.Equal(t, before, after)
}

func TestReconfigure_ResetOnEnable(t *testing.T) {
	cfg := config.Default()
	cfg.ResetOnEnable = true
	c := New(cfg)
	c.Step(50, 10)

	cfg.Enabled = false
	c.Reconfigure(cfg)
	state, _, _ := c.Snapshot()
	assert.NotZero(t, state.Integral, "disabling alone must not touch the state")

	cfg.Enabled = true
	c.Reconfigure(cfg)
	state, _, _ = c.Snapshot()
	assert.Zero(t, state.Integral)
	assert.Zero(t, state.LastError)
	assert.InDelta(t, 0.0, state.CurrentGain, eps)
}

func TestReconfigure_ClampsGainToNewBounds(t *testing.T) {
	c := New(config.Default())
	assert.Equal(t, 8.0, c.Gain())

	cfg := config.Default()
	cfg.GainMin = 10
	cfg.GainMax = 20
	cfg.InitialGain = 10
	c.Reconfigure(cfg)
	assert.Equal(t, 10.0, c.Gain())
}

func TestReset(t *testing.T) {
	c := New(config.Default())
	c.Step(50, 10)
	c.Reset()

	state, terms, _ := c.Snapshot()
	assert.Equal(t, State{CurrentGain: 8, CurrentExposure: 2500}, state)
	assert.Equal(t, Terms{}, terms)
}

func TestStep_Concurrent(t *testing.T) {
	cfg := config.Default()
	cfg.Kd = 0
	c := New(cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.Step(11, 10)
			}
		}()
	}
	wg.Wait()

	state, _, steps := c.Snapshot()
	assert.Equal(t, uint64(4000), steps)
	assert.InDelta(t, -4000.0, state.Integral, eps)
}
