package config

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 10.0, cfg.TargetBrightnessGlobal)
	assert.Equal(t, 30.0, cfg.TargetBrightnessArmor)
	assert.Equal(t, 0.1, cfg.Kp)
	assert.Equal(t, 0.0, cfg.Ki)
	assert.Equal(t, 0.1, cfg.Kd)
	assert.Equal(t, 0.0, cfg.GainMin)
	assert.Equal(t, 25.0, cfg.GainMax)
	assert.Equal(t, 8.0, cfg.InitialGain)
	assert.Equal(t, 2500.0, cfg.InitialExposure)
	assert.Equal(t, 0.07, cfg.ROIMarginFraction)
	assert.Zero(t, cfg.IntegralLimit)
	assert.False(t, cfg.ResetOnEnable)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"negative gain min", func(c *Config) { c.GainMin = -1 }, "gainMin must be non-negative"},
		{"negative gain max", func(c *Config) { c.GainMax = -1; c.GainMin = -2 }, "gainMax must be non-negative"},
		{"inverted bounds", func(c *Config) { c.GainMin = 10; c.GainMax = 5 }, "greater than gainMax"},
		{"initial gain above max", func(c *Config) { c.InitialGain = 30 }, "initialGain 30 is outside"},
		{"nan kp", func(c *Config) { c.Kp = math.NaN() }, "kp must be a finite number"},
		{"inf setpoint", func(c *Config) { c.TargetBrightnessArmor = math.Inf(1) }, "targetBrightnessArmor must be a finite number"},
		{"setpoint too bright", func(c *Config) { c.TargetBrightnessGlobal = 300 }, "between 0 and 255"},
		{"margin too large", func(c *Config) { c.ROIMarginFraction = 0.5 }, "roiMarginFraction"},
		{"negative integral limit", func(c *Config) { c.IntegralLimit = -1 }, "integralLimit"},
		{"zero gain scale", func(c *Config) { c.GainScale = 0 }, "gainScale must be positive"},
		{"negative ttl", func(c *Config) { c.TargetTTLMs = -5 }, "targetTTLMs"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_EqualBounds(t *testing.T) {
	cfg := Default()
	cfg.GainMin = 8
	cfg.GainMax = 8
	assert.NoError(t, cfg.Validate())
}
