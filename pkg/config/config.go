package config

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultTargetBrightnessGlobal = 10.0
	DefaultTargetBrightnessArmor  = 30.0

	DefaultKp = 0.1
	DefaultKi = 0.0
	DefaultKd = 0.1

	DefaultGainMin     = 0.0
	DefaultGainMax     = 25.0
	DefaultInitialGain = 8.0

	DefaultInitialExposure = 2500.0

	DefaultROIMarginFraction = 0.07

	DefaultGainScale   = 1.0
	DefaultTargetTTLMs = 100

	maxBrightness = 255.0
)

// Config holds the auto gain tuning. A Config is never mutated while a frame
// is being processed; the host swaps in a new one between frames.
type Config struct {
	Enabled bool `json:"enabled"`

	TargetBrightnessGlobal float64 `json:"targetBrightnessGlobal"`
	TargetBrightnessArmor  float64 `json:"targetBrightnessArmor"`

	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`

	GainMin float64 `json:"gainMin"`
	GainMax float64 `json:"gainMax"`

	// IntegralLimit clamps the accumulated error to ±IntegralLimit.
	// 0 leaves the integral unbounded.
	IntegralLimit float64 `json:"integralLimit"`
	// ResetOnEnable zeroes the integral and last error when the loop is
	// switched from disabled to enabled.
	ResetOnEnable bool `json:"resetOnEnable"`

	InitialGain     float64 `json:"initialGain"`
	InitialExposure float64 `json:"initialExposure"`

	ROIMarginFraction float64 `json:"roiMarginFraction"`

	// GainScale converts a gain value into device control units.
	GainScale float64 `json:"gainScale"`

	// ms
	TargetTTLMs int `json:"targetTTLMs"`
}

// Default returns the tuning used on the competition robots.
func Default() Config {
	return Config{
		Enabled:                true,
		TargetBrightnessGlobal: DefaultTargetBrightnessGlobal,
		TargetBrightnessArmor:  DefaultTargetBrightnessArmor,
		Kp:                     DefaultKp,
		Ki:                     DefaultKi,
		Kd:                     DefaultKd,
		GainMin:                DefaultGainMin,
		GainMax:                DefaultGainMax,
		InitialGain:            DefaultInitialGain,
		InitialExposure:        DefaultInitialExposure,
		ROIMarginFraction:      DefaultROIMarginFraction,
		GainScale:              DefaultGainScale,
		TargetTTLMs:            DefaultTargetTTLMs,
	}
}

// Validate rejects configurations the controller cannot run with.
func (c *Config) Validate() error {
	var errs []error

	fields := []struct {
		name string
		v    float64
	}{
		{"targetBrightnessGlobal", c.TargetBrightnessGlobal},
		{"targetBrightnessArmor", c.TargetBrightnessArmor},
		{"kp", c.Kp},
		{"ki", c.Ki},
		{"kd", c.Kd},
		{"gainMin", c.GainMin},
		{"gainMax", c.GainMax},
		{"integralLimit", c.IntegralLimit},
		{"initialGain", c.InitialGain},
		{"initialExposure", c.InitialExposure},
		{"roiMarginFraction", c.ROIMarginFraction},
		{"gainScale", c.GainScale},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a finite number, got %v", f.name, f.v))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.TargetBrightnessGlobal < 0 || c.TargetBrightnessGlobal > maxBrightness {
		errs = append(errs, fmt.Errorf("targetBrightnessGlobal must be between 0 and 255, got %v", c.TargetBrightnessGlobal))
	}
	if c.TargetBrightnessArmor < 0 || c.TargetBrightnessArmor > maxBrightness {
		errs = append(errs, fmt.Errorf("targetBrightnessArmor must be between 0 and 255, got %v", c.TargetBrightnessArmor))
	}
	if c.GainMin < 0 {
		errs = append(errs, fmt.Errorf("gainMin must be non-negative, got %v", c.GainMin))
	}
	if c.GainMax < 0 {
		errs = append(errs, fmt.Errorf("gainMax must be non-negative, got %v", c.GainMax))
	}
	if c.GainMin > c.GainMax {
		errs = append(errs, fmt.Errorf("gainMin %v is greater than gainMax %v", c.GainMin, c.GainMax))
	} else if c.InitialGain < c.GainMin || c.InitialGain > c.GainMax {
		errs = append(errs, fmt.Errorf("initialGain %v is outside [%v, %v]", c.InitialGain, c.GainMin, c.GainMax))
	}
	if c.IntegralLimit < 0 {
		errs = append(errs, fmt.Errorf("integralLimit must be non-negative, got %v", c.IntegralLimit))
	}
	if c.InitialExposure < 0 {
		errs = append(errs, fmt.Errorf("initialExposure must be non-negative, got %v", c.InitialExposure))
	}
	if c.ROIMarginFraction < 0 || c.ROIMarginFraction >= 0.5 {
		errs = append(errs, fmt.Errorf("roiMarginFraction must be in [0, 0.5), got %v", c.ROIMarginFraction))
	}
	if c.GainScale <= 0 {
		errs = append(errs, fmt.Errorf("gainScale must be positive, got %v", c.GainScale))
	}
	if c.TargetTTLMs < 0 {
		errs = append(errs, fmt.Errorf("targetTTLMs must be non-negative, got %d", c.TargetTTLMs))
	}

	return errors.Join(errs...)
}
