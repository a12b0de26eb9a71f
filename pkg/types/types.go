package types

import (
	"fmt"
	"time"

	"github.com/vladimirvivien/go4vl/v4l2"
)

// CameraSettings maps V4L2 control ids to the value the device should hold.
type CameraSettings map[v4l2.CtrlID]v4l2.CtrlValue

// MeteringMode names the strategy that produced a brightness sample.
type MeteringMode int

const (
	GlobalFallback MeteringMode = iota
	TargetLocked
)

func (m MeteringMode) String() string {
	switch m {
	case TargetLocked:
		return "target_locked"
	case GlobalFallback:
		return "global_fallback"
	default:
		return fmt.Sprintf("MeteringMode(%d)", int(m))
	}
}

func (m MeteringMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MeteringMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "target_locked":
		*m = TargetLocked
	case "global_fallback":
		*m = GlobalFallback
	default:
		return fmt.Errorf("unknown metering mode %q", b)
	}
	return nil
}

// Rect is a light-bar bounding box reported by the detector, in pixels.
// Angle is informational; metering always uses the axis-aligned box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle,omitempty"`
}

// Target is one detected armor plate, represented by its two light bars.
type Target struct {
	Left  Rect `json:"left"`
	Right Rect `json:"right"`

	Number     string  `json:"number,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// BrightnessSample is a scalar brightness in pixel intensity units (0-255).
// Valid is false when no region could be sampled for this frame.
type BrightnessSample struct {
	Value float64      `json:"value"`
	Mode  MeteringMode `json:"mode"`
	Valid bool         `json:"valid"`
}

// FrameResult describes what the auto gain loop did with one frame.
type FrameResult struct {
	Seq      uint64           `json:"seq"`
	Sample   BrightnessSample `json:"sample"`
	Setpoint float64          `json:"setpoint"`
	Gain     float64          `json:"gain"`
	Stepped  bool             `json:"stepped"`
	At       time.Time        `json:"at"`
}
