// Package ov holds the request and response bodies of the HTTP API.
package ov

import (
	"github.com/vladimirvivien/go4vl/v4l2"

	"armor-exposure/pkg/types"
	"armor-exposure/pkg/utils/ps"
)

// Control describes one V4L2 control as the device reports it.
type Control struct {
	ID    v4l2.CtrlID    `json:"id"`
	Value v4l2.CtrlValue `json:"value"`
	Name  string         `json:"name"`

	Minimum int32 `json:"minimum"`
	Maximum int32 `json:"maximum"`
	Step    int32 `json:"step"`
	Default int32 `json:"default"`
}

// TargetReport is what the armor detector posts for the latest frame.
type TargetReport struct {
	Left       types.Rect `json:"left"`
	Right      types.Rect `json:"right"`
	Number     string     `json:"number"`
	Confidence float64    `json:"confidence"`
}

func (r TargetReport) Target() *types.Target {
	return &types.Target{
		Left:       r.Left,
		Right:      r.Right,
		Number:     r.Number,
		Confidence: r.Confidence,
	}
}

// DeviceStatus reports the camera and the host it runs on.
type DeviceStatus struct {
	Device    string     `json:"device"`
	Started   bool       `json:"started"`
	Dropped   uint64     `json:"droppedFrames"`
	Recording bool       `json:"recording"`
	Controls  []Control  `json:"controls,omitempty"`
	Host      *ps.Status `json:"host,omitempty"`
}
