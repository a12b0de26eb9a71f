package camera

import (
	"fmt"
	"math"

	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"armor-exposure/pkg/config"
	"armor-exposure/pkg/ov"
	"armor-exposure/pkg/types"
	"armor-exposure/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

const (
	CtrlGain             v4l2.CtrlID = 9963795  // Gain
	CtrlExposureAuto     v4l2.CtrlID = 10094849 // Auto Exposure
	CtrlExposureAbsolute v4l2.CtrlID = 10094850 // Exposure Time, Absolute

	// ExposureManual is the CtrlExposureAuto menu entry that hands exposure
	// time to the application.
	ExposureManual v4l2.CtrlValue = 1
)

var knownCtrlID = []v4l2.CtrlID{
	CtrlExposureAuto,
	CtrlExposureAbsolute,
	CtrlGain,
}

// ManualSettings turns the driver's auto exposure off and fixes exposure
// time and the starting gain, leaving gain to the auto gain loop.
func ManualSettings(cfg config.Config) types.CameraSettings {
	return types.CameraSettings{
		CtrlExposureAuto:     ExposureManual,
		CtrlExposureAbsolute: v4l2.CtrlValue(math.Round(cfg.InitialExposure)),
		CtrlGain:             v4l2.CtrlValue(math.Round(cfg.InitialGain * cfg.GainScale)),
	}
}

// ReadControls reads the exposure related controls of an open device,
// skipping the ones it does not support.
func ReadControls(fd uintptr) []v4l2.Control {
	var res []v4l2.Control
	for _, id := range knownCtrlID {
		ctrl, err := v4l2.GetControl(fd, id)
		if err != nil {
			logger.Warnf("The device does not support control(%d)", id)
			continue
		}
		res = append(res, ctrl)
	}

	return res
}

// ToControls converts device controls into API form.
func ToControls(ctrls []v4l2.Control) []ov.Control {
	res := make([]ov.Control, 0, len(ctrls))
	for _, ctrl := range ctrls {
		res = append(res, ctrlToControl(ctrl))
	}
	return res
}

func ctrlToControl(ctrl v4l2.Control) ov.Control {
	return ov.Control{
		ID:      ctrl.ID,
		Value:   ctrl.Value,
		Name:    ctrl.Name,
		Minimum: ctrl.Minimum,
		Maximum: ctrl.Maximum,
		Step:    ctrl.Step,
		Default: ctrl.Default,
	}
}

func CtrlToString(ctrl v4l2.Control) string {
	return fmt.Sprintf("Control id (%d) name: %s\t[min: %d; max: %d; step: %d; default: %d current_val: %d]",
		ctrl.ID, ctrl.Name, ctrl.Minimum, ctrl.Maximum, ctrl.Step, ctrl.Default, ctrl.Value)
}
