// Package pipeline wires metering, the exposure controller and the gain sink
// into the per-frame auto gain loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"armor-exposure/pkg/config"
	"armor-exposure/pkg/detect"
	"armor-exposure/pkg/exposure"
	"armor-exposure/pkg/metering"
	"armor-exposure/pkg/sink"
	"armor-exposure/pkg/types"
	"armor-exposure/pkg/utils"
)

// Diagnostics counts gain request outcomes as they are observed.
type Diagnostics struct {
	Submitted   uint64        `json:"submitted"`
	Applied     uint64        `json:"applied"`
	Failed      uint64        `json:"failed"`
	Superseded  uint64        `json:"superseded"`
	LastError   string        `json:"lastError,omitempty"`
	LastLatency time.Duration `json:"lastLatency"`
}

// Status is a point-in-time view of the loop.
type Status struct {
	Config      config.Config     `json:"config"`
	State       exposure.State    `json:"state"`
	Terms       exposure.Terms    `json:"terms"`
	Steps       uint64            `json:"steps"`
	Frames      uint64            `json:"frames"`
	Last        types.FrameResult `json:"last"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// AutoGain runs one camera stream's auto gain loop. Frames are processed one
// at a time; Process may be called from several goroutines and is serialized.
type AutoGain struct {
	ctrl   *exposure.Controller
	sink   sink.ParameterSink
	source detect.Source
	logger *zap.SugaredLogger

	// OnReconfigure is called with every accepted configuration, after the
	// controller has been updated. Calls never overlap and arrive in the
	// order the configurations were applied.
	OnReconfigure func(cfg config.Config)

	// reconfMu orders Reconfigure calls together with their hook.
	reconfMu sync.Mutex

	mu    sync.Mutex
	cfg   config.Config
	meter *metering.Meter
	seq   uint64
	last  types.FrameResult

	submitted  atomic.Uint64
	applied    atomic.Uint64
	failed     atomic.Uint64
	superseded atomic.Uint64

	diagMu      sync.Mutex
	lastErr     string
	lastLatency time.Duration
}

// New validates cfg and builds the loop. source may be nil when targets are
// always passed to Process directly.
func New(cfg config.Config, s sink.ParameterSink, source detect.Source) (*AutoGain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auto gain config: %w", err)
	}
	if s == nil {
		s = sink.Discard
	}
	if source == nil {
		source = detect.Static{}
	}

	return &AutoGain{
		ctrl:   exposure.New(cfg),
		sink:   s,
		source: source,
		logger: utils.GetLogger(),
		cfg:    cfg,
		meter:  metering.New(cfg.ROIMarginFraction),
	}, nil
}

// Process meters one frame, steps the controller and submits the new gain.
// With the loop disabled, or when nothing in the frame can be metered, the
// controller is left untouched and no gain is submitted.
func (a *AutoGain) Process(frame *image.Gray, target *types.Target) types.FrameResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	res := types.FrameResult{
		Seq:  a.seq,
		Gain: a.ctrl.Gain(),
		At:   time.Now(),
	}
	if !a.cfg.Enabled {
		a.last = res
		return res
	}

	sample, setpoint := a.meter.SelectMode(target, frame, a.cfg.TargetBrightnessArmor, a.cfg.TargetBrightnessGlobal)
	res.Sample = sample
	res.Setpoint = setpoint
	if !sample.Valid {
		a.logger.Debugf("frame %d: nothing to meter, keeping gain %.3f", res.Seq, res.Gain)
		a.last = res
		return res
	}

	res.Gain = a.ctrl.Step(sample.Value, setpoint)
	res.Stepped = true

	a.submitted.Add(1)
	go a.observe(a.sink.Submit(res.Gain))

	a.logger.Debugf("frame %d: %s brightness %.2f setpoint %.1f gain %.3f",
		res.Seq, sample.Mode, sample.Value, setpoint, res.Gain)
	a.last = res

	return res
}

// Run processes frames until the channel closes or ctx is done. The target
// for each frame comes from the loop's detect.Source.
func (a *AutoGain) Run(ctx context.Context, frames <-chan *image.Gray) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if frame == nil {
				continue
			}
			a.Process(frame, a.source.Target(time.Now()))
		}
	}
}

// Reconfigure validates and applies cfg before the next frame.
func (a *AutoGain) Reconfigure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid auto gain config: %w", err)
	}

	a.reconfMu.Lock()
	defer a.reconfMu.Unlock()

	a.mu.Lock()
	wasEnabled := a.cfg.Enabled
	a.cfg = cfg
	a.meter.MarginFraction = cfg.ROIMarginFraction
	a.ctrl.Reconfigure(cfg)
	hook := a.OnReconfigure
	a.mu.Unlock()

	if wasEnabled != cfg.Enabled {
		a.logger.Infof("auto gain enabled: %t", cfg.Enabled)
	}
	if hook != nil {
		hook(cfg)
	}

	return nil
}

// Reset clears the controller memory and restores the initial gain.
func (a *AutoGain) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.Reset()
	a.logger.Info("auto gain controller reset")
}

func (a *AutoGain) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *AutoGain) Status() Status {
	a.mu.Lock()
	cfg := a.cfg
	last := a.last
	frames := a.seq
	a.mu.Unlock()

	state, terms, steps := a.ctrl.Snapshot()

	return Status{
		Config:      cfg,
		State:       state,
		Terms:       terms,
		Steps:       steps,
		Frames:      frames,
		Last:        last,
		Diagnostics: a.Diagnostics(),
	}
}

func (a *AutoGain) Diagnostics() Diagnostics {
	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	return Diagnostics{
		Submitted:   a.submitted.Load(),
		Applied:     a.applied.Load(),
		Failed:      a.failed.Load(),
		Superseded:  a.superseded.Load(),
		LastError:   a.lastErr,
		LastLatency: a.lastLatency,
	}
}

// observe waits for a gain request to finish. It only records diagnostics;
// the controller never learns whether a gain was applied.
func (a *AutoGain) observe(p sink.Pending) {
	res, ok := <-p
	if !ok {
		return
	}

	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	a.lastLatency = res.Latency
	switch {
	case res.Err == nil:
		a.applied.Add(1)
	case errors.Is(res.Err, sink.ErrSuperseded):
		a.superseded.Add(1)
	default:
		a.failed.Add(1)
		a.lastErr = res.Err.Error()
		a.logger.Warnf("apply gain %.3f (request %s): %s", res.Gain, res.ID, res.Err)
	}
}
