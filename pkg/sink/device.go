package sink

import (
	"fmt"
	"math"
	"sync"

	"github.com/vladimirvivien/go4vl/v4l2"
)

// ControlSetter writes a V4L2 control. *camera.Camera satisfies it.
type ControlSetter interface {
	SetControlValue(id v4l2.CtrlID, value v4l2.CtrlValue) error
}

// Device applies gain through a V4L2 control on a single worker goroutine.
// Only the newest request waits for the worker: one that is replaced before
// the worker picks it up completes with ErrSuperseded.
type Device struct {
	setter ControlSetter
	ctrl   v4l2.CtrlID

	mu     sync.Mutex
	scale  float64
	next   *request
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewDevice starts the worker. scale converts gain into control units.
func NewDevice(setter ControlSetter, ctrl v4l2.CtrlID, scale float64) *Device {
	d := &Device{
		setter: setter,
		ctrl:   ctrl,
		scale:  scale,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.loop()

	return d
}

func (d *Device) Submit(gain float64) Pending {
	req := newRequest(gain)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		req.complete(ErrClosed)
		return req.ch
	}
	prev := d.next
	d.next = req
	d.mu.Unlock()

	if prev != nil {
		prev.complete(ErrSuperseded)
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}

	return req.ch
}

// SetScale changes the gain to control-unit factor for later requests.
func (d *Device) SetScale(scale float64) {
	d.mu.Lock()
	d.scale = scale
	d.mu.Unlock()
}

// Close stops the worker. A request still waiting completes with ErrClosed;
// one already being applied finishes normally.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	prev := d.next
	d.next = nil
	d.mu.Unlock()

	if prev != nil {
		prev.complete(ErrClosed)
	}
	close(d.done)

	return nil
}

func (d *Device) loop() {
	for {
		select {
		case <-d.done:
			return
		case <-d.wake:
		}

		d.mu.Lock()
		req := d.next
		d.next = nil
		scale := d.scale
		d.mu.Unlock()
		if req == nil {
			continue
		}

		value := v4l2.CtrlValue(math.Round(req.gain * scale))
		err := d.setter.SetControlValue(d.ctrl, value)
		if err != nil {
			err = fmt.Errorf("set control %d to %d: %w", d.ctrl, value, err)
		}
		req.complete(err)
	}
}
