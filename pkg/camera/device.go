package camera

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"armor-exposure/pkg/ov"
	"armor-exposure/pkg/types"
)

const (
	DefaultDevice = "/dev/video0"
	DefaultFPS    = 30
)

var (
	StartedErr    = errors.New("already started")
	NotStartedErr = errors.New("camera not started")
)

// Options describe the capture format.
type Options struct {
	Device      string
	Width       int
	Height      int
	FPS         int
	PixelFormat v4l2.FourCCType
}

type Camera struct {
	opts Options
	ctx  context.Context

	lock   sync.Mutex
	cancel context.CancelFunc
	camera *device.Device

	// frame size the driver negotiated, valid after Start
	width, height int

	settings types.CameraSettings
}

func New(ctx context.Context, opts Options) *Camera {
	if opts.Device == "" {
		opts.Device = DefaultDevice
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &Camera{ctx: ctx, opts: opts, settings: make(types.CameraSettings)}
}

func (c *Camera) Options() Options {
	return c.opts
}

func (c *Camera) Name() string {
	return c.opts.Device
}

func (c *Camera) open() error {
	if c.camera != nil {
		return StartedErr
	}
	camera, err := device.Open(
		c.opts.Device,
		device.WithBufferSize(1),
		device.WithFPS(uint32(c.opts.FPS)),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: c.opts.PixelFormat,
			Width:       uint32(c.opts.Width),
			Height:      uint32(c.opts.Height),
			Field:       v4l2.FieldNone,
		}),
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.opts.Device, err)
	}
	c.camera = camera

	return nil
}

func (c *Camera) IsStarted() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.camera != nil
}

// Start opens the device, starts streaming and applies the stored settings.
// The returned channel carries raw frame buffers in the configured format.
func (c *Camera) Start() (<-chan []byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	logger.Infof("start camera %s in %d*%d@%d", c.opts.Device, c.opts.Width, c.opts.Height, c.opts.FPS)
	err := c.open()
	if err != nil {
		return nil, err
	}
	pf, err := c.camera.GetPixFormat()
	c.width, c.height = negotiatedSize(c.opts, pf, err)
	if c.width != c.opts.Width || c.height != c.opts.Height {
		logger.Warnf("driver negotiated %d*%d instead of %d*%d", c.width, c.height, c.opts.Width, c.opts.Height)
	}

	newCtx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	if err = c.camera.Start(newCtx); err != nil {
		cancel()
		_ = c.camera.Close()
		c.camera = nil
		return nil, err
	}

	c.applySettings()

	return c.camera.GetOutput(), nil
}

// FrameSize is the frame size the driver settled on when the camera was
// started. Raw buffers must be decoded with it, not the requested size.
func (c *Camera) FrameSize() (width, height int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.width, c.height
}

// negotiatedSize prefers the format read back from the driver and falls back
// to the requested size when it could not be read.
func negotiatedSize(opts Options, pf v4l2.PixFormat, err error) (width, height int) {
	if err != nil {
		logger.Warnf("read back pixel format: %s", err)
		return opts.Width, opts.Height
	}
	if pf.Width == 0 || pf.Height == 0 {
		return opts.Width, opts.Height
	}
	return int(pf.Width), int(pf.Height)
}

func (c *Camera) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.cancel != nil {
		// let the stream goroutine see ctx.Done before the device is closed
		c.cancel()
		time.Sleep(100 * time.Millisecond)
		c.cancel = nil
	}
	if c.camera != nil {
		err := c.camera.Close()
		c.camera = nil
		return err
	}
	return nil
}

func (c *Camera) UpdateSettings(settings types.CameraSettings) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.settings = maps.Clone(settings)

	c.applySettings()
}

func (c *Camera) applySettings() {
	if c.camera == nil {
		return
	}
	for k, v := range c.settings {
		if err := c.camera.SetControlValue(k, v); err != nil {
			logger.Warnf("set ctrl(%d) to %d, err: %s", k, v, err)
		}
	}
}

// SetControlValue records the value and writes it to the device if it is
// streaming. The auto gain sink writes gain through here.
func (c *Camera) SetControlValue(key v4l2.CtrlID, value v4l2.CtrlValue) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.settings[key] = value
	if c.camera == nil {
		return NotStartedErr
	}

	return c.camera.SetControlValue(key, value)
}

// Controls reads the exposure related controls back from the device.
func (c *Camera) Controls() ([]ov.Control, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.camera == nil {
		return nil, NotStartedErr
	}

	return ToControls(ReadControls(c.camera.Fd())), nil
}
