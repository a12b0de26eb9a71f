// Command sim runs the auto gain loop against a synthetic scene whose
// brightness follows the applied gain, for tuning the PID constants without
// a camera.
package main

import (
	"context"
	"flag"
	"image"
	"image/color"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"armor-exposure/pkg/config"
	"armor-exposure/pkg/detect"
	"armor-exposure/pkg/pipeline"
	"armor-exposure/pkg/sink"
	"armor-exposure/pkg/types"
	"armor-exposure/pkg/utils"
)

var logger = utils.GetLogger()

// scene renders a dark background with two light bars. Pixel values scale
// with the gain last applied by the sink.
type scene struct {
	width, height int
	background    float64
	bars          float64
	refGain       float64
	gain          atomic.Uint64
}

func (s *scene) setGain(g float64) { s.gain.Store(math.Float64bits(g)) }

func (s *scene) currentGain() float64 { return math.Float64frombits(s.gain.Load()) }

func (s *scene) target() *types.Target {
	cx, cy := float64(s.width)/2, float64(s.height)/2
	return &types.Target{
		Left:  types.Rect{X: cx - 60, Y: cy - 20, Width: 10, Height: 40},
		Right: types.Rect{X: cx + 50, Y: cy - 20, Width: 10, Height: 40},
	}
}

func (s *scene) render() *image.Gray {
	k := s.currentGain() / s.refGain
	bg := clamp8(s.background * k)
	bar := clamp8(s.bars * k)

	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	for i := range img.Pix {
		img.Pix[i] = bg
	}
	t := s.target()
	for _, r := range []types.Rect{t.Left, t.Right} {
		for y := int(r.Y); y < int(r.Y+r.Height); y++ {
			for x := int(r.X); x < int(r.X+r.Width); x++ {
				img.SetGray(x, y, color.Gray{Y: bar})
			}
		}
	}

	return img
}

func clamp8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

func main() {
	frames := flag.Int("frames", 300, "frames to simulate")
	fps := flag.Int("fps", 100, "")
	latency := flag.Int("latency-ms", 5, "time the sink takes to apply a gain")
	lockEvery := flag.Int("lock-every", 100, "toggle target lock every n frames, 0 keeps the global fallback")
	background := flag.Float64("background", 20, "background brightness at the initial gain")
	bars := flag.Float64("bars", 120, "light bar brightness at the initial gain")
	cfgFile := flag.String("config", "", "json config, defaults when empty")
	logLevel := flag.String("log-level", "info", "")
	flag.Parse()

	if err := utils.SetLevel(*logLevel); err != nil {
		logger.Fatal(err)
	}
	cfg := config.Default()
	if *cfgFile != "" {
		data, err := os.ReadFile(*cfgFile)
		if err != nil {
			logger.Fatal(err)
		}
		if err = json.Unmarshal(data, &cfg); err != nil {
			logger.Fatal(err)
		}
	}

	s := &scene{
		width:      640,
		height:     480,
		background: *background,
		bars:       *bars,
		refGain:    cfg.InitialGain,
	}
	s.setGain(cfg.InitialGain)

	apply := sink.Func(func(gain float64) error {
		time.Sleep(utils.MsToDuration(*latency))
		s.setGain(gain)
		return nil
	})
	box := detect.NewMailbox(0)
	loop, err := pipeline.New(cfg, apply, box)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := utils.SignalContext(context.Background())
	defer stop()
	ch := make(chan *image.Gray)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(time.Second / time.Duration(*fps))
		defer ticker.Stop()
		for i := 0; i < *frames; i++ {
			if *lockEvery > 0 && (i / *lockEvery)%2 == 1 {
				box.Report(s.target(), time.Now())
			} else {
				box.Clear()
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case ch <- s.render():
			case <-ctx.Done():
				return
			}
			st := loop.Status()
			logger.Debugf("frame %d: %s %.2f -> setpoint %.1f, gain %.3f (applied %.3f)",
				st.Last.Seq, st.Last.Sample.Mode, st.Last.Sample.Value, st.Last.Setpoint, st.Last.Gain, s.currentGain())
		}
	}()

	if err = loop.Run(ctx, ch); err != nil {
		logger.Warn(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(loop.Status()); err != nil {
		logger.Fatal(err)
	}
}
