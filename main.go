package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"github.com/vladimirvivien/go4vl/v4l2"
	"go.uber.org/zap"

	"armor-exposure/pkg/api"
	"armor-exposure/pkg/camera"
	"armor-exposure/pkg/config"
	"armor-exposure/pkg/detect"
	"armor-exposure/pkg/pipeline"
	"armor-exposure/pkg/sink"
	"armor-exposure/pkg/schedule"
	"armor-exposure/pkg/storage"
	"armor-exposure/pkg/storage/consts"
	"armor-exposure/pkg/utils"
	imageutil "armor-exposure/pkg/utils/image"
	"armor-exposure/pkg/video"
	"armor-exposure/pkg/webdav"
)

var (
	port       = flag.Int("port", 9999, "api port")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port for the data directory")
	checkpoint = flag.Int("checkpoint-ms", 5000, "how often to save the loop state to last.json, 0 disables")
	storageDir = flag.String("dir", "./armor-exposure", "directory for config.json and last.json")
	devName    = flag.String("dev", camera.DefaultDevice, "v4l2 device")
	width      = flag.Int("width", 1280, "")
	height     = flag.Int("height", 1024, "")
	fps        = flag.Int("fps", camera.DefaultFPS, "")
	pixFmt     = flag.String("pixfmt", "yuyv", "yuyv, rgb24 or mjpeg")
	logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	dryRun     = flag.Bool("dry-run", false, "meter and step the controller but never write gain to the camera")

	logger *zap.SugaredLogger
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	if err := utils.SetLevel(*logLevel); err != nil {
		logger.Fatal(err)
	}
	ctx, stop := utils.SignalContext(context.Background())
	defer stop()

	// init storage
	stg, err := storage.New(*storageDir)
	if err != nil {
		logger.Fatal(err)
	}
	defer stg.Close()
	cfg, err := stg.LoadConfig()
	if err != nil {
		logger.Fatal(err)
	}
	var last pipeline.Status
	if ok, err := stg.LoadLastRunning(&last); err != nil {
		logger.Warnf("read last running state: %s", err)
	} else if ok {
		logger.Infof("last run stopped at gain %.3f after %d steps", last.State.CurrentGain, last.Steps)
	}

	// init camera
	format, err := parsePixFmt(*pixFmt)
	if err != nil {
		logger.Fatal(err)
	}
	decode, err := imageutil.DecoderFor(format)
	if err != nil {
		logger.Fatal(err)
	}
	cam := camera.New(ctx, camera.Options{
		Device:      *devName,
		Width:       *width,
		Height:      *height,
		FPS:         *fps,
		PixelFormat: format,
	})
	cam.UpdateSettings(camera.ManualSettings(cfg))
	raw, err := cam.Start()
	if err != nil {
		logger.Fatal(err)
	}
	defer cam.Stop()

	// init auto gain
	var gainSink sink.ParameterSink = sink.Discard
	var device *sink.Device
	if !*dryRun {
		device = sink.NewDevice(cam, camera.CtrlGain, cfg.GainScale)
		defer device.Close()
		gainSink = device
	}
	box := detect.NewMailbox(utils.MsToDuration(cfg.TargetTTLMs))
	loop, err := pipeline.New(cfg, gainSink, box)
	if err != nil {
		logger.Fatal(err)
	}
	exposure := cfg.InitialExposure
	loop.OnReconfigure = func(cfg config.Config) {
		if cfg.InitialExposure != exposure {
			exposure = cfg.InitialExposure
			value := camera.ManualSettings(cfg)[camera.CtrlExposureAbsolute]
			if err := cam.SetControlValue(camera.CtrlExposureAbsolute, value); err != nil {
				logger.Warnf("set exposure to %d: %s", value, err)
			}
		}
		if device != nil {
			device.SetScale(cfg.GainScale)
		}
		box.SetTTL(utils.MsToDuration(cfg.TargetTTLMs))
		if err := stg.SaveConfig(cfg); err != nil {
			logger.Errorf("save config: %s", err)
		}
	}

	frameWidth, frameHeight := cam.FrameSize()
	stream := camera.NewStream(decode, frameWidth, frameHeight)
	recorder := video.NewRecorder(path.Join(*storageDir, consts.DefaultRecordingsDir), *fps)
	go func() {
		frames := recorder.Tee(ctx, stream.Run(ctx, raw))
		if err := loop.Run(ctx, frames); err != nil && ctx.Err() == nil {
			logger.Errorf("auto gain loop stopped: %s", err)
		}
	}()
	defer func() {
		if recorder.Recording() {
			_, _ = recorder.Stop()
		}
	}()

	checkpoints := schedule.New(ctx, func() any { return loop.Status() }, stg)
	checkpoints.Begin(utils.MsToDuration(*checkpoint))

	share := webdav.New(*webdavPort, *storageDir)
	defer share.Stop()

	// init gin
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("page not found"))
	})
	api.New(api.Options{
		Loop:     loop,
		Mailbox:  box,
		Device:   cam,
		Frames:   stream,
		Recorder: recorder,
		Share:    share,
	}).Register(r.Group("/api"))

	if err = utils.ListenAndServe(ctx, r, *port); err != nil {
		logger.Error(err)
	}

	if err = stg.DumpLastRunning(loop.Status()); err != nil {
		logger.Warnf("save last running state: %s", err)
	}
}

func parsePixFmt(name string) (v4l2.FourCCType, error) {
	switch strings.ToLower(name) {
	case "yuyv":
		return v4l2.PixelFmtYUYV, nil
	case "rgb24", "rgb":
		return v4l2.PixelFmtRGB24, nil
	case "mjpeg", "mjpg":
		return v4l2.PixelFmtMJPEG, nil
	default:
		return 0, fmt.Errorf("unknown pixel format %q", name)
	}
}
