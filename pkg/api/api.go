// Package api exposes the auto gain loop over HTTP.
package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"armor-exposure/pkg/detect"
	"armor-exposure/pkg/ov"
	"armor-exposure/pkg/pipeline"
	"armor-exposure/pkg/utils"
	"armor-exposure/pkg/utils/ps"
	"armor-exposure/pkg/video"
	"armor-exposure/pkg/webdav"
)

// Device is the camera as the status endpoint sees it.
type Device interface {
	Name() string
	IsStarted() bool
	Controls() ([]ov.Control, error)
}

// FrameStats reports how many frames the stream had to drop.
type FrameStats interface {
	Dropped() uint64
}

// Options carries what the handlers act on. Loop and Mailbox are required;
// the rest may be nil when the feature is not available.
type Options struct {
	Loop     *pipeline.AutoGain
	Mailbox  *detect.Mailbox
	Device   Device
	Frames   FrameStats
	Recorder *video.Recorder
	Share    *webdav.Share
}

type Server struct {
	Options
	logger *zap.SugaredLogger
}

func New(opts Options) *Server {
	return &Server{
		Options: opts,
		logger:  utils.GetLogger(),
	}
}

// Register mounts the routes under r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/state", s.getState)

	r.GET("/config", s.getConfig)
	r.PUT("/config", s.updateConfig)

	targetRouter := r.Group("/target")
	targetRouter.PUT("", s.reportTarget)
	targetRouter.DELETE("", s.clearTarget)

	r.POST("/controller/reset", s.resetController)

	deviceRouter := r.Group("/device")
	deviceRouter.GET("/status", s.deviceStatus)
	deviceRouter.PUT("/webdav", s.ctlWebdav)

	recordRouter := r.Group("/record")
	recordRouter.POST("/start", s.startRecord)
	recordRouter.POST("/stop", s.stopRecord)
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(s.Loop.Status()))
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, jsend.Success(s.Loop.Config()))
}

// updateConfig merges the posted fields into the running config.
func (s *Server) updateConfig(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	cfg := s.Loop.Config()
	if err = json.Unmarshal(body, &cfg); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	if err = s.Loop.Reconfigure(cfg); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}

	c.JSON(http.StatusOK, jsend.Success(cfg))
}

func (s *Server) reportTarget(c *gin.Context) {
	var report ov.TargetReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	s.Mailbox.Report(report.Target(), time.Now())

	c.JSON(http.StatusOK, jsend.Success(nil))
}

func (s *Server) clearTarget(c *gin.Context) {
	s.Mailbox.Clear()
	c.JSON(http.StatusOK, jsend.Success(nil))
}

func (s *Server) resetController(c *gin.Context) {
	s.Loop.Reset()
	c.JSON(http.StatusOK, jsend.Success(s.Loop.Status().State))
}

func (s *Server) deviceStatus(c *gin.Context) {
	var status ov.DeviceStatus
	if s.Device != nil {
		status.Device = s.Device.Name()
		status.Started = s.Device.IsStarted()
		if status.Started {
			controls, err := s.Device.Controls()
			if err != nil {
				s.logger.Warnf("read camera controls: %s", err)
			}
			status.Controls = controls
		}
	}
	if s.Frames != nil {
		status.Dropped = s.Frames.Dropped()
	}
	if s.Recorder != nil {
		status.Recording = s.Recorder.Recording()
	}
	if c.Query("host") != "false" {
		host, err := ps.Sample(int32(os.Getpid()))
		if err != nil {
			s.logger.Warnf("sample host status: %s", err)
		} else {
			status.Host = &host
		}
	}

	c.JSON(http.StatusOK, jsend.Success(status))
}

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"
)

func (s *Server) ctlWebdav(c *gin.Context) {
	if s.Share == nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("webdav is not enabled"))
		return
	}
	switch c.Query("op") {
	case webDavStart:
		addr, err := s.Share.Start()
		if err != nil {
			internalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(addr))
	case webDavShutdown:
		if err := s.Share.Stop(); err != nil {
			internalErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func (s *Server) startRecord(c *gin.Context) {
	if s.Recorder == nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("recording is not enabled"))
		return
	}
	file, err := s.Recorder.Start()
	if errors.Is(err, video.ErrRecording) {
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
		return
	}
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(file))
}

func (s *Server) stopRecord(c *gin.Context) {
	if s.Recorder == nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr("recording is not enabled"))
		return
	}
	rec, err := s.Recorder.Stop()
	if errors.Is(err, video.ErrNotRecording) {
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
		return
	}
	if err != nil {
		internalErr(c, err)
		return
	}

	c.JSON(http.StatusOK, jsend.Success(rec))
}

func internalErr(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}
