// Package video records the frames the auto gain loop sees into MJPEG AVI
// files, for replaying tuning sessions offline.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/icza/mjpeg"
	"go.uber.org/zap"

	"armor-exposure/pkg/utils"
)

const (
	DefaultQuality = 80
	DefaultExt     = ".avi"

	queueSize = 8
)

var (
	ErrRecording    = errors.New("already recording")
	ErrNotRecording = errors.New("not recording")
)

// Recording summarizes a finished session.
type Recording struct {
	Path    string        `json:"path"`
	Frames  int           `json:"frames"`
	Dropped uint64        `json:"dropped"`
	Elapsed time.Duration `json:"elapsed"`
}

// Recorder writes gray frames to one AVI file per session. Frames are
// encoded on a separate goroutine; a frame arriving while the queue is
// full is dropped.
type Recorder struct {
	dir     string
	fps     int
	quality int
	logger  *zap.SugaredLogger

	lock    sync.Mutex
	session *session
}

type session struct {
	path    string
	started time.Time
	frames  chan *image.Gray
	done    chan struct{}
	dropped atomic.Uint64

	cnt int
	err error
}

func NewRecorder(dir string, fps int) *Recorder {
	return &Recorder{
		dir:     dir,
		fps:     fps,
		quality: DefaultQuality,
		logger:  utils.GetLogger(),
	}
}

// Start opens a new session and returns the file it writes to. The file is
// created when the first frame arrives, sized after that frame.
func (r *Recorder) Start() (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.session != nil {
		return "", ErrRecording
	}
	if err := os.MkdirAll(r.dir, 0o777); err != nil {
		return "", err
	}

	s := &session{
		path:    path.Join(r.dir, time.Now().Format("20060102-150405.000")+DefaultExt),
		started: time.Now(),
		frames:  make(chan *image.Gray, queueSize),
		done:    make(chan struct{}),
	}
	r.session = s
	go r.write(s)
	r.logger.Infof("recording to %s", s.path)

	return s.path, nil
}

// Stop ends the session once every queued frame has been written.
func (r *Recorder) Stop() (Recording, error) {
	r.lock.Lock()
	s := r.session
	r.session = nil
	if s != nil {
		close(s.frames)
	}
	r.lock.Unlock()
	if s == nil {
		return Recording{}, ErrNotRecording
	}

	<-s.done
	rec := Recording{
		Path:    s.path,
		Frames:  s.cnt,
		Dropped: s.dropped.Load(),
		Elapsed: time.Since(s.started),
	}
	r.logger.Infof("recorded %d frames to %s, %d dropped", rec.Frames, rec.Path, rec.Dropped)

	return rec, s.err
}

func (r *Recorder) Recording() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.session != nil
}

// Add queues img if a session is running. It never blocks.
func (r *Recorder) Add(img *image.Gray) {
	r.lock.Lock()
	defer r.lock.Unlock()
	s := r.session
	if s == nil || img == nil {
		return
	}
	select {
	case s.frames <- img:
	default:
		s.dropped.Add(1)
	}
}

// Tee passes frames from in through to the returned channel, offering each
// one to the running session on the way.
func (r *Recorder) Tee(ctx context.Context, in <-chan *image.Gray) <-chan *image.Gray {
	out := make(chan *image.Gray, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case img, ok := <-in:
				if !ok {
					return
				}
				r.Add(img)
				select {
				case out <- img:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (r *Recorder) write(s *session) {
	defer close(s.done)

	var (
		aw  mjpeg.AviWriter
		buf bytes.Buffer
	)
	for img := range s.frames {
		if s.err != nil {
			continue
		}
		if aw == nil {
			size := img.Bounds().Size()
			aw, s.err = mjpeg.New(s.path, int32(size.X), int32(size.Y), int32(r.fps))
			if s.err != nil {
				s.err = fmt.Errorf("create %s: %w", s.path, s.err)
				continue
			}
		}
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			s.err = fmt.Errorf("encode frame %d: %w", s.cnt, err)
			continue
		}
		if err := aw.AddFrame(buf.Bytes()); err != nil {
			s.err = fmt.Errorf("write frame %d: %w", s.cnt, err)
			continue
		}
		s.cnt++
	}
	if aw != nil {
		if err := aw.Close(); err != nil && s.err == nil {
			s.err = err
		}
	}
}
