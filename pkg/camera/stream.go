package camera

import (
	"context"
	"image"
	"sync/atomic"

	imageutil "armor-exposure/pkg/utils/image"
)

// Stream decodes raw frames into gray images for the auto gain loop. The
// output holds a single frame; when the consumer is busy the new frame is
// dropped rather than queued.
type Stream struct {
	decode        imageutil.Decoder
	width, height int

	decoded atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewStream(decode imageutil.Decoder, width, height int) *Stream {
	return &Stream{decode: decode, width: width, height: height}
}

// Run forwards frames from raw until it closes or ctx is done. The returned
// channel is closed when Run stops.
func (s *Stream) Run(ctx context.Context, raw <-chan []byte) <-chan *image.Gray {
	out := make(chan *image.Gray, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-raw:
				if !ok {
					return
				}
				if len(frame) == 0 {
					continue
				}
				img, err := s.decode(frame, s.width, s.height)
				if err != nil {
					if s.failed.Add(1) == 1 {
						logger.Warnf("decode frame: %s", err)
					}
					continue
				}
				s.decoded.Add(1)
				select {
				case out <- img:
				default:
					s.dropped.Add(1)
				}
			}
		}
	}()

	return out
}

func (s *Stream) Decoded() uint64 { return s.decoded.Load() }

func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

func (s *Stream) Failed() uint64 { return s.failed.Load() }
