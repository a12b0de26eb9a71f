// Package sink delivers gain requests to whatever applies them to the camera.
// Submitting never blocks the frame loop; the outcome arrives later on the
// returned Pending channel and is only of diagnostic interest.
package sink

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSuperseded = errors.New("superseded by a newer gain request")
	ErrClosed     = errors.New("sink closed")
)

// Result is the outcome of one gain request.
type Result struct {
	ID      string        `json:"id"`
	Gain    float64       `json:"gain"`
	Err     error         `json:"-"`
	Latency time.Duration `json:"latency"`
}

// Pending yields exactly one Result and is then closed.
type Pending <-chan Result

// ParameterSink accepts "set gain" requests without waiting for them.
type ParameterSink interface {
	Submit(gain float64) Pending
}

// Func applies each request by calling the function on its own goroutine.
// Requests are not coordinated; the last one to finish wins.
type Func func(gain float64) error

func (f Func) Submit(gain float64) Pending {
	req := newRequest(gain)
	go func() {
		req.complete(f(gain))
	}()
	return req.ch
}

type discard struct{}

// Discard accepts every request and reports success immediately.
var Discard ParameterSink = discard{}

func (discard) Submit(gain float64) Pending {
	req := newRequest(gain)
	req.complete(nil)
	return req.ch
}

type request struct {
	id   string
	gain float64
	at   time.Time
	ch   chan Result
}

func newRequest(gain float64) *request {
	return &request{
		id:   uuid.NewString(),
		gain: gain,
		at:   time.Now(),
		ch:   make(chan Result, 1),
	}
}

func (r *request) complete(err error) {
	r.ch <- Result{
		ID:      r.id,
		Gain:    r.gain,
		Err:     err,
		Latency: time.Since(r.at),
	}
	close(r.ch)
}
