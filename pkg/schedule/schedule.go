// Package schedule periodically checkpoints the auto gain loop state so a
// crash still leaves a recent last.json behind.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"armor-exposure/pkg/utils"
)

// Dumper persists a snapshot.
type Dumper interface {
	DumpLastRunning(v any) error
}

type Scheduler struct {
	t        *time.Ticker
	snapshot func() any
	dumper   Dumper
	lock     sync.Mutex
	running  bool
	logger   *zap.SugaredLogger
}

// New creates a stopped scheduler; Begin starts the ticks. It exits when
// ctx is done, writing one last snapshot if it was running.
func New(ctx context.Context, snapshot func() any, dumper Dumper) *Scheduler {
	t := time.NewTicker(time.Second)
	t.Stop()

	s := &Scheduler{
		t:        t,
		snapshot: snapshot,
		dumper:   dumper,
		logger:   utils.GetLogger(),
	}
	s.startDeal(ctx)

	return s
}

// Begin checkpoints every interval. A non-positive interval stops it.
func (s *Scheduler) Begin(interval time.Duration) {
	if interval <= 0 {
		s.Stop()
		return
	}
	s.lock.Lock()
	s.running = true
	s.lock.Unlock()
	s.t.Reset(interval)
	s.logger.Infof("scheduler: checkpoint every %s", interval)
}

func (s *Scheduler) Stop() {
	s.t.Stop()
	s.lock.Lock()
	s.running = false
	s.lock.Unlock()
	s.logger.Info("scheduler: stopped")
}

func (s *Scheduler) dump() {
	if err := s.dumper.DumpLastRunning(s.snapshot()); err != nil {
		s.logger.Errorf("scheduler: checkpoint err: %s", err)
	}
}

func (s *Scheduler) startDeal(ctx context.Context) {
	go func(s *Scheduler) {
		for {
			select {
			case start := <-s.t.C:
				s.lock.Lock()
				running := s.running
				s.lock.Unlock()
				if !running {
					continue
				}
				s.dump()
				s.logger.Debugf("scheduler: took %s to checkpoint", time.Since(start))
			case <-ctx.Done():
				s.t.Stop()
				s.lock.Lock()
				running := s.running
				s.running = false
				s.lock.Unlock()
				if running {
					s.dump()
				}
				s.logger.Info("scheduler: stopped!")
				return
			}
		}
	}(s)
}
