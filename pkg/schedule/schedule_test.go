package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type memDumper struct {
	mu    sync.Mutex
	dumps []any
}

func (m *memDumper) DumpLastRunning(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dumps = append(m.dumps, v)
	return nil
}

func (m *memDumper) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dumps)
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := &memDumper{}
	s := New(ctx, func() any { return 42 }, d)

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, d.count(), "no checkpoints before Begin")

	s.Begin(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return d.count() >= 2 }, time.Second, time.Millisecond)

	s.Stop()
	time.Sleep(20 * time.Millisecond)
	n := d.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, d.count())
}

func TestScheduler_FinalCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &memDumper{}
	s := New(ctx, func() any { return "state" }, d)
	s.Begin(time.Hour)

	cancel()
	assert.Eventually(t, func() bool { return d.count() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "state", d.dumps[0])
}
