// Package detect holds the hand-off point between the external armor
// detector and the auto gain loop.
package detect

import (
	"sync"
	"time"

	"armor-exposure/pkg/types"
)

// Source yields the target to meter on for the frame being processed, or nil.
type Source interface {
	Target(now time.Time) *types.Target
}

// Mailbox keeps the most recent target reported by the detector. A report
// older than the TTL no longer counts.
type Mailbox struct {
	mu       sync.RWMutex
	target   *types.Target
	reported time.Time
	ttl      time.Duration
}

func NewMailbox(ttl time.Duration) *Mailbox {
	return &Mailbox{ttl: ttl}
}

// Report replaces the current target. A nil target clears it.
func (m *Mailbox) Report(target *types.Target, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if target == nil {
		m.target = nil
		return
	}
	t := *target
	m.target = &t
	m.reported = at
}

// Clear drops the current target.
func (m *Mailbox) Clear() {
	m.Report(nil, time.Time{})
}

// SetTTL changes how long a report stays valid. 0 disables expiry.
func (m *Mailbox) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	m.ttl = ttl
	m.mu.Unlock()
}

func (m *Mailbox) Target(now time.Time) *types.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.target == nil {
		return nil
	}
	if m.ttl > 0 && now.Sub(m.reported) > m.ttl {
		return nil
	}
	t := *m.target
	return &t
}

// Static always returns the same target. Useful for replays and tests.
type Static struct {
	T *types.Target
}

func (s Static) Target(time.Time) *types.Target {
	return s.T
}
