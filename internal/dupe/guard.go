// Package dupe suppresses rapid resubmission of identical messages.
//
// The guard keeps one (text, timestamp) slot per sender, in memory only. It
// is best-effort protection against client retry storms and double-taps, not
// an exactly-once mechanism: state is lost on restart and must never be
// relied on for persistence guarantees.
package dupe

import (
	"sync"
	"time"
)

// DefaultWindow is the resubmission window within which an identical message
// from the same sender is rejected.
const DefaultWindow = 30 * time.Second

type slot struct {
	text string
	at   time.Time
}

// Guard is safe for concurrent use. Construct one per process and inject it
// into the request path; the clock is injectable for tests.
type Guard struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	slots  map[string]slot
}

func New(window time.Duration, now func() time.Time) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{
		window: window,
		now:    now,
		slots:  make(map[string]slot),
	}
}

// CheckAndRecord reports whether the message is accepted. A submission is a
// duplicate iff the sender's recorded text is identical and was accepted
// within the window. On acceptance the slot is overwritten, so the window is
// always measured from the last accepted message.
func (g *Guard) CheckAndRecord(senderID, text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if prev, ok := g.slots[senderID]; ok {
		if prev.text == text && now.Sub(prev.at) <= g.window {
			return false
		}
	}
	g.slots[senderID] = slot{text: text, at: now}
	return true
}
