package event

import (
	"sync"
	"time"
)

// IDGenerator hands out time-derived ids (unix milliseconds) that are
// strictly increasing for the lifetime of the process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator creates a generator; now defaults to time.Now
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Observe raises the floor above every id in events so freshly loaded
// collections never collide with new ids.
func (g *IDGenerator) Observe(events []Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range events {
		if e.ID > g.last {
			g.last = e.ID
		}
	}
}

// Next returns a new unique id
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
