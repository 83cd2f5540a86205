package harness

import (
	"sync"

	"github.com/verayang01/clocksim/internal/event"
)

// Collector is an in-memory recorder shared by every node in a scenario
// run. Entries keep global append order, which under sequential stepping
// is the exact execution order.
type Collector struct {
	mu      sync.Mutex
	entries []event.Entry
}

// Record appends one entry.
func (c *Collector) Record(e event.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

// Close is a no-op; the collector outlives the nodes feeding it.
func (c *Collector) Close() error { return nil }

// Entries returns a copy of everything recorded so far.
func (c *Collector) Entries() []event.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Entry(nil), c.entries...)
}
