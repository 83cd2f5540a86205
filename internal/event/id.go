package event

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MessageIDGenerator produces unique message identifiers.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type MessageIDGenerator interface {
	NextID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 message IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, which keeps
// message IDs roughly sortable by creation time when reading a trace.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NextID creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NextID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predictable IDs ("<prefix>-1", "<prefix>-2", ...)
// so deterministic runs produce byte-stable traces for golden comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator with the given ID prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// NextID returns the next ID in the sequence.
func (g *SequenceGenerator) NextID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
