package node

import (
	"errors"
	"sync"

	"github.com/verayang01/clocksim/internal/event"
)

// ErrMailboxClosed is returned by Send after the receiving node has shut
// the link down. Senders treat it as "peer gone", not as a fault.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is the FIFO queue for one directed link (peer → owning node).
//
// The sending node is the producer and the owning node the sole consumer.
// The queue is unbounded so the producer never blocks; the consumer polls
// with TryReceive and never blocks either. The mutex makes individual
// append/dequeue operations atomic; it is the only cross-goroutine
// synchronization point between two nodes.
//
// Ordering contract: messages dequeue in the exact order enqueued.
// No reordering, no loss, no duplication while the mailbox is open.
type Mailbox struct {
	mu     sync.Mutex
	queue  []event.Message
	closed bool
}

// NewMailbox creates an empty open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		queue: make([]event.Message, 0, 16),
	}
}

// Send appends a message at the tail. It never blocks and always succeeds
// while the mailbox is open; after Close it returns ErrMailboxClosed.
func (m *Mailbox) Send(msg event.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMailboxClosed
	}
	m.queue = append(m.queue, msg)
	return nil
}

// TryReceive removes and returns the head message. It never blocks;
// the second return value is false when the mailbox is empty.
func (m *Mailbox) TryReceive() (event.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return event.Message{}, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// Len returns the current queue depth.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the mailbox closed. Subsequent Sends fail; messages already
// enqueued remain readable through TryReceive. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Sender is the outbound half of a link as seen by the node runtime:
// either the peer's inbound Mailbox (in-process wiring) or a framed
// network connection.
type Sender interface {
	Send(event.Message) error
}
