// Package event defines the record types shared by the node runtime,
// the wire codec, and the event log store.
package event

import "time"

// Kind classifies a processed cycle action.
type Kind string

const (
	// KindSend records a message handed to one peer or broadcast to all.
	KindSend Kind = "SEND"
	// KindReceive records a message dequeued from an inbound mailbox.
	KindReceive Kind = "RECEIVE"
	// KindInternal records a cycle that advanced the clock with no message.
	KindInternal Kind = "INTERNAL"
)

// PayloadClock is the only payload kind the simulator currently sends:
// the message body carries nothing beyond the sender's clock value.
const PayloadClock = "clock"

// Message is the unit exchanged between nodes.
//
// A Message is immutable once constructed. Clock carries the sender's
// logical clock value after the tick that produced the send.
type Message struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Clock  uint64 `json:"clock"`
	Kind   string `json:"kind"`
}

// Entry is one append-only event log record. A node emits exactly one
// Entry per processed cycle action.
//
// QueueLen is the depth of the drained mailbox measured after the
// dequeue, so an Entry for the oldest of three queued messages reports 2.
// Peer is the target node for a single-peer SEND (empty for broadcast)
// and the sending node for a RECEIVE. MessageID and MessageClock are set
// only when the entry describes a message (SEND and RECEIVE).
type Entry struct {
	Node         string    `json:"node"`
	Seq          int64     `json:"seq"`
	Wall         time.Time `json:"wall"`
	Kind         Kind      `json:"kind"`
	Clock        uint64    `json:"clock"`
	QueueLen     int       `json:"queue_len"`
	Peer         string    `json:"peer,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	MessageClock uint64    `json:"message_clock,omitempty"`
}
