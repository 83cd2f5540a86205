// Package wire frames messages for the point-to-point links between
// nodes: a 4-byte big-endian length prefix followed by a JSON body,
// carried over one TCP connection per directed link so per-link FIFO
// ordering is preserved by the transport.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/verayang01/clocksim/internal/event"
)

// MaxFrameSize bounds a single frame body. Anything larger is treated as
// a corrupt stream, not a big message.
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned when a frame header announces a body
// larger than MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// MalformedFrameError marks an inbound frame that decoded to garbage.
// The receiver discards the message without advancing its clock; the
// stream itself stays usable.
type MalformedFrameError struct {
	Reason string
	Err    error
}

func (e *MalformedFrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

func (e *MalformedFrameError) Unwrap() error { return e.Err }

// IsMalformed reports whether err marks a discardable bad frame, as
// opposed to a broken connection.
func IsMalformed(err error) bool {
	var me *MalformedFrameError
	return errors.As(err, &me)
}

// WriteMessage frames and writes one message.
func WriteMessage(w io.Writer, msg event.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message. A body that fails to decode, or
// decodes without a sender or message ID, yields a MalformedFrameError;
// the caller may keep reading the stream. Connection-level failures are
// returned as-is (io.EOF on clean close).
func ReadMessage(r io.Reader) (event.Message, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return event.Message{}, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return event.Message{}, ErrFrameTooLarge
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return event.Message{}, fmt.Errorf("read frame body: %w", err)
	}

	var msg event.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return event.Message{}, &MalformedFrameError{Reason: "invalid JSON body", Err: err}
	}
	// A message without provenance cannot participate in causal ordering,
	// so a partially-filled body is dropped wholesale.
	if msg.Sender == "" {
		return event.Message{}, &MalformedFrameError{Reason: "missing sender"}
	}
	if msg.ID == "" {
		return event.Message{}, &MalformedFrameError{Reason: "missing message id"}
	}
	return msg, nil
}
