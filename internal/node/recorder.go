package node

import (
	"fmt"
	"io"
	"sync"

	"github.com/verayang01/clocksim/internal/event"
)

// TextRecorder renders entries as human-readable lines, one per cycle,
// in the style of a per-node log file.
//
// Thread-safety: safe for concurrent use, though in practice each node
// owns its own recorder.
type TextRecorder struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewTextRecorder wraps a writer. The recorder takes ownership: Close
// closes the underlying writer.
func NewTextRecorder(w io.WriteCloser) *TextRecorder {
	return &TextRecorder{w: w}
}

// Record writes one formatted line.
func (r *TextRecorder) Record(e event.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var line string
	switch e.Kind {
	case event.KindReceive:
		line = fmt.Sprintf("%s RECEIVE from=%s clock=%d msg_clock=%d queue_len=%d\n",
			e.Wall.Format("15:04:05.000"), e.Peer, e.Clock, e.MessageClock, e.QueueLen)
	case event.KindSend:
		target := e.Peer
		if target == "" {
			target = "*" // broadcast
		}
		line = fmt.Sprintf("%s SEND to=%s clock=%d\n",
			e.Wall.Format("15:04:05.000"), target, e.Clock)
	default:
		line = fmt.Sprintf("%s INTERNAL clock=%d\n",
			e.Wall.Format("15:04:05.000"), e.Clock)
	}
	if _, err := io.WriteString(r.w, line); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TextRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}

// MultiRecorder fans one entry out to several sinks, failing on the first
// error. Used by the CLI to write both the durable store and a per-node
// text log.
type MultiRecorder []Recorder

// Record forwards the entry to every sink.
func (m MultiRecorder) Record(e event.Entry) error {
	for _, r := range m {
		if err := r.Record(e); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (m MultiRecorder) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
