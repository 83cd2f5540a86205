// Package testutil provides small helpers shared by tests across the
// simulator's packages.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/verayang01/clocksim/internal/event"
	"github.com/verayang01/clocksim/internal/node"
)

// Logger returns a logger that discards everything, keeping test output
// free of simulator noise.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Drain polls a mailbox until n messages arrive or the timeout passes,
// failing the test on timeout. It mirrors the consumer side of a link:
// poll-and-continue, never block.
func Drain(t *testing.T, mb *node.Mailbox, n int, timeout time.Duration) []event.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	got := make([]event.Message, 0, n)
	for len(got) < n {
		if msg, ok := mb.TryReceive(); ok {
			got = append(got, msg)
			continue
		}
		if time.Now().After(deadline) {
			t.Fatalf("drained %d of %d messages before timeout", len(got), n)
		}
		time.Sleep(time.Millisecond)
	}
	return got
}
