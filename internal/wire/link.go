package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/verayang01/clocksim/internal/event"
)

const (
	dialInitialBackoff = 25 * time.Millisecond
	dialMaxBackoff     = time.Second
)

// StartupError means a peer never became reachable within the startup
// deadline. It is fatal for the dialing node's startup.
type StartupError struct {
	Addr     string
	Attempts int
	Err      error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("peer %s unreachable after %d attempts: %v", e.Addr, e.Attempts, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// Link is the outbound half of one directed link: a single TCP connection
// carrying framed messages. One connection per link keeps the transport's
// byte order as the link's FIFO order.
//
// Link implements node.Sender. Send never blocks on the receiving node,
// only on the kernel's socket buffer.
type Link struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to a peer, retrying with bounded exponential backoff
// until the peer answers or the startup deadline passes. Exceeding the
// deadline returns a StartupError.
func Dial(ctx context.Context, addr string, startupDeadline time.Duration) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, startupDeadline)
	defer cancel()

	var (
		dialer   net.Dialer
		lastErr  error
		attempts int
	)
	backoff := dialInitialBackoff
	for {
		attempts++
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return &Link{conn: conn}, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, &StartupError{Addr: addr, Attempts: attempts, Err: lastErr}
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > dialMaxBackoff {
			backoff = dialMaxBackoff
		}
	}
}

// Send frames and writes one message.
func (l *Link) Send(msg event.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return WriteMessage(l.conn, msg)
}

// Close closes the underlying connection.
func (l *Link) Close() error {
	return l.conn.Close()
}
