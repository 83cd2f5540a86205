package wire

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/verayang01/clocksim/internal/node"
)

// Listener is the inbound side of a node's links: it accepts connections
// from peers and routes each decoded message into the inbound mailbox for
// that message's sender. Malformed frames are logged and dropped without
// touching any mailbox.
type Listener struct {
	ln     net.Listener
	routes map[string]*node.Mailbox
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Listen binds addr and starts accepting. routes maps a sender's node ID
// to the mailbox its messages are delivered to; messages from unknown
// senders are dropped.
func Listen(addr string, routes map[string]*node.Mailbox, logger *slog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Listener{
		ln:     ln,
		routes: routes,
		logger: logger.With("listen", ln.Addr().String()),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops accepting and waits for in-flight connection handlers.
func (l *Listener) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !l.isClosed() {
				l.logger.Error("accept failed", "error", err)
			}
			return
		}
		l.wg.Add(1)
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if IsMalformed(err) {
				// Drop the message; the local clock never sees it.
				l.logger.Warn("discarding malformed message", "error", err)
				continue
			}
			if !errors.Is(err, io.EOF) && !l.isClosed() {
				l.logger.Warn("connection read failed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		mb, ok := l.routes[msg.Sender]
		if !ok {
			l.logger.Warn("message from unknown sender", "sender", msg.Sender)
			continue
		}
		if err := mb.Send(msg); err != nil {
			// Receiver shut down; nothing more to deliver on this conn.
			return
		}
	}
}
