// Package node implements the node runtime: the per-link mailbox, the
// per-cycle action scheduler, and the loop that drives one simulated
// node's logical clock and event log.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/verayang01/clocksim/internal/clock"
	"github.com/verayang01/clocksim/internal/event"
)

// State is the lifecycle state of a node runtime.
type State int32

const (
	// StateNew is the state before Run is called.
	StateNew State = iota
	// StateRunning means the cycle loop is active.
	StateRunning
	// StateStopping means cancellation was observed; the current cycle
	// finishes and the loop exits.
	StateStopping
	// StateStopped is terminal: inbound mailboxes closed, recorder closed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Recorder is the durable append-only sink for event log entries.
// Implemented by the sqlite store, the per-node text log writer, and the
// harness's in-memory collector.
type Recorder interface {
	Record(event.Entry) error
	Close() error
}

// Config assembles the collaborators for one node. The harness owns
// construction and wiring; the node itself never dials or listens.
type Config struct {
	ID       string
	Inbound  map[string]*Mailbox // peer id → mailbox this node drains
	Outbound map[string]Sender   // peer id → send side of the link
	Sched    *Scheduler
	TickRate int // cycles per second, fixed for the node's lifetime
	IDs      event.MessageIDGenerator
	Recorder Recorder
	Logger   *slog.Logger
}

// Node is one simulated participant: a logical clock, one inbound mailbox
// per peer, and a scheduler deciding what each cycle does.
//
// All mutable state except the mailboxes is confined to the Run goroutine.
type Node struct {
	id       string
	peers    []string // fixed iteration order for receive priority
	inbound  map[string]*Mailbox
	outbound map[string]Sender
	clock    clock.Clock
	sched    *Scheduler
	tickRate int
	ids      event.MessageIDGenerator
	recorder Recorder
	logger   *slog.Logger

	state atomic.Int32
	seq   int64
}

// New validates the config and builds a node in StateNew.
func New(cfg Config) (*Node, error) {
	if cfg.ID == "" {
		return nil, errors.New("node: id must not be empty")
	}
	if cfg.TickRate < 1 {
		return nil, fmt.Errorf("node %s: tick rate must be >= 1, got %d", cfg.ID, cfg.TickRate)
	}
	if cfg.Sched == nil {
		return nil, fmt.Errorf("node %s: scheduler is required", cfg.ID)
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("node %s: recorder is required", cfg.ID)
	}
	if len(cfg.Inbound) != len(cfg.Outbound) {
		return nil, fmt.Errorf("node %s: inbound and outbound peer sets differ", cfg.ID)
	}
	peers := make([]string, 0, len(cfg.Inbound))
	for peer := range cfg.Inbound {
		if _, ok := cfg.Outbound[peer]; !ok {
			return nil, fmt.Errorf("node %s: peer %s has no outbound link", cfg.ID, peer)
		}
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	ids := cfg.IDs
	if ids == nil {
		ids = event.UUIDv7Generator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		id:       cfg.ID,
		peers:    peers,
		inbound:  cfg.Inbound,
		outbound: cfg.Outbound,
		sched:    cfg.Sched,
		tickRate: cfg.TickRate,
		ids:      ids,
		recorder: cfg.Recorder,
		logger:   logger.With("node", cfg.ID),
	}, nil
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// State returns the current lifecycle state.
func (n *Node) State() State { return State(n.state.Load()) }

// Clock returns the current logical clock value. Only meaningful from the
// Run goroutine or after the node has stopped.
func (n *Node) Clock() uint64 { return n.clock.Value() }

// Run drives the cycle loop until ctx is cancelled or the node's inbound
// links are torn down. Cancellation is cooperative: it is observed between
// cycles, never mid-cycle. Messages still queued when the loop exits are
// not drained; that truncation is accepted shutdown behavior.
//
// Run always leaves the node in StateStopped with its inbound mailboxes
// closed and the recorder closed.
func (n *Node) Run(ctx context.Context) error {
	n.state.Store(int32(StateRunning))
	n.logger.Info("node started", "tick_rate", n.tickRate, "peers", len(n.peers))

	defer func() {
		for _, mb := range n.inbound {
			mb.Close()
		}
		if err := n.recorder.Close(); err != nil {
			n.logger.Error("closing recorder", "error", err)
		}
		n.state.Store(int32(StateStopped))
		n.logger.Info("node stopped", "clock", n.clock.Value(), "entries", n.seq)
	}()

	interval := time.Second / time.Duration(n.tickRate)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			n.state.Store(int32(StateStopping))
			return nil
		default:
		}

		if err := n.Step(); err != nil {
			if errors.Is(err, ErrMailboxClosed) {
				// Our own links are gone; nothing left to simulate.
				n.state.Store(int32(StateStopping))
				n.logger.Warn("inbound links torn down, stopping early")
				return err
			}
			// Per-cycle faults are isolated: log and keep cycling so one
			// node's failure cannot halt the simulation.
			n.logger.Error("cycle failed", "error", err)
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			n.state.Store(int32(StateStopping))
			return nil
		case <-timer.C:
		}
	}
}

// Step executes exactly one cycle: drain one pending message if any,
// otherwise perform a scheduled send/broadcast/internal action. Exactly
// one log entry is emitted per call. A panic inside the cycle is
// recovered and returned as an error.
//
// Step is exported so a deterministic harness can interleave nodes
// without goroutines or sleeps.
func (n *Node) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	// Receive takes priority over generating new work, bounding backlog
	// growth. Peers are scanned in fixed lexicographic order.
	closed := 0
	for _, peer := range n.peers {
		mb := n.inbound[peer]
		msg, ok := mb.TryReceive()
		if !ok {
			if mb.Closed() {
				closed++
			}
			continue
		}
		return n.receive(peer, mb, msg)
	}
	if len(n.peers) > 0 && closed == len(n.peers) {
		return ErrMailboxClosed
	}

	action, target := n.sched.Draw()
	switch action {
	case ActionSend:
		return n.send(target)
	case ActionBroadcast:
		return n.broadcast()
	default:
		return n.internal()
	}
}

func (n *Node) receive(peer string, mb *Mailbox, msg event.Message) error {
	value := n.clock.Observe(msg.Clock)
	return n.record(event.Entry{
		Kind:         event.KindReceive,
		Clock:        value,
		QueueLen:     mb.Len(), // depth after removal
		Peer:         peer,
		MessageID:    msg.ID,
		MessageClock: msg.Clock,
	})
}

func (n *Node) send(peer string) error {
	value := n.clock.Tick()
	msg := event.Message{
		ID:     n.ids.NextID(),
		Sender: n.id,
		Clock:  value,
		Kind:   event.PayloadClock,
	}
	if err := n.outbound[peer].Send(msg); err != nil {
		n.logger.Warn("send failed", "peer", peer, "error", err)
	}
	return n.record(event.Entry{
		Kind:      event.KindSend,
		Clock:     value,
		Peer:      peer,
		MessageID: msg.ID,
	})
}

// broadcast ticks once and hands the same message, with the same clock
// value, to every peer. Exactly one SEND entry is logged for the action.
func (n *Node) broadcast() error {
	value := n.clock.Tick()
	msg := event.Message{
		ID:     n.ids.NextID(),
		Sender: n.id,
		Clock:  value,
		Kind:   event.PayloadClock,
	}
	for _, peer := range n.peers {
		if err := n.outbound[peer].Send(msg); err != nil {
			n.logger.Warn("broadcast send failed", "peer", peer, "error", err)
		}
	}
	return n.record(event.Entry{
		Kind:      event.KindSend,
		Clock:     value,
		MessageID: msg.ID,
	})
}

func (n *Node) internal() error {
	value := n.clock.Tick()
	return n.record(event.Entry{
		Kind:  event.KindInternal,
		Clock: value,
	})
}

func (n *Node) record(e event.Entry) error {
	n.seq++
	e.Node = n.id
	e.Seq = n.seq
	e.Wall = time.Now().UTC()
	if err := n.recorder.Record(e); err != nil {
		return fmt.Errorf("record %s entry: %w", e.Kind, err)
	}
	n.logger.Debug("cycle",
		"kind", e.Kind,
		"clock", e.Clock,
		"queue_len", e.QueueLen,
		"peer", e.Peer,
	)
	return nil
}
