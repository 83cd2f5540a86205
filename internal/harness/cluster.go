package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/verayang01/clocksim/internal/config"
	"github.com/verayang01/clocksim/internal/node"
	"github.com/verayang01/clocksim/internal/wire"
)

// RecorderFactory supplies the durable sink for one node's entries.
type RecorderFactory func(nodeID string) node.Recorder

// Cluster is a fully wired simulation: one runtime, one TCP listener,
// and one dialed link per directed peer pair, built from a run config.
// The cluster owns the node lifecycles; nodes never dial or listen.
type Cluster struct {
	cfg       *config.Config
	nodes     []*node.Node
	listeners []*wire.Listener
	links     []*wire.Link
	logger    *slog.Logger
}

// NewCluster builds the full mesh. Listeners are bound first so every
// node's actual address is known (ephemeral ports included), then each
// directed link is dialed with the configured startup deadline. A peer
// that never answers within the deadline aborts construction with a
// wire.StartupError; everything already built is torn down.
func NewCluster(ctx context.Context, cfg *config.Config, recorders RecorderFactory, logger *slog.Logger) (*Cluster, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("building cluster", "nodes", len(cfg.Nodes), "seed", seed)

	c := &Cluster{cfg: cfg, logger: logger}
	ids := cfg.IDs()

	// Inbound mailboxes: one per directed link (peer → owner).
	inbound := make(map[string]map[string]*node.Mailbox, len(ids))
	for _, id := range ids {
		inbound[id] = make(map[string]*node.Mailbox, len(ids)-1)
		for _, peer := range ids {
			if peer != id {
				inbound[id][peer] = node.NewMailbox()
			}
		}
	}

	// Bind every listener before dialing anything, so ephemeral ports
	// resolve and slow starters still come up within the dial backoff.
	addrs := make(map[string]string, len(ids))
	for _, spec := range cfg.Nodes {
		ln, err := wire.Listen(spec.Addr, inbound[spec.ID], logger.With("node", spec.ID))
		if err != nil {
			c.teardown()
			return nil, fmt.Errorf("node %s: listen %s: %w", spec.ID, spec.Addr, err)
		}
		c.listeners = append(c.listeners, ln)
		addrs[spec.ID] = ln.Addr()
	}

	for i, spec := range cfg.Nodes {
		rng := rand.New(rand.NewSource(seed + int64(i)))

		peers := make([]string, 0, len(ids)-1)
		outbound := make(map[string]node.Sender, len(ids)-1)
		for _, peer := range ids {
			if peer == spec.ID {
				continue
			}
			peers = append(peers, peer)
			link, err := wire.Dial(ctx, addrs[peer], time.Duration(cfg.StartupDeadline))
			if err != nil {
				c.teardown()
				return nil, fmt.Errorf("node %s: %w", spec.ID, err)
			}
			c.links = append(c.links, link)
			outbound[peer] = link
		}

		sched, err := node.NewScheduler(rng, peers, cfg.Weights)
		if err != nil {
			c.teardown()
			return nil, fmt.Errorf("node %s: %w", spec.ID, err)
		}

		n, err := node.New(node.Config{
			ID:       spec.ID,
			Inbound:  inbound[spec.ID],
			Outbound: outbound,
			Sched:    sched,
			TickRate: node.DrawTickRate(rng, cfg.TickRate.Min, cfg.TickRate.Max),
			Recorder: recorders(spec.ID),
			Logger:   logger,
		})
		if err != nil {
			c.teardown()
			return nil, err
		}
		c.nodes = append(c.nodes, n)
	}

	return c, nil
}

// Nodes returns the cluster's runtimes in config order.
func (c *Cluster) Nodes() []*node.Node {
	return c.nodes
}

// Run starts every node in its own goroutine, lets the simulation run
// for the configured duration, then cancels and waits for all nodes to
// reach Stopped. Messages still queued at the deadline stay undelivered;
// that truncation is accepted shutdown behavior, not an error.
func (c *Cluster) Run(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.Duration))
	defer cancel()

	var wg sync.WaitGroup
	for _, n := range c.nodes {
		wg.Add(1)
		go func(n *node.Node) {
			defer wg.Done()
			if err := n.Run(runCtx); err != nil && !errors.Is(err, node.ErrMailboxClosed) {
				c.logger.Error("node exited abnormally", "node", n.ID(), "error", err)
			}
		}(n)
	}
	wg.Wait()

	c.teardown()
	c.logger.Info("simulation complete", "duration", time.Duration(c.cfg.Duration).String())
	return nil
}

func (c *Cluster) teardown() {
	for _, link := range c.links {
		_ = link.Close()
	}
	for _, ln := range c.listeners {
		_ = ln.Close()
	}
	c.links = nil
	c.listeners = nil
}
