package node

import (
	"fmt"
	"math/rand"
	"sort"
)

// Action is the outcome of one scheduling draw.
type Action int

const (
	// ActionSend sends a message to a single peer.
	ActionSend Action = iota + 1
	// ActionBroadcast sends the same message to every peer.
	ActionBroadcast
	// ActionInternal advances the clock without sending anything.
	ActionInternal
)

// Weights configures the scheduling distribution for cycles with no
// pending inbound message. PerPeer is the weight of sending to each
// individual peer (one outcome per peer).
//
// The defaults mirror a 1..10 uniform draw over three peers' worth of
// outcomes: each peer 1, broadcast 1, everything else internal.
type Weights struct {
	PerPeer   int `yaml:"peer"`
	Broadcast int `yaml:"broadcast"`
	Internal  int `yaml:"internal"`
}

// DefaultWeights returns the default distribution for a node with the
// given number of peers: per-peer 1, broadcast 1, internal the remainder
// of a 10-sided draw (minimum 1).
func DefaultWeights(peers int) Weights {
	internal := 10 - peers - 1
	if internal < 1 {
		internal = 1
	}
	return Weights{PerPeer: 1, Broadcast: 1, Internal: internal}
}

// Validate rejects distributions that could never pick an action.
func (w Weights) Validate() error {
	if w.PerPeer < 0 || w.Broadcast < 0 || w.Internal < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	if w.PerPeer == 0 && w.Broadcast == 0 && w.Internal == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// Scheduler draws the per-cycle action for one node from a seeded random
// source, so a run is reproducible given its seed.
//
// Not safe for concurrent use; each node owns its own Scheduler, matching
// the rest of the per-node state.
type Scheduler struct {
	rng     *rand.Rand
	peers   []string
	weights Weights
	total   int
}

// NewScheduler creates a scheduler over the given peer set. The peer
// order is normalized to lexicographic so identical seeds yield identical
// draws regardless of map iteration order upstream.
func NewScheduler(rng *rand.Rand, peers []string, w Weights) (*Scheduler, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	sorted := append([]string(nil), peers...)
	sort.Strings(sorted)

	total := len(sorted)*w.PerPeer + w.Broadcast + w.Internal
	if total <= 0 {
		return nil, fmt.Errorf("empty distribution: %d peers, weights %+v", len(sorted), w)
	}
	return &Scheduler{rng: rng, peers: sorted, weights: w, total: total}, nil
}

// Draw picks the next action. For ActionSend the second return value is
// the target peer; for the other actions it is empty.
func (s *Scheduler) Draw() (Action, string) {
	n := s.rng.Intn(s.total)

	for _, peer := range s.peers {
		if n < s.weights.PerPeer {
			return ActionSend, peer
		}
		n -= s.weights.PerPeer
	}
	if n < s.weights.Broadcast {
		return ActionBroadcast, ""
	}
	return ActionInternal, ""
}

// DrawTickRate draws a node's fixed cycle rate (cycles per second) from
// the inclusive range [min, max]. Drawn once at node creation; the spread
// models heterogeneous processing speed across nodes.
func DrawTickRate(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
