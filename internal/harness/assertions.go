package harness

import (
	"fmt"
	"sort"

	"github.com/verayang01/clocksim/internal/event"
)

// Assertion names understood by Evaluate.
const (
	AssertClockMonotonic      = "clock_monotonic"
	AssertLamportRule         = "lamport_rule"
	AssertCausalOrder         = "causal_order"
	AssertFIFOPerLink         = "fifo_per_link"
	AssertMessageConservation = "message_conservation"
	AssertMinEntries          = "min_entries"
)

// AllAssertions lists every causal-ordering check, in evaluation order.
var AllAssertions = []string{
	AssertClockMonotonic,
	AssertLamportRule,
	AssertCausalOrder,
	AssertFIFOPerLink,
	AssertMessageConservation,
	AssertMinEntries,
}

// Evaluate runs the named checks against a result's trace and returns
// one failure string per violation. Empty names means all checks.
//
// When result.Undelivered is nil the trace came from a store rather than
// a scenario run, so conservation can only bound receives by sends: the
// tail of each link may legitimately be truncated at shutdown.
func Evaluate(result *Result, names []string) []string {
	if len(names) == 0 {
		names = AllAssertions
	}

	var failures []string
	for _, name := range names {
		switch name {
		case AssertClockMonotonic:
			failures = append(failures, checkMonotonic(result.PerNode())...)
		case AssertLamportRule:
			failures = append(failures, checkLamportRule(result.PerNode())...)
		case AssertCausalOrder:
			failures = append(failures, checkCausalOrder(result.Entries)...)
		case AssertFIFOPerLink:
			failures = append(failures, checkFIFOPerLink(result.Entries)...)
		case AssertMessageConservation:
			failures = append(failures, checkConservation(result.Entries, result.Undelivered)...)
		case AssertMinEntries:
			failures = append(failures, checkMinEntries(result.PerNode())...)
		default:
			failures = append(failures, fmt.Sprintf("unknown assertion %q", name))
		}
	}
	return failures
}

// checkMonotonic: each node's clock values are strictly increasing in
// log order, and its sequence numbers are gapless from 1.
func checkMonotonic(byNode map[string][]event.Entry) []string {
	var failures []string
	for _, id := range sortedKeys(byNode) {
		entries := byNode[id]
		for i, e := range entries {
			if e.Seq != int64(i+1) {
				failures = append(failures,
					fmt.Sprintf("%s: %s at seq %d, expected seq %d", AssertClockMonotonic, id, e.Seq, i+1))
			}
			if i > 0 && e.Clock <= entries[i-1].Clock {
				failures = append(failures,
					fmt.Sprintf("%s: %s seq %d: clock %d not above prior %d",
						AssertClockMonotonic, id, e.Seq, e.Clock, entries[i-1].Clock))
			}
		}
	}
	return failures
}

// checkLamportRule: a RECEIVE logs max(local, message)+1 and therefore
// strictly exceeds both; SEND and INTERNAL log exactly local+1.
func checkLamportRule(byNode map[string][]event.Entry) []string {
	var failures []string
	for _, id := range sortedKeys(byNode) {
		var prev uint64
		for _, e := range byNode[id] {
			switch e.Kind {
			case event.KindReceive:
				want := prev
				if e.MessageClock > want {
					want = e.MessageClock
				}
				want++
				if e.Clock != want {
					failures = append(failures,
						fmt.Sprintf("%s: %s seq %d: receive logged %d, want max(%d, %d)+1 = %d",
							AssertLamportRule, id, e.Seq, e.Clock, prev, e.MessageClock, want))
				}
			default:
				if e.Clock != prev+1 {
					failures = append(failures,
						fmt.Sprintf("%s: %s seq %d: %s logged %d, want %d",
							AssertLamportRule, id, e.Seq, e.Kind, e.Clock, prev+1))
				}
			}
			prev = e.Clock
		}
	}
	return failures
}

// checkCausalOrder: a message received at clock R was sent at clock S
// with R > S, and the received stamp matches the sent stamp.
func checkCausalOrder(entries []event.Entry) []string {
	sent := map[string]event.Entry{}
	for _, e := range entries {
		if e.Kind == event.KindSend && e.MessageID != "" {
			sent[e.MessageID] = e
		}
	}

	var failures []string
	for _, e := range entries {
		if e.Kind != event.KindReceive {
			continue
		}
		s, ok := sent[e.MessageID]
		if !ok {
			failures = append(failures,
				fmt.Sprintf("%s: %s received unknown message %s", AssertCausalOrder, e.Node, e.MessageID))
			continue
		}
		if e.MessageClock != s.Clock {
			failures = append(failures,
				fmt.Sprintf("%s: message %s sent at %d but carried %d",
					AssertCausalOrder, e.MessageID, s.Clock, e.MessageClock))
		}
		if e.Clock <= s.Clock {
			failures = append(failures,
				fmt.Sprintf("%s: message %s received at %d, not above send clock %d",
					AssertCausalOrder, e.MessageID, e.Clock, s.Clock))
		}
	}
	return failures
}

// checkFIFOPerLink: per directed link, the receiver sees messages in
// exactly the order sent; only the tail may be missing (shutdown
// truncation).
func checkFIFOPerLink(entries []event.Entry) []string {
	nodes := map[string]bool{}
	for _, e := range entries {
		nodes[e.Node] = true
	}

	sent := map[string][]string{}     // "sender→receiver" → message IDs in send order
	received := map[string][]string{} // same key → message IDs in receive order
	for _, e := range entries {
		switch e.Kind {
		case event.KindSend:
			if e.Peer != "" {
				key := e.Node + "→" + e.Peer
				sent[key] = append(sent[key], e.MessageID)
				continue
			}
			// Broadcast: one send per other node.
			for peer := range nodes {
				if peer != e.Node {
					key := e.Node + "→" + peer
					sent[key] = append(sent[key], e.MessageID)
				}
			}
		case event.KindReceive:
			key := e.Peer + "→" + e.Node
			received[key] = append(received[key], e.MessageID)
		}
	}

	var failures []string
	for _, key := range sortedKeys(received) {
		got := received[key]
		want := sent[key]
		if len(got) > len(want) {
			failures = append(failures,
				fmt.Sprintf("%s: link %s received %d messages but only %d were sent",
					AssertFIFOPerLink, key, len(got), len(want)))
			continue
		}
		for i, id := range got {
			if id != want[i] {
				failures = append(failures,
					fmt.Sprintf("%s: link %s position %d: received %s, sent order says %s",
						AssertFIFOPerLink, key, i, id, want[i]))
				break
			}
		}
	}
	return failures
}

// checkConservation: per directed link, every send is either received or
// still queued. With no queue depths available (store-read traces),
// receives may only fall short of sends, never exceed them.
func checkConservation(entries []event.Entry, undelivered map[string]int) []string {
	nodes := map[string]bool{}
	for _, e := range entries {
		nodes[e.Node] = true
	}

	sends := map[string]int{}
	receives := map[string]int{}
	for _, e := range entries {
		switch e.Kind {
		case event.KindSend:
			if e.Peer != "" {
				sends[e.Node+"→"+e.Peer]++
				continue
			}
			for peer := range nodes {
				if peer != e.Node {
					sends[e.Node+"→"+peer]++
				}
			}
		case event.KindReceive:
			receives[e.Peer+"→"+e.Node]++
		}
	}

	var failures []string
	for _, key := range sortedKeys(sends) {
		s, r := sends[key], receives[key]
		if undelivered == nil {
			if r > s {
				failures = append(failures,
					fmt.Sprintf("%s: link %s: %d receives exceed %d sends",
						AssertMessageConservation, key, r, s))
			}
			continue
		}
		if s != r+undelivered[key] {
			failures = append(failures,
				fmt.Sprintf("%s: link %s: %d sent, %d received, %d still queued",
					AssertMessageConservation, key, s, r, undelivered[key]))
		}
	}
	for _, key := range sortedKeys(receives) {
		if _, ok := sends[key]; !ok {
			failures = append(failures,
				fmt.Sprintf("%s: link %s: receives without any sends", AssertMessageConservation, key))
		}
	}
	return failures
}

// checkMinEntries: the trace is non-empty, and every node referenced as
// a peer also logged entries of its own. Catches runs where a node died
// before producing anything.
func checkMinEntries(byNode map[string][]event.Entry) []string {
	if len(byNode) == 0 {
		return []string{fmt.Sprintf("%s: trace is empty", AssertMinEntries)}
	}
	referenced := map[string]bool{}
	for _, entries := range byNode {
		for _, e := range entries {
			if e.Peer != "" {
				referenced[e.Peer] = true
			}
		}
	}
	var failures []string
	for _, id := range sortedKeys(referenced) {
		if len(byNode[id]) == 0 {
			failures = append(failures,
				fmt.Sprintf("%s: node %s logged no entries", AssertMinEntries, id))
		}
	}
	return failures
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
