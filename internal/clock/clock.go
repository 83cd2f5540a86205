// Package clock implements the Lamport logical clock.
package clock

// Clock is a Lamport logical clock: a counter that only moves forward.
//
// A Clock is owned by exactly one node and mutated only from that node's
// runtime goroutine, so it carries no lock. Use Value from the owning
// goroutine only.
//
// The zero value is a clock at 0, ready to use.
type Clock struct {
	value uint64
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() uint64 {
	return c.value
}

// Tick advances the clock by one and returns the new value.
// Used for SEND and INTERNAL events.
func (c *Clock) Tick() uint64 {
	c.value++
	return c.value
}

// Observe merges a remote clock value using the Lamport receive rule:
// the clock becomes max(local, remote) + 1. The result strictly exceeds
// both the prior local value and the remote value, which is the causal
// ordering guarantee the rest of the system depends on.
func (c *Clock) Observe(remote uint64) uint64 {
	if remote > c.value {
		c.value = remote
	}
	c.value++
	return c.value
}
