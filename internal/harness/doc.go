// Package harness builds and drives simulations.
//
// It wires node runtimes into a full mesh and runs them two ways:
//
//   - Cluster: the real thing. Every node listens on TCP, dials its
//     peers with a startup deadline, runs in its own goroutine at its
//     own rate, and stops when the run deadline passes. Interleaving is
//     nondeterministic; only per-link FIFO and the Lamport rule are
//     guaranteed.
//
//   - Scenario: the testable thing. Nodes are wired directly through
//     in-process mailboxes and stepped round-robin on one goroutine with
//     seeded randomness and sequential message IDs, so a scenario's
//     trace is byte-stable and suitable for golden-file comparison.
//
// Both paths produce the same event log shape, checked by the same
// causal-ordering assertions (Evaluate).
package harness
