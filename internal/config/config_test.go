package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verayang01/clocksim/internal/node"
)

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
duration: 30s
startup_deadline: 5s
seed: 42
tick_rate:
  min: 2
  max: 4
weights:
  peer: 1
  broadcast: 2
  internal: 3
nodes:
  - id: vm-1
    addr: 127.0.0.1:6000
  - id: vm-2
    addr: 127.0.0.1:6001
  - id: vm-3
    addr: 127.0.0.1:6002
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, time.Duration(cfg.Duration))
	assert.Equal(t, 5*time.Second, time.Duration(cfg.StartupDeadline))
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, TickRange{Min: 2, Max: 4}, cfg.TickRate)
	assert.Equal(t, node.Weights{PerPeer: 1, Broadcast: 2, Internal: 3}, cfg.Weights)
	assert.Equal(t, []string{"vm-1", "vm-2", "vm-3"}, cfg.IDs())
	assert.Equal(t, "127.0.0.1:6000", cfg.Nodes[0].Addr)
}

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
nodes:
  - id: a
  - id: b
  - id: c
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultDuration, time.Duration(cfg.Duration))
	assert.Equal(t, DefaultStartupDeadline, time.Duration(cfg.StartupDeadline))
	assert.Equal(t, TickRange{Min: DefaultTickMin, Max: DefaultTickMax}, cfg.TickRate)
	assert.Equal(t, node.DefaultWeights(2), cfg.Weights)
	for _, n := range cfg.Nodes {
		assert.Equal(t, DefaultAddr, n.Addr)
	}
}

func TestParse_SchemaRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no nodes", `nodes: []`},
		{"one node", "nodes:\n  - id: a"},
		{"empty id", "nodes:\n  - id: \"\"\n  - id: b"},
		{"zero tick min", "tick_rate:\n  min: 0\n  max: 3\nnodes:\n  - id: a\n  - id: b"},
		{"negative weight", "weights:\n  peer: -1\nnodes:\n  - id: a\n  - id: b"},
		{"wrong type", "duration: 60\nnodes:\n  - id: a\n  - id: b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			var se *SchemaError
			assert.ErrorAs(t, err, &se, "expected a schema error, got: %v", err)
		})
	}
}

func TestParse_InvalidDurationString(t *testing.T) {
	_, err := Parse([]byte("duration: sixty\nnodes:\n  - id: a\n  - id: b"))
	require.Error(t, err)
}

func TestParse_DuplicateNodeIDs(t *testing.T) {
	_, err := Parse([]byte("nodes:\n  - id: a\n  - id: a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestParse_NormalizesUnicodeIDs(t *testing.T) {
	// "é" as a precomposed rune vs e + combining accent: same text,
	// different bytes. Both must normalize to the same ID.
	_, err := Parse([]byte("nodes:\n  - id: é\n  - id: é"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestParse_TickRangeInverted(t *testing.T) {
	_, err := Parse([]byte("tick_rate:\n  min: 5\n  max: 2\nnodes:\n  - id: a\n  - id: b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_rate")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
duration: 2s
nodes:
  - id: a
  - id: b
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Duration))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
