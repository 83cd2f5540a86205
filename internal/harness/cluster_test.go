package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verayang01/clocksim/internal/config"
	"github.com/verayang01/clocksim/internal/node"
	"github.com/verayang01/clocksim/internal/store"
	"github.com/verayang01/clocksim/internal/testutil"
)

func clusterConfig(t *testing.T, duration time.Duration) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Duration:        config.Duration(duration),
		StartupDeadline: config.Duration(5 * time.Second),
		Seed:            13,
		Nodes: []config.NodeSpec{
			{ID: "vm-1"},
			{ID: "vm-2"},
			{ID: "vm-3"},
		},
	}
	require.NoError(t, cfg.Normalize())
	return cfg
}

// Three nodes, fixed duration: the run terminates shortly after the
// deadline with every node stopped and a causally consistent log.
func TestCluster_FullRunOverTCP(t *testing.T) {
	if testing.Short() {
		t.Skip("full cluster run")
	}

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := clusterConfig(t, 700*time.Millisecond)
	cluster, err := NewCluster(context.Background(), cfg, func(string) node.Recorder {
		return st.NewRecorder()
	}, testutil.Logger())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, cluster.Run(context.Background()))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Duration(cfg.Duration)+2*time.Second,
		"run must terminate near the configured deadline")
	for _, n := range cluster.Nodes() {
		assert.Equal(t, node.StateStopped, n.State(), "node %s", n.ID())
	}

	entries, err := st.ReadAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, entries, "a run this long must log events")

	nodes, err := st.Nodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"vm-1", "vm-2", "vm-3"}, nodes)

	// Store-read traces have no queue depths; conservation degrades to
	// a bound, everything else holds exactly.
	failures := Evaluate(&Result{Entries: entries}, nil)
	assert.Empty(t, failures)
}

func TestCluster_RespectsConfiguredAddrs(t *testing.T) {
	if testing.Short() {
		t.Skip("full cluster run")
	}

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := clusterConfig(t, 200*time.Millisecond)
	cfg.Nodes = []config.NodeSpec{
		{ID: "vm-1", Addr: "127.0.0.1:0"},
		{ID: "vm-2", Addr: "127.0.0.1:0"},
	}

	cluster, err := NewCluster(context.Background(), cfg, func(string) node.Recorder {
		return st.NewRecorder()
	}, testutil.Logger())
	require.NoError(t, err)
	require.NoError(t, cluster.Run(context.Background()))
}

func TestNewCluster_ListenFailureIsFatal(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	cfg := clusterConfig(t, time.Second)
	cfg.Nodes[1].Addr = "256.0.0.1:1" // unbindable

	_, err = NewCluster(context.Background(), cfg, func(string) node.Recorder {
		return st.NewRecorder()
	}, testutil.Logger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vm-2")
}
