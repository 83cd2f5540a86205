package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shortRunConfig = `
duration: 400ms
startup_deadline: 5s
seed: 42
nodes:
  - id: vm-1
  - id: vm-2
  - id: vm-3
`

func TestRunMissingFlags(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", "run.db"}) // missing --config

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("nodes: []\n"), 0o644))

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "--db", filepath.Join(dir, "run.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunShortSimulation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping TCP simulation in short mode")
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sim.yaml")
	dbPath := filepath.Join(dir, "run.db")
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.WriteFile(cfgPath, []byte(shortRunConfig), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", cfgPath, "--db", dbPath, "--log-dir", logDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Simulation complete")

	// The run leaves a verifiable event log behind.
	verifyBuf := &bytes.Buffer{}
	verifyCmd := NewVerifyCommand(rootOpts)
	verifyCmd.SetOut(verifyBuf)
	verifyCmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, verifyCmd.Execute())
	assert.NotContains(t, verifyBuf.String(), "FAIL")

	// One text log per node next to the database.
	for _, id := range []string{"vm-1", "vm-2", "vm-3"} {
		info, err := os.Stat(filepath.Join(logDir, id+".log"))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}
