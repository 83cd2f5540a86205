package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMissingDatabaseFlag(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", "/nonexistent/path/run.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceFullLog(t *testing.T) {
	dbPath := writeTrace(t, validTrace())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "SEND")
	assert.Contains(t, out, "RECEIVE")
	assert.Contains(t, out, "from=a msg=a/m-1")
	assert.Contains(t, out, "to=b msg=a/m-1")
}

func TestTraceNodeFilter(t *testing.T) {
	dbPath := writeTrace(t, validTrace())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--node", "b"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "RECEIVE")
	assert.NotContains(t, out, "SEND")
	assert.NotContains(t, out, "INTERNAL")
}

func TestTraceJSONOutput(t *testing.T) {
	dbPath := writeTrace(t, validTrace())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result TraceResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, "a", result.Entries[0].Node)
}
