package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/verayang01/clocksim/internal/event"
	"github.com/verayang01/clocksim/internal/harness"
	"github.com/verayang01/clocksim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Node     string // optional - filter to one node's log
}

// TraceResult holds the complete trace output for JSON format.
type TraceResult struct {
	Entries []event.Entry `json:"entries"`
	Total   int           `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Dump a recorded event log",
		Long: `Dump the event log of a finished run, either the full interleaved log
ordered by node then sequence, or a single node's log.

Examples:
  clocksim trace --db ./run.db
  clocksim trace --db ./run.db --node vm-2
  clocksim trace --db ./run.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	cmd.Flags().StringVar(&opts.Node, "node", "", "limit output to one node")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	defer st.Close()

	ctx := context.Background()
	var entries []event.Entry
	if opts.Node != "" {
		entries, err = st.ReadNode(ctx, opts.Node)
	} else {
		entries, err = st.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		return formatter.Success(TraceResult{Entries: entries, Total: len(entries)})
	}

	_, err = cmd.OutOrStdout().Write(harness.RenderTrace(entries))
	return err
}
