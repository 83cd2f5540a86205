package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verayang01/clocksim/internal/harness"
	"github.com/verayang01/clocksim/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Checks   []string
}

// VerifyResult holds the outcome of verifying one event log.
type VerifyResult struct {
	Pass     bool     `json:"pass"`
	Entries  int      `json:"entries"`
	Nodes    []string `json:"nodes"`
	Checks   []string `json:"checks"`
	Failures []string `json:"failures,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an event log for causal-ordering violations",
		Long: `Verify a recorded event log against the clock properties the simulator
guarantees: per-node clock monotonicity, the Lamport max-plus-one receive
rule, send-before-receive causal ordering, per-link FIFO delivery,
message conservation, and a minimum-activity sanity check.

Exit codes:
  0 - All checks passed
  1 - One or more violations found
  2 - Command error (database not readable)

Examples:
  clocksim verify --db ./run.db
  clocksim verify --db ./run.db --check clock_monotonic --check lamport_rule
  clocksim verify --db ./run.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	cmd.Flags().StringArrayVar(&opts.Checks, "check", nil,
		fmt.Sprintf("checks to run (default all: %s)", strings.Join(harness.AllAssertions, ", ")))
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	defer st.Close()

	ctx := context.Background()
	entries, err := st.ReadAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}
	nodes, err := st.Nodes(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}

	checks := opts.Checks
	if len(checks) == 0 {
		checks = harness.AllAssertions
	}

	// Store-read traces carry no queue depths, so conservation is
	// checked as a bound; Evaluate handles that via nil Undelivered.
	failures := harness.Evaluate(&harness.Result{Entries: entries}, checks)

	result := VerifyResult{
		Pass:     len(failures) == 0,
		Entries:  len(entries),
		Nodes:    nodes,
		Checks:   checks,
		Failures: failures,
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Verified %d entries from %d nodes\n", result.Entries, len(result.Nodes))
		for _, check := range checks {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", check, checkStatus(check, failures))
		}
		for _, failure := range failures {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", failure)
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d violation(s) found", len(failures)))
	}
	return nil
}

func checkStatus(check string, failures []string) string {
	for _, f := range failures {
		if strings.HasPrefix(f, check+":") || strings.HasPrefix(f, "unknown assertion") {
			return "FAIL"
		}
	}
	return "ok"
}
