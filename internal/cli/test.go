package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verayang01/clocksim/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Dir string
}

// ScenarioResult holds one scenario's outcome.
type ScenarioResult struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Pass        bool     `json:"pass"`
	Entries     int      `json:"entries"`
	Undelivered int      `json:"undelivered"`
	Errors      []string `json:"errors,omitempty"`
}

// TestResult aggregates a whole scenario directory.
type TestResult struct {
	Pass      bool             `json:"pass"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run deterministic scenarios and check their assertions",
		Long: `Run every scenario YAML in a directory. Scenarios execute
deterministically in-process (no TCP, no timing), so the same scenario
file always produces the same trace and the same verdict.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable scenario files)

Examples:
  clocksim test --dir ./scenarios
  clocksim test --dir ./scenarios --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of scenario YAML files (required)")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runTest(opts *TestOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	scenarios, err := harness.LoadScenarioDir(opts.Dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	result := TestResult{Pass: true, Total: len(scenarios)}
	for _, s := range scenarios {
		run, err := harness.RunScenario(s)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s failed to run", s.Name), err)
		}

		undelivered := 0
		for _, depth := range run.Undelivered {
			undelivered += depth
		}
		sr := ScenarioResult{
			Name:        s.Name,
			Description: s.Description,
			Pass:        run.Pass,
			Entries:     len(run.Entries),
			Undelivered: undelivered,
			Errors:      run.Errors,
		}
		result.Scenarios = append(result.Scenarios, sr)
		if run.Pass {
			result.Passed++
		} else {
			result.Failed++
			result.Pass = false
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, sr := range result.Scenarios {
			status := "ok"
			if !sr.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s (%d entries, %d queued)\n", status, sr.Name, sr.Entries, sr.Undelivered)
			for _, e := range sr.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "     %s\n", e)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d scenarios: %d passed, %d failed\n", result.Total, result.Passed, result.Failed)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
