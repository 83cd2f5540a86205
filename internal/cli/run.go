package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verayang01/clocksim/internal/config"
	"github.com/verayang01/clocksim/internal/harness"
	"github.com/verayang01/clocksim/internal/node"
	"github.com/verayang01/clocksim/internal/store"
	"github.com/verayang01/clocksim/internal/wire"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string
	LogDir   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a config file",
		Long: `Run a full simulation: every configured node listens on TCP, dials its
peers, then runs at its own randomized rate for the configured duration.
Event log entries are persisted to a SQLite database, one row per cycle,
readable afterwards with "clocksim verify" and "clocksim trace".

Exit codes:
  0 - Run completed
  2 - Startup failure (bad config, unbindable address, unreachable peer)

Example:
  clocksim run --config ./sim.yaml --db ./run.db
  clocksim run --config ./sim.yaml --db ./run.db --log-dir ./logs --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to run config YAML (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	cmd.Flags().StringVar(&opts.LogDir, "log-dir", "", "also write one plain-text log file per node")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("loading config", "path", opts.Config)
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	slog.Info("config loaded", "nodes", len(cfg.Nodes), "duration", cfg.Duration)

	slog.Info("opening event log", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open event log", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing event log", "error", closeErr)
		}
	}()

	recorders, err := buildRecorders(cfg, st, opts.LogDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create log files", err)
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	cluster, err := harness.NewCluster(ctx, cfg, func(id string) node.Recorder {
		return recorders[id]
	}, logger)
	if err != nil {
		var se *wire.StartupError
		if errors.As(err, &se) {
			return WrapExitError(ExitCommandError, "peer unreachable at startup", err)
		}
		return WrapExitError(ExitCommandError, "failed to build cluster", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Simulation running: %d nodes for %s. Press Ctrl-C to stop early.\n",
		len(cfg.Nodes), cfg.Duration)

	if err := cluster.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "simulation error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Simulation complete. Event log written to %s\n", opts.Database)
	return nil
}

// buildRecorders prepares one recorder per node: the shared store, plus a
// per-node text log file when --log-dir is set.
func buildRecorders(cfg *config.Config, st *store.Store, logDir string) (map[string]node.Recorder, error) {
	recorders := make(map[string]node.Recorder, len(cfg.Nodes))
	for _, spec := range cfg.Nodes {
		if logDir == "" {
			recorders[spec.ID] = st.NewRecorder()
			continue
		}
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		f, err := os.Create(filepath.Join(logDir, spec.ID+".log"))
		if err != nil {
			return nil, err
		}
		recorders[spec.ID] = node.MultiRecorder{st.NewRecorder(), node.NewTextRecorder(f)}
	}
	return recorders, nil
}
