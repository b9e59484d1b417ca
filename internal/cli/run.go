package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/reactor"
	"github.com/roach88/reactor/internal/broadcast"
	"github.com/roach88/reactor/internal/config"
	"github.com/roach88/reactor/internal/demo"
	"github.com/roach88/reactor/internal/harness"
	"github.com/roach88/reactor/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	NATSURL     string
	NATSSubject string
	Metrics     bool

	// Publisher overrides the NATS publisher (for testing).
	Publisher broadcast.Publisher
}

// RunResult is the output of the run command.
type RunResult struct {
	Scenario string     `json:"scenario"`
	CoreID   string     `json:"core_id"`
	Pass     bool       `json:"pass"`
	Errors   []string   `json:"errors,omitempty"`
	Final    demo.Tally `json:"final"`
	Version  uint64     `json:"version"`
	Pending  int        `json:"pending"`
	Executed []string   `json:"executed"`
	Journal  *Journaled `json:"journal,omitempty"`
	Metrics  string     `json:"metrics,omitempty"`
}

// Journaled describes what a run wrote to the journal.
type Journaled struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario against a demo Core",
		Long: `Run a scenario file against a fresh demo Core and report the outcome.

With --db every applied event is journaled to SQLite. With --nats-url every
applied event is broadcast as canonical JSON on <subject>.<event>.

Flags override the REACTOR_DB, REACTOR_NATS_URL, REACTOR_NATS_SUBJECT,
REACTOR_LOG_LEVEL and REACTOR_DEFAULT_EXPIRY environment variables.

Example:
  reactor run ./scenarios/counter.yaml
  reactor run --db ./reactor.db ./scenarios/threshold.yaml --verbose
  reactor run --nats-url nats://localhost:4222 ./scenarios/expiry.yaml --metrics`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default $REACTOR_DB)")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "", "NATS server to broadcast to (default $REACTOR_NATS_URL)")
	cmd.Flags().StringVar(&opts.NATSSubject, "nats-subject", "", "base broadcast subject (default $REACTOR_NATS_SUBJECT)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.DB = opts.Database
	}
	if opts.NATSURL != "" {
		cfg.NATSURL = opts.NATSURL
	}
	if opts.NATSSubject != "" {
		cfg.NATSSubject = opts.NATSSubject
	}

	logLevel := cfg.Level()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return loadError("failed to load scenario", err)
	}

	coreOpts := []reactor.Option{reactor.WithLogger(logger)}
	if scenario.DefaultExpiry == "" {
		coreOpts = append(coreOpts, reactor.WithDefaultExpiry(cfg.DefaultExpiry))
	}
	reg := prometheus.NewRegistry()
	if opts.Metrics {
		coreOpts = append(coreOpts, reactor.WithMetrics(reg))
	}
	runOpts := []harness.RunOption{harness.WithCoreOptions(coreOpts...)}

	var (
		st     *store.Store
		coreID string
	)
	if cfg.DB != "" {
		logger.Info("opening journal", "path", cfg.DB)
		st, err = store.Open(cfg.DB)
		if err != nil {
			return journalError("failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		runOpts = append(runOpts, harness.WithSetup(func(core *demo.Core) error {
			coreID = core.ID()
			j, err := store.OpenJournal[demo.Tally, demo.Event](ctx, st, core.ID(), core.Name(), core.State(), logger)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			core.Observe(j)
			return nil
		}))
	}

	pub := opts.Publisher
	if pub == nil && cfg.NATSURL != "" {
		logger.Info("connecting to NATS", "url", cfg.NATSURL)
		nc, err := broadcast.NewNATSPublisher(broadcast.NATSConfig{URL: cfg.NATSURL, Name: "reactor-cli"})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		pub = nc
	}
	if pub != nil {
		defer func() {
			if closeErr := pub.Close(); closeErr != nil {
				logger.Error("error closing publisher", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithSetup(func(core *demo.Core) error {
			core.Observe(broadcast.NewMiddleware[demo.Tally, demo.Event](pub, cfg.NATSSubject, core.Name(), logger))
			return nil
		}))
	}

	logger.Info("running scenario", "scenario", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return &ExitError{Code: ExitFailure, ErrCode: ErrCodeRun, Message: "scenario could not run", Err: err}
	}

	out := RunResult{
		Scenario: result.Scenario,
		CoreID:   coreID,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Final:    result.Final,
		Version:  result.Version,
		Pending:  result.Pending,
		Executed: result.Executed,
	}
	if st != nil {
		entries, err := st.Entries(ctx, coreID)
		if err != nil {
			return journalError("failed to read journal", err)
		}
		out.Journal = &Journaled{Path: cfg.DB, Entries: len(entries)}
	}
	if opts.Metrics {
		var sb strings.Builder
		if err := writeMetrics(&sb, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to gather metrics", err)
		}
		out.Metrics = sb.String()
	}

	if opts.Format == "json" {
		if err := writeResult(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		writeRunText(cmd.OutOrStdout(), out)
	}

	if !out.Pass {
		return checkFailed(fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

func writeRunText(w io.Writer, r RunResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s\n", mark, r.Scenario)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintf(w, "  state:    count=%d latest_id=%q\n", r.Final.Count, r.Final.LatestID)
	fmt.Fprintf(w, "  version:  %d\n", r.Version)
	fmt.Fprintf(w, "  pending:  %d\n", r.Pending)
	fmt.Fprintf(w, "  executed: %s\n", strings.Join(r.Executed, ", "))
	if r.Journal != nil {
		fmt.Fprintf(w, "  journal:  %d entries for %s in %s\n", r.Journal.Entries, r.CoreID, r.Journal.Path)
	}
	if r.Metrics != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, r.Metrics)
	}
}

// writeMetrics renders every family in reg in the Prometheus text format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
