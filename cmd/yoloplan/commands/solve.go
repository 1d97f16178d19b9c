package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/yoloplan/pkg/config"
	"github.com/openfroyo/yoloplan/pkg/planner"
	"github.com/openfroyo/yoloplan/pkg/stores"
	"github.com/openfroyo/yoloplan/pkg/telemetry"
)

type solveFlags struct {
	restartProbability float64
	maxTries           int
	seed               uint64
	noRepeat           bool
	timeout            time.Duration
	maxPlanLength      int
	dbPath             string
	policyPaths        []string
	watch              bool
	metricsListen      string
	traceExporter      string
	otlpEndpoint       string
}

func newSolveCommand() *cobra.Command {
	flags := &solveFlags{}

	cmd := &cobra.Command{
		Use:   "solve <problem>",
		Short: "Search for a plan",
		Long: `Search for a plan for a problem document.

Search settings come from the document's planner section; flags given on
the command line override them. Without --max-tries or --timeout the search
runs until it finds a plan.

Exit codes:
  0  a plan was found
  2  no plan was found (tries exhausted or timeout)
  1  the problem was rejected or the search failed`,
		Example: `  # Solve a problem
  yoloplan solve examples/robot.yaml

  # Reproducible bounded run
  yoloplan solve robot.yaml --seed 42 --max-tries 100000

  # Record the run and check extra policies
  yoloplan solve robot.cue --db history.db --policy ./policies

  # Re-solve whenever the file changes
  yoloplan solve robot.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, args[0], flags)
		},
	}

	cmd.Flags().Float64Var(&flags.restartProbability, "restart-probability", 0, "probability of discarding the candidate before each try")
	cmd.Flags().IntVar(&flags.maxTries, "max-tries", 0, "maximum number of tries (unbounded when not set)")
	cmd.Flags().Uint64Var(&flags.seed, "seed", 0, "random seed (random when not set)")
	cmd.Flags().BoolVar(&flags.noRepeat, "no-repeat", false, "never sample the action at the end of the candidate again")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "wall-clock limit for the search")
	cmd.Flags().IntVar(&flags.maxPlanLength, "max-plan-length", 0, "warn when a plan is longer than this")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringSliceVar(&flags.policyPaths, "policy", nil, "additional policy files or directories")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "solve again whenever the problem file changes")
	cmd.Flags().StringVar(&flags.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&flags.traceExporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	cmd.Flags().StringVar(&flags.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP collector endpoint")

	return cmd
}

func runSolve(cmd *cobra.Command, path string, flags *solveFlags) error {
	ctx := cmd.Context()

	loader, err := config.NewLoader(log.Logger)
	if err != nil {
		return err
	}
	doc, err := loader.Load(path)
	if err != nil {
		return err
	}

	tel, err := flags.newTelemetry()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Telemetry shutdown failed")
		}
	}()
	if flags.metricsListen != "" {
		if err := tel.StartMetricsServer(ctx); err != nil {
			return err
		}
		log.Info().Str("address", flags.metricsListen).Msg("Serving metrics")
	}

	policies, err := newPolicyEngine(ctx, flags.policyPaths)
	if err != nil {
		return err
	}

	deps := []planner.Option{
		planner.WithLogger(log.Logger),
		planner.WithTelemetry(tel),
		planner.WithPolicies(policies),
	}
	if flags.dbPath != "" {
		store, err := stores.Open(ctx, flags.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		deps = append(deps, planner.WithRecorder(store))
		tel.Events.Subscribe(recordEvents(ctx, store), func(e telemetry.Event) bool {
			return e.RunID != ""
		})
	}

	solve := func(doc *config.Document) (*planner.Result, error) {
		problem, err := doc.ToProblem()
		if err != nil {
			return nil, err
		}
		opts, err := flags.plannerOptions(cmd, doc.Planner)
		if err != nil {
			return nil, err
		}
		result, err := planner.New(opts, deps...).Solve(ctx, problem)
		if err != nil {
			return nil, err
		}
		return result, printResult(cmd.OutOrStdout(), result)
	}

	result, err := solve(doc)
	if !flags.watch {
		if err != nil {
			return err
		}
		if !result.Solved() {
			return &ExitError{Code: 2, Message: "no plan found"}
		}
		return nil
	}

	if err != nil {
		log.Error().Err(err).Msg("Solve failed")
	}
	err = loader.Watch(ctx, path, config.DefaultDebounce, func(doc *config.Document, err error) {
		_ = tel.Events.PublishProblemReloaded(path)
		if err != nil {
			log.Error().Err(err).Msg("Reloaded problem is invalid")
			return
		}
		if _, err := solve(doc); err != nil {
			log.Error().Err(err).Msg("Solve failed")
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// plannerOptions overlays the command-line flags that were set on the
// document's planner section.
func (f *solveFlags) plannerOptions(cmd *cobra.Command, section *config.PlannerSection) (planner.Options, error) {
	opts := planner.DefaultOptions()
	opts.Search = section.Apply(opts.Search)

	timeout, err := section.TimeoutDuration()
	if err != nil {
		return opts, err
	}
	opts.Timeout = timeout
	if section != nil && section.MaxPlanLength != nil {
		opts.MaxPlanLength = *section.MaxPlanLength
	}

	set := cmd.Flags().Changed
	if set("restart-probability") {
		opts.Search.RestartProbability = f.restartProbability
	}
	if set("max-tries") {
		opts.Search = opts.Search.WithMaxTries(f.maxTries)
	}
	if set("seed") {
		opts.Search = opts.Search.WithSeed(f.seed)
	}
	if set("no-repeat") {
		opts.Search.NoConsecutiveRepeats = f.noRepeat
	}
	if set("timeout") {
		opts.Timeout = f.timeout
	}
	if set("max-plan-length") {
		opts.MaxPlanLength = f.maxPlanLength
	}
	return opts, nil
}

func (f *solveFlags) newTelemetry() (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = zerolog.GlobalLevel().String()
	if f.traceExporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = f.traceExporter
		cfg.Tracing.Endpoint = f.otlpEndpoint
	}
	if f.metricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = f.metricsListen
	}
	return telemetry.NewTelemetry(cfg)
}

// recordEvents returns a subscriber that appends run events to the store.
func recordEvents(ctx context.Context, store *stores.SQLiteStore) telemetry.EventSubscriber {
	return func(e telemetry.Event) {
		event := &stores.RunEvent{
			RunID:     e.RunID,
			Type:      e.Type,
			Level:     stores.EventLevel(e.Level),
			Message:   e.Message,
			Timestamp: e.Timestamp,
		}
		if len(e.Data) > 0 {
			if data, err := json.Marshal(e.Data); err == nil {
				details := string(data)
				event.Details = &details
			}
		}
		if err := store.AppendEvent(context.WithoutCancel(ctx), event); err != nil {
			log.Warn().Err(err).Str("event", e.Type).Msg("Failed to record event")
		}
	}
}
