// Package telemetry provides the observability stack of the planner.
//
// It integrates structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an in-process event publisher behind one
// Telemetry value:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
// Loggers carry solve fields:
//
//	logger := tel.Logger.NewComponentLogger("planner").WithRunID(runID).WithProblem("robot")
//	logger.Info("search started")
//
// # Tracing
//
// A solve is traced as a planner.solve span with one child span per phase
// (ground, search, lift, validate, policy). Exporters: otlp (gRPC), stdout, none.
//
//	op := telemetry.StartOperation(ctx, "ground")
//	defer func() { op.End(err) }()
//
// # Metrics
//
// Prometheus metrics are kept in a private registry and served by
// StartMetricsServer:
//
//   - solves_started_total, solves_completed_total{status}, solve_duration_seconds{status}
//   - search_tries, search_steps_total{kind}, search_verdicts_total{result}
//   - grounding_pool_size, plan_length, phase_duration_seconds{phase}
//   - policy_violations_total{policy,severity}, errors_by_class_total, errors_by_code_total
//
// A disabled or nil *Metrics ignores every Record call.
//
// # Events
//
// EventPublisher delivers solve.started, solve.completed, solve.failed,
// plan.found, policy.violation and problem.reloaded events to subscribers,
// synchronously by default or through a buffered channel when EnableAsync is set.
package telemetry
