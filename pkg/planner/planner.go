package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/grounding"
	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/policy"
	"github.com/openfroyo/yoloplan/pkg/stores"
	"github.com/openfroyo/yoloplan/pkg/telemetry"
	"github.com/openfroyo/yoloplan/pkg/validation"
)

var optionsValidator = validator.New()

// Validate checks the options against their struct constraints.
func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return engine.NewConfigurationError("invalid planner options", err).
			WithCode(engine.ErrCodeInvalidConfig)
	}
	return nil
}

// Planner solves planning problems by grounding them and running the
// stochastic search against a plan validator.
type Planner struct {
	opts      Options
	policies  PolicyEvaluator
	recorder  RunRecorder
	telemetry *telemetry.Telemetry
	logger    *zerolog.Logger
	observer  engine.Observer
	search    []engine.Option
}

// Option wires a collaborator into a Planner.
type Option func(*Planner)

// WithPolicies checks problems and plans against a policy engine.
func WithPolicies(e PolicyEvaluator) Option {
	return func(p *Planner) {
		p.policies = e
	}
}

// WithRecorder persists every finished solve.
func WithRecorder(r RunRecorder) Option {
	return func(p *Planner) {
		p.recorder = r
	}
}

// WithTelemetry records metrics, spans and events for every solve.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(p *Planner) {
		if t != nil {
			p.telemetry = t
		}
	}
}

// WithLogger sets the logger. Without it the planner logs through the
// telemetry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Planner) {
		p.logger = &logger
	}
}

// WithObserver registers a callback invoked after every search try.
func WithObserver(o engine.Observer) Option {
	return func(p *Planner) {
		p.observer = o
	}
}

// WithSearchOptions passes sampling or restart policies to the search engine.
func WithSearchOptions(opts ...engine.Option) Option {
	return func(p *Planner) {
		p.search = append(p.search, opts...)
	}
}

// New creates a planner. Options are validated on every Solve.
func New(opts Options, deps ...Option) *Planner {
	p := &Planner{
		opts:      opts,
		telemetry: telemetry.NewNop(),
	}
	for _, dep := range deps {
		dep(p)
	}
	if p.logger == nil {
		p.logger = p.telemetry.Logger.NewComponentLogger("planner").Zerolog()
	} else {
		logger := p.logger.With().Str("component", "planner").Logger()
		p.logger = &logger
	}
	return p
}

// Options returns the planner's options.
func (p *Planner) Options() Options {
	return p.opts
}

// Solve looks for a plan for problem.
//
// An exhausted or timed-out search is not an error: the result carries
// StatusExhausted or StatusTimeout. Errors are reserved for rejected input
// (configuration errors, blocking policy violations) and failures during the
// search, lifting or re-validation of the plan.
func (p *Planner) Solve(ctx context.Context, problem *model.Problem) (*Result, error) {
	if problem == nil {
		return nil, engine.NewConfigurationError("problem is nil", nil).
			WithCode(engine.ErrCodeInvalidProblem).
			WithOperation("solve")
	}
	if err := p.opts.Validate(); err != nil {
		return nil, err
	}

	tel := p.telemetry
	started := time.Now()
	result := &Result{
		RunID:   uuid.New().String(),
		Engine:  EngineName,
		Problem: problem.Name,
	}
	logger := p.logger.With().
		Str("run_id", result.RunID).
		Str("problem", problem.Name).
		Logger()

	ctx = tel.WithContext(ctx)
	ctx, span := tel.Tracer.StartSolveSpan(ctx, result.RunID, problem.Name)
	defer span.End()

	tel.Metrics.RecordSolveStarted()
	p.logPublish(logger, tel.Events.PublishSolveStarted(result.RunID, problem.Name))
	logger.Info().Msg("Solve started")

	searchCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	err := p.solve(ctx, searchCtx, problem, result, logger)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		logger.Warn().Err(err).Msg("Solve timed out")
		result.Status = StatusTimeout
		err = nil
	}
	result.Duration = time.Since(started)

	if err != nil {
		class, code := engine.ClassOf(err)
		tel.Metrics.RecordSolveCompleted(string(stores.RunStatusFailed), result.Duration, result.Stats.Tries)
		tel.Metrics.RecordError(string(class), code)
		span.SetAttributes(
			telemetry.AttrErrorClass.String(string(class)),
			telemetry.AttrErrorCode.String(code),
		)
		telemetry.RecordError(span, err)
		p.logPublish(logger, tel.Events.PublishSolveFailed(result.RunID, problem.Name, err.Error()))
		logger.Error().Err(err).Dur("duration", result.Duration).Msg("Solve failed")
		p.record(ctx, result, started, err, logger)
		return nil, err
	}

	span.SetAttributes(
		telemetry.AttrStatus.String(string(result.Status)),
		telemetry.AttrSeed.String(strconv.FormatUint(result.Seed, 10)),
		telemetry.AttrTries.Int(result.Stats.Tries),
		telemetry.AttrRestarts.Int(result.Stats.Restarts),
		telemetry.AttrPlanLength.Int(result.Plan.Len()),
	)
	telemetry.RecordSuccess(span)
	tel.Metrics.RecordSolveCompleted(string(result.Status), result.Duration, result.Stats.Tries)
	if result.Solved() {
		tel.Metrics.RecordPlanLength(result.Plan.Len())
		p.logPublish(logger, tel.Events.PublishPlanFound(result.RunID, problem.Name, result.Plan.Len()))
	}
	p.logPublish(logger, tel.Events.PublishSolveCompleted(
		result.RunID, problem.Name, string(result.Status), result.Stats.Tries, result.Duration))

	logger.Info().
		Str("status", string(result.Status)).
		Int("tries", result.Stats.Tries).
		Int("restarts", result.Stats.Restarts).
		Int("plan_length", result.Plan.Len()).
		Uint64("seed", result.Seed).
		Dur("duration", result.Duration).
		Msg("Solve completed")

	p.record(ctx, result, started, nil, logger)
	return result, nil
}

// solve runs the phases of one solve. Grounding and search use searchCtx,
// which carries the timeout; the post-processing of a found plan does not.
func (p *Planner) solve(ctx, searchCtx context.Context, problem *model.Problem, result *Result, logger zerolog.Logger) error {
	if err := problem.Validate(); err != nil {
		return err
	}

	if p.policies != nil {
		checked, err := p.policies.EvaluateProblem(ctx, problem, p.policyOptions())
		if err != nil {
			return engine.NewConfigurationError("problem policy evaluation failed", err).
				WithCode(engine.ErrCodePolicyViolation).
				WithOperation("policy")
		}
		p.addViolations(result, checked.Violations, logger)
		if blocking := checked.Blocking(); len(blocking) > 0 {
			return engine.NewConfigurationError(
				fmt.Sprintf("problem %q violates blocking policies: %s", problem.Name, describe(blocking)), nil).
				WithCode(engine.ErrCodePolicyViolation).
				WithOperation("policy").
				WithDetail("violations", blocking)
		}
	}

	op := telemetry.StartOperation(searchCtx, "ground", telemetry.AttrProblem.String(problem.Name))
	grounded, err := grounding.Ground(op.Ctx, problem)
	op.End(err)
	if err != nil {
		return err
	}
	result.PoolSize = grounded.Size()
	p.telemetry.Metrics.RecordPoolSize(grounded.Size())
	logger.Debug().
		Int("pool_size", grounded.Size()).
		Int("pruned", grounded.Pruned).
		Msg("Problem grounded")

	checker := validation.New()
	oracle, err := checker.Oracle(grounded.Problem)
	if err != nil {
		return err
	}

	opts := append(append([]engine.Option{}, p.search...), engine.WithObserver(p.observe(result, logger)))
	op = telemetry.StartOperation(searchCtx, "search", telemetry.AttrPoolSize.Int(grounded.Size()))
	outcome, err := engine.Search(op.Ctx, grounded.Actions(), oracle, p.opts.Search, opts...)
	op.End(err)
	if err != nil {
		return err
	}
	result.Stats = outcome.Stats
	result.Seed = outcome.Seed

	if !outcome.Found() {
		result.Status = StatusExhausted
		return nil
	}

	op = telemetry.StartOperation(ctx, "lift")
	plan, err := grounded.Lift(outcome.Plan)
	op.End(err)
	if err != nil {
		return err
	}

	op = telemetry.StartOperation(ctx, "validate")
	err = revalidate(op.Ctx, checker, problem, plan)
	op.End(err)
	if err != nil {
		return err
	}

	if p.policies != nil {
		checked, err := p.policies.EvaluatePlan(ctx, problem, plan, p.policyOptions())
		if err != nil {
			logger.Warn().Err(err).Msg("Plan policy evaluation failed")
		} else {
			p.addViolations(result, checked.Violations, logger)
		}
	}

	result.Status = StatusSolved
	result.Plan = plan
	result.GroundedPlan = grounding.Names(outcome.Plan)
	return nil
}

// revalidate checks a lifted plan against the original problem.
func revalidate(ctx context.Context, checker *validation.Validator, problem *model.Problem, plan *model.Plan) error {
	verdict, err := checker.Validate(ctx, problem, plan)
	if err != nil {
		return engine.NewSearchError("re-validation of the lifted plan failed", err).
			WithCode(engine.ErrCodeIntegrityMismatch).
			WithOperation("validate")
	}
	if !verdict.Valid {
		return engine.NewSearchError("lifted plan is not valid: "+verdict.String(), nil).
			WithCode(engine.ErrCodeIntegrityMismatch).
			WithOperation("validate").
			WithDetail("plan", plan.String())
	}
	return nil
}

// observe counts tries into result as they happen, so a timed-out search
// still reports how far it got.
func (p *Planner) observe(result *Result, logger zerolog.Logger) engine.Observer {
	metrics := p.telemetry.Metrics
	return func(step engine.Step) {
		result.Stats.Tries = step.Try
		if step.Kind == engine.StepRestart {
			result.Stats.Restarts++
		}
		metrics.RecordStep(string(step.Kind), verdictLabel(step.Verdict))
		logger.Trace().
			Int("try", step.Try).
			Str("kind", string(step.Kind)).
			Int("action", step.Action).
			Bool("backtracked", step.Backtracked).
			Int("length", step.CandidateLen).
			Msg(step.Verdict.String())
		if p.observer != nil {
			p.observer(step)
		}
	}
}

func verdictLabel(v engine.Verdict) string {
	if v.Valid {
		return "valid"
	}
	return v.Reason.String()
}

func (p *Planner) policyOptions() policy.Options {
	return policy.Options{MaxPlanLength: p.opts.MaxPlanLength}
}

func (p *Planner) addViolations(result *Result, violations []policy.Violation, logger zerolog.Logger) {
	tel := p.telemetry
	for _, v := range violations {
		tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		p.logPublish(logger, tel.Events.PublishPolicyViolation(
			result.RunID, result.Problem, v.Policy, string(v.Severity), v.Message))
		logger.Warn().
			Str("policy", v.Policy).
			Str("severity", string(v.Severity)).
			Str("subject", v.Subject).
			Msg(v.Message)
	}
	result.Violations = append(result.Violations, violations...)
}

func describe(violations []policy.Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.Policy + ": " + v.Message
	}
	return strings.Join(parts, "; ")
}

// record stores the run when a recorder is configured. Failures are logged;
// they never change the solve's outcome.
func (p *Planner) record(ctx context.Context, result *Result, started time.Time, solveErr error, logger zerolog.Logger) {
	if p.recorder == nil {
		return
	}

	run := &stores.SolveRun{
		ID:          result.RunID,
		Problem:     result.Problem,
		Engine:      result.Engine,
		Status:      stores.RunStatus(result.Status),
		Tries:       result.Stats.Tries,
		Restarts:    result.Stats.Restarts,
		Backtracks:  result.Stats.Backtracks,
		PlanLength:  result.Plan.Len(),
		Plan:        result.Plan.String(),
		Seed:        result.Seed,
		Metadata:    p.metadata(result),
		StartedAt:   started,
		CompletedAt: started.Add(result.Duration),
	}
	if solveErr != nil {
		run.Status = stores.RunStatusFailed
		msg := solveErr.Error()
		run.Error = &msg
	}

	if err := p.recorder.CreateRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error().Err(err).Msg("Failed to record solve run")
	}
}

func (p *Planner) metadata(result *Result) string {
	meta := map[string]interface{}{
		"restart_probability":    p.opts.Search.RestartProbability,
		"no_consecutive_repeats": p.opts.Search.NoConsecutiveRepeats,
		"pool_size":              result.PoolSize,
		"goal_misses":            result.Stats.GoalMisses,
	}
	if p.opts.Search.MaxTries != nil {
		meta["max_tries"] = *p.opts.Search.MaxTries
	}
	if p.opts.Timeout > 0 {
		meta["timeout"] = p.opts.Timeout.String()
	}
	if len(result.GroundedPlan) > 0 {
		meta["grounded_plan"] = result.GroundedPlan
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (p *Planner) logPublish(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to publish event")
	}
}
