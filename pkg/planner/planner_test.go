package planner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/model/modeltest"
	"github.com/openfroyo/yoloplan/pkg/policy"
	"github.com/openfroyo/yoloplan/pkg/stores"
	"github.com/openfroyo/yoloplan/pkg/telemetry"
	"github.com/openfroyo/yoloplan/pkg/validation"
)

type fakeRecorder struct {
	mu   sync.Mutex
	runs []*stores.SolveRun
	err  error
}

func (r *fakeRecorder) CreateRun(_ context.Context, run *stores.SolveRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

type fakePolicies struct {
	problem []policy.Violation
	plan    []policy.Violation
	err     error
}

func (f *fakePolicies) EvaluateProblem(_ context.Context, _ *model.Problem, _ policy.Options) (*policy.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &policy.Result{Allowed: true, Violations: f.problem}, nil
}

func (f *fakePolicies) EvaluatePlan(_ context.Context, _ *model.Problem, _ *model.Plan, _ policy.Options) (*policy.Result, error) {
	return &policy.Result{Allowed: true, Violations: f.plan}, nil
}

func bounded(maxTries int, seed uint64) Options {
	opts := DefaultOptions()
	opts.Search = opts.Search.WithMaxTries(maxTries).WithSeed(seed)
	return opts
}

// firstActionNoRestart always samples pool index 0 and never restarts.
func firstActionNoRestart() Option {
	return WithSearchOptions(
		engine.WithSampling(engine.SamplingFunc(func(int) int { return 0 })),
		engine.WithRestart(engine.RestartFunc(func() bool { return false })),
	)
}

func TestSolve_Robot(t *testing.T) {
	p := New(bounded(10000, 7))

	result, err := p.Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !result.Solved() {
		t.Fatalf("expected a plan, got status %s", result.Status)
	}
	if result.Engine != EngineName {
		t.Errorf("Engine = %q, want %q", result.Engine, EngineName)
	}
	if result.RunID == "" {
		t.Error("expected a run ID")
	}
	if got := result.Plan.String(); got != "move(l1, l2)" {
		t.Errorf("Plan = %q, want move(l1, l2)", got)
	}
	if len(result.GroundedPlan) != 1 || result.GroundedPlan[0] != "move_l1_l2" {
		t.Errorf("GroundedPlan = %v", result.GroundedPlan)
	}
	if result.PoolSize != 2 {
		t.Errorf("PoolSize = %d, want 2", result.PoolSize)
	}
	if result.Seed != 7 {
		t.Errorf("Seed = %d, want 7", result.Seed)
	}
	if result.Stats.Tries < 1 {
		t.Errorf("Tries = %d, want at least 1", result.Stats.Tries)
	}
}

func TestSolve_Deterministic(t *testing.T) {
	p := New(DefaultOptions(), firstActionNoRestart())

	result, err := p.Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !result.Solved() {
		t.Fatalf("expected a plan, got status %s", result.Status)
	}
	if result.Stats.Tries != 1 || result.Stats.Extensions != 1 || result.Stats.Restarts != 0 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
}

func TestSolve_Chain(t *testing.T) {
	p := New(bounded(100000, 42))

	result, err := p.Solve(context.Background(), modeltest.Chain())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !result.Solved() {
		t.Fatalf("expected a plan, got status %s", result.Status)
	}
	want := "flip_first()\nflip(s1, s2)\nflip(s2, s3)"
	if got := result.Plan.String(); got != want {
		t.Errorf("Plan = %q, want %q", got, want)
	}

	verdict, err := validation.New().Validate(context.Background(), modeltest.Chain(), result.Plan)
	if err != nil {
		t.Fatal(err)
	}
	if !verdict.Valid {
		t.Errorf("returned plan does not validate: %s", verdict)
	}
}

func TestSolve_SameSeedSameRun(t *testing.T) {
	first, err := New(bounded(100000, 99)).Solve(context.Background(), modeltest.Chain())
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(bounded(100000, 99)).Solve(context.Background(), modeltest.Chain())
	if err != nil {
		t.Fatal(err)
	}
	if first.Stats != second.Stats {
		t.Errorf("stats differ for the same seed: %+v vs %+v", first.Stats, second.Stats)
	}
	if first.RunID == second.RunID {
		t.Error("run IDs should be unique")
	}
}

func TestSolve_Exhausted(t *testing.T) {
	tests := []struct {
		name     string
		maxTries int
	}{
		{"zero tries", 0},
		{"small budget", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New(bounded(tt.maxTries, 1)).Solve(context.Background(), modeltest.Unreachable())
			if err != nil {
				t.Fatalf("exhaustion is not an error, got %v", err)
			}
			if result.Status != StatusExhausted {
				t.Fatalf("Status = %s, want %s", result.Status, StatusExhausted)
			}
			if result.Stats.Tries != tt.maxTries {
				t.Errorf("Tries = %d, want %d", result.Stats.Tries, tt.maxTries)
			}
			if result.Plan != nil || result.GroundedPlan != nil {
				t.Errorf("exhausted result carries a plan: %v", result.Plan)
			}
		})
	}
}

func TestSolve_Timeout(t *testing.T) {
	opts := DefaultOptions()
	opts.Timeout = 50 * time.Millisecond

	start := time.Now()
	result, err := New(opts).Solve(context.Background(), modeltest.Unreachable())
	if err != nil {
		t.Fatalf("timeout is not an error, got %v", err)
	}
	if result.Status != StatusTimeout {
		t.Fatalf("Status = %s, want %s", result.Status, StatusTimeout)
	}
	if result.Stats.Tries == 0 {
		t.Error("expected the tries made before the deadline to be reported")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("solve ran for %v after a 50ms timeout", elapsed)
	}
}

func TestSolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := &fakeRecorder{}
	_, err := New(bounded(10, 1), WithRecorder(recorder)).Solve(ctx, modeltest.Robot())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].Status != stores.RunStatusFailed {
		t.Errorf("expected one failed run to be recorded, got %+v", recorder.runs)
	}
}

func TestSolve_RejectedInput(t *testing.T) {
	badProblem := modeltest.Robot()
	badProblem.Actions[0].Parameters[0].Type = "Nowhere"

	badOptions := DefaultOptions()
	badOptions.Search.RestartProbability = 1.5

	negativeTimeout := DefaultOptions()
	negativeTimeout.Timeout = -time.Second

	tests := []struct {
		name    string
		opts    Options
		problem *model.Problem
		code    string
	}{
		{"nil problem", DefaultOptions(), nil, engine.ErrCodeInvalidProblem},
		{"invalid problem", DefaultOptions(), badProblem, engine.ErrCodeInvalidProblem},
		{"restart probability", badOptions, modeltest.Robot(), engine.ErrCodeInvalidConfig},
		{"negative timeout", negativeTimeout, modeltest.Robot(), engine.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New(tt.opts).Solve(context.Background(), tt.problem)
			if err == nil {
				t.Fatalf("expected an error, got result %+v", result)
			}
			if !engine.IsConfiguration(err) {
				t.Errorf("expected a configuration error, got %v", err)
			}
			if !engine.HasCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestSolve_BlockingProblemPolicy(t *testing.T) {
	policies := &fakePolicies{problem: []policy.Violation{
		{Policy: "declared-types", Kind: policy.KindProblem, Message: "object l3 has undeclared type", Severity: policy.SeverityError},
		{Policy: "goal-present", Kind: policy.KindProblem, Message: "no goals", Severity: policy.SeverityWarning},
	}}
	recorder := &fakeRecorder{}

	_, err := New(bounded(10, 1), WithPolicies(policies), WithRecorder(recorder)).
		Solve(context.Background(), modeltest.Robot())
	if !engine.HasCode(err, engine.ErrCodePolicyViolation) {
		t.Fatalf("expected a policy violation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "declared-types") {
		t.Errorf("error should name the blocking policy: %v", err)
	}
	if strings.Contains(err.Error(), "goal-present") {
		t.Errorf("warnings must not be reported as blocking: %v", err)
	}
	if len(recorder.runs) != 1 || recorder.runs[0].Error == nil {
		t.Errorf("expected a failed run with an error message, got %+v", recorder.runs)
	}
}

func TestSolve_PolicyEvaluationFails(t *testing.T) {
	policies := &fakePolicies{err: errors.New("rego crashed")}

	_, err := New(bounded(10, 1), WithPolicies(policies)).Solve(context.Background(), modeltest.Robot())
	if !engine.HasCode(err, engine.ErrCodePolicyViolation) {
		t.Fatalf("expected a policy error, got %v", err)
	}
}

func TestSolve_PlanPoliciesNeverBlock(t *testing.T) {
	policies := &fakePolicies{plan: []policy.Violation{
		{Policy: "no-moves", Kind: policy.KindPlan, Message: "plan moves the robot", Severity: policy.SeverityError},
	}}

	result, err := New(bounded(10000, 3), WithPolicies(policies)).Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("plan policies must not fail the solve: %v", err)
	}
	if !result.Solved() {
		t.Fatalf("Status = %s, want solved", result.Status)
	}
	if len(result.Violations) != 1 || result.Violations[0].Policy != "no-moves" {
		t.Errorf("Violations = %+v", result.Violations)
	}
}

func TestSolve_PolicyEngine(t *testing.T) {
	policies, err := policy.NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}

	opts := bounded(100000, 5)
	opts.MaxPlanLength = 2

	result, err := New(opts, WithPolicies(policies)).Solve(context.Background(), modeltest.Chain())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !result.Solved() {
		t.Fatalf("Status = %s, want solved", result.Status)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "plan-length" && v.Kind == policy.KindPlan {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a plan-length violation, got %+v", result.Violations)
	}
}

func TestSolve_RecordsRun(t *testing.T) {
	recorder := &fakeRecorder{}
	opts := bounded(10000, 11)
	opts.Timeout = time.Minute

	result, err := New(opts, WithRecorder(recorder)).Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(recorder.runs))
	}

	run := recorder.runs[0]
	if run.ID != result.RunID || run.Engine != EngineName || run.Problem != "robot" {
		t.Errorf("unexpected run identity: %+v", run)
	}
	if run.Status != stores.RunStatusSolved {
		t.Errorf("Status = %s, want %s", run.Status, stores.RunStatusSolved)
	}
	if run.Plan != "move(l1, l2)" || run.PlanLength != 1 {
		t.Errorf("unexpected plan: %q (%d)", run.Plan, run.PlanLength)
	}
	if run.Seed != 11 || run.Tries != result.Stats.Tries {
		t.Errorf("unexpected counters: %+v", run)
	}
	if run.Error != nil {
		t.Errorf("Error = %q, want nil", *run.Error)
	}
	for _, key := range []string{`"pool_size":2`, `"max_tries":10000`, `"timeout":"1m0s"`, `"grounded_plan":["move_l1_l2"]`} {
		if !strings.Contains(run.Metadata, key) {
			t.Errorf("metadata %s does not contain %s", run.Metadata, key)
		}
	}
}

func TestSolve_RecorderFailureIsNotFatal(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("disk full")}

	result, err := New(bounded(10000, 2), WithRecorder(recorder)).Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("recorder errors must not fail the solve: %v", err)
	}
	if !result.Solved() {
		t.Errorf("Status = %s, want solved", result.Status)
	}
}

func TestSolve_RecordsIntoStore(t *testing.T) {
	ctx := context.Background()
	store, err := stores.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	result, err := New(bounded(20, 4), WithRecorder(store)).Solve(ctx, modeltest.Unreachable())
	if err != nil {
		t.Fatal(err)
	}

	run, err := store.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if run.Status != stores.RunStatusExhausted || run.Tries != 20 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestSolve_Telemetry(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to create telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	var mu sync.Mutex
	var types []string
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}, nil)

	steps := 0
	result, err := New(bounded(10000, 8), WithTelemetry(tel), WithObserver(func(engine.Step) { steps++ })).
		Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	if steps != result.Stats.Tries {
		t.Errorf("observer saw %d steps, stats report %d tries", steps, result.Stats.Tries)
	}

	mu.Lock()
	got := strings.Join(types, ",")
	mu.Unlock()
	want := strings.Join([]string{
		telemetry.EventTypeSolveStarted,
		telemetry.EventTypePlanFound,
		telemetry.EventTypeSolveCompleted,
	}, ",")
	if got != want {
		t.Errorf("events = %s, want %s", got, want)
	}

	families, err := tel.Metrics.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	completed := 0.0
	for _, mf := range families {
		if mf.GetName() != "yoloplan_solves_completed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			completed += m.GetCounter().GetValue()
		}
	}
	if completed != 1 {
		t.Errorf("solves_completed_total = %v, want 1", completed)
	}
}

func TestSolve_LogsThroughTelemetryLogger(t *testing.T) {
	var buf bytes.Buffer
	tel := telemetry.NewNop()
	tel.Logger = telemetry.NewLoggerWithWriter(telemetry.LoggingConfig{Level: "info", Format: "json"}, &buf)

	result, err := New(bounded(10000, 7), WithTelemetry(tel)).Solve(context.Background(), modeltest.Robot())
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"component":"planner"`, `"run_id":"` + result.RunID + `"`, "Solve started"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestRevalidate_IntegrityMismatch(t *testing.T) {
	plan := &model.Plan{Actions: []model.ActionInstance{{Action: "move", Args: []string{"l2", "l1"}}}}

	err := revalidate(context.Background(), validation.New(), modeltest.Robot(), plan)
	if !engine.IsSearch(err) || !engine.HasCode(err, engine.ErrCodeIntegrityMismatch) {
		t.Fatalf("expected an integrity mismatch, got %v", err)
	}

	ok := &model.Plan{Actions: []model.ActionInstance{{Action: "move", Args: []string{"l1", "l2"}}}}
	if err := revalidate(context.Background(), validation.New(), modeltest.Robot(), ok); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}
}
