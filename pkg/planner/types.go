package planner

import (
	"context"
	"time"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/model"
	"github.com/openfroyo/yoloplan/pkg/policy"
	"github.com/openfroyo/yoloplan/pkg/stores"
)

// EngineName identifies this planner in results and run history.
const EngineName = "YOLOPlanner"

// Status is the outcome reported for a solve call.
type Status string

const (
	// StatusSolved means a plan was found and re-validated.
	StatusSolved Status = "solved_satisficing"

	// StatusExhausted means the try budget ran out without a plan.
	StatusExhausted Status = "exhausted"

	// StatusTimeout means the deadline passed before a plan was found.
	StatusTimeout Status = "timeout"
)

// Options configures a Planner.
type Options struct {
	// Search holds the engine tunables.
	Search engine.Config `json:"search" yaml:"search"`

	// Timeout bounds the wall-clock time of one solve. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`

	// MaxPlanLength is forwarded to plan policies. Zero disables the check.
	MaxPlanLength int `json:"max_plan_length,omitempty" yaml:"max_plan_length,omitempty" validate:"gte=0"`
}

// DefaultOptions returns unbounded options with the default restart probability.
func DefaultOptions() Options {
	return Options{Search: engine.DefaultConfig()}
}

// Result is what a solve call returns.
type Result struct {
	// RunID identifies the solve in logs, events and run history.
	RunID string `json:"run_id"`

	// Engine is always EngineName.
	Engine string `json:"engine"`

	// Problem is the name of the problem solved.
	Problem string `json:"problem"`

	// Status is solved_satisficing, exhausted or timeout.
	Status Status `json:"status"`

	// Plan is the lifted plan over the problem's action schemas. Nil unless solved.
	Plan *model.Plan `json:"plan,omitempty"`

	// GroundedPlan lists the grounded action names of the plan.
	GroundedPlan []string `json:"grounded_plan,omitempty"`

	// PoolSize is the number of grounded actions searched over.
	PoolSize int `json:"pool_size"`

	// Stats counts what the search did.
	Stats engine.Stats `json:"stats"`

	// Seed reproduces the run when passed back as the search seed.
	Seed uint64 `json:"seed"`

	// Duration is the wall-clock time of the solve.
	Duration time.Duration `json:"duration"`

	// Violations are non-blocking policy findings on the problem and the plan.
	Violations []policy.Violation `json:"violations,omitempty"`
}

// Solved reports whether the result carries a plan.
func (r *Result) Solved() bool {
	return r != nil && r.Status == StatusSolved
}

// PolicyEvaluator checks problems before they are solved and plans after.
type PolicyEvaluator interface {
	EvaluateProblem(ctx context.Context, problem *model.Problem, opts policy.Options) (*policy.Result, error)
	EvaluatePlan(ctx context.Context, problem *model.Problem, plan *model.Plan, opts policy.Options) (*policy.Result, error)
}

// RunRecorder persists finished solve runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *stores.SolveRun) error
}
