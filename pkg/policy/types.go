package policy

import (
	"time"

	"github.com/openfroyo/yoloplan/pkg/model"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed but never block.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block solving a problem.
	SeverityError Severity = "error"
)

// Blocking reports whether violations of this severity stop a solve.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Kind is what a policy input describes.
type Kind string

const (
	KindProblem Kind = "problem"
	KindPlan    Kind = "plan"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. It must define a deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not carry one.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the planner.
	Builtin bool `json:"builtin"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was loaded from, if any.
	Source string `json:"source,omitempty"`
}

// Options are evaluation settings exposed to policies as input.options.
type Options struct {
	// MaxPlanLength enables the plan-length policy when positive.
	MaxPlanLength int `json:"max_plan_length,omitempty"`
}

// Input is the document policies evaluate.
type Input struct {
	// Kind tells policies whether a problem or a plan is being checked.
	Kind Kind `json:"kind"`

	// Problem is the planning problem.
	Problem *model.Problem `json:"problem,omitempty"`

	// Plan is the lifted plan, present when Kind is plan.
	Plan []model.ActionInstance `json:"plan,omitempty"`

	// Options carries evaluation settings.
	Options Options `json:"options"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Kind is the input kind that was checked.
	Kind Kind `json:"kind"`

	// Subject names the offending element (action, object, ...), if any.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists all policy violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that stop a solve.
func (r *Result) Blocking() []Violation {
	if r == nil {
		return nil
	}
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}
