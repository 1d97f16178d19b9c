package engine

import (
	"fmt"
)

// FailureReason classifies why the oracle rejected a candidate sequence.
type FailureReason int

const (
	// ReasonUnknown is reported when the oracle could not classify the failure.
	// The search treats it like ReasonApplicability.
	ReasonUnknown FailureReason = iota

	// ReasonApplicability means the sequence cannot be executed: the last appended
	// action (or an earlier one) is not applicable at its position.
	ReasonApplicability

	// ReasonGoalNotSatisfied means the sequence executes but the goal does not hold
	// in the final state.
	ReasonGoalNotSatisfied
)

// String returns the label used in logs and metrics.
func (r FailureReason) String() string {
	switch r {
	case ReasonApplicability:
		return "applicability"
	case ReasonGoalNotSatisfied:
		return "goal_not_satisfied"
	default:
		return "unknown"
	}
}

// Verdict is the oracle's answer for one candidate sequence.
type Verdict struct {
	// Valid is true when the sequence is a complete, goal-satisfying plan.
	Valid bool `json:"valid"`

	// Reason classifies an invalid verdict. Ignored when Valid is true.
	Reason FailureReason `json:"reason"`

	// Message is the oracle's diagnostic, informational only.
	Message string `json:"message,omitempty"`
}

// Valid returns a verdict certifying the sequence as a plan.
func Valid() Verdict {
	return Verdict{Valid: true}
}

// Inapplicable returns a verdict for a sequence that cannot be executed.
func Inapplicable(message string) Verdict {
	return Verdict{Reason: ReasonApplicability, Message: message}
}

// GoalNotSatisfied returns a verdict for an executable but incomplete sequence.
func GoalNotSatisfied(message string) Verdict {
	return Verdict{Reason: ReasonGoalNotSatisfied, Message: message}
}

// String renders the verdict for logs.
func (v Verdict) String() string {
	if v.Valid {
		return "valid"
	}
	if v.Message == "" {
		return "invalid(" + v.Reason.String() + ")"
	}
	return fmt.Sprintf("invalid(%s): %s", v.Reason, v.Message)
}

// Status is the terminal status of a search.
type Status string

const (
	// StatusFound indicates the oracle certified the returned sequence.
	StatusFound Status = "found"

	// StatusExhausted indicates the try budget was consumed without a plan.
	StatusExhausted Status = "exhausted"
)

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusFound, StatusExhausted:
		return nil
	default:
		return fmt.Errorf("invalid search status: %s", s)
	}
}

// Config holds the tunables of one search invocation.
type Config struct {
	// RestartProbability is the chance of discarding the candidate before each try.
	RestartProbability float64 `json:"restart_probability" yaml:"restart_probability" validate:"gte=0,lt=1"`

	// MaxTries bounds the number of tries. Nil means unbounded.
	MaxTries *int `json:"max_tries,omitempty" yaml:"max_tries,omitempty" validate:"omitempty,gte=0"`

	// Seed fixes the random source of the default policies. Nil picks a random seed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// NoConsecutiveRepeats forbids sampling the action that is currently the tail of the
	// candidate. It has no effect on single-action pools.
	NoConsecutiveRepeats bool `json:"no_consecutive_repeats" yaml:"no_consecutive_repeats"`
}

// DefaultRestartProbability is the restart probability used when none is configured.
const DefaultRestartProbability = 0.00001

// DefaultConfig returns an unbounded configuration with the default restart probability.
func DefaultConfig() Config {
	return Config{
		RestartProbability: DefaultRestartProbability,
	}
}

// WithMaxTries returns a copy of the config bounded to n tries.
func (c Config) WithMaxTries(n int) Config {
	c.MaxTries = &n
	return c
}

// WithSeed returns a copy of the config using the given seed.
func (c Config) WithSeed(seed uint64) Config {
	c.Seed = &seed
	return c
}

// Bounded reports whether the config carries a try budget.
func (c Config) Bounded() bool {
	return c.MaxTries != nil
}

// StepKind identifies what a try did to the candidate.
type StepKind string

const (
	// StepExtend means an action was sampled and appended.
	StepExtend StepKind = "extend"

	// StepRestart means the candidate was discarded.
	StepRestart StepKind = "restart"
)

// Step describes one completed try. It is handed to observers after the verdict
// has been applied to the candidate.
type Step struct {
	// Try is the 1-based try number.
	Try int

	// Kind is what the try did before querying the oracle.
	Kind StepKind

	// Action is the pool index appended by an extend step, -1 for restarts.
	Action int

	// Verdict is the oracle's answer for this try.
	Verdict Verdict

	// Backtracked is true when the last appended action was removed.
	Backtracked bool

	// CandidateLen is the candidate length after the verdict was applied.
	CandidateLen int
}

// Stats summarizes a search.
type Stats struct {
	Tries      int `json:"tries"`
	Restarts   int `json:"restarts"`
	Extensions int `json:"extensions"`
	Backtracks int `json:"backtracks"`
	GoalMisses int `json:"goal_misses"`
	MaxLength  int `json:"max_length"`
}

// Outcome is the terminal value of a search.
type Outcome[A any] struct {
	// Status is StatusFound or StatusExhausted.
	Status Status `json:"status"`

	// Plan is the certified sequence. Empty unless Status is StatusFound.
	Plan []A `json:"plan,omitempty"`

	// Stats counts what the search did.
	Stats Stats `json:"stats"`

	// Seed is the seed of the default random source, when it was used.
	Seed uint64 `json:"seed"`
}

// Found reports whether the search produced a plan.
func (o *Outcome[A]) Found() bool {
	return o != nil && o.Status == StatusFound
}
