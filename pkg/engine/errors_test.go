package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Classification(t *testing.T) {
	cause := errors.New("boom")
	err := NewSearchError("oracle failed", cause).
		WithCode(ErrCodeOracleFailed).
		WithOperation("search").
		WithDetail("try", 3)

	if !IsSearch(err) {
		t.Error("expected search error")
	}
	if IsConfiguration(err) {
		t.Error("did not expect configuration error")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if err.Details["try"] != 3 {
		t.Errorf("expected try detail 3, got %v", err.Details["try"])
	}

	want := "[search] oracle failed (operation=search): boom"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestEngineError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewConfigurationError("empty", nil).WithCode(ErrCodeEmptyPool))

	if !errors.Is(err, &EngineError{Class: ErrorClassConfiguration, Code: ErrCodeEmptyPool}) {
		t.Error("expected errors.Is to match class and code")
	}
	if errors.Is(err, &EngineError{Class: ErrorClassConfiguration, Code: ErrCodeInvalidConfig}) {
		t.Error("did not expect a match on a different code")
	}
}

func TestClassOf(t *testing.T) {
	class, code := ClassOf(NewConfigurationError("bad", nil).WithCode(ErrCodeInvalidProblem))
	if class != ErrorClassConfiguration || code != ErrCodeInvalidProblem {
		t.Errorf("unexpected classification %s/%s", class, code)
	}

	class, code = ClassOf(errors.New("plain"))
	if class != ErrorClassSearch || code != ErrCodeInternal {
		t.Errorf("expected plain errors to be internal search errors, got %s/%s", class, code)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if err := DefaultConfig().WithMaxTries(0).Validate(); err != nil {
		t.Errorf("zero max tries should be valid: %v", err)
	}
	if err := (Config{RestartProbability: 0.999}).Validate(); err != nil {
		t.Errorf("probability below one should be valid: %v", err)
	}
	if err := (Config{RestartProbability: 1}).Validate(); !IsConfiguration(err) {
		t.Errorf("expected configuration error for probability 1, got %v", err)
	}
}

func TestVerdict_String(t *testing.T) {
	tests := []struct {
		verdict Verdict
		want    string
	}{
		{Valid(), "valid"},
		{Inapplicable(""), "invalid(applicability)"},
		{GoalNotSatisfied("goal robot_at(l2) not reached"), "invalid(goal_not_satisfied): goal robot_at(l2) not reached"},
		{Verdict{}, "invalid(unknown)"},
	}
	for _, tt := range tests {
		if got := tt.verdict.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
