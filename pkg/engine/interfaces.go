package engine

import (
	"context"
)

// Oracle decides whether a candidate sequence is a valid plan.
// It must be deterministic for a fixed sequence within one search call.
type Oracle[A any] interface {
	// Validate returns the verdict for the sequence. A non-nil error means the oracle
	// itself failed and aborts the search.
	Validate(ctx context.Context, sequence []A) (Verdict, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc[A any] func(ctx context.Context, sequence []A) (Verdict, error)

// Validate calls f(ctx, sequence).
func (f OracleFunc[A]) Validate(ctx context.Context, sequence []A) (Verdict, error) {
	return f(ctx, sequence)
}

// SamplingPolicy picks the next action to append.
type SamplingPolicy interface {
	// Next returns an index in [0, n).
	Next(n int) int
}

// SamplingFunc adapts a function to the SamplingPolicy interface.
type SamplingFunc func(n int) int

// Next calls f(n).
func (f SamplingFunc) Next(n int) int {
	return f(n)
}

// RestartPolicy decides, before each try, whether the candidate is discarded.
type RestartPolicy interface {
	Restart() bool
}

// RestartFunc adapts a function to the RestartPolicy interface.
type RestartFunc func() bool

// Restart calls f().
func (f RestartFunc) Restart() bool {
	return f()
}

// Observer is notified after every try.
type Observer func(step Step)
