package engine

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// Validate checks the config against its struct constraints.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return NewConfigurationError("invalid search configuration", err).
			WithCode(ErrCodeInvalidConfig)
	}
	return nil
}

// settings holds the injectable collaborators of one search.
type settings struct {
	sampling SamplingPolicy
	restart  RestartPolicy
	observer Observer
}

// Option customizes a search.
type Option func(*settings)

// WithSampling replaces the default uniform sampling policy.
func WithSampling(p SamplingPolicy) Option {
	return func(s *settings) {
		s.sampling = p
	}
}

// WithRestart replaces the default probabilistic restart policy.
func WithRestart(p RestartPolicy) Option {
	return func(s *settings) {
		s.restart = p
	}
}

// WithObserver registers a callback invoked after every try.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observer = o
	}
}

// Search looks for a sequence of actions from pool that the oracle certifies as a plan.
//
// Each try either restarts (empties the candidate) or appends one sampled action, then
// submits the candidate to the oracle. An applicability failure removes the action the
// try appended; a goal failure keeps it so later tries extend the sequence. The search
// ends with StatusFound on the first valid verdict, or StatusExhausted once cfg.MaxTries
// tries have been made. Without MaxTries it runs until a plan is found.
//
// The oracle receives the live candidate slice and must not retain or modify it.
// ctx is only forwarded to the oracle; the loop itself never checks it.
func Search[A any](ctx context.Context, pool []A, oracle Oracle[A], cfg Config, opts ...Option) (*Outcome[A], error) {
	if len(pool) == 0 {
		return nil, NewConfigurationError("action pool is empty", nil).
			WithCode(ErrCodeEmptyPool).
			WithOperation("search")
	}
	if oracle == nil {
		return nil, NewConfigurationError("oracle is nil", nil).
			WithCode(ErrCodeInvalidConfig).
			WithOperation("search")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	outcome := &Outcome[A]{}
	if s.sampling == nil || s.restart == nil {
		seed := rand.Uint64()
		if cfg.Seed != nil {
			seed = *cfg.Seed
		}
		rng := newRand(seed)
		outcome.Seed = seed
		if s.sampling == nil {
			s.sampling = NewUniformSampling(rng)
		}
		if s.restart == nil {
			s.restart = NewProbabilisticRestart(cfg.RestartProbability, rng)
		}
	}

	stats := &outcome.Stats
	candidate := make([]A, 0, 16)
	// indices mirrors candidate with the pool index of each action.
	indices := make([]int, 0, 16)

	for {
		if cfg.MaxTries != nil && stats.Tries >= *cfg.MaxTries {
			outcome.Status = StatusExhausted
			return outcome, nil
		}

		step := Step{Try: stats.Tries + 1, Action: -1}
		if s.restart.Restart() {
			candidate = candidate[:0]
			indices = indices[:0]
			step.Kind = StepRestart
			stats.Restarts++
		} else {
			i, err := s.sample(len(pool), tail(indices), cfg.NoConsecutiveRepeats)
			if err != nil {
				return nil, err
			}
			candidate = append(candidate, pool[i])
			indices = append(indices, i)
			step.Kind = StepExtend
			step.Action = i
			stats.Extensions++
			if len(candidate) > stats.MaxLength {
				stats.MaxLength = len(candidate)
			}
		}

		verdict, err := oracle.Validate(ctx, candidate)
		if err != nil {
			return nil, NewSearchError("oracle failed", err).
				WithCode(ErrCodeOracleFailed).
				WithOperation("search").
				WithDetail("try", step.Try)
		}
		step.Verdict = verdict

		switch {
		case verdict.Valid:
		case verdict.Reason == ReasonGoalNotSatisfied:
			stats.GoalMisses++
		default:
			// Applicability failures and unclassified verdicts undo this try's append.
			if step.Kind == StepExtend {
				candidate = candidate[:len(candidate)-1]
				indices = indices[:len(indices)-1]
				step.Backtracked = true
				stats.Backtracks++
			}
		}

		stats.Tries++
		step.CandidateLen = len(candidate)
		if s.observer != nil {
			s.observer(step)
		}

		if verdict.Valid {
			outcome.Status = StatusFound
			outcome.Plan = append(make([]A, 0, len(candidate)), candidate...)
			return outcome, nil
		}
	}
}

// sample draws the next pool index, skipping the tail when repeats are forbidden.
func (s *settings) sample(n, last int, noRepeat bool) (int, error) {
	var i int
	if noRepeat && last >= 0 && n > 1 {
		i = s.sampling.Next(n - 1)
		if i >= last {
			i++
		}
	} else {
		i = s.sampling.Next(n)
	}
	if i < 0 || i >= n {
		return 0, NewSearchError(fmt.Sprintf("sampling policy returned index %d outside [0,%d)", i, n), nil).
			WithCode(ErrCodeInternal).
			WithOperation("search")
	}
	return i, nil
}

func tail(indices []int) int {
	if len(indices) == 0 {
		return -1
	}
	return indices[len(indices)-1]
}
