package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

// scriptedOracle answers from a table keyed by the joined sequence.
type scriptedOracle struct {
	verdicts map[string]Verdict
	fallback Verdict
	calls    int
	seen     []string
}

func newScriptedOracle(fallback Verdict) *scriptedOracle {
	return &scriptedOracle{
		verdicts: make(map[string]Verdict),
		fallback: fallback,
	}
}

func (o *scriptedOracle) on(seq string, v Verdict) *scriptedOracle {
	o.verdicts[seq] = v
	return o
}

func (o *scriptedOracle) Validate(ctx context.Context, sequence []string) (Verdict, error) {
	o.calls++
	key := strings.Join(sequence, ",")
	o.seen = append(o.seen, key)
	if v, ok := o.verdicts[key]; ok {
		return v, nil
	}
	return o.fallback, nil
}

// counterOracle models a counter that must reach target; "down" is inapplicable at zero.
func counterOracle(target int) OracleFunc[string] {
	return func(ctx context.Context, sequence []string) (Verdict, error) {
		count := 0
		for _, a := range sequence {
			switch a {
			case "up":
				count++
			case "down":
				if count == 0 {
					return Inapplicable("down at zero"), nil
				}
				count--
			}
		}
		if count != target {
			return GoalNotSatisfied("counter not at target"), nil
		}
		return Valid(), nil
	}
}

func scripted(indices ...int) SamplingFunc {
	pos := 0
	return func(n int) int {
		i := indices[pos%len(indices)]
		pos++
		return i
	}
}

var (
	neverRestart  = RestartFunc(func() bool { return false })
	alwaysRestart = RestartFunc(func() bool { return true })
)

func TestSearch_ZeroTriesExhaustsWithoutOracle(t *testing.T) {
	oracle := newScriptedOracle(Valid())

	outcome, err := Search[string](context.Background(), []string{"A"}, oracle, Config{}.WithMaxTries(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != StatusExhausted {
		t.Errorf("expected exhausted, got %s", outcome.Status)
	}
	if oracle.calls != 0 {
		t.Errorf("expected no oracle calls, got %d", oracle.calls)
	}
	if outcome.Stats.Tries != 0 {
		t.Errorf("expected 0 tries, got %d", outcome.Stats.Tries)
	}
}

func TestSearch_FoundSingleAction(t *testing.T) {
	oracle := newScriptedOracle(Inapplicable("not applicable")).
		on("A", Valid())

	outcome, err := Search[string](context.Background(), []string{"A", "B"}, oracle, Config{},
		WithSampling(scripted(0)),
		WithRestart(neverRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Found() {
		t.Fatalf("expected found, got %s", outcome.Status)
	}
	if len(outcome.Plan) != 1 || outcome.Plan[0] != "A" {
		t.Errorf("expected plan [A], got %v", outcome.Plan)
	}
	if outcome.Stats.Tries != 1 {
		t.Errorf("expected 1 try, got %d", outcome.Stats.Tries)
	}
}

func TestSearch_NeverApplicableExhausts(t *testing.T) {
	oracle := newScriptedOracle(Inapplicable("A is never applicable"))

	var steps []Step
	outcome, err := Search[string](context.Background(), []string{"A"}, oracle, Config{}.WithMaxTries(5),
		WithRestart(neverRestart),
		WithObserver(func(s Step) { steps = append(steps, s) }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Status != StatusExhausted {
		t.Fatalf("expected exhausted, got %s", outcome.Status)
	}
	if outcome.Stats.Tries != 5 {
		t.Errorf("expected 5 tries, got %d", outcome.Stats.Tries)
	}
	if oracle.calls != 5 {
		t.Errorf("expected 5 oracle calls, got %d", oracle.calls)
	}
	if outcome.Stats.Backtracks != 5 {
		t.Errorf("expected 5 backtracks, got %d", outcome.Stats.Backtracks)
	}
	if len(steps) != 5 {
		t.Fatalf("expected 5 observed steps, got %d", len(steps))
	}
	for _, s := range steps {
		if s.CandidateLen != 0 {
			t.Errorf("try %d: expected empty candidate, got length %d", s.Try, s.CandidateLen)
		}
		if !s.Backtracked {
			t.Errorf("try %d: expected a backtrack", s.Try)
		}
	}
	for _, seq := range oracle.seen {
		if seq != "A" {
			t.Errorf("oracle saw %q, expected only single-action candidates", seq)
		}
	}
}

func TestSearch_OrderedGoal(t *testing.T) {
	oracle := newScriptedOracle(Inapplicable("B needs A first")).
		on("A", GoalNotSatisfied("goal requires B")).
		on("A,B", Valid())

	outcome, err := Search[string](context.Background(), []string{"A", "B"}, oracle, Config{},
		WithSampling(scripted(0, 1)),
		WithRestart(neverRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !outcome.Found() {
		t.Fatalf("expected found, got %s", outcome.Status)
	}
	if strings.Join(outcome.Plan, ",") != "A,B" {
		t.Errorf("expected plan [A B], got %v", outcome.Plan)
	}
	if outcome.Stats.Tries != 2 {
		t.Errorf("expected 2 tries, got %d", outcome.Stats.Tries)
	}
	if outcome.Stats.GoalMisses != 1 {
		t.Errorf("expected 1 goal miss, got %d", outcome.Stats.GoalMisses)
	}
}

func TestSearch_RestartDominance(t *testing.T) {
	oracle := newScriptedOracle(GoalNotSatisfied("goal not reached")).
		on("A", Valid())

	outcome, err := Search[string](context.Background(), []string{"A"}, oracle, Config{}.WithMaxTries(50),
		WithSampling(scripted(0)),
		WithRestart(alwaysRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Found() {
		t.Fatalf("expected no plan when every try restarts, got %v", outcome.Plan)
	}
	if outcome.Stats.Restarts != 50 || outcome.Stats.Tries != 50 {
		t.Errorf("expected 50 restarts counted as 50 tries, got restarts=%d tries=%d",
			outcome.Stats.Restarts, outcome.Stats.Tries)
	}
	if outcome.Stats.Extensions != 0 {
		t.Errorf("expected no extensions, got %d", outcome.Stats.Extensions)
	}
	for _, seq := range oracle.seen {
		if seq != "" {
			t.Errorf("oracle saw non-empty candidate %q", seq)
		}
	}
}

func TestSearch_RestartFromEmptyCanSucceed(t *testing.T) {
	oracle := newScriptedOracle(GoalNotSatisfied("")).on("", Valid())

	outcome, err := Search[string](context.Background(), []string{"A"}, oracle, Config{},
		WithRestart(alwaysRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Found() {
		t.Fatalf("expected found, got %s", outcome.Status)
	}
	if outcome.Plan == nil || len(outcome.Plan) != 0 {
		t.Errorf("expected an empty non-nil plan, got %#v", outcome.Plan)
	}
}

func TestSearch_LengthShrinksOnlyByBacktrack(t *testing.T) {
	oracle := counterOracle(3)
	cfg := Config{RestartProbability: 0}.WithMaxTries(5000).WithSeed(42)

	prev := 0
	outcome, err := Search[string](context.Background(), []string{"up", "down", "noop"}, oracle, cfg,
		WithObserver(func(s Step) {
			if s.Kind == StepRestart {
				t.Errorf("try %d: unexpected restart with probability 0", s.Try)
			}
			switch {
			case s.CandidateLen > prev+1:
				t.Errorf("try %d: candidate grew by %d", s.Try, s.CandidateLen-prev)
			case s.CandidateLen < prev:
				t.Errorf("try %d: candidate shrank from %d to %d", s.Try, prev, s.CandidateLen)
			case s.CandidateLen == prev && !s.Backtracked:
				t.Errorf("try %d: extend without growth or backtrack", s.Try)
			}
			if s.Backtracked && s.Verdict.Reason != ReasonApplicability {
				t.Errorf("try %d: backtracked on %s", s.Try, s.Verdict.Reason)
			}
			prev = s.CandidateLen
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Found() {
		t.Fatalf("expected the counter to reach its target, stats=%+v", outcome.Stats)
	}

	// Validation is idempotent: the certified plan stays valid.
	again, err := oracle.Validate(context.Background(), outcome.Plan)
	if err != nil {
		t.Fatalf("revalidation failed: %v", err)
	}
	if !again.Valid {
		t.Errorf("expected revalidation to be valid, got %s", again)
	}
}

func TestSearch_UnknownReasonBacktracks(t *testing.T) {
	oracle := newScriptedOracle(Verdict{})

	outcome, err := Search[string](context.Background(), []string{"A", "B"}, oracle, Config{}.WithMaxTries(3),
		WithRestart(neverRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Stats.Backtracks != 3 {
		t.Errorf("expected unclassified verdicts to backtrack, got %d backtracks", outcome.Stats.Backtracks)
	}
	for _, seq := range oracle.seen {
		if strings.Contains(seq, ",") {
			t.Errorf("candidate %q grew past one action", seq)
		}
	}
}

func TestSearch_NoConsecutiveRepeats(t *testing.T) {
	oracle := newScriptedOracle(GoalNotSatisfied("keep going"))

	var actions []int
	cfg := Config{NoConsecutiveRepeats: true}.WithMaxTries(4)
	_, err := Search[string](context.Background(), []string{"A", "B"}, oracle, cfg,
		WithSampling(SamplingFunc(func(n int) int { return 0 })),
		WithRestart(neverRestart),
		WithObserver(func(s Step) { actions = append(actions, s.Action) }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []int{0, 1, 0, 1}
	if len(actions) != len(expected) {
		t.Fatalf("expected %d steps, got %d", len(expected), len(actions))
	}
	for i := range expected {
		if actions[i] != expected[i] {
			t.Errorf("step %d: expected action %d, got %d", i+1, expected[i], actions[i])
		}
	}
}

func TestSearch_SingleActionPoolIgnoresRepeatBan(t *testing.T) {
	oracle := newScriptedOracle(GoalNotSatisfied("")).on("A,A", Valid())

	outcome, err := Search[string](context.Background(), []string{"A"}, oracle,
		Config{NoConsecutiveRepeats: true}.WithMaxTries(10),
		WithRestart(neverRestart),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Found() || len(outcome.Plan) != 2 {
		t.Errorf("expected plan [A A], got %s %v", outcome.Status, outcome.Plan)
	}
}

func TestSearch_SeedIsReproducible(t *testing.T) {
	pool := []string{"up", "down", "noop"}
	cfg := Config{RestartProbability: 0.05}.WithMaxTries(300).WithSeed(7)

	first, err := Search[string](context.Background(), pool, counterOracle(4), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Search[string](context.Background(), pool, counterOracle(4), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Stats != second.Stats {
		t.Errorf("expected identical stats, got %+v and %+v", first.Stats, second.Stats)
	}
	if strings.Join(first.Plan, ",") != strings.Join(second.Plan, ",") {
		t.Errorf("expected identical plans, got %v and %v", first.Plan, second.Plan)
	}
	if first.Seed != 7 {
		t.Errorf("expected seed 7 to be reported, got %d", first.Seed)
	}
}

func TestSearch_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		pool []string
		cfg  Config
		code string
	}{
		{name: "empty pool", pool: nil, cfg: Config{}, code: ErrCodeEmptyPool},
		{name: "restart probability one", pool: []string{"A"}, cfg: Config{RestartProbability: 1}, code: ErrCodeInvalidConfig},
		{name: "negative restart probability", pool: []string{"A"}, cfg: Config{RestartProbability: -0.1}, code: ErrCodeInvalidConfig},
		{name: "NaN restart probability", pool: []string{"A"}, cfg: Config{RestartProbability: math.NaN()}, code: ErrCodeInvalidConfig},
		{name: "negative max tries", pool: []string{"A"}, cfg: Config{}.WithMaxTries(-1), code: ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := newScriptedOracle(Valid())
			_, err := Search[string](context.Background(), tt.pool, oracle, tt.cfg)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if !HasCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
			if oracle.calls != 0 {
				t.Errorf("oracle called %d times before rejection", oracle.calls)
			}
		})
	}
}

func TestSearch_NilOracle(t *testing.T) {
	_, err := Search[string](context.Background(), []string{"A"}, nil, Config{})
	if !IsConfiguration(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestSearch_OracleErrorAborts(t *testing.T) {
	boom := errors.New("validator crashed")
	calls := 0
	oracle := OracleFunc[string](func(ctx context.Context, sequence []string) (Verdict, error) {
		calls++
		if calls == 3 {
			return Verdict{}, boom
		}
		return GoalNotSatisfied(""), nil
	})

	outcome, err := Search[string](context.Background(), []string{"A"}, oracle, Config{}.WithMaxTries(10),
		WithRestart(neverRestart),
	)
	if err == nil {
		t.Fatalf("expected an error, got outcome %+v", outcome)
	}
	if !IsSearch(err) || !HasCode(err, ErrCodeOracleFailed) {
		t.Errorf("expected oracle search error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the oracle error to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected the search to stop at the failing call, got %d calls", calls)
	}
}

func TestSearch_SamplingOutOfRange(t *testing.T) {
	oracle := newScriptedOracle(Valid())

	_, err := Search[string](context.Background(), []string{"A"}, oracle, Config{},
		WithSampling(scripted(3)),
		WithRestart(neverRestart),
	)
	if !IsSearch(err) || !HasCode(err, ErrCodeInternal) {
		t.Errorf("expected internal search error, got %v", err)
	}
	if oracle.calls != 0 {
		t.Errorf("expected no oracle calls, got %d", oracle.calls)
	}
}
