package validation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/model"
)

// Report is the detailed outcome of simulating a plan.
type Report struct {
	// Verdict is the classification of the plan.
	Verdict engine.Verdict `json:"verdict"`

	// Applied is the number of actions applied before the simulation stopped.
	Applied int `json:"applied"`

	// Failed lists the preconditions or goals that did not hold.
	Failed []string `json:"failed,omitempty"`

	// Final is the last state reached.
	Final *model.State `json:"-"`
}

// Validator simulates sequential plans from a problem's initial state.
type Validator struct {
	mu    sync.Mutex
	cache map[*model.Problem]*compiled
}

type compiled struct {
	ev   *model.Evaluator
	init *model.State
}

// New creates a validator.
func New() *Validator {
	return &Validator{cache: make(map[*model.Problem]*compiled)}
}

func (v *Validator) prepare(p *model.Problem) (*compiled, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if c, ok := v.cache[p]; ok {
		return c, nil
	}
	init, err := p.InitialState()
	if err != nil {
		return nil, err
	}
	c := &compiled{ev: model.NewEvaluator(p), init: init}
	v.cache[p] = c
	return c, nil
}

// Validate checks a plan over the problem's action schemas.
func (v *Validator) Validate(ctx context.Context, p *model.Problem, plan *model.Plan) (engine.Verdict, error) {
	report, err := v.Simulate(ctx, p, plan)
	if err != nil {
		return engine.Verdict{}, err
	}
	return report.Verdict, nil
}

// Simulate runs the plan and reports where and why it stopped.
func (v *Validator) Simulate(ctx context.Context, p *model.Problem, plan *model.Plan) (*Report, error) {
	c, err := v.prepare(p)
	if err != nil {
		return nil, err
	}

	steps := make([]step, 0, plan.Len())
	for i, inst := range plan.Actions {
		a, ok := p.Action(inst.Action)
		if !ok {
			return &Report{
				Verdict: engine.Inapplicable(fmt.Sprintf("action %d %s: unknown action %q", i+1, inst, inst.Action)),
				Applied: i,
				Final:   c.init,
			}, nil
		}
		if err := p.CheckArgs(a, inst.Args); err != nil {
			return &Report{
				Verdict: engine.Inapplicable(fmt.Sprintf("action %d %s: %v", i+1, inst, err)),
				Applied: i,
				Final:   c.init,
			}, nil
		}
		bindings, err := a.Bind(inst.Args)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step{action: a, bindings: bindings, label: inst.String()})
	}
	return simulate(ctx, c, p.Goals, steps)
}

// Oracle adapts the validator to the search engine for a grounded problem.
// Each candidate is simulated from the initial state.
func (v *Validator) Oracle(p *model.Problem) (engine.Oracle[*model.Action], error) {
	c, err := v.prepare(p)
	if err != nil {
		return nil, err
	}
	return engine.OracleFunc[*model.Action](func(ctx context.Context, sequence []*model.Action) (engine.Verdict, error) {
		steps := make([]step, len(sequence))
		for i, a := range sequence {
			steps[i] = step{action: a, bindings: a.Bindings, label: a.Name}
		}
		report, err := simulate(ctx, c, p.Goals, steps)
		if err != nil {
			return engine.Verdict{}, err
		}
		return report.Verdict, nil
	}), nil
}

type step struct {
	action   *model.Action
	bindings map[string]string
	label    string
}

func simulate(ctx context.Context, c *compiled, goals []string, steps []step) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := c.init
	for i, s := range steps {
		failed, err := c.ev.Unsatisfied(s.action.Preconditions, state, s.bindings)
		if err != nil {
			return nil, fmt.Errorf("action %d %s: %w", i+1, s.label, err)
		}
		if len(failed) > 0 {
			return &Report{
				Verdict: engine.Inapplicable(fmt.Sprintf("action %d %s: preconditions not satisfied: %s",
					i+1, s.label, strings.Join(failed, ", "))),
				Applied: i,
				Failed:  failed,
				Final:   state,
			}, nil
		}

		next, err := c.ev.Apply(s.action, state, s.bindings)
		if err != nil {
			if model.IsBoundError(err) {
				return &Report{
					Verdict: engine.Inapplicable(fmt.Sprintf("action %d %s: %v", i+1, s.label, err)),
					Applied: i,
					Final:   state,
				}, nil
			}
			return nil, fmt.Errorf("action %d %s: %w", i+1, s.label, err)
		}
		state = next
	}

	failed, err := c.ev.Unsatisfied(goals, state, nil)
	if err != nil {
		return nil, fmt.Errorf("goals: %w", err)
	}
	if len(failed) > 0 {
		return &Report{
			Verdict: engine.GoalNotSatisfied("goals not satisfied: " + strings.Join(failed, ", ")),
			Applied: len(steps),
			Failed:  failed,
			Final:   state,
		}, nil
	}
	return &Report{Verdict: engine.Valid(), Applied: len(steps), Final: state}, nil
}
