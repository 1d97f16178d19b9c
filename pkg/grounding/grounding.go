package grounding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfroyo/yoloplan/pkg/engine"
	"github.com/openfroyo/yoloplan/pkg/model"
)

// Result is a grounded problem together with the mapping back to the
// action schemas it was grounded from.
type Result struct {
	// Problem is the grounded problem. Its actions have no parameters and carry
	// their bindings.
	Problem *model.Problem

	// Original is the problem that was grounded.
	Original *model.Problem

	// Pruned counts groundings removed because a static precondition was false.
	Pruned int

	origins map[string]model.ActionInstance
	pool    []*model.Action
}

// Ground instantiates every action schema of p with every type-compatible
// tuple of objects. Groundings whose static preconditions (those reading only
// fluents no action changes) are false in the initial state are dropped, and
// the static preconditions of the remaining ones are removed.
func Ground(ctx context.Context, p *model.Problem) (*Result, error) {
	init, err := p.InitialState()
	if err != nil {
		return nil, err
	}

	ev := model.NewEvaluator(p)
	static := p.StaticFluents()

	grounded := &model.Problem{
		Name:    p.Name,
		Types:   p.Types,
		Objects: p.Objects,
		Fluents: p.Fluents,
		Init:    p.Init,
		Goals:   p.Goals,
	}
	result := &Result{
		Problem:  grounded,
		Original: p,
		origins:  make(map[string]model.ActionInstance),
	}

	for i := range p.Actions {
		schema := &p.Actions[i]

		staticPre, dynamicPre, err := splitPreconditions(ev, schema.Preconditions, static)
		if err != nil {
			return nil, groundingError(schema.Name, err)
		}

		for _, args := range p.Groundings(schema.Parameters) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			bindings, err := schema.Bind(args)
			if err != nil {
				return nil, groundingError(schema.Name, err)
			}
			failed, err := ev.Unsatisfied(staticPre, init, bindings)
			if err != nil {
				return nil, groundingError(schema.Name, err)
			}
			if len(failed) > 0 {
				result.Pruned++
				continue
			}

			action, err := instantiate(schema, args, bindings, dynamicPre, result.origins)
			if err != nil {
				return nil, groundingError(schema.Name, err)
			}
			grounded.Actions = append(grounded.Actions, *action)
			result.origins[action.Name] = model.ActionInstance{Action: schema.Name, Args: args}
		}
	}

	result.pool = make([]*model.Action, len(grounded.Actions))
	for i := range grounded.Actions {
		result.pool[i] = &grounded.Actions[i]
	}
	return result, nil
}

// Actions returns the grounded actions. The slice is shared; callers must not
// modify it.
func (r *Result) Actions() []*model.Action {
	return r.pool
}

// Size returns the number of grounded actions.
func (r *Result) Size() int {
	return len(r.pool)
}

// MapBack returns the schema instance a grounded action was built from.
func (r *Result) MapBack(name string) (model.ActionInstance, error) {
	inst, ok := r.origins[name]
	if !ok {
		return model.ActionInstance{}, engine.NewSearchError(
			fmt.Sprintf("grounded action %q has no origin", name), nil).
			WithCode(engine.ErrCodeLiftFailed).
			WithOperation("lift")
	}
	return inst, nil
}

// Lift maps a sequence of grounded actions back to a plan over the original
// action schemas, preserving order and length.
func (r *Result) Lift(actions []*model.Action) (*model.Plan, error) {
	plan := &model.Plan{Actions: make([]model.ActionInstance, 0, len(actions))}
	for _, a := range actions {
		if a == nil {
			return nil, engine.NewSearchError("cannot lift a nil action", nil).
				WithCode(engine.ErrCodeLiftFailed).
				WithOperation("lift")
		}
		inst, err := r.MapBack(a.Name)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, inst)
	}
	return plan, nil
}

// Names returns the names of the given grounded actions.
func Names(actions []*model.Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names
}

func splitPreconditions(ev *model.Evaluator, pre []string, static map[string]bool) (staticPre, dynamicPre []string, err error) {
	for _, c := range pre {
		reads, err := ev.Reads(c)
		if err != nil {
			return nil, nil, err
		}
		isStatic := true
		for _, f := range reads {
			if !static[f] {
				isStatic = false
				break
			}
		}
		if isStatic {
			staticPre = append(staticPre, c)
		} else {
			dynamicPre = append(dynamicPre, c)
		}
	}
	return staticPre, dynamicPre, nil
}

func instantiate(schema *model.Action, args []string, bindings map[string]string, pre []string, taken map[string]model.ActionInstance) (*model.Action, error) {
	effects := make([]model.Effect, len(schema.Effects))
	for i, e := range schema.Effects {
		bound := make([]string, len(e.Args))
		for j, arg := range e.Args {
			if v, ok := bindings[arg]; ok {
				bound[j] = v
			} else {
				bound[j] = arg
			}
		}
		e.Args = bound
		effects[i] = e
	}

	name := groundedName(schema.Name, args)
	for n := 2; ; n++ {
		if _, clash := taken[name]; !clash {
			break
		}
		name = fmt.Sprintf("%s_%d", groundedName(schema.Name, args), n)
	}

	return &model.Action{
		Name:          name,
		Preconditions: append([]string(nil), pre...),
		Effects:       effects,
		Bindings:      bindings,
	}, nil
}

func groundedName(schema string, args []string) string {
	if len(args) == 0 {
		return schema
	}
	return schema + "_" + strings.Join(args, "_")
}

func groundingError(action string, err error) error {
	return engine.NewConfigurationError(fmt.Sprintf("grounding action %q failed", action), err).
		WithCode(engine.ErrCodeGroundingFailed).
		WithOperation("ground")
}
