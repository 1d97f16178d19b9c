package model

import (
	"errors"
	"fmt"
)

// BoundError reports a numeric effect that would leave its fluent's bounds.
// The action producing it is not applicable.
type BoundError struct {
	Key   string
	Value interface{}
	Err   error
}

func (e *BoundError) Error() string {
	return fmt.Sprintf("effect on %s: %v", e.Key, e.Err)
}

func (e *BoundError) Unwrap() error {
	return e.Err
}

// IsBoundError reports whether err is a bound violation.
func IsBoundError(err error) bool {
	var be *BoundError
	return errors.As(err, &be)
}

// Bind maps the action's parameters to args. A grounded action returns its own
// bindings and accepts no args.
func (a *Action) Bind(args []string) (map[string]string, error) {
	if len(a.Parameters) == 0 {
		if len(args) > 0 {
			return nil, fmt.Errorf("action %s takes no arguments, got %d", a.Name, len(args))
		}
		return a.Bindings, nil
	}
	if len(args) != len(a.Parameters) {
		return nil, fmt.Errorf("action %s expects %d arguments, got %d", a.Name, len(a.Parameters), len(args))
	}
	bindings := make(map[string]string, len(args)+len(a.Bindings))
	for k, v := range a.Bindings {
		bindings[k] = v
	}
	for i, prm := range a.Parameters {
		bindings[prm.Name] = args[i]
	}
	return bindings, nil
}

// CheckArgs verifies that args name objects compatible with the action's parameters.
func (p *Problem) CheckArgs(a *Action, args []string) error {
	if len(args) != len(a.Parameters) {
		return fmt.Errorf("action %s expects %d arguments, got %d", a.Name, len(a.Parameters), len(args))
	}
	for i, arg := range args {
		o, ok := p.Object(arg)
		if !ok {
			return fmt.Errorf("action %s: unknown object %q", a.Name, arg)
		}
		if !p.IsSubtype(o.Type, a.Parameters[i].Type) {
			return fmt.Errorf("action %s: object %q is not a %s", a.Name, arg, a.Parameters[i].Type)
		}
	}
	return nil
}

// Unsatisfied returns the conditions that do not hold in state.
func (e *Evaluator) Unsatisfied(conditions []string, state *State, bindings map[string]string) ([]string, error) {
	var failed []string
	for _, c := range conditions {
		ok, err := e.Holds(c, state, bindings)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = append(failed, c)
		}
	}
	return failed, nil
}

type pendingEffect struct {
	fluent *Fluent
	key    string
	op     EffectOp
	value  interface{}
}

// Apply returns the successor of state under the action. Effect values and
// conditions are evaluated in state and applied simultaneously; state is not
// modified. Preconditions are not checked. A *BoundError is returned when a
// numeric result leaves its bounds.
func (e *Evaluator) Apply(a *Action, state *State, bindings map[string]string) (*State, error) {
	pending := make([]pendingEffect, 0, len(a.Effects))
	for i := range a.Effects {
		eff := &a.Effects[i]
		f, ok := e.fluents[eff.Fluent]
		if !ok {
			return nil, fmt.Errorf("action %s: unknown fluent %q", a.Name, eff.Fluent)
		}
		if eff.Condition != "" {
			ok, err := e.Holds(eff.Condition, state, bindings)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		args, err := e.resolveArgs(eff.Args, bindings)
		if err != nil {
			return nil, fmt.Errorf("action %s effect on %s: %w", a.Name, eff.Fluent, err)
		}
		v, err := e.Value(eff.Value, f.ValueKind(), state, bindings)
		if err != nil {
			return nil, err
		}
		pending = append(pending, pendingEffect{fluent: f, key: Key(f.Name, args), op: eff.Operation(), value: v})
	}

	next := state.Clone()
	for _, pe := range pending {
		v := pe.value
		if pe.op != OpAssign {
			cur, ok := next.Get(pe.key)
			if !ok {
				return nil, fmt.Errorf("action %s: %s has no value to %s", a.Name, pe.key, pe.op)
			}
			v = combine(pe.fluent.ValueKind(), pe.op, cur, v)
		}
		if err := pe.fluent.CheckBounds(v); err != nil {
			return nil, &BoundError{Key: pe.key, Value: v, Err: err}
		}
		next.Set(pe.key, v)
	}
	return next, nil
}

func (e *Evaluator) resolveArgs(args []string, bindings map[string]string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		if v, ok := bindings[arg]; ok {
			out[i] = v
			continue
		}
		if _, ok := e.objects[arg]; ok {
			out[i] = arg
			continue
		}
		return nil, fmt.Errorf("unbound argument %q", arg)
	}
	return out, nil
}

func combine(kind FluentKind, op EffectOp, cur, delta interface{}) interface{} {
	sign := int64(1)
	if op == OpDecrease {
		sign = -1
	}
	if kind == FluentInt {
		c, _ := cur.(int64)
		d, _ := delta.(int64)
		return c + sign*d
	}
	c, _ := toFloat(cur)
	d, _ := toFloat(delta)
	return c + float64(sign)*d
}
