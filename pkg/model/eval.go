package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	stateLocal = "yoloplan.state"

	// maxExecutionSteps bounds one expression evaluation.
	maxExecutionSteps = 1 << 20
)

// Evaluator evaluates condition and effect expressions of a problem.
//
// Expressions are Starlark expressions. Every fluent is a builtin function
// returning its value in the current state, every object name is bound to its
// own name as a string, and objects(type) lists the objects of a type. Action
// parameters are bound to the object names they take.
//
// Compiled expressions are cached per binding set. An Evaluator is safe for
// concurrent use.
type Evaluator struct {
	problem *Problem
	fluents map[string]*Fluent
	objects map[string]*Object
	base    starlark.StringDict

	mu       sync.Mutex
	compiled map[string]*starlark.Function
}

// NewEvaluator creates an evaluator for the problem. The problem must not be
// modified while the evaluator is in use.
func NewEvaluator(p *Problem) *Evaluator {
	e := &Evaluator{
		problem:  p,
		fluents:  make(map[string]*Fluent, len(p.Fluents)),
		objects:  make(map[string]*Object, len(p.Objects)),
		base:     starlark.StringDict{},
		compiled: make(map[string]*starlark.Function),
	}
	for i := range p.Objects {
		o := &p.Objects[i]
		e.objects[o.Name] = o
		e.base[o.Name] = starlark.String(o.Name)
	}
	for i := range p.Fluents {
		f := &p.Fluents[i]
		e.fluents[f.Name] = f
		e.base[f.Name] = starlark.NewBuiltin(f.Name, e.fluentBuiltin(f))
	}
	e.base["objects"] = starlark.NewBuiltin("objects", e.objectsBuiltin)
	return e
}

// Problem returns the problem the evaluator was built for.
func (e *Evaluator) Problem() *Problem {
	return e.problem
}

// Eval evaluates src in state with the given parameter bindings.
func (e *Evaluator) Eval(src string, state *State, bindings map[string]string) (starlark.Value, error) {
	fn, err := e.compile(src, bindings)
	if err != nil {
		return nil, err
	}
	thread := &starlark.Thread{
		Name:  "yoloplan",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	thread.SetMaxExecutionSteps(maxExecutionSteps)
	thread.SetLocal(stateLocal, state)

	v, err := starlark.Call(thread, fn, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", src, err)
	}
	return v, nil
}

// Holds evaluates src as a condition.
func (e *Evaluator) Holds(src string, state *State, bindings map[string]string) (bool, error) {
	v, err := e.Eval(src, state, bindings)
	if err != nil {
		return false, err
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %s, not bool", src, v.Type())
	}
	return bool(b), nil
}

// Value evaluates src and converts the result to the representation of kind.
func (e *Evaluator) Value(src string, kind FluentKind, state *State, bindings map[string]string) (interface{}, error) {
	v, err := e.Eval(src, state, bindings)
	if err != nil {
		return nil, err
	}
	goVal, err := fromStarlark(v)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", src, err)
	}
	out, err := Coerce(kind, goVal)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", src, err)
	}
	return out, nil
}

// Reads returns the names of the fluents src references, sorted.
func (e *Evaluator) Reads(src string) ([]string, error) {
	expr, err := parseOptions.ParseExpr("expr", src, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	syntax.Walk(expr, func(n syntax.Node) bool {
		if id, ok := n.(*syntax.Ident); ok {
			if _, isFluent := e.fluents[id.Name]; isFluent {
				seen[id.Name] = true
			}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (e *Evaluator) compile(src string, bindings map[string]string) (*starlark.Function, error) {
	key := cacheKey(src, bindings)

	e.mu.Lock()
	defer e.mu.Unlock()

	if fn, ok := e.compiled[key]; ok {
		return fn, nil
	}

	env := e.base
	if len(bindings) > 0 {
		env = make(starlark.StringDict, len(e.base)+len(bindings))
		for k, v := range e.base {
			env[k] = v
		}
		for k, v := range bindings {
			env[k] = starlark.String(v)
		}
	}

	fn, err := starlark.ExprFuncOptions(parseOptions, "expr", src, env)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", src, err)
	}
	e.compiled[key] = fn
	return fn, nil
}

func cacheKey(src string, bindings map[string]string) string {
	if len(bindings) == 0 {
		return src
	}
	names := make([]string, 0, len(bindings))
	for k := range bindings {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(src)
	for _, k := range names {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(bindings[k])
	}
	return b.String()
}

func (e *Evaluator) fluentBuiltin(f *Fluent) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		if len(args) != len(f.Params) {
			return nil, fmt.Errorf("%s: expected %d arguments, got %d", b.Name(), len(f.Params), len(args))
		}
		names := make([]string, len(args))
		for i, arg := range args {
			s, ok := starlark.AsString(arg)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d is %s, not an object name", b.Name(), i, arg.Type())
			}
			o, ok := e.objects[s]
			if !ok {
				return nil, fmt.Errorf("%s: unknown object %q", b.Name(), s)
			}
			if !e.problem.IsSubtype(o.Type, f.Params[i].Type) {
				return nil, fmt.Errorf("%s: object %q is not a %s", b.Name(), s, f.Params[i].Type)
			}
			names[i] = s
		}

		state, _ := thread.Local(stateLocal).(*State)
		if state == nil {
			return nil, fmt.Errorf("%s: fluent read outside of a state", b.Name())
		}
		v, ok := state.Lookup(f.Name, names...)
		if !ok {
			if f.ValueKind() != FluentBool {
				return nil, fmt.Errorf("%s has no value", Key(f.Name, names))
			}
			v = false
		}
		return toStarlark(v)
	}
}

func (e *Evaluator) objectsBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var typ string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &typ); err != nil {
		return nil, err
	}
	if _, ok := e.problem.Type(typ); !ok {
		return nil, fmt.Errorf("objects: unknown type %q", typ)
	}
	names := e.problem.ObjectsOf(typ)
	list := make([]starlark.Value, len(names))
	for i, n := range names {
		list[i] = starlark.String(n)
	}
	return starlark.NewList(list), nil
}

// toStarlark converts a state value to a Starlark value.
func toStarlark(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	default:
		return nil, fmt.Errorf("unsupported state value type: %T", v)
	}
}

// fromStarlark converts an expression result to a Go value.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	default:
		return nil, fmt.Errorf("unsupported result type: %s", v.Type())
	}
}
