package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.starlark.net/syntax"

	"github.com/openfroyo/yoloplan/pkg/engine"
)

var (
	structValidator = validator.New()
	identifier      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	parseOptions    = &syntax.FileOptions{}
)

// reserved names cannot be used for objects, parameters or fluents.
var reserved = map[string]bool{
	"objects": true, "True": true, "False": true, "None": true,
	"any": true, "all": true, "len": true, "min": true, "max": true,
	"abs": true, "range": true, "str": true, "int": true, "float": true,
}

// Type returns the named type.
func (p *Problem) Type(name string) (*Type, bool) {
	for i := range p.Types {
		if p.Types[i].Name == name {
			return &p.Types[i], true
		}
	}
	return nil, false
}

// Object returns the named object.
func (p *Problem) Object(name string) (*Object, bool) {
	for i := range p.Objects {
		if p.Objects[i].Name == name {
			return &p.Objects[i], true
		}
	}
	return nil, false
}

// Fluent returns the named fluent.
func (p *Problem) Fluent(name string) (*Fluent, bool) {
	for i := range p.Fluents {
		if p.Fluents[i].Name == name {
			return &p.Fluents[i], true
		}
	}
	return nil, false
}

// Action returns the named action.
func (p *Problem) Action(name string) (*Action, bool) {
	for i := range p.Actions {
		if p.Actions[i].Name == name {
			return &p.Actions[i], true
		}
	}
	return nil, false
}

// IsSubtype reports whether typ equals ancestor or descends from it.
func (p *Problem) IsSubtype(typ, ancestor string) bool {
	seen := make(map[string]bool)
	for typ != "" && !seen[typ] {
		if typ == ancestor {
			return true
		}
		seen[typ] = true
		t, ok := p.Type(typ)
		if !ok {
			return false
		}
		typ = t.Parent
	}
	return false
}

// ObjectsOf returns the names of the objects of a type, subtypes included,
// in declaration order.
func (p *Problem) ObjectsOf(typ string) []string {
	var names []string
	for _, o := range p.Objects {
		if p.IsSubtype(o.Type, typ) {
			names = append(names, o.Name)
		}
	}
	return names
}

// Validate checks the problem for structural and semantic errors.
func (p *Problem) Validate() error {
	var issues []string
	addf := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if err := structValidator.Struct(p); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				addf("%s failed %s", fe.Namespace(), fe.Tag())
			}
		} else {
			addf("%v", err)
		}
	}

	types := make(map[string]bool)
	for _, t := range p.Types {
		if types[t.Name] {
			addf("duplicate type %q", t.Name)
		}
		types[t.Name] = true
	}
	for _, t := range p.Types {
		if t.Parent == "" {
			continue
		}
		if !types[t.Parent] {
			addf("type %q has unknown parent %q", t.Name, t.Parent)
		} else if p.hasTypeCycle(t.Name) {
			addf("type %q is part of an inheritance cycle", t.Name)
		}
	}

	fluents := make(map[string]bool)
	for i := range p.Fluents {
		f := &p.Fluents[i]
		if fluents[f.Name] {
			addf("duplicate fluent %q", f.Name)
		}
		fluents[f.Name] = true
		if !identifier.MatchString(f.Name) || reserved[f.Name] {
			addf("fluent name %q is not a usable identifier", f.Name)
		}
		for _, prm := range f.Params {
			if !types[prm.Type] {
				addf("fluent %q parameter %q has unknown type %q", f.Name, prm.Name, prm.Type)
			}
		}
		if err := f.ValueKind().Validate(); err != nil {
			addf("fluent %q: %v", f.Name, err)
			continue
		}
		if !f.ValueKind().Numeric() && (f.Lower != nil || f.Upper != nil) {
			addf("fluent %q: bounds are only allowed on numeric fluents", f.Name)
		}
		if f.Lower != nil && f.Upper != nil && *f.Lower > *f.Upper {
			addf("fluent %q: lower bound %v exceeds upper bound %v", f.Name, *f.Lower, *f.Upper)
		}
		if f.Default != nil {
			v, err := Coerce(f.ValueKind(), f.Default)
			if err != nil {
				addf("fluent %q default: %v", f.Name, err)
			} else if err := f.CheckBounds(v); err != nil {
				addf("fluent %q default: %v", f.Name, err)
			}
		}
	}

	objects := make(map[string]bool)
	for _, o := range p.Objects {
		if objects[o.Name] {
			addf("duplicate object %q", o.Name)
		}
		objects[o.Name] = true
		if !identifier.MatchString(o.Name) || reserved[o.Name] {
			addf("object name %q is not a usable identifier", o.Name)
		}
		if fluents[o.Name] {
			addf("object %q shadows a fluent of the same name", o.Name)
		}
		if !types[o.Type] {
			addf("object %q has unknown type %q", o.Name, o.Type)
		}
	}

	actions := make(map[string]bool)
	for i := range p.Actions {
		a := &p.Actions[i]
		if actions[a.Name] {
			addf("duplicate action %q", a.Name)
		}
		actions[a.Name] = true
		issues = append(issues, p.validateAction(a, types, fluents, objects)...)
	}

	for i, as := range p.Init {
		f, ok := p.Fluent(as.Fluent)
		if !ok {
			addf("init[%d]: unknown fluent %q", i, as.Fluent)
			continue
		}
		if len(as.Args) != len(f.Params) {
			addf("init[%d]: %s expects %d arguments, got %d", i, f.Name, len(f.Params), len(as.Args))
			continue
		}
		for j, arg := range as.Args {
			o, ok := p.Object(arg)
			if !ok {
				addf("init[%d]: unknown object %q", i, arg)
			} else if !p.IsSubtype(o.Type, f.Params[j].Type) {
				addf("init[%d]: object %q is not a %s", i, arg, f.Params[j].Type)
			}
		}
		v, err := Coerce(f.ValueKind(), as.Value)
		if err != nil {
			addf("init[%d] %s: %v", i, Key(as.Fluent, as.Args), err)
		} else if err := f.CheckBounds(v); err != nil {
			addf("init[%d]: %v", i, err)
		}
	}

	for i, g := range p.Goals {
		if _, err := parseOptions.ParseExpr(fmt.Sprintf("goal[%d]", i), g, 0); err != nil {
			addf("goal[%d]: %v", i, err)
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return engine.NewConfigurationError(
		fmt.Sprintf("problem %q is invalid: %s", p.Name, strings.Join(issues, "; ")), nil).
		WithCode(engine.ErrCodeInvalidProblem).
		WithOperation("validate").
		WithDetail("issues", issues)
}

func (p *Problem) validateAction(a *Action, types, fluents, objects map[string]bool) []string {
	var issues []string
	addf := func(format string, args ...interface{}) {
		issues = append(issues, fmt.Sprintf("action %q: "+format, append([]interface{}{a.Name}, args...)...))
	}

	params := make(map[string]bool)
	for _, prm := range a.Parameters {
		if params[prm.Name] {
			addf("duplicate parameter %q", prm.Name)
		}
		params[prm.Name] = true
		if !identifier.MatchString(prm.Name) || reserved[prm.Name] {
			addf("parameter name %q is not a usable identifier", prm.Name)
		}
		if fluents[prm.Name] {
			addf("parameter %q shadows a fluent", prm.Name)
		}
		if !types[prm.Type] {
			addf("parameter %q has unknown type %q", prm.Name, prm.Type)
		}
	}

	for i, pre := range a.Preconditions {
		if _, err := parseOptions.ParseExpr(fmt.Sprintf("%s.pre[%d]", a.Name, i), pre, 0); err != nil {
			addf("precondition %d: %v", i, err)
		}
	}

	for i := range a.Effects {
		e := &a.Effects[i]
		f, ok := p.Fluent(e.Fluent)
		if !ok {
			addf("effect %d: unknown fluent %q", i, e.Fluent)
			continue
		}
		if len(e.Args) != len(f.Params) {
			addf("effect %d: %s expects %d arguments, got %d", i, f.Name, len(f.Params), len(e.Args))
		}
		for _, arg := range e.Args {
			if !params[arg] && !objects[arg] && a.Bindings[arg] == "" {
				addf("effect %d: argument %q is neither a parameter nor an object", i, arg)
			}
		}
		if e.Operation() != OpAssign && !f.ValueKind().Numeric() {
			addf("effect %d: %s on non-numeric fluent %s", i, e.Operation(), f.Name)
		}
		if _, err := parseOptions.ParseExpr(fmt.Sprintf("%s.eff[%d]", a.Name, i), e.Value, 0); err != nil {
			addf("effect %d value: %v", i, err)
		}
		if e.Condition != "" {
			if _, err := parseOptions.ParseExpr(fmt.Sprintf("%s.eff[%d].when", a.Name, i), e.Condition, 0); err != nil {
				addf("effect %d condition: %v", i, err)
			}
		}
	}
	return issues
}

func (p *Problem) hasTypeCycle(name string) bool {
	seen := make(map[string]bool)
	for name != "" {
		if seen[name] {
			return true
		}
		seen[name] = true
		t, ok := p.Type(name)
		if !ok {
			return false
		}
		name = t.Parent
	}
	return false
}

// StaticFluents returns the fluents no action effect changes.
func (p *Problem) StaticFluents() map[string]bool {
	static := make(map[string]bool, len(p.Fluents))
	for _, f := range p.Fluents {
		static[f.Name] = true
	}
	for _, a := range p.Actions {
		for _, e := range a.Effects {
			delete(static, e.Fluent)
		}
	}
	return static
}

// Groundings enumerates every tuple of objects compatible with params, in
// declaration order.
func (p *Problem) Groundings(params []Parameter) [][]string {
	result := [][]string{{}}
	for _, prm := range params {
		candidates := p.ObjectsOf(prm.Type)
		next := make([][]string, 0, len(result)*len(candidates))
		for _, prefix := range result {
			for _, c := range candidates {
				tuple := make([]string, len(prefix), len(prefix)+1)
				copy(tuple, prefix)
				next = append(next, append(tuple, c))
			}
		}
		result = next
	}
	return result
}

// InitialState builds the complete initial state. Boolean groundings absent from
// Init are false unless the fluent has a Default; numeric groundings must be
// initialized or have a Default.
func (p *Problem) InitialState() (*State, error) {
	state := NewState()
	var missing []string

	for i := range p.Fluents {
		f := &p.Fluents[i]
		var def interface{}
		if f.Default != nil {
			v, err := Coerce(f.ValueKind(), f.Default)
			if err != nil {
				return nil, engine.NewConfigurationError(fmt.Sprintf("fluent %q default", f.Name), err).
					WithCode(engine.ErrCodeInvalidProblem)
			}
			def = v
		} else if f.ValueKind() == FluentBool {
			def = false
		}
		for _, args := range p.Groundings(f.Params) {
			if def != nil {
				state.Set(Key(f.Name, args), def)
			}
		}
	}

	for _, as := range p.Init {
		f, ok := p.Fluent(as.Fluent)
		if !ok {
			return nil, engine.NewConfigurationError(fmt.Sprintf("init references unknown fluent %q", as.Fluent), nil).
				WithCode(engine.ErrCodeInvalidProblem)
		}
		v, err := Coerce(f.ValueKind(), as.Value)
		if err != nil {
			return nil, engine.NewConfigurationError(fmt.Sprintf("init value of %s", Key(as.Fluent, as.Args)), err).
				WithCode(engine.ErrCodeInvalidProblem)
		}
		state.Set(Key(as.Fluent, as.Args), v)
	}

	for i := range p.Fluents {
		f := &p.Fluents[i]
		if !f.ValueKind().Numeric() {
			continue
		}
		for _, args := range p.Groundings(f.Params) {
			if _, ok := state.Lookup(f.Name, args...); !ok {
				missing = append(missing, Key(f.Name, args))
			}
		}
	}
	if len(missing) > 0 {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("numeric fluents without initial value: %s", strings.Join(missing, ", ")), nil).
			WithCode(engine.ErrCodeInvalidProblem).
			WithDetail("missing", missing)
	}
	return state, nil
}
