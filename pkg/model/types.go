package model

import (
	"fmt"
	"strings"
)

// Type is an object type. Types form a forest through Parent.
type Type struct {
	// Name is the type name (e.g., "Location").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Parent is the optional supertype.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Object is a typed constant of the problem.
type Object struct {
	// Name is the object name, unique across the problem (e.g., "l1").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Type is the object's declared type.
	Type string `json:"type" yaml:"type" validate:"required"`
}

// Parameter is a typed formal parameter of a fluent or action.
type Parameter struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	Type string `json:"type" yaml:"type" validate:"required"`
}

// FluentKind is the value domain of a fluent.
type FluentKind string

const (
	// FluentBool is a boolean fluent. Unset groundings are false.
	FluentBool FluentKind = "bool"

	// FluentInt is an integer-valued fluent.
	FluentInt FluentKind = "int"

	// FluentReal is a real-valued fluent.
	FluentReal FluentKind = "real"
)

// Validate checks if the fluent kind is valid.
func (k FluentKind) Validate() error {
	switch k {
	case FluentBool, FluentInt, FluentReal:
		return nil
	default:
		return fmt.Errorf("invalid fluent kind: %s", k)
	}
}

// Numeric reports whether the kind holds numbers.
func (k FluentKind) Numeric() bool {
	return k == FluentInt || k == FluentReal
}

// Fluent is a state variable, possibly parameterized by objects.
type Fluent struct {
	// Name is the fluent name used in expressions (e.g., "robot_at").
	Name string `json:"name" yaml:"name" validate:"required"`

	// Params are the typed parameters of the fluent.
	Params []Parameter `json:"params,omitempty" yaml:"params,omitempty" validate:"dive"`

	// Kind is the value domain. Empty means bool.
	Kind FluentKind `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=bool int real"`

	// Lower is the inclusive lower bound of a numeric fluent.
	Lower *float64 `json:"lower,omitempty" yaml:"lower,omitempty"`

	// Upper is the inclusive upper bound of a numeric fluent.
	Upper *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`

	// Default is the value of groundings absent from the initial state.
	Default interface{} `json:"default,omitempty" yaml:"default,omitempty"`
}

// ValueKind returns the fluent kind, defaulting to bool.
func (f *Fluent) ValueKind() FluentKind {
	if f.Kind == "" {
		return FluentBool
	}
	return f.Kind
}

// EffectOp is the way an effect changes its fluent.
type EffectOp string

const (
	OpAssign   EffectOp = "assign"
	OpIncrease EffectOp = "increase"
	OpDecrease EffectOp = "decrease"
)

// Effect changes one fluent grounding when its action is applied.
type Effect struct {
	// Fluent is the name of the changed fluent.
	Fluent string `json:"fluent" yaml:"fluent" validate:"required"`

	// Args are the fluent arguments: action parameter names or object names.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Value is an expression evaluated in the state before the action.
	Value string `json:"value" yaml:"value" validate:"required"`

	// Op is assign (the default), increase or decrease.
	Op EffectOp `json:"op,omitempty" yaml:"op,omitempty" validate:"omitempty,oneof=assign increase decrease"`

	// Condition guards a conditional effect. Empty means always.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Operation returns the effect operation, defaulting to assign.
func (e *Effect) Operation() EffectOp {
	if e.Op == "" {
		return OpAssign
	}
	return e.Op
}

// Action is an action schema, or a grounded action when Bindings is set.
type Action struct {
	// Name is the action name.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Parameters are the typed parameters of the schema. Grounded actions have none.
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty" validate:"dive"`

	// Preconditions must all evaluate to true for the action to be applicable.
	Preconditions []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`

	// Effects are applied simultaneously.
	Effects []Effect `json:"effects,omitempty" yaml:"effects,omitempty" validate:"dive"`

	// Bindings fix parameter values of a grounded action.
	Bindings map[string]string `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// Assignment sets one fluent grounding in the initial state.
type Assignment struct {
	Fluent string      `json:"fluent" yaml:"fluent" validate:"required"`
	Args   []string    `json:"args,omitempty" yaml:"args,omitempty"`
	Value  interface{} `json:"value" yaml:"value"`
}

// Problem is a planning problem: a typed domain, an initial state and goals.
type Problem struct {
	Name    string       `json:"name" yaml:"name" validate:"required"`
	Types   []Type       `json:"types,omitempty" yaml:"types,omitempty" validate:"dive"`
	Objects []Object     `json:"objects,omitempty" yaml:"objects,omitempty" validate:"dive"`
	Fluents []Fluent     `json:"fluents,omitempty" yaml:"fluents,omitempty" validate:"dive"`
	Actions []Action     `json:"actions,omitempty" yaml:"actions,omitempty" validate:"dive"`
	Init    []Assignment `json:"init,omitempty" yaml:"init,omitempty" validate:"dive"`

	// Goals must all evaluate to true in the final state.
	Goals []string `json:"goals,omitempty" yaml:"goals,omitempty"`
}

// ActionInstance is an action schema applied to concrete objects.
type ActionInstance struct {
	Action string   `json:"action" yaml:"action"`
	Args   []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// String renders the instance as name(arg, ...).
func (a ActionInstance) String() string {
	return a.Action + "(" + strings.Join(a.Args, ", ") + ")"
}

// Plan is a sequential plan over action schemas.
type Plan struct {
	Actions []ActionInstance `json:"actions" yaml:"actions"`
}

// Len returns the number of actions.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Actions)
}

// String renders one action instance per line.
func (p *Plan) String() string {
	if p == nil {
		return ""
	}
	lines := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}
