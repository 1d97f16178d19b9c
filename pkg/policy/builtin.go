package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		actionEffectsPolicy(),
		goalPresentPolicy(),
		declaredTypesPolicy(),
		planLengthPolicy(),
	}
}

// actionEffectsPolicy flags action schemas that cannot change the state.
func actionEffectsPolicy() Policy {
	return Policy{
		Name:        "action-effects",
		Description: "Warns about actions without effects, which only lengthen plans",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"problem", "actions"},
		Rego: `package yoloplan.policies.effects

import rego.v1

deny contains violation if {
	input.kind == "problem"
	some action in object.get(input.problem, "actions", [])
	count(object.get(action, "effects", [])) == 0
	violation := {
		"message": sprintf("action %s has no effects", [action.name]),
		"severity": "warning",
		"subject": action.name,
	}
}
`,
	}
}

// goalPresentPolicy flags problems every plan trivially solves.
func goalPresentPolicy() Policy {
	return Policy{
		Name:        "goal-present",
		Description: "Warns about problems without goals",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"problem", "goals"},
		Rego: `package yoloplan.policies.goals

import rego.v1

deny contains violation if {
	input.kind == "problem"
	count(object.get(input.problem, "goals", [])) == 0
	violation := {
		"message": sprintf("problem %s has no goals, the empty plan solves it", [input.problem.name]),
		"severity": "warning",
	}
}
`,
	}
}

// declaredTypesPolicy rejects objects and parameters of undeclared types.
func declaredTypesPolicy() Policy {
	return Policy{
		Name:        "declared-types",
		Description: "Objects and action parameters must use declared types",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"problem", "types"},
		Rego: `package yoloplan.policies.types

import rego.v1

declared contains t.name if {
	some t in object.get(input.problem, "types", [])
}

deny contains violation if {
	input.kind == "problem"
	some obj in object.get(input.problem, "objects", [])
	not obj.type in declared
	violation := {
		"message": sprintf("object %s has undeclared type %s", [obj.name, obj.type]),
		"severity": "error",
		"subject": obj.name,
	}
}

deny contains violation if {
	input.kind == "problem"
	some action in object.get(input.problem, "actions", [])
	some param in object.get(action, "parameters", [])
	not param.type in declared
	violation := {
		"message": sprintf("parameter %s of action %s has undeclared type %s", [param.name, action.name, param.type]),
		"severity": "error",
		"subject": action.name,
	}
}
`,
	}
}

// planLengthPolicy flags plans longer than options.max_plan_length.
func planLengthPolicy() Policy {
	return Policy{
		Name:        "plan-length",
		Description: "Warns when a plan is longer than options.max_plan_length",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"plan"},
		Rego: `package yoloplan.policies.length

import rego.v1

deny contains violation if {
	input.kind == "plan"
	limit := input.options.max_plan_length
	count(input.plan) > limit
	violation := {
		"message": sprintf("plan has %d actions, more than the limit of %d", [count(input.plan), limit]),
		"severity": "warning",
	}
}
`,
	}
}
