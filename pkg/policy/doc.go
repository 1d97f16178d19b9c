// Package policy checks planning problems and plans with Open Policy Agent
// (OPA) Rego policies.
//
// Every policy defines a deny set in its package. Each entry is either a
// string or an object with "message" and optional "severity" and "subject"
// fields. Entries without a severity take the policy's default.
//
// # Input
//
// Policies receive one document:
//
//	{
//	    "kind":    "problem" | "plan",
//	    "problem": { ...the problem as loaded... },
//	    "plan":    [{"action": "move", "args": ["l1", "l2"]}, ...],
//	    "options": {"max_plan_length": 10}
//	}
//
// Problem policies run before grounding; a violation of severity error stops
// the solve. Plan policies run on the lifted plan and only report.
//
// # Built-in Policies
//
//  1. action-effects - warns about actions without effects
//  2. goal-present - warns about problems without goals
//  3. declared-types - rejects objects and parameters of undeclared types
//  4. plan-length - warns when a plan exceeds options.max_plan_length
//
// # Custom Policies
//
// Custom policies are loaded from .rego files or directories. The file name
// becomes the policy name, leading comments its description, and a
// "# severity: <level>" comment its default severity:
//
//	# Robots must never be asked to teleport.
//	# severity: error
//	package custom.teleport
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.kind == "problem"
//	    some action in input.problem.actions
//	    action.name == "teleport"
//	    violation := {"message": "teleport is not allowed", "subject": action.name}
//	}
//
// JSON files holding a serialized Policy are accepted as well.
package policy
