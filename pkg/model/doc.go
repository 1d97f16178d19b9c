// Package model defines planning problems and the semantics of their actions.
//
// A Problem declares typed objects, fluents (boolean, integer or real state
// variables), action schemas, an initial state and goals. Conditions and
// effect values are Starlark expressions evaluated by an Evaluator:
//
//	preconditions:
//	  - battery_charge() >= 10
//	  - robot_at(l_from) and not robot_at(l_to)
//	  - any([robot_at(l) for l in objects("Location")])
//
// State holds one value per fluent grounding under keys like robot_at(l1).
package model
