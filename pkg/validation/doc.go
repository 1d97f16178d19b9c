// Package validation decides whether a sequential plan solves a problem.
//
// A plan is simulated from the initial state. The first action whose
// preconditions fail, or whose numeric effects leave their bounds, makes the
// plan inapplicable. A plan that executes but leaves a goal false does not
// satisfy the goal. Validator.Oracle exposes the same check to the search
// engine for grounded problems.
package validation
