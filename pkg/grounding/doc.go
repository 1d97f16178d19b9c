// Package grounding turns action schemas into the finite action pool the
// search samples from, and lifts plans over grounded actions back to the
// schemas they came from.
package grounding
