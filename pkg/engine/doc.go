// Package engine implements the stochastic search at the heart of yoloplan.
//
// # Overview
//
// Search builds a candidate action sequence one random action at a time and asks an
// Oracle after every try whether the candidate is a valid plan:
//
//  1. With probability Config.RestartProbability the candidate is discarded (restart).
//  2. Otherwise one action is sampled from the pool and appended (extend).
//  3. The oracle answers Valid, an applicability failure, or a goal failure.
//     Valid ends the search. An applicability failure removes the action just appended
//     (backtrack). A goal failure keeps the candidate so later tries can extend it.
//  4. The try counter is incremented; reaching Config.MaxTries ends the search with
//     StatusExhausted.
//
// The engine is generic over the action type and never inspects actions. Grounding,
// validation and lifting live in the grounding, validation and planner packages.
//
// # Randomness
//
// Sampling and restarts go through the SamplingPolicy and RestartPolicy interfaces. The
// defaults share one PCG source seeded from Config.Seed; tests inject SamplingFunc and
// RestartFunc to script a search.
//
// # Errors
//
// Configuration problems (empty pool, restart probability outside [0,1), negative
// MaxTries) are returned as ErrorClassConfiguration errors before the first try. Oracle
// failures abort the search with an ErrorClassSearch error. StatusExhausted is an
// outcome, never an error.
//
// # Example
//
//	outcome, err := engine.Search(ctx, pool, oracle, engine.DefaultConfig().WithMaxTries(10000))
//	if err != nil {
//	    return err
//	}
//	if outcome.Found() {
//	    use(outcome.Plan)
//	}
package engine
