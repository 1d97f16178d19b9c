// Package planner is the one-shot YOLOPlanner: it validates a problem, checks
// it against policies, grounds it, runs the stochastic search with the plan
// validator as oracle, and lifts and re-validates the plan it finds.
//
// Example:
//
//	opts := planner.DefaultOptions()
//	opts.Search = opts.Search.WithMaxTries(10000)
//	opts.Timeout = 30 * time.Second
//
//	p := planner.New(opts,
//		planner.WithLogger(logger),
//		planner.WithPolicies(policyEngine),
//		planner.WithRecorder(store),
//	)
//	result, err := p.Solve(ctx, problem)
//	if err != nil {
//		return err
//	}
//	if !result.Solved() {
//		fmt.Println("No plan found!")
//	}
package planner
