// Package stores keeps the planner's run history in SQLite. Each solve is
// recorded as a SolveRun with its counters, plan and seed, and telemetry
// events can be attached to a run. The schema is managed by golang-migrate
// from embedded migrations.
package stores
