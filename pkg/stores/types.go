package stores

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the outcome of a solve run.
type RunStatus string

const (
	RunStatusSolved    RunStatus = "solved_satisficing"
	RunStatusExhausted RunStatus = "exhausted"
	RunStatusTimeout   RunStatus = "timeout"
	RunStatusFailed    RunStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// SolveRun records one call to the planner.
type SolveRun struct {
	ID          string    `json:"id"`
	Problem     string    `json:"problem"`
	Engine      string    `json:"engine"`
	Status      RunStatus `json:"status"`
	Tries       int       `json:"tries"`
	Restarts    int       `json:"restarts"`
	Backtracks  int       `json:"backtracks"`
	PlanLength  int       `json:"plan_length"`
	Plan        string    `json:"plan"` // one action per line
	Seed        uint64    `json:"seed"`
	Error       *string   `json:"error,omitempty"`
	Metadata    string    `json:"metadata"` // JSON blob
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the run took.
func (r *SolveRun) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunEvent is a telemetry event persisted with its run.
type RunEvent struct {
	ID        int64      `json:"id"`
	RunID     string     `json:"run_id"`
	Type      string     `json:"type"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}
