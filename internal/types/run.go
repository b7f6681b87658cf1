package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of an agent run.
type RunStatus string

// Run states
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunCounts are the per-phase counters of a run.
type RunCounts struct {
	CandidatesFound    int `json:"candidates_found"`
	CandidatesVetted   int `json:"candidates_vetted"`
	CandidatesAIScored int `json:"candidates_ai_scored"`
	PostsCreated       int `json:"posts_created"`
}

// Run is one execution of an agent's cycle.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	AgentID      uuid.UUID  `json:"agent_id"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Counts       RunCounts  `json:"counts"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Terminal reports whether the run has finished.
func (r *Run) Terminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Complete records the counters and marks the run completed.
func (r *Run) Complete(counts RunCounts, at time.Time) error {
	if r.Terminal() {
		return fmt.Errorf("%w: run %s already %s", ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = RunCompleted
	r.Counts = counts
	r.CompletedAt = &at
	return nil
}

// Fail records the counters reached so far and the error, and marks the run failed.
func (r *Run) Fail(counts RunCounts, cause error, at time.Time) error {
	if r.Terminal() {
		return fmt.Errorf("%w: run %s already %s", ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = RunFailed
	r.Counts = counts
	r.CompletedAt = &at
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	return nil
}
