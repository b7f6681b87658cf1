package pipeline

import (
	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/types"
)

// Phases of a run, in execution order
const (
	PhaseSearch      = "search"
	PhaseRuleVetting = "rule_vetting"
	PhaseAIVetting   = "ai_vetting"
	PhaseSubmission  = "submission"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Phase   string          `json:"phase"`
	Message string          `json:"message"`
	AgentID uuid.UUID       `json:"agent_id"`
	RunID   uuid.UUID       `json:"run_id"`
	Counts  types.RunCounts `json:"counts"`
}

// ProgressCallback is called after each phase of a run
type ProgressCallback func(event ProgressEvent)
