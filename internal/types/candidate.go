package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CandidateStatus is the lifecycle state of a discovered link.
type CandidateStatus string

// Candidate lifecycle states
const (
	CandidatePending   CandidateStatus = "pending"
	CandidateVetted    CandidateStatus = "vetted"
	CandidateLLMScored CandidateStatus = "llm_scored"
	CandidateSubmitted CandidateStatus = "submitted"
	CandidateRejected  CandidateStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s CandidateStatus) Terminal() bool {
	return s == CandidateSubmitted || s == CandidateRejected
}

// SourceKind is where a candidate was discovered.
type SourceKind string

// Source kinds
const (
	SourceFeed      SourceKind = "feed"
	SourceWebSearch SourceKind = "web_search"
)

// Field limits for candidates
const (
	MaxCandidateURLLength   = 500
	MaxCandidateTitleLength = 500
	MaxRejectionReason      = 200
)

// Score blending weights
const (
	RuleScoreWeight = 0.3
	AIScoreWeight   = 0.7
)

// BlendScores combines a rule score and an AI score into the ranking score.
func BlendScores(rule, ai float64) float64 {
	return rule*RuleScoreWeight + ai*AIScoreWeight
}

// Candidate is one discovered link under evaluation by an agent run.
type Candidate struct {
	ID              uuid.UUID       `json:"id"`
	AgentID         uuid.UUID       `json:"agent_id"`
	RunID           uuid.UUID       `json:"run_id"`
	SourceKind      SourceKind      `json:"source_kind"`
	SourceRef       *uuid.UUID      `json:"source_ref,omitempty"`
	URL             string          `json:"url"`
	NormalizedURL   string          `json:"normalized_url"`
	Title           string          `json:"title"`
	Content         string          `json:"content,omitempty"`
	RuleScore       float64         `json:"rule_score"`
	AIScore         *float64        `json:"ai_score,omitempty"`
	FinalScore      *float64        `json:"final_score,omitempty"`
	Status          CandidateStatus `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ArtifactID      *uuid.UUID      `json:"artifact_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Text is the title and content joined for keyword matching.
func (c *Candidate) Text() string {
	return c.Title + " " + c.Content
}

// RankScore is the score used for submission ordering.
func (c *Candidate) RankScore() float64 {
	if c.FinalScore != nil {
		return *c.FinalScore
	}
	return c.RuleScore
}

func (c *Candidate) transition(to CandidateStatus, allowed ...CandidateStatus) error {
	for _, from := range allowed {
		if c.Status == from {
			c.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: candidate %s cannot move from %s to %s", ErrInvalidTransition, c.ID, c.Status, to)
}

// Vet records the rule score and moves a pending candidate to vetted.
func (c *Candidate) Vet(ruleScore float64) error {
	if err := c.transition(CandidateVetted, CandidatePending); err != nil {
		return err
	}
	c.RuleScore = ruleScore
	return nil
}

// ScoreAI records the AI score, computes the blended final score and moves a vetted
// candidate to llm_scored.
func (c *Candidate) ScoreAI(aiScore float64) error {
	if err := c.transition(CandidateLLMScored, CandidateVetted); err != nil {
		return err
	}
	final := BlendScores(c.RuleScore, aiScore)
	c.AIScore = &aiScore
	c.FinalScore = &final
	return nil
}

// MarkSubmitted links the produced artifact and moves the candidate to submitted.
// Vetted candidates are accepted when AI vetting is disabled.
func (c *Candidate) MarkSubmitted(artifactID uuid.UUID) error {
	if err := c.transition(CandidateSubmitted, CandidateVetted, CandidateLLMScored); err != nil {
		return err
	}
	c.ArtifactID = &artifactID
	return nil
}

// Reject moves any non-terminal candidate to rejected with a reason.
func (c *Candidate) Reject(reason string) error {
	if err := c.transition(CandidateRejected, CandidatePending, CandidateVetted, CandidateLLMScored); err != nil {
		return err
	}
	c.RejectionReason = Truncate(reason, MaxRejectionReason)
	return nil
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
