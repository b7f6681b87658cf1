package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ApprovalState is the moderation state of a published artifact.
type ApprovalState string

// Approval states
const (
	ApprovalApproved ApprovalState = "approved"
	ApprovalPending  ApprovalState = "pending"
)

// Artifact field limits
const (
	MaxArtifactTitleLength       = 150
	MaxArtifactDescriptionLength = 500
)

// Artifact is a published content item produced from a submitted candidate.
type Artifact struct {
	ID            uuid.UUID     `json:"id"`
	OwnerID       uuid.UUID     `json:"owner_id" validate:"required"`
	AgentID       *uuid.UUID    `json:"agent_id,omitempty"`
	Title         string        `json:"title" validate:"required,max=150"`
	URL           string        `json:"url" validate:"required,http_url,max=500"`
	NormalizedURL string        `json:"normalized_url" validate:"required"`
	Description   string        `json:"description,omitempty" validate:"max=500"`
	Tags          []string      `json:"tags" validate:"min=1,dive,required,max=50"`
	ApprovalState ApprovalState `json:"approval_state" validate:"oneof=approved pending"`
	ApprovedBy    *uuid.UUID    `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate validates the artifact and returns a *ValidationError on failure.
func (a *Artifact) Validate() error {
	return validationError(validator.New().Struct(a))
}
