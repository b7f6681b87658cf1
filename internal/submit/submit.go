// Package submit publishes vetted candidates as artifacts on behalf of their agent.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// ReasonNoOwner is the failure reason for agents that have nobody to publish as.
const ReasonNoOwner = "agent has no associated owner"

var (
	sitePrefixProbe = regexp.MustCompile(`^[^|:]{1,30}[|:]`)
	sitePrefix      = regexp.MustCompile(`^[^|:]+[|:]\s*`)
)

// ArtifactCreator persists artifacts.
type ArtifactCreator interface {
	CreateArtifact(ctx context.Context, a *types.Artifact) error
}

// Outcome is the result of one submission. Exactly one of Artifact and Reason is set.
type Outcome struct {
	Artifact *types.Artifact
	Reason   string
}

// OK reports whether an artifact was created.
func (o Outcome) OK() bool { return o.Artifact != nil }

// Submitter builds and stores artifacts.
type Submitter struct {
	artifacts ArtifactCreator
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Submitter.
func New(artifacts ArtifactCreator) *Submitter {
	return &Submitter{
		artifacts: artifacts,
		now:       time.Now,
		logger:    slog.Default().With("system", "submit"),
	}
}

// WithClock sets the clock used for approval and creation timestamps.
func (s *Submitter) WithClock(now func() time.Time) *Submitter {
	s.now = now
	return s
}

// Submit publishes c for agent. Rejections the candidate should carry (missing owner,
// invalid artifact, URL already published) come back as Outcome.Reason with a nil
// error; any other failure is returned.
func (s *Submitter) Submit(ctx context.Context, agent *types.Agent, c *types.Candidate) (Outcome, error) {
	if agent.OwnerID == nil {
		return Outcome{Reason: ReasonNoOwner}, nil
	}

	a := Build(agent, c, s.now())
	if err := s.artifacts.CreateArtifact(ctx, a); err != nil {
		var verr *types.ValidationError
		switch {
		case errors.As(err, &verr):
			return Outcome{Reason: verr.Error()}, nil
		case errors.Is(err, store.ErrDuplicate):
			return Outcome{Reason: "url already published"}, nil
		default:
			return Outcome{}, fmt.Errorf("failed to create artifact for candidate %s: %w", c.ID, err)
		}
	}

	s.logger.Info("artifact created", "agent", agent.ID, "candidate", c.ID, "artifact", a.ID, "approval", a.ApprovalState)
	return Outcome{Artifact: a}, nil
}

// Build assembles the artifact for c without storing it. agent.OwnerID must be set.
func Build(agent *types.Agent, c *types.Candidate, now time.Time) *types.Artifact {
	agentID := agent.ID
	a := &types.Artifact{
		ID:            uuid.New(),
		OwnerID:       *agent.OwnerID,
		AgentID:       &agentID,
		Title:         CleanTitle(c.Title),
		URL:           c.URL,
		NormalizedURL: urlnorm.Normalize(c.URL),
		Description:   Description(c.Content),
		Tags:          agent.Settings.Tags(),
		ApprovalState: types.ApprovalPending,
		CreatedAt:     now,
	}
	if agent.AutoApproves() {
		owner := *agent.OwnerID
		a.ApprovalState = types.ApprovalApproved
		a.ApprovedBy = &owner
		a.ApprovedAt = &now
	}
	return a
}

// CleanTitle drops a short leading site name ("Site | Title", "Site: Title") and
// truncates to the artifact title limit.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if sitePrefixProbe.MatchString(title) {
		title = sitePrefix.ReplaceAllString(title, "")
	}
	return types.Truncate(title, types.MaxArtifactTitleLength)
}

// Description returns the first paragraph of content, truncated. Empty content gives "".
func Description(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	first, _, _ := strings.Cut(content, "\n\n")
	return types.Truncate(strings.TrimSpace(first), types.MaxArtifactDescriptionLength)
}
