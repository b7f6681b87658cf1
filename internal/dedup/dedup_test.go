package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/curator/internal/store/memstore"
	"github.com/jonathan/curator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	agentID := uuid.New()
	otherAgent := uuid.New()

	require.NoError(t, s.CreateArtifact(ctx, &types.Artifact{
		OwnerID:       uuid.New(),
		Title:         "Published",
		URL:           "https://example.com/published",
		NormalizedURL: "https://example.com/published",
		Tags:          []string{"ai"},
		ApprovalState: types.ApprovalApproved,
	}))
	_, err := s.CreateCandidate(ctx, &types.Candidate{AgentID: agentID, URL: "https://example.com/inflight", Status: types.CandidatePending})
	require.NoError(t, err)

	d := New(s)

	tests := []struct {
		name  string
		agent uuid.UUID
		url   string
		want  bool
	}{
		{"published artifact", agentID, "https://www.example.com/published/", true},
		{"published artifact for any agent", otherAgent, "https://example.com/published", true},
		{"existing candidate", agentID, "https://example.com/inflight#x", true},
		{"candidate of another agent", otherAgent, "https://example.com/inflight", false},
		{"unknown url", agentID, "https://example.com/new", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.IsDuplicate(ctx, tt.agent, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubLookup struct {
	rejectedSince time.Time
	rejected      bool
	err           error
}

func (s *stubLookup) ArtifactExists(context.Context, string) (bool, error) { return false, s.err }
func (s *stubLookup) CandidateExists(context.Context, uuid.UUID, string) (bool, error) {
	return false, nil
}
func (s *stubLookup) RecentlyRejected(_ context.Context, _ uuid.UUID, _ string, since time.Time) (bool, error) {
	s.rejectedSince = since
	return s.rejected, nil
}

func TestIsDuplicate_RejectionWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lookup := &stubLookup{rejected: true}
	d := New(lookup).WithClock(func() time.Time { return now })

	dup, err := d.IsDuplicate(context.Background(), uuid.New(), "https://example.com/x")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, now.Add(-7*24*time.Hour), lookup.rejectedSince)
}

func TestIsDuplicate_PropagatesStorageErrors(t *testing.T) {
	d := New(&stubLookup{err: errors.New("connection refused")})
	_, err := d.IsDuplicate(context.Background(), uuid.New(), "https://example.com/x")
	assert.ErrorContains(t, err, "connection refused")
}
