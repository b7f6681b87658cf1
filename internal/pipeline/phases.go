package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jonathan/curator/internal/metrics"
	"github.com/jonathan/curator/internal/scoring"
	"github.com/jonathan/curator/internal/search"
	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
	"golang.org/x/sync/errgroup"
)

// Rejection reasons
const (
	reasonBelowRelevance = "below relevance threshold (%d%%)"
	reasonBelowLLM       = "below LLM threshold (%d%%)"
)

// searchPhase runs the feed provider and, if enabled, the web provider. Provider
// failures are logged and do not fail the run; cancellation does.
func (o *Orchestrator) searchPhase(ctx context.Context, agent *types.Agent, run *types.Run, log *slog.Logger) (int, error) {
	providers := []search.Provider{o.deps.Feed}
	if agent.Search.WebSearchEnabled && o.deps.Web != nil {
		providers = append(providers, o.deps.Web)
	}

	total := 0
	for _, p := range providers {
		if p == nil {
			continue
		}
		n, err := p.FindCandidates(ctx, agent, run)
		total += n
		metrics.CandidatesFound.WithLabelValues(p.Name()).Add(float64(n))
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			metrics.ProviderErrors.WithLabelValues(p.Name()).Inc()
			log.Error("search provider failed", "provider", p.Name(), "error", err)
		}
	}
	return total, nil
}

// ruleVettingPhase scores every pending candidate of the run.
func (o *Orchestrator) ruleVettingPhase(ctx context.Context, agent *types.Agent, run *types.Run, log *slog.Logger) (int, error) {
	st := o.deps.Store
	pending, err := st.ListCandidates(ctx, store.CandidateQuery{RunID: run.ID, Status: types.CandidatePending})
	if err != nil {
		return 0, fmt.Errorf("failed to list pending candidates: %w", err)
	}

	vetted := 0
	for i := range pending {
		c := &pending[i]
		sig, err := o.signals.gather(ctx, c)
		if err != nil {
			return vetted, err
		}
		b := scoring.Score(c, agent.Search, agent.Quality, sig)

		if b.Total >= agent.Quality.RelevanceThreshold {
			err = c.Vet(b.Total)
			vetted++
		} else {
			c.RuleScore = b.Total
			err = c.Reject(fmt.Sprintf(reasonBelowRelevance, scoring.Percent(b.Total)))
			metrics.CandidatesRejected.WithLabelValues(PhaseRuleVetting).Inc()
		}
		if err != nil {
			return vetted, err
		}
		if err := st.UpdateCandidate(ctx, c, types.CandidatePending); err != nil {
			return vetted, fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
		}

		log.Debug("rule scored candidate",
			"candidate", c.ID,
			"url", c.URL,
			"status", c.Status,
			"domain", b.Domain,
			"keyword", b.Keyword,
			"source_trust", b.SourceTrust,
			"penalty", b.NegativePenalty+b.DenyPenalty,
			"total", b.Total)
	}
	metrics.CandidatesVetted.Add(float64(vetted))
	return vetted, nil
}

// aiVettingPhase grades the best rule-vetted candidates concurrently.
func (o *Orchestrator) aiVettingPhase(ctx context.Context, agent *types.Agent, run *types.Run, log *slog.Logger) (int, error) {
	st := o.deps.Store
	vetted, err := st.ListCandidates(ctx, store.CandidateQuery{
		RunID:  run.ID,
		Status: types.CandidateVetted,
		Order:  store.OrderRuleScore,
		Limit:  agent.Quality.MaxCandidatesForAI,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list vetted candidates: %w", err)
	}

	var scored, fallbacks atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.AIConcurrency)

	for i := range vetted {
		c := &vetted[i]
		g.Go(func() error {
			res := o.deps.Analyzer.Analyze(gCtx, agent, c)
			if err := gCtx.Err(); err != nil {
				return err
			}
			if res.Fallback {
				fallbacks.Add(1)
				metrics.QualityFallbacks.Inc()
			}

			var err error
			if res.Score >= agent.Quality.AIMinScore {
				err = c.ScoreAI(res.Score)
				scored.Add(1)
			} else {
				score := res.Score
				c.AIScore = &score
				err = c.Reject(fmt.Sprintf(reasonBelowLLM, scoring.Percent(res.Score)))
				metrics.CandidatesRejected.WithLabelValues(PhaseAIVetting).Inc()
			}
			if err != nil {
				return err
			}
			if err := st.UpdateCandidate(gCtx, c, types.CandidateVetted); err != nil {
				return fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
			}
			log.Debug("AI scored candidate", "candidate", c.ID, "score", res.Score, "status", c.Status, "reasoning", res.Reasoning)
			return nil
		})
	}

	err = g.Wait()
	n := int(scored.Load())
	metrics.CandidatesAIScored.Add(float64(n))
	if f := fallbacks.Load(); f > 0 {
		log.Warn("quality analysis fell back to default score", "count", f)
	}
	return n, err
}

// submissionPhase publishes the best candidates in score order within the post limits.
func (o *Orchestrator) submissionPhase(ctx context.Context, agent *types.Agent, run *types.Run, log *slog.Logger) (int, error) {
	st := o.deps.Store

	published, err := o.publishedToday(ctx, agent)
	if err != nil {
		return 0, err
	}
	limit := agent.EffectivePostLimit(published)
	if limit <= 0 {
		log.Info("daily post limit reached, skipping submission", "published", published, "max_daily", agent.MaxDailyPosts)
		return 0, nil
	}

	q := store.CandidateQuery{RunID: run.ID, Status: types.CandidateVetted, Order: store.OrderRuleScore, Limit: limit}
	if agent.Quality.AIVettingEnabled {
		q.Status, q.Order = types.CandidateLLMScored, store.OrderFinalScore
	}
	ready, err := st.ListCandidates(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to list candidates for submission: %w", err)
	}

	posts := 0
	for i := range ready {
		c := &ready[i]

		published, err := o.publishedToday(ctx, agent)
		if err != nil {
			return posts, err
		}
		if published >= agent.MaxDailyPosts {
			log.Info("daily post limit reached mid-run", "published", published)
			break
		}

		if o.deps.SubmitLimiter != nil {
			if err := o.deps.SubmitLimiter.Wait(ctx, agent.ID.String()); err != nil {
				return posts, fmt.Errorf("failed waiting for submission slot: %w", err)
			}
		}

		from := c.Status
		out, err := o.deps.Submitter.Submit(ctx, agent, c)
		if err != nil {
			return posts, err
		}

		if !out.OK() {
			if err := c.Reject(out.Reason); err != nil {
				return posts, err
			}
			if err := st.UpdateCandidate(ctx, c, from); err != nil {
				return posts, fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
			}
			metrics.CandidatesRejected.WithLabelValues(PhaseSubmission).Inc()
			log.Warn("submission rejected", "candidate", c.ID, "reason", out.Reason)
			continue
		}

		if err := o.recordSubmission(ctx, agent, c, from, out.Artifact); err != nil {
			return posts, err
		}
		posts++
	}
	return posts, nil
}

func (o *Orchestrator) recordSubmission(ctx context.Context, agent *types.Agent, c *types.Candidate, from types.CandidateStatus, a *types.Artifact) error {
	st := o.deps.Store
	if err := c.MarkSubmitted(a.ID); err != nil {
		return err
	}
	if err := st.UpdateCandidate(ctx, c, from); err != nil {
		return fmt.Errorf("failed to update candidate %s: %w", c.ID, err)
	}
	if err := st.IncrementPostCount(ctx, agent.ID); err != nil {
		return fmt.Errorf("failed to increment post count: %w", err)
	}
	if c.SourceKind == types.SourceFeed && c.SourceRef != nil {
		if err := st.MarkFeedItemSubmitted(ctx, *c.SourceRef, a.ID); err != nil {
			return fmt.Errorf("failed to mark feed item %s submitted: %w", *c.SourceRef, err)
		}
	}
	o.signals.forget(urlnorm.Host(c.URL))
	metrics.ArtifactsCreated.WithLabelValues(string(a.ApprovalState)).Inc()
	return nil
}

func (o *Orchestrator) publishedToday(ctx context.Context, agent *types.Agent) (int, error) {
	n, err := o.deps.Store.CountAgentArtifactsSince(ctx, agent.ID, o.now().Add(-DailyWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to count recent posts: %w", err)
	}
	return n, nil
}
