package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/curator/internal/llm"
	"github.com/jonathan/curator/internal/prompts"
	"github.com/jonathan/curator/internal/schemas"
	"github.com/jonathan/curator/internal/types"
)

// Defaults for web search
const (
	DefaultMaxResults  = 10
	DefaultCallTimeout = 60 * time.Second
)

// Waiter blocks until key may make another call.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Result is one web search hit as returned by the model.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// WebConfig tunes the web search provider.
type WebConfig struct {
	MaxResults  int
	CallTimeout time.Duration
}

// WebProvider runs an agent's search queries through the language model.
type WebProvider struct {
	client  llm.Client
	limiter Waiter
	config  WebConfig
	recorder
}

// NewWebProvider creates a WebProvider. limiter spaces out queries per agent.
func NewWebProvider(client llm.Client, limiter Waiter, candidates CandidateWriter, dedup Deduplicator, config WebConfig) *WebProvider {
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	return &WebProvider{
		client:  client,
		limiter: limiter,
		config:  config,
		recorder: recorder{
			candidates: candidates,
			dedup:      dedup,
			logger:     slog.Default().With("system", "search", "provider", "web"),
			now:        time.Now,
		},
	}
}

// Name implements Provider.
func (p *WebProvider) Name() string { return string(types.SourceWebSearch) }

// FindCandidates implements Provider. Failed or malformed model responses yield no
// results for that query; only storage errors and cancellation are returned.
func (p *WebProvider) FindCandidates(ctx context.Context, agent *types.Agent, run *types.Run) (int, error) {
	created := 0
	for _, query := range agent.Search.WebSearchQueries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if err := p.limiter.Wait(ctx, agent.ID.String()); err != nil {
			return created, fmt.Errorf("failed waiting for search slot: %w", err)
		}

		results, err := p.Search(ctx, agent, query)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			p.logger.Warn("web search query failed", "agent", agent.ID, "query", query, "error", err)
			continue
		}

		found := 0
		for _, r := range results {
			ok, err := p.record(ctx, agent, run, types.SourceWebSearch, nil, r.URL, r.Title, r.Description)
			if err != nil {
				return created, fmt.Errorf("failed to record search result %s: %w", r.URL, err)
			}
			if ok {
				found++
			}
		}
		created += found
		p.logger.Info("web search query finished", "agent", agent.ID, "query", query, "results", len(results), "candidates", found)
	}
	return created, nil
}

// Search runs one query and returns the results that carry both a URL and a title.
func (p *WebProvider) Search(ctx context.Context, agent *types.Agent, query string) ([]Result, error) {
	prompt, err := prompts.Render(prompts.SearchFile, prompts.WebSearchKey, map[string]string{
		"Query":      query,
		"Audience":   agent.Audience(),
		"MaxAgeDays": strconv.Itoa(maxAgeDays(agent.Search.MaxAgeHours)),
		"MaxResults": strconv.Itoa(p.config.MaxResults),
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.config.CallTimeout)
	defer cancel()

	text, err := p.client.GenerateContent(callCtx, prompt, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("search call failed: %w", err)
	}

	results, err := ParseResults(text)
	if err != nil {
		return nil, err
	}
	if len(results) > p.config.MaxResults {
		results = results[:p.config.MaxResults]
	}
	return results, nil
}

// ParseResults extracts the first JSON array from a model response. Each entry is
// checked on its own: entries without a non-empty url and title, or with fields of
// the wrong type, are dropped without affecting the rest.
func ParseResults(text string) ([]Result, error) {
	raw := llm.ExtractJSONArray(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in search response")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if err := schemas.Validate(schemas.SearchResult, string(entry)); err != nil {
			continue
		}
		var r Result
		if err := json.Unmarshal(entry, &r); err != nil {
			continue
		}
		if strings.TrimSpace(r.URL) == "" || strings.TrimSpace(r.Title) == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func maxAgeDays(hours int) int {
	if hours <= 0 {
		hours = types.DefaultMaxAgeHours
	}
	return max((hours+23)/24, 1)
}
