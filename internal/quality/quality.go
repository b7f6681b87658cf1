// Package quality asks the language model to grade a candidate for an agent's audience.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/curator/internal/llm"
	"github.com/jonathan/curator/internal/prompts"
	"github.com/jonathan/curator/internal/schemas"
	"github.com/jonathan/curator/internal/types"
)

// Prompt input limits
const (
	MaxTitleChars   = 200
	MaxContentChars = 2000
)

// DefaultCallTimeout bounds one analysis call.
const DefaultCallTimeout = 60 * time.Second

// FallbackReasoning is reported when the model could not grade a candidate.
const FallbackReasoning = "analysis failed, using default score"

const fallbackScore = 0.5

// Result is the model's grading of one candidate. All scores are within [0, 1].
type Result struct {
	Score         float64 `json:"score"`
	Reasoning     string  `json:"reasoning"`
	Relevance     float64 `json:"relevance"`
	Quality       float64 `json:"quality"`
	Novelty       float64 `json:"novelty"`
	Actionability float64 `json:"actionability"`
	// Fallback is set when the result is the default rather than a model answer.
	Fallback bool `json:"-"`
}

// Fallback returns the neutral result used when analysis fails.
func Fallback() Result {
	return Result{
		Score:         fallbackScore,
		Reasoning:     FallbackReasoning,
		Relevance:     fallbackScore,
		Quality:       fallbackScore,
		Novelty:       fallbackScore,
		Actionability: fallbackScore,
		Fallback:      true,
	}
}

// Analyzer grades candidates with the lite model tier.
type Analyzer struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzer creates an Analyzer whose calls are bounded by timeout.
func NewAnalyzer(client llm.Client, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Analyzer{
		client:  client,
		timeout: timeout,
		logger:  slog.Default().With("system", "quality"),
	}
}

// Analyze grades c for agent's audience. It never fails: any provider, parsing or
// schema error yields Fallback().
func (a *Analyzer) Analyze(ctx context.Context, agent *types.Agent, c *types.Candidate) Result {
	res, err := a.analyze(ctx, agent, c)
	if err != nil {
		a.logger.Warn("quality analysis failed", "candidate", c.ID, "url", c.URL, "error", err)
		return Fallback()
	}
	a.logger.Debug("quality analysis", "candidate", c.ID, "score", res.Score)
	return res
}

func (a *Analyzer) analyze(ctx context.Context, agent *types.Agent, c *types.Candidate) (Result, error) {
	prompt, err := prompts.Render(prompts.QualityFile, prompts.AnalyzeKey, map[string]string{
		"Audience": agent.Audience(),
		"Title":    clip(c.Title, MaxTitleChars),
		"URL":      c.URL,
		"Content":  clip(c.Content, MaxContentChars),
	})
	if err != nil {
		return Result{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.client.GenerateJSON(callCtx, prompt, llm.TierLite)
	if err != nil {
		return Result{}, fmt.Errorf("quality call failed: %w", err)
	}
	return ParseResult(text)
}

// ParseResult extracts, validates and clamps the first JSON object of a model response.
func ParseResult(text string) (Result, error) {
	raw := llm.ExtractJSONObject(text)
	if raw == "" {
		return Result{}, fmt.Errorf("no JSON object in quality response")
	}
	if err := schemas.Validate(schemas.QualityAnalysis, raw); err != nil {
		return Result{}, err
	}

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return Result{}, fmt.Errorf("failed to decode quality analysis: %w", err)
	}

	res.Score = clamp(res.Score)
	res.Relevance = clamp(res.Relevance)
	res.Quality = clamp(res.Quality)
	res.Novelty = clamp(res.Novelty)
	res.Actionability = clamp(res.Actionability)
	return res, nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
