// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/jonathan/curator/internal/llm"
)

// Fake answers every call with Respond. It is safe for concurrent use.
type Fake struct {
	Respond func(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)

	mu      sync.Mutex
	prompts []string
}

var _ llm.Client = (*Fake)(nil)

// Static returns a Fake that always answers text.
func Static(text string) *Fake {
	return &Fake{Respond: func(context.Context, string, llm.ModelTier) (string, error) {
		return text, nil
	}}
}

// Failing returns a Fake that always fails with err.
func Failing(err error) *Fake {
	return &Fake{Respond: func(context.Context, string, llm.ModelTier) (string, error) {
		return "", err
	}}
}

func (f *Fake) call(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.Respond == nil {
		return "", nil
	}
	return f.Respond(ctx, prompt, tier)
}

// GenerateContent implements llm.Client.
func (f *Fake) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.call(ctx, prompt, tier)
}

// GenerateJSON implements llm.Client.
func (f *Fake) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	text, err := f.call(ctx, prompt, tier)
	if err != nil {
		return "", err
	}
	return llm.CleanJSONBlock(text), nil
}

// GetModel implements llm.Client.
func (f *Fake) GetModel(tier llm.ModelTier) string { return "fake-" + string(tier) }

// Close implements llm.Client.
func (f *Fake) Close() error { return nil }

// Prompts returns every prompt received so far.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}
