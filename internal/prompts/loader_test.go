package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get(SearchFile, WebSearchKey)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{{.Query}}")
	assert.Contains(t, prompt, "JSON array")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.ErrorContains(t, err, "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get(QualityFile, "nonexistent-key")
	assert.ErrorContains(t, err, "not found")
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGet(QualityFile, AnalyzeKey))
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"fills placeholders", "Search {{.Query}} for {{.Audience}}", map[string]string{"Query": "agents", "Audience": "engineers"}, "Search agents for engineers"},
		{"no placeholders", "plain", map[string]string{"Query": "x"}, "plain"},
		{"missing value kept", "Hello {{.Name}}", map[string]string{}, "Hello {{.Name}}"},
		{"values are not expanded again", "{{.A}} and {{.B}}", map[string]string{"A": "{{.B}}", "B": "{{.A}}"}, "{{.B}} and {{.A}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.template, tt.data))
		})
	}
}

func TestRender_QualityPrompt(t *testing.T) {
	ClearCache()

	out, err := Render(QualityFile, AnalyzeKey, map[string]string{
		"Audience": "AI practitioners",
		"Title":    "New AI tool launches",
		"URL":      "https://example.com/a",
		"Content":  "Details",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Title: New AI tool launches")
	assert.NotContains(t, out, "{{.")
}

func TestRender_MissingValue(t *testing.T) {
	ClearCache()

	_, err := Render(SearchFile, WebSearchKey, map[string]string{"Query": "ai"})
	assert.ErrorContains(t, err, "missing values for")
	assert.ErrorContains(t, err, "Audience")
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List(SearchFile)
	require.NoError(t, err)
	assert.Equal(t, []string{WebSearchKey}, keys)
}

func TestRender_ContentWithPlaceholderSyntax(t *testing.T) {
	ClearCache()

	out, err := Render(QualityFile, AnalyzeKey, map[string]string{
		"Audience": "Go developers",
		"Title":    "Templating with {{.Title}} in Go",
		"URL":      "https://example.com/templates",
		"Content":  "Use {{.Missing}} carefully",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Templating with {{.Title}} in Go")
	assert.Contains(t, out, "Use {{.Missing}} carefully")
}
