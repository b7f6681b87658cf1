package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "```json\n{\"score\": 0.8}\n```", `{"score": 0.8}`},
		{"generic code block", "```\n{\"score\": 0.8}\n```", `{"score": 0.8}`},
		{"code block with language", "```javascript\n{\"score\": 0.8}\n```", `{"score": 0.8}`},
		{"plain JSON", `{"score": 0.8}`, `{"score": 0.8}`},
		{"preamble before object", "Here is my assessment:\n{\"score\": 0.8}", `{"score": 0.8}`},
		{"preamble before array", "I found these articles:\n[{\"url\": \"https://a.example\"}]", `[{"url": "https://a.example"}]`},
		{"trailing text", "{\"score\": 0.8}\n\nLet me know if you need more.", `{"score": 0.8}`},
		{"escaped quotes", "Result: {\"reasoning\": \"called \\\"novel\\\"\"}", `{"reasoning": "called \"novel\""}`},
		{"no JSON", "I could not find anything.", "I could not find anything."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple array", `["a", "b"]`, `["a", "b"]`},
		{"nested arrays", `[[1, 2], [3, 4]]`, `[[1, 2], [3, 4]]`},
		{"array of results", `[{"url": "https://a.example", "title": "A"}]`, `[{"url": "https://a.example", "title": "A"}]`},
		{"preamble and trailing text", "Sure! [1, 2, 3] hope this helps", `[1, 2, 3]`},
		{"fenced", "```json\n[{\"title\": \"]tricky[\"}]\n```", `[{"title": "]tricky["}]`},
		{"unterminated", `[{"url": "x"}`, ""},
		{"object only", `{"results": "none"}`, ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONArray(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple object", `{"score": 0.9}`, `{"score": 0.9}`},
		{"nested", `{"outer": {"inner": 1}}`, `{"outer": {"inner": 1}}`},
		{"braces inside strings", `{"reasoning": "uses {templates}"}`, `{"reasoning": "uses {templates}"}`},
		{"preamble", `Analysis: {"score": 0.4} done`, `{"score": 0.4}`},
		{"no object", "not json", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONObject(tt.input))
		})
	}
}

func TestExtractBalanced_RequiresLeadingDelimiter(t *testing.T) {
	assert.Equal(t, "", extractJSONObject(" {\"a\": 1}"))
	assert.Equal(t, "", extractJSONArray("x[1]"))
	assert.Equal(t, `{"a": 1}`, extractJSONObject(`{"a": 1} trailing`))
}
