package scoring

import (
	"testing"

	"github.com/jonathan/curator/internal/types"
	"github.com/stretchr/testify/assert"
)

func aiAgent() *types.Agent {
	a := types.NewAgent()
	a.Search.RequiredKeywords = []string{"ai"}
	a.Search.ExcludedKeywords = []string{"crypto"}
	return a
}

func TestScore_VettedScenario(t *testing.T) {
	a := aiAgent()
	c := &types.Candidate{
		URL:        "https://unseen.example/post",
		Title:      "New AI tool launches",
		SourceKind: types.SourceFeed,
	}

	b := Score(c, a.Search, a.Quality, Signals{FeedStoryCount: 3})

	assert.InDelta(t, 0.4, b.Domain, 1e-9)
	assert.InDelta(t, 1.0, b.Keyword, 1e-9)
	assert.InDelta(t, 0.8, b.SourceTrust, 1e-9)
	assert.InDelta(t, 0.76, b.Total, 1e-9)
	assert.GreaterOrEqual(t, b.Total, a.Quality.RelevanceThreshold)
}

func TestScore_NegativeKeywordScenario(t *testing.T) {
	a := aiAgent()
	c := &types.Candidate{
		URL:        "https://unseen.example/post",
		Title:      "New AI tool launches",
		Content:    "Built on crypto rails, with crypto payouts.",
		SourceKind: types.SourceFeed,
	}

	b := Score(c, a.Search, a.Quality, Signals{})

	assert.InDelta(t, 0.4, b.NegativePenalty, 1e-9)
	assert.InDelta(t, 0.36, b.Total, 1e-9)
	assert.Less(t, b.Total, a.Quality.RelevanceThreshold)
	assert.Equal(t, 36, Percent(b.Total))
}

func TestScore_DenyListClampsToZero(t *testing.T) {
	a := aiAgent()
	a.Search.DomainDenyList = []string{"spam.example"}
	c := &types.Candidate{URL: "https://www.spam.example/x", Title: "AI", SourceKind: types.SourceWebSearch}

	b := Score(c, a.Search, a.Quality, Signals{})
	assert.Equal(t, 1.0, b.DenyPenalty)
	assert.Equal(t, 0.0, b.Total)
}

func TestScore_UsesConfiguredWeights(t *testing.T) {
	a := types.NewAgent()
	a.Quality.Weights = types.Weights{DomainReputation: 0, KeywordMatch: 1, SourceTrust: 0}
	c := &types.Candidate{URL: "https://example.com/a", Title: "anything", SourceKind: types.SourceWebSearch}

	b := Score(c, a.Search, a.Quality, Signals{})
	assert.InDelta(t, 1.0, b.Total, 1e-9)
}

func TestDomainScore(t *testing.T) {
	search := types.SearchPolicy{DomainAllowList: []string{"allowed.com"}}
	quality := types.QualityPolicy{TrustedDomains: []string{"trusted.com"}}

	tests := []struct {
		name     string
		host     string
		articles int
		want     float64
	}{
		{"unparseable", "", 0, 0.5},
		{"trusted", "trusted.com", 0, 1.0},
		{"trusted subdomain", "blog.trusted.com", 0, 1.0},
		{"allowed", "allowed.com", 0, 0.9},
		{"established", "other.com", 11, 0.8},
		{"exactly ten", "other.com", 10, 0.6},
		{"known", "other.com", 1, 0.6},
		{"unknown", "other.com", 0, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DomainScore(tt.host, search, quality, tt.articles), 1e-9)
		})
	}
}

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		required []string
		want     float64
	}{
		{"none required", "anything", nil, 1.0},
		{"all match", "new ai agent framework", []string{"AI", "agent"}, 1.0},
		{"half match", "new ai framework", []string{"ai", "agent"}, 0.5},
		{"one of three rounds", "new ai framework", []string{"ai", "agent", "llm"}, 0.33},
		{"two of three rounds", "ai agent", []string{"ai", "agent", "llm"}, 0.67},
		{"no match", "gardening tips", []string{"ai"}, 0.0},
		{"padded keywords", "new ai agent framework", []string{" ai ", "Agent\t"}, 1.0},
		{"blank keywords ignored", "new ai framework", []string{"ai", "  "}, 1.0},
		{"only blank keywords", "anything", []string{" "}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KeywordScore(tt.text, tt.required), 1e-9)
		})
	}
}

func TestSourceTrustScore(t *testing.T) {
	assert.Equal(t, 0.5, SourceTrustScore(types.SourceWebSearch, 100))
	assert.Equal(t, 0.8, SourceTrustScore(types.SourceFeed, 5))
	assert.Equal(t, 0.9, SourceTrustScore(types.SourceFeed, 6))
	assert.Equal(t, 0.9, SourceTrustScore(types.SourceFeed, 20))
	assert.Equal(t, 1.0, SourceTrustScore(types.SourceFeed, 21))
}

func TestNegativePenalty(t *testing.T) {
	assert.Equal(t, 0.0, NegativePenalty("clean text", []string{"crypto"}))
	assert.InDelta(t, 0.2, NegativePenalty("one crypto mention", []string{"crypto"}), 1e-9)
	assert.InDelta(t, 0.4, NegativePenalty("crypto nft", []string{"crypto", "NFT"}), 1e-9)
	assert.Equal(t, 1.0, NegativePenalty("spam spam spam spam spam spam", []string{"spam"}))
	assert.Equal(t, 0.0, NegativePenalty("text", []string{" "}))
	assert.InDelta(t, 0.2, NegativePenalty("one crypto mention", []string{" Crypto "}), 1e-9)
}

func TestNormalizeKeyword(t *testing.T) {
	assert.Equal(t, "ai", NormalizeKeyword(" AI "))
	assert.Equal(t, "machine learning", NormalizeKeyword("Machine Learning\n"))
	assert.Empty(t, NormalizeKeyword("   "))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 36, Percent(0.36))
	assert.Equal(t, 50, Percent(0.499))
	assert.Equal(t, 0, Percent(0))
	assert.Equal(t, 100, Percent(1))
}
