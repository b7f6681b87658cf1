// Package scoring implements the deterministic rule score used to vet candidates.
package scoring

import (
	"math"
	"strings"

	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/urlnorm"
)

// Domain reputation tiers
const (
	unparseableHostScore = 0.5
	trustedDomainScore   = 1.0
	allowedDomainScore   = 0.9
	establishedHostScore = 0.8
	knownHostScore       = 0.6
	unknownHostScore     = 0.4

	establishedHostThreshold = 10
)

// Source trust tiers
const (
	feedSourceScore   = 0.8
	webSourceScore    = 0.5
	activeFeedScore   = 0.9
	provenFeedScore   = 1.0
	activeFeedStories = 5
	provenFeedStories = 20
)

// Penalties
const (
	negativeKeywordPenalty = 0.2
	maxNegativePenalty     = 1.0
	denyListPenalty        = 1.0
)

// Signals are the track-record counts the caller gathers before scoring.
type Signals struct {
	// HostArtifactCount is the number of published artifacts sharing the candidate's host.
	HostArtifactCount int
	// FeedStoryCount is the number of artifacts already published from the candidate's feed.
	FeedStoryCount int
}

// Breakdown is a scored candidate with every sub-score kept for logging.
type Breakdown struct {
	Domain          float64 `json:"domain"`
	Keyword         float64 `json:"keyword"`
	SourceTrust     float64 `json:"source_trust"`
	NegativePenalty float64 `json:"negative_penalty"`
	DenyPenalty     float64 `json:"deny_penalty"`
	Total           float64 `json:"total"`
}

// Score computes the rule score of c under the agent's search and quality policy.
// The result is clamped to [0,1].
func Score(c *types.Candidate, search types.SearchPolicy, quality types.QualityPolicy, sig Signals) Breakdown {
	host := urlnorm.Host(c.URL)
	text := strings.ToLower(c.Text())

	b := Breakdown{
		Domain:          DomainScore(host, search, quality, sig.HostArtifactCount),
		Keyword:         KeywordScore(text, search.RequiredKeywords),
		SourceTrust:     SourceTrustScore(c.SourceKind, sig.FeedStoryCount),
		NegativePenalty: NegativePenalty(text, search.ExcludedKeywords),
	}
	if urlnorm.MatchesDomain(host, search.DomainDenyList) {
		b.DenyPenalty = denyListPenalty
	}

	w := quality.Weights
	raw := b.Domain*w.DomainReputation + b.Keyword*w.KeywordMatch + b.SourceTrust*w.SourceTrust
	b.Total = clamp(raw-(b.NegativePenalty+b.DenyPenalty), 0, 1)
	return b
}

// DomainScore rates a host by explicit trust lists, then by its publishing history.
func DomainScore(host string, search types.SearchPolicy, quality types.QualityPolicy, hostArtifacts int) float64 {
	switch {
	case host == "":
		return unparseableHostScore
	case urlnorm.MatchesDomain(host, quality.TrustedDomains):
		return trustedDomainScore
	case urlnorm.MatchesDomain(host, search.DomainAllowList):
		return allowedDomainScore
	case hostArtifacts > establishedHostThreshold:
		return establishedHostScore
	case hostArtifacts > 0:
		return knownHostScore
	default:
		return unknownHostScore
	}
}

// NormalizeKeyword is the form every keyword is matched in: trimmed and lowercase.
func NormalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}

// KeywordScore is the fraction of required keywords found in text, rounded to two
// decimals. text must already be lowercase. Blank keywords are ignored; no required
// keywords scores 1.
func KeywordScore(text string, required []string) float64 {
	total, matched := 0, 0
	for _, kw := range required {
		kw = NormalizeKeyword(kw)
		if kw == "" {
			continue
		}
		total++
		if strings.Contains(text, kw) {
			matched++
		}
	}
	if total == 0 {
		return 1.0
	}
	return math.Round(float64(matched)/float64(total)*100) / 100
}

// SourceTrustScore rates where the candidate came from.
func SourceTrustScore(kind types.SourceKind, feedStories int) float64 {
	if kind != types.SourceFeed {
		return webSourceScore
	}
	switch {
	case feedStories > provenFeedStories:
		return provenFeedScore
	case feedStories > activeFeedStories:
		return activeFeedScore
	default:
		return feedSourceScore
	}
}

// NegativePenalty charges every occurrence of an excluded keyword in text, capped at 1.
// text must already be lowercase.
func NegativePenalty(text string, excluded []string) float64 {
	hits := 0
	for _, kw := range excluded {
		kw = NormalizeKeyword(kw)
		if kw == "" {
			continue
		}
		hits += strings.Count(text, kw)
	}
	return math.Min(float64(hits)*negativeKeywordPenalty, maxNegativePenalty)
}

// Percent renders a score as a whole percentage for rejection reasons.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
