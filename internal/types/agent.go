// Package types provides the domain model shared by the curation pipeline: agents, runs,
// candidates, artifacts and feed items.
package types

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ScheduleInterval is how often an agent is due for a run.
type ScheduleInterval string

// Schedule intervals supported by the scheduler.
const (
	Every15Minutes ScheduleInterval = "15_minutes"
	Hourly         ScheduleInterval = "hourly"
	Every2Hours    ScheduleInterval = "2_hours"
	Every6Hours    ScheduleInterval = "6_hours"
	Every12Hours   ScheduleInterval = "12_hours"
	Daily          ScheduleInterval = "daily"
)

var intervalDurations = map[ScheduleInterval]time.Duration{
	Every15Minutes: 15 * time.Minute,
	Hourly:         time.Hour,
	Every2Hours:    2 * time.Hour,
	Every6Hours:    6 * time.Hour,
	Every12Hours:   12 * time.Hour,
	Daily:          24 * time.Hour,
}

// Duration returns the wall-clock length of the interval. Unknown values fall back to daily.
func (s ScheduleInterval) Duration() time.Duration {
	if d, ok := intervalDurations[s]; ok {
		return d
	}
	return 24 * time.Hour
}

// TrustLevel controls whether an agent's artifacts are auto-approved.
type TrustLevel string

// Trust levels
const (
	TrustLevelTrusted TrustLevel = "trusted"
	TrustLevelReview  TrustLevel = "review"
)

// Agent defaults
const (
	DefaultPostsPerRun        = 10
	DefaultMaxDailyPosts      = 50
	DefaultMaxAgeHours        = 72
	DefaultRelevanceThreshold = 0.5
	DefaultAIMinScore         = 0.7
	DefaultMaxCandidatesForAI = 20
	DefaultTag                = "ai"
)

// Weights is the rule-scoring weight triple. Values are used as configured.
type Weights struct {
	DomainReputation float64 `json:"domain_reputation" yaml:"domain_reputation" validate:"gte=0,lte=1"`
	KeywordMatch     float64 `json:"keyword_match" yaml:"keyword_match" validate:"gte=0,lte=1"`
	SourceTrust      float64 `json:"source_trust" yaml:"source_trust" validate:"gte=0,lte=1"`
}

// DefaultWeights returns the 0.3/0.4/0.3 weighting.
func DefaultWeights() Weights {
	return Weights{DomainReputation: 0.3, KeywordMatch: 0.4, SourceTrust: 0.3}
}

// IsZero reports whether no weight was configured.
func (w Weights) IsZero() bool {
	return w.DomainReputation == 0 && w.KeywordMatch == 0 && w.SourceTrust == 0
}

// SearchPolicy describes where an agent looks for candidates and what it filters out.
type SearchPolicy struct {
	FeedSourceIDs    []uuid.UUID `json:"feed_source_ids,omitempty" yaml:"feed_source_ids"`
	WebSearchEnabled bool        `json:"web_search_enabled" yaml:"web_search_enabled"`
	WebSearchQueries []string    `json:"web_search_queries,omitempty" yaml:"web_search_queries" validate:"dive,required,max=500"`
	RequiredKeywords []string    `json:"required_keywords,omitempty" yaml:"required_keywords" validate:"dive,required"`
	ExcludedKeywords []string    `json:"excluded_keywords,omitempty" yaml:"excluded_keywords" validate:"dive,required"`
	DomainAllowList  []string    `json:"domain_allow_list,omitempty" yaml:"domain_allow_list" validate:"dive,required"`
	DomainDenyList   []string    `json:"domain_deny_list,omitempty" yaml:"domain_deny_list" validate:"dive,required"`
	MaxAgeHours      int         `json:"max_age_hours" yaml:"max_age_hours" validate:"gte=0"`
}

// QualityPolicy holds the vetting thresholds and scoring weights of an agent.
type QualityPolicy struct {
	RelevanceThreshold float64  `json:"relevance_threshold" yaml:"relevance_threshold" validate:"gte=0,lte=1"`
	AIVettingEnabled   bool     `json:"ai_vetting_enabled" yaml:"ai_vetting_enabled"`
	AIMinScore         float64  `json:"ai_min_score" yaml:"ai_min_score" validate:"gte=0,lte=1"`
	MaxCandidatesForAI int      `json:"max_candidates_for_ai" yaml:"max_candidates_for_ai" validate:"gte=0,lte=200"`
	TrustedDomains     []string `json:"trusted_domains,omitempty" yaml:"trusted_domains" validate:"dive,required"`
	Weights            Weights  `json:"weights" yaml:"weights"`
}

// Settings are the publishing settings of an agent.
type Settings struct {
	DefaultTags []string `json:"default_tags,omitempty" yaml:"default_tags" validate:"dive,required,max=50"`
}

// Tags returns the configured default tags, or the generic fallback tag.
func (s Settings) Tags() []string {
	if len(s.DefaultTags) == 0 {
		return []string{DefaultTag}
	}
	out := make([]string, len(s.DefaultTags))
	copy(out, s.DefaultTags)
	return out
}

// Agent is a named curation policy bundle plus its execution bookkeeping.
type Agent struct {
	ID               uuid.UUID        `json:"id" yaml:"id"`
	Name             string           `json:"name" yaml:"name" validate:"required,max=100"`
	Description      string           `json:"description,omitempty" yaml:"description"`
	OwnerID          *uuid.UUID       `json:"owner_id,omitempty" yaml:"owner_id"`
	Enabled          bool             `json:"enabled" yaml:"enabled"`
	ScheduleInterval ScheduleInterval `json:"schedule_interval" yaml:"schedule_interval" validate:"oneof=15_minutes hourly 2_hours 6_hours 12_hours daily"`
	TrustLevel       TrustLevel       `json:"trust_level" yaml:"trust_level" validate:"oneof=trusted review"`
	PostsPerRun      int              `json:"posts_per_run" yaml:"posts_per_run" validate:"min=1,max=50"`
	MaxDailyPosts    int              `json:"max_daily_posts" yaml:"max_daily_posts" validate:"min=1,max=200"`
	Search           SearchPolicy     `json:"search" yaml:"search"`
	Quality          QualityPolicy    `json:"quality" yaml:"quality"`
	Settings         Settings         `json:"settings" yaml:"settings"`

	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`
	NextRunAt *time.Time `json:"next_run_at,omitempty" yaml:"-"`
	RunCount  int        `json:"run_count" yaml:"-"`
	PostCount int        `json:"post_count" yaml:"-"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// NewAgent returns an agent populated with every documented default. Decoders fill
// into it so that absent fields keep their defaults.
func NewAgent() *Agent {
	return &Agent{
		ScheduleInterval: Daily,
		TrustLevel:       TrustLevelReview,
		PostsPerRun:      DefaultPostsPerRun,
		MaxDailyPosts:    DefaultMaxDailyPosts,
		Search: SearchPolicy{
			MaxAgeHours: DefaultMaxAgeHours,
		},
		Quality: QualityPolicy{
			RelevanceThreshold: DefaultRelevanceThreshold,
			AIMinScore:         DefaultAIMinScore,
			MaxCandidatesForAI: DefaultMaxCandidatesForAI,
			Weights:            DefaultWeights(),
		},
	}
}

// WithDefaults fills fields whose zero value is never valid.
func (a *Agent) WithDefaults() {
	if a.ScheduleInterval == "" {
		a.ScheduleInterval = Daily
	}
	if a.TrustLevel == "" {
		a.TrustLevel = TrustLevelReview
	}
	if a.PostsPerRun == 0 {
		a.PostsPerRun = DefaultPostsPerRun
	}
	if a.MaxDailyPosts == 0 {
		a.MaxDailyPosts = DefaultMaxDailyPosts
	}
	if a.Search.MaxAgeHours == 0 {
		a.Search.MaxAgeHours = DefaultMaxAgeHours
	}
	if a.Quality.MaxCandidatesForAI == 0 {
		a.Quality.MaxCandidatesForAI = DefaultMaxCandidatesForAI
	}
	if a.Quality.Weights.IsZero() {
		a.Quality.Weights = DefaultWeights()
	}
}

// Validate validates the agent configuration.
func (a *Agent) Validate() error {
	return validationError(validator.New().Struct(a))
}

// AutoApproves reports whether artifacts created for this agent skip moderation.
func (a *Agent) AutoApproves() bool {
	return a.TrustLevel == TrustLevelTrusted
}

// EffectivePostLimit returns how many posts this run may create given the number
// already published in the trailing day.
func (a *Agent) EffectivePostLimit(publishedToday int) int {
	return min(a.PostsPerRun, max(a.MaxDailyPosts-publishedToday, 0))
}

// Audience describes who the agent curates for, as used in model prompts.
func (a *Agent) Audience() string {
	if d := strings.TrimSpace(a.Description); d != "" {
		return d
	}
	return a.Name
}

// IsDue reports whether the agent should be picked up by a scheduler tick at now.
func (a *Agent) IsDue(now time.Time) bool {
	if !a.Enabled {
		return false
	}
	return a.NextRunAt == nil || !a.NextRunAt.After(now)
}

// AgentStats summarizes an agent's run history.
type AgentStats struct {
	TotalRuns      int     `json:"total_runs"`
	CompletedRuns  int     `json:"completed_runs"`
	FailedRuns     int     `json:"failed_runs"`
	PostsCreated   int     `json:"posts_created"`
	SuccessRate    float64 `json:"success_rate"`
	AvgPostsPerRun float64 `json:"avg_posts_per_run"`
}
