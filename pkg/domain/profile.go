package domain

import (
	"time"
)

// InteractionType is the kind of user action on an article
type InteractionType string

// interaction types accepted by the profile store
const (
	InteractionRead  InteractionType = "read"
	InteractionLike  InteractionType = "like"
	InteractionSave  InteractionType = "save"
	InteractionShare InteractionType = "share"
	InteractionSkip  InteractionType = "skip"
)

// Valid reports whether the type is one the profile store accepts
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionRead, InteractionLike, InteractionSave, InteractionShare, InteractionSkip:
		return true
	}
	return false
}

// InteractionEvent is a single user action, produced by the activity
// endpoint and consumed only by the profile store. Article carries the
// enriched snapshot the action was taken on; it may be nil when the
// client reports only an id.
type InteractionEvent struct {
	UserID    string          `json:"user_id"`
	Type      InteractionType `json:"type"`
	ArticleID string          `json:"article_id"`
	Article   *Article        `json:"article,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryEntry is one reading-history record, most-recent-first in the
// profile's bounded buffer
type HistoryEntry struct {
	ArticleID     string        `json:"article_id"`
	Title         string        `json:"title"`
	Source        string        `json:"source"`
	Categories    []string      `json:"categories,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	ContentLength int           `json:"content_length"`
	ReadingTime   time.Duration `json:"reading_time,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// UserProfile is the accumulated behavioral state for one user. Preference
// map scores are adjusted monotonically per event (positive for
// like/save/share, negative for skip) and never reset except by deleting
// the profile. The whole shape round-trips through JSON for persistence.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReadingHistory []HistoryEntry `json:"reading_history"`

	Liked   []string `json:"liked_articles"`
	Saved   []string `json:"saved_articles"`
	Shared  []string `json:"shared_articles"`
	Read    []string `json:"read_articles"`
	Skipped []string `json:"skipped_articles"`

	// weighted preference maps, name -> score
	Topics   map[string]float64 `json:"topics"`
	Tokens   map[string]float64 `json:"tokens"`
	Projects map[string]float64 `json:"projects"`
	Sources  map[string]float64 `json:"sources"`

	PreferredSentiment string         `json:"preferred_sentiment"`
	SentimentHistory   map[string]int `json:"sentiment_history"`

	ReadsByHour    map[int]int    `json:"reads_by_hour"`
	CategoryCounts map[string]int `json:"category_counts"`

	TotalRead        int           `json:"total_read"`
	TotalReadingTime time.Duration `json:"total_reading_time"`

	// derived after every event
	EngagementRate float64 `json:"engagement_rate"`
	SkipRate       float64 `json:"skip_rate"`
	PeakHours      []int   `json:"peak_hours"`
	Confidence     float64 `json:"confidence"`
	DataPoints     int     `json:"data_points"`
}

// NewUserProfile creates an empty profile for the given user
func NewUserProfile(userID string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:             userID,
		CreatedAt:          now,
		UpdatedAt:          now,
		ReadingHistory:     []HistoryEntry{},
		Liked:              []string{},
		Saved:              []string{},
		Shared:             []string{},
		Read:               []string{},
		Skipped:            []string{},
		Topics:             map[string]float64{},
		Tokens:             map[string]float64{},
		Projects:           map[string]float64{},
		Sources:            map[string]float64{},
		PreferredSentiment: SentimentNeutral,
		SentimentHistory:   map[string]int{},
		ReadsByHour:        map[int]int{},
		CategoryCounts:     map[string]int{},
	}
}

// PreferredSources returns source names with a positive preference score
func (p *UserProfile) PreferredSources() []string {
	res := make([]string, 0, len(p.Sources))
	for name, score := range p.Sources {
		if score > 0 {
			res = append(res, name)
		}
	}
	return res
}

// TopCategories returns up to n categories by read count, highest first
func (p *UserProfile) TopCategories(n int) []string {
	return topKeys(p.CategoryCounts, n)
}

// topKeys returns up to n map keys sorted by descending count, ties broken
// by key for determinism
func topKeys(m map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	pairs := make([]kv, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, kv{k, v})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].v > pairs[i].v || (pairs[j].v == pairs[i].v && pairs[j].k < pairs[i].k) {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	res := make([]string, 0, n)
	for _, p := range pairs[:n] {
		res = append(res, p.k)
	}
	return res
}
