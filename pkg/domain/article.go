package domain

import (
	"strings"
	"time"
)

// sentiment classes
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Sentiment is the keyword-derived tone of an article
type Sentiment struct {
	Overall    string  `json:"overall"`
	Confidence float64 `json:"confidence"`
	Bullish    int     `json:"bullish"`
	Bearish    int     `json:"bearish"`
	Neutral    int     `json:"neutral"`
}

// Entities holds named entities extracted from article text, deduplicated
// per category
type Entities struct {
	Tokens    []string `json:"tokens,omitempty"`
	Projects  []string `json:"projects,omitempty"`
	Protocols []string `json:"protocols,omitempty"`
	People    []string `json:"people,omitempty"`
}

// All returns every extracted entity, lowercased, across categories
func (e Entities) All() []string {
	all := make([]string, 0, len(e.Tokens)+len(e.Projects)+len(e.Protocols)+len(e.People))
	for _, group := range [][]string{e.Tokens, e.Projects, e.Protocols, e.People} {
		for _, v := range group {
			all = append(all, strings.ToLower(v))
		}
	}
	return all
}

// Article is the canonical unit every parser must produce regardless of the
// input format. ID is stable per source+guid before deduplication; only the
// deduplicated batch guarantees uniqueness. Relevance is user-specific and
// never stored on the shared object (see RankedArticle).
type Article struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Source         string    `json:"source"`
	SourcePriority int       `json:"source_priority"`
	Published      time.Time `json:"published_at"`
	Summary        string    `json:"summary,omitempty"`
	Content        string    `json:"content,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	Author         string    `json:"author,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Categories     []string  `json:"categories,omitempty"`

	// set by the enricher
	Entities     Entities  `json:"entities"`
	Sentiment    Sentiment `json:"sentiment"`
	QualityScore float64   `json:"quality_score"`
	Breaking     bool      `json:"is_breaking"`

	// set by the deduplicator on cluster representatives
	DuplicateSources []string `json:"duplicate_sources,omitempty"`
	DuplicateCount   int      `json:"duplicate_count,omitempty"`
}

// Body returns the best available long-form text: content, falling back to
// the raw summary
func (a *Article) Body() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Summary
}

// Text returns title and body joined, the form all lexical analysis runs on
func (a *Article) Text() string {
	return a.Title + " " + a.Body()
}

// Age returns how long ago the article was published relative to now
func (a *Article) Age(now time.Time) time.Duration {
	return now.Sub(a.Published)
}

// RankedArticle pairs an article with its per-user relevance score
type RankedArticle struct {
	Article
	Relevance float64 `json:"relevance_score"`
}
