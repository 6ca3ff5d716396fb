package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainvibe/chainvibe/pkg/config"
	"github.com/chainvibe/chainvibe/pkg/domain"
)

func defaultWeights() config.ScoringConfig {
	var cfg config.ScoringConfig
	cfg.Weights.ContentSimilarity = 0.30
	cfg.Weights.EntityMatch = 0.25
	cfg.Weights.SentimentAlignment = 0.15
	cfg.Weights.SourcePreference = 0.10
	cfg.Weights.Recency = 0.10
	cfg.Weights.EngagementPrediction = 0.10
	return cfg
}

func TestScorer_Score_InterestMatch(t *testing.T) {
	s := NewScorer(defaultWeights())
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	profile := domain.NewUserProfile("u1", now.Add(-30*24*time.Hour))
	profile.Topics = map[string]float64{"defi": 5}
	profile.Tokens = map[string]float64{"uni": 3}
	profile.Projects = map[string]float64{"uniswap": 4}
	profile.ReadingHistory = []domain.HistoryEntry{
		{ArticleID: "h1", Title: "Uniswap Governance Vote Passes", Categories: []string{"defi"}, ContentLength: 400},
		{ArticleID: "h2", Title: "Aave Launches New Lending Market", Categories: []string{"defi"}, ContentLength: 500},
	}
	profile.CategoryCounts = map[string]int{"defi": 10, "bitcoin": 1}
	profile.DataPoints = 12

	defiArticle := domain.Article{
		Title:      "Uniswap Passes Major Governance Vote on Fee Switch",
		Content:    "The Uniswap DAO approved the long-debated fee switch proposal today.",
		Categories: []string{"defi"},
		Entities:   domain.Entities{Tokens: []string{"UNI"}, Projects: []string{"Uniswap"}},
		Published:  now.Add(-2 * time.Hour),
	}
	bitcoinArticle := domain.Article{
		Title:      "Bitcoin Hashrate Reaches Record Level",
		Content:    "Mining difficulty adjusted upward as hashrate climbed again.",
		Categories: []string{"bitcoin"},
		Entities:   domain.Entities{Tokens: []string{"BTC"}},
		Published:  now.Add(-2 * time.Hour),
	}

	defiScore := s.Score(defiArticle, profile, now)
	bitcoinScore := s.Score(bitcoinArticle, profile, now)
	assert.Greater(t, defiScore, bitcoinScore, "article matching user interests outranks one that does not")
}

func TestScorer_Score_Bounds(t *testing.T) {
	s := NewScorer(defaultWeights())
	now := time.Now()

	profile := domain.NewUserProfile("u1", now)
	profile.Topics = map[string]float64{"bitcoin": 10}
	profile.PreferredSentiment = domain.SentimentBullish

	articles := []domain.Article{
		{},
		{Title: "Bitcoin bitcoin bitcoin", Published: now, Sentiment: domain.Sentiment{Overall: domain.SentimentBullish}},
		{Title: "Unrelated", Published: now.Add(-1000 * time.Hour), Sentiment: domain.Sentiment{Overall: domain.SentimentBearish}},
	}
	for _, a := range articles {
		score := s.Score(a, profile, now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)

		score = s.Score(a, nil, now)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScorer_Recency(t *testing.T) {
	s := NewScorer(defaultWeights())
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tbl := []struct {
		age  time.Duration
		want float64
	}{
		{30 * time.Minute, 1.0},
		{3 * time.Hour, 0.9},
		{12 * time.Hour, 0.7},
		{30 * time.Hour, 0.5},
		{100 * time.Hour, 0.3},
		{200 * time.Hour, 0.1},
	}
	for _, tt := range tbl {
		got := s.Recency(domain.Article{Published: now.Add(-tt.age)}, now)
		assert.InDelta(t, tt.want, got, 0.001, "age %v", tt.age)
	}

	assert.InDelta(t, 0.5, s.Recency(domain.Article{}, now), 0.001, "missing date is neutral")
}

func TestScorer_Score_AgeMonotonic(t *testing.T) {
	s := NewScorer(defaultWeights())
	now := time.Now()

	profile := domain.NewUserProfile("u1", now)
	profile.Topics = map[string]float64{"ethereum": 3}

	base := domain.Article{Title: "Ethereum Upgrade Ships", Content: "The network upgrade activated without issues."}

	var prev = 2.0
	for _, age := range []time.Duration{time.Minute, 2 * time.Hour, 10 * time.Hour, 48 * time.Hour, 5 * 24 * time.Hour} {
		a := base
		a.Published = now.Add(-age)
		score := s.Score(a, profile, now)
		assert.LessOrEqual(t, score, prev, "older copy never outranks newer one")
		prev = score
	}
}

func TestScorer_ScoreDefault(t *testing.T) {
	s := NewScorer(defaultWeights())
	now := time.Now()

	t.Run("fresh tier1 with image maxes out", func(t *testing.T) {
		a := domain.Article{Published: now.Add(-10 * time.Minute), SourcePriority: 1, ImageURL: "https://example.com/i.png"}
		assert.InDelta(t, 1.0, s.ScoreDefault(a, now), 0.001)
	})

	t.Run("stale low-tier article near baseline", func(t *testing.T) {
		a := domain.Article{Published: now.Add(-400 * time.Hour), SourcePriority: 4}
		assert.InDelta(t, 0.53, s.ScoreDefault(a, now), 0.001)
	})

	t.Run("nil profile routes to default", func(t *testing.T) {
		a := domain.Article{Published: now.Add(-10 * time.Minute), SourcePriority: 1, ImageURL: "x"}
		assert.Equal(t, s.ScoreDefault(a, now), s.Score(a, nil, now))
	})
}

func TestScorer_SentimentAlignment(t *testing.T) {
	s := NewScorer(defaultWeights())

	profile := domain.NewUserProfile("u1", time.Now())
	profile.PreferredSentiment = domain.SentimentBullish

	bullish := domain.Article{Sentiment: domain.Sentiment{Overall: domain.SentimentBullish}}
	bearish := domain.Article{Sentiment: domain.Sentiment{Overall: domain.SentimentBearish}}
	neutral := domain.Article{Sentiment: domain.Sentiment{Overall: domain.SentimentNeutral}}

	assert.InDelta(t, 1.0, s.sentimentAlignment(bullish, profile), 0.001)
	assert.InDelta(t, 0.5, s.sentimentAlignment(neutral, profile), 0.001)
	assert.InDelta(t, 0.0, s.sentimentAlignment(bearish, profile), 0.001)

	profile.PreferredSentiment = domain.SentimentNeutral
	assert.InDelta(t, 0.5, s.sentimentAlignment(bearish, profile), 0.001, "neutral preference is indifferent")
}

func TestScorer_SourcePreference(t *testing.T) {
	s := NewScorer(defaultWeights())

	profile := domain.NewUserProfile("u1", time.Now())
	assert.InDelta(t, 0.5, s.sourcePreference(domain.Article{Source: "CoinDesk"}, profile), 0.001, "no preferences is neutral")

	profile.Sources = map[string]float64{"CoinDesk": 4, "Decrypt": -2}
	assert.InDelta(t, 1.0, s.sourcePreference(domain.Article{Source: "coindesk"}, profile), 0.001, "case-insensitive match")
	assert.InDelta(t, 0.3, s.sourcePreference(domain.Article{Source: "Decrypt"}, profile), 0.001, "negative preference not preferred")
}

func TestScorer_ContentSimilarity_Boosts(t *testing.T) {
	s := NewScorer(defaultWeights())

	article := domain.Article{Title: "Uniswap Fee Switch Vote Results Announced"}

	base := domain.NewUserProfile("u1", time.Now())
	base.ReadingHistory = []domain.HistoryEntry{{ArticleID: "h1", Title: "Uniswap Fee Switch Vote Opens"}}

	plain := s.contentSimilarity(article, base)

	likedProfile := *base
	likedProfile.Liked = []string{"h1"}
	liked := s.contentSimilarity(article, &likedProfile)

	savedProfile := *base
	savedProfile.Saved = []string{"h1"}
	saved := s.contentSimilarity(article, &savedProfile)

	assert.Greater(t, liked, plain, "liked history counts more")
	assert.Greater(t, saved, liked, "saved history counts most")
}
