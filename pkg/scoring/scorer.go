// Package scoring ranks articles for a user by blending six weighted
// factors: similarity to reading history, entity interest matches, sentiment
// alignment, source preference, recency and predicted engagement.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/chainvibe/chainvibe/pkg/config"
	"github.com/chainvibe/chainvibe/pkg/domain"
)

// per-interaction boosts applied to history entries during similarity
const (
	likedBoost = 1.2
	savedBoost = 1.3
)

// interest match contributions by entity kind
const (
	topicMatchValue   = 0.3
	tokenMatchValue   = 0.4
	projectMatchValue = 0.5
)

// Scorer computes relevance scores. Stateless and safe for concurrent use.
type Scorer struct {
	weights config.ScoringConfig
}

// NewScorer creates a scorer with the given factor weights
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{weights: cfg}
}

// Score returns a relevance score in [0,1] for the article. A nil profile
// falls back to the profile-independent default score.
func (s *Scorer) Score(article domain.Article, profile *domain.UserProfile, now time.Time) float64 {
	if profile == nil {
		return s.ScoreDefault(article, now)
	}

	w := s.weights.Weights
	total := w.ContentSimilarity*s.contentSimilarity(article, profile) +
		w.EntityMatch*s.entityMatch(article, profile) +
		w.SentimentAlignment*s.sentimentAlignment(article, profile) +
		w.SourcePreference*s.sourcePreference(article, profile) +
		w.Recency*s.Recency(article, now) +
		w.EngagementPrediction*s.engagementPrediction(article, profile, now)

	return clamp01(total)
}

// ScoreDefault rates an article without a profile: recency plus structural
// quality signals on a neutral base
func (s *Scorer) ScoreDefault(article domain.Article, now time.Time) float64 {
	score := 0.5 + s.Recency(article, now)*0.3
	if article.SourcePriority > 0 && article.SourcePriority <= 2 {
		score += 0.2
	}
	if article.ImageURL != "" {
		score += 0.1
	}
	return clamp01(score)
}

// Recency maps article age to a stepped freshness score
func (s *Scorer) Recency(article domain.Article, now time.Time) float64 {
	if article.Published.IsZero() {
		return 0.5
	}
	switch age := article.Age(now); {
	case age < time.Hour:
		return 1.0
	case age < 6*time.Hour:
		return 0.9
	case age < 24*time.Hour:
		return 0.7
	case age < 72*time.Hour:
		return 0.5
	case age < 168*time.Hour:
		return 0.3
	default:
		return 0.1
	}
}

// contentSimilarity averages word-overlap similarity between the article and
// each history entry, boosting entries the user liked or saved
func (s *Scorer) contentSimilarity(article domain.Article, profile *domain.UserProfile) float64 {
	if len(profile.ReadingHistory) == 0 {
		return 0.5
	}

	articleWords := significantWords(article.Text())
	liked := stringSet(profile.Liked)
	saved := stringSet(profile.Saved)

	var total float64
	for _, entry := range profile.ReadingHistory {
		sim := jaccard(articleWords, significantWords(entry.Title))
		switch {
		case saved[entry.ArticleID]:
			sim *= savedBoost
		case liked[entry.ArticleID]:
			sim *= likedBoost
		}
		total += sim
	}

	return math.Min(total/float64(len(profile.ReadingHistory)), 1.0)
}

// entityMatch scores how many of the user's interests the article touches,
// with tokens and projects counting more than broad topics
func (s *Scorer) entityMatch(article domain.Article, profile *domain.UserProfile) float64 {
	topics := positiveKeys(profile.Topics)
	tokens := positiveKeys(profile.Tokens)
	projects := positiveKeys(profile.Projects)

	totalInterests := len(topics) + len(tokens) + len(projects)
	if totalInterests == 0 {
		return 0.5
	}

	text := strings.ToLower(article.Text())
	entities := stringSet(article.Entities.All())

	var matchScore float64
	for _, topic := range topics {
		if strings.Contains(text, topic) || entities[topic] {
			matchScore += topicMatchValue
		}
	}
	for _, token := range tokens {
		if strings.Contains(text, token) || entities[token] {
			matchScore += tokenMatchValue
		}
	}
	for _, project := range projects {
		if strings.Contains(text, project) || entities[project] {
			matchScore += projectMatchValue
		}
	}

	return math.Min(matchScore/float64(totalInterests), 1.0)
}

// sentimentAlignment compares the article's sentiment with the user's
// preferred one on a bearish-to-bullish scale
func (s *Scorer) sentimentAlignment(article domain.Article, profile *domain.UserProfile) float64 {
	preferred := profile.PreferredSentiment
	if preferred == "" || preferred == domain.SentimentNeutral {
		return 0.5
	}
	return 1 - math.Abs(sentimentValue(preferred)-sentimentValue(article.Sentiment.Overall))
}

func (s *Scorer) sourcePreference(article domain.Article, profile *domain.UserProfile) float64 {
	preferred := profile.PreferredSources()
	if len(preferred) == 0 {
		return 0.5
	}
	for _, src := range preferred {
		if strings.EqualFold(src, article.Source) {
			return 1.0
		}
	}
	return 0.3
}

// engagementPrediction estimates how likely the user is to engage, from
// preferred article length, top categories and reading-hour habits
func (s *Scorer) engagementPrediction(article domain.Article, profile *domain.UserProfile, now time.Time) float64 {
	prediction := 0.5

	if preferredLength := averageContentLength(profile.ReadingHistory); preferredLength > 0 {
		diff := math.Abs(float64(len(article.Body()))-preferredLength) / preferredLength
		prediction += (1 - math.Min(diff, 1)) * 0.2
	}

	if topCategories := profile.TopCategories(3); len(topCategories) > 0 && len(article.Categories) > 0 {
		articleCategory := strings.ToLower(article.Categories[0])
		for _, cat := range topCategories {
			if cat == articleCategory {
				prediction += 0.3
				break
			}
		}
	}

	for _, hour := range profile.PeakHours {
		if hour == now.Hour() {
			prediction += 0.1
			break
		}
	}

	return math.Min(prediction, 1.0)
}

func sentimentValue(sentiment string) float64 {
	switch sentiment {
	case domain.SentimentBullish:
		return 1
	case domain.SentimentBearish:
		return 0
	default:
		return 0.5
	}
}

func significantWords(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

func positiveKeys(prefs map[string]float64) []string {
	var keys []string
	for key, weight := range prefs {
		if weight > 0 {
			keys = append(keys, strings.ToLower(key))
		}
	}
	return keys
}

func averageContentLength(history []domain.HistoryEntry) float64 {
	sum, n := 0, 0
	for _, entry := range history {
		if entry.ContentLength > 0 {
			sum += entry.ContentLength
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
