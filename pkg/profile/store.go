// Package profile maintains per-user behavioral profiles, learning
// preferences from interaction events and deriving engagement statistics.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

//go:generate moq --out mocks/repository.go --pkg mocks --with-resets --skip-ensure . Repository

// Repository persists profiles
type Repository interface {
	Load(ctx context.Context, userID string) (*domain.UserProfile, error)
	Save(ctx context.Context, profile *domain.UserProfile) error
	Delete(ctx context.Context, userID string) error
}

// ErrNotFound is returned by repositories when a user has no stored profile
var ErrNotFound = errors.New("profile not found")

// learning weights per interaction type
const (
	likeWeight = 1.0
	saveWeight = 1.3
	skipWeight = -0.5
)

const (
	historyLimit     = 100
	readListLimit    = 500
	fullConfidenceAt = 50
	peakHourCount    = 3
)

// Store serializes profile updates per user and keeps the repository copy
// current. Events for different users proceed concurrently; events for the
// same user apply in arrival order.
type Store struct {
	repo Repository
	now  func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option modifies store behavior
type Option func(*Store)

// WithClock replaces the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a profile store backed by the given repository
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		now:   time.Now,
		locks: map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the user's profile, creating an empty one on first access.
// The fresh profile is not persisted until the first event arrives, so
// repeated gets for an unknown user are free.
func (s *Store) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	return s.loadOrCreate(ctx, userID)
}

// ApplyEvent folds a single interaction into the user's profile and persists
// the result. Returns the updated profile.
func (s *Store) ApplyEvent(ctx context.Context, event domain.InteractionEvent) (*domain.UserProfile, error) {
	if event.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if event.ArticleID == "" {
		return nil, fmt.Errorf("article id is required")
	}
	if !event.Type.Valid() {
		return nil, fmt.Errorf("unknown interaction type %q", event.Type)
	}

	lock := s.userLock(event.UserID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.loadOrCreate(ctx, event.UserID)
	if err != nil {
		return nil, err
	}

	when := event.Timestamp
	if when.IsZero() {
		when = s.now()
	}

	switch event.Type {
	case domain.InteractionRead:
		s.recordRead(profile, event, when)
	case domain.InteractionLike:
		if appendUnique(&profile.Liked, event.ArticleID) {
			learn(profile, event.Article, likeWeight, true)
		}
	case domain.InteractionSave:
		if appendUnique(&profile.Saved, event.ArticleID) {
			learn(profile, event.Article, saveWeight, true)
		}
	case domain.InteractionShare:
		if appendUnique(&profile.Shared, event.ArticleID) {
			learn(profile, event.Article, likeWeight, true)
		}
	case domain.InteractionSkip:
		if appendUnique(&profile.Skipped, event.ArticleID) {
			learn(profile, event.Article, skipWeight, false)
		}
	}

	recalculate(profile)
	profile.DataPoints++
	profile.Confidence = min(float64(profile.DataPoints)/fullConfidenceAt, 1.0)
	profile.UpdatedAt = when

	if err := s.repo.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile for %s: %w", event.UserID, err)
	}

	lgr.Printf("[DEBUG] applied %s event for user %s, %d data points", event.Type, event.UserID, profile.DataPoints)
	return profile, nil
}

// Reset wipes the user's accumulated profile. The next event starts from a
// clean slate.
func (s *Store) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("reset profile for %s: %w", userID, err)
	}
	lgr.Printf("[INFO] profile reset for user %s", userID)
	return nil
}

func (s *Store) loadOrCreate(ctx context.Context, userID string) (*domain.UserProfile, error) {
	profile, err := s.repo.Load(ctx, userID)
	switch {
	case err == nil:
		return profile, nil
	case errors.Is(err, ErrNotFound):
		return domain.NewUserProfile(userID, s.now()), nil
	default:
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// recordRead appends to the bounded reading history and updates counters
func (s *Store) recordRead(profile *domain.UserProfile, event domain.InteractionEvent, when time.Time) {
	entry := domain.HistoryEntry{
		ArticleID:   event.ArticleID,
		ReadingTime: event.Duration,
		Timestamp:   when,
	}
	if event.Article != nil {
		entry.Title = event.Article.Title
		entry.Source = event.Article.Source
		entry.Categories = event.Article.Categories
		entry.Tags = event.Article.Tags
		entry.ContentLength = len(event.Article.Body())
	}

	profile.ReadingHistory = append([]domain.HistoryEntry{entry}, profile.ReadingHistory...)
	if len(profile.ReadingHistory) > historyLimit {
		profile.ReadingHistory = profile.ReadingHistory[:historyLimit]
	}

	profile.TotalRead++
	profile.TotalReadingTime += event.Duration
	profile.ReadsByHour[when.Hour()]++

	if event.Article != nil {
		for _, cat := range event.Article.Categories {
			profile.CategoryCounts[cat]++
		}
	}

	if appendUnique(&profile.Read, event.ArticleID) {
		if len(profile.Read) > readListLimit {
			profile.Read = profile.Read[len(profile.Read)-readListLimit:]
		}
	}
}

// learn adjusts preference scores from the article the user acted on.
// Sentiment preference only moves on positive signals.
func learn(profile *domain.UserProfile, article *domain.Article, weight float64, positive bool) {
	if article == nil {
		return
	}

	for _, cat := range article.Categories {
		profile.Topics[cat] += weight
	}
	if article.Source != "" {
		profile.Sources[article.Source] += weight
	}
	for _, token := range article.Entities.Tokens {
		profile.Tokens[token] += weight
	}
	for _, project := range article.Entities.Projects {
		profile.Projects[project] += weight
	}

	if positive && article.Sentiment.Overall != "" {
		profile.SentimentHistory[article.Sentiment.Overall]++
		profile.PreferredSentiment = dominantSentiment(profile.SentimentHistory)
	}
}

// recalculate refreshes the derived behavioral statistics
func recalculate(profile *domain.UserProfile) {
	interactions := len(profile.Liked) + len(profile.Saved) + len(profile.Shared)
	if read := len(profile.Read); read > 0 {
		profile.EngagementRate = float64(interactions) / float64(read)
	} else {
		profile.EngagementRate = 0
	}

	shown := len(profile.Read) + len(profile.Skipped)
	if shown > 0 {
		profile.SkipRate = float64(len(profile.Skipped)) / float64(shown)
	} else {
		profile.SkipRate = 0
	}

	profile.PeakHours = peakHours(profile.ReadsByHour, peakHourCount)
}

// peakHours returns up to n hours by read count, ties broken by hour
func peakHours(byHour map[int]int, n int) []int {
	type kv struct{ hour, count int }
	pairs := make([]kv, 0, len(byHour))
	for h, c := range byHour {
		pairs = append(pairs, kv{h, c})
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].count > pairs[i].count || (pairs[j].count == pairs[i].count && pairs[j].hour < pairs[i].hour) {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	hours := make([]int, 0, n)
	for _, p := range pairs[:n] {
		hours = append(hours, p.hour)
	}
	return hours
}

// dominantSentiment picks the most recorded sentiment, neutral wins ties
func dominantSentiment(history map[string]int) string {
	best, bestCount := domain.SentimentNeutral, history[domain.SentimentNeutral]
	for _, sentiment := range []string{domain.SentimentBullish, domain.SentimentBearish} {
		if count := history[sentiment]; count > bestCount {
			best, bestCount = sentiment, count
		}
	}
	return best
}

// appendUnique adds the value if absent, reporting whether it was added
func appendUnique(list *[]string, value string) bool {
	for _, v := range *list {
		if v == value {
			return false
		}
	}
	*list = append(*list, value)
	return true
}
