package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chainvibe/chainvibe/pkg/domain"
	"github.com/chainvibe/chainvibe/pkg/pipeline"
)

// windows accepted by the news endpoint
var timeWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// newsHandler serves ranked articles, personalized when user_id is given
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := pipeline.Request{
		UserID:   q.Get("user_id"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	}

	if windowParam := q.Get("window"); windowParam != "" {
		window, ok := timeWindows[windowParam]
		if !ok {
			RenderError(w, r, fmt.Errorf("unknown window %q, expected 1h, 24h, 7d or 30d", windowParam), http.StatusBadRequest)
			return
		}
		req.Window = window
	}

	if limitParam := q.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			RenderError(w, r, fmt.Errorf("invalid limit %q", limitParam), http.StatusBadRequest)
			return
		}
		req.Limit = limit
	}

	articles, err := s.news.News(r.Context(), req)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// activityHandler ingests one interaction event and returns the updated
// profile summary
func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request) {
	var event domain.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	profile, err := s.profiles.ApplyEvent(r.Context(), event)
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	RenderJSON(w, r, http.StatusOK, profileSummary(profile))
}

// profileHandler returns the profile summary for a user
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	profile, err := s.profiles.Get(r.Context(), userID)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, profileSummary(profile))
}

// profileResetHandler wipes a user's profile
func (s *Server) profileResetHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	if err := s.profiles.Reset(r.Context(), userID); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]string{"status": "reset", "user_id": userID})
}

// sourcesHealthHandler reports the circuit breaker state per source
func (s *Server) sourcesHealthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.sources.Health()

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"sources": health,
		"count":   len(health),
	})
}

func (s *Server) sourceEnableHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.sources.Enable(name); err != nil {
		RenderError(w, r, err, http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]string{"status": "enabled", "source": name})
}

func (s *Server) sourceDisableHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.sources.Disable(name); err != nil {
		RenderError(w, r, err, http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, map[string]string{"status": "disabled", "source": name})
}

// statusHandler returns server and pipeline status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := s.news.Status()

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      s.version,
		"time":         time.Now().UTC(),
		"articles":     status.Articles,
		"sources":      status.Sources,
		"last_refresh": status.LastRefresh,
		"refreshing":   status.Refreshing,
	})
}

// ProfileSummary is the user-facing view of a profile, preference maps
// reduced to their strongest entries
type ProfileSummary struct {
	UserID             string             `json:"user_id"`
	TopTopics          map[string]float64 `json:"top_topics"`
	TopTokens          map[string]float64 `json:"top_tokens"`
	TopProjects        map[string]float64 `json:"top_projects"`
	PreferredSources   []string           `json:"preferred_sources"`
	PreferredSentiment string             `json:"preferred_sentiment"`
	TopCategories      []string           `json:"top_categories"`
	PeakHours          []int              `json:"peak_hours"`
	EngagementRate     float64            `json:"engagement_rate"`
	SkipRate           float64            `json:"skip_rate"`
	TotalRead          int                `json:"total_read"`
	Confidence         float64            `json:"confidence"`
	DataPoints         int                `json:"data_points"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func profileSummary(p *domain.UserProfile) ProfileSummary {
	return ProfileSummary{
		UserID:             p.UserID,
		TopTopics:          positivePrefs(p.Topics),
		TopTokens:          positivePrefs(p.Tokens),
		TopProjects:        positivePrefs(p.Projects),
		PreferredSources:   p.PreferredSources(),
		PreferredSentiment: p.PreferredSentiment,
		TopCategories:      p.TopCategories(5),
		PeakHours:          p.PeakHours,
		EngagementRate:     p.EngagementRate,
		SkipRate:           p.SkipRate,
		TotalRead:          p.TotalRead,
		Confidence:         p.Confidence,
		DataPoints:         p.DataPoints,
		UpdatedAt:          p.UpdatedAt,
	}
}

func positivePrefs(prefs map[string]float64) map[string]float64 {
	res := map[string]float64{}
	for name, score := range prefs {
		if score > 0 {
			res[name] = score
		}
	}
	return res
}
