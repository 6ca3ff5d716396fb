// Package server exposes the REST API: personalized news, activity
// ingestion, profile access and source health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/chainvibe/chainvibe/pkg/domain"
	"github.com/chainvibe/chainvibe/pkg/pipeline"
)

//go:generate moq -out mocks/news.go -pkg mocks -skip-ensure -fmt goimports . News
//go:generate moq -out mocks/profiles.go -pkg mocks -skip-ensure -fmt goimports . Profiles
//go:generate moq -out mocks/sources.go -pkg mocks -skip-ensure -fmt goimports . Sources

// Server represents HTTP server instance
type Server struct {
	config   ConfigProvider
	news     News
	profiles Profiles
	sources  Sources
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// News serves ranked articles and pipeline state
type News interface {
	News(ctx context.Context, req pipeline.Request) ([]domain.RankedArticle, error)
	Status() pipeline.Status
}

// Profiles handles user profile reads and interaction events
type Profiles interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	ApplyEvent(ctx context.Context, event domain.InteractionEvent) (*domain.UserProfile, error)
	Reset(ctx context.Context, userID string) error
}

// Sources exposes per-source health and manual control
type Sources interface {
	Health() map[string]SourceHealth
	Enable(name string) error
	Disable(name string) error
}

// SourceHealth is the per-source view returned by the health endpoint
type SourceHealth struct {
	Name                 string        `json:"name"`
	Healthy              bool          `json:"healthy"`
	ManuallyDisabled     bool          `json:"manually_disabled,omitempty"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	SuccessRate          float64       `json:"success_rate"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
	LastItemCount        int           `json:"last_item_count"`
	LastError            string        `json:"last_error,omitempty"`
	LastSuccess          time.Time     `json:"last_success,omitzero"`
	LastFailure          time.Time     `json:"last_failure,omitzero"`
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, news News, profiles Profiles, sources Sources, version string, debug bool) *Server {
	s := &Server{
		config:   cfg,
		news:     news,
		profiles: profiles,
		sources:  sources,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("chainvibe", "chainvibe", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("POST /activity", s.activityHandler)
		r.HandleFunc("GET /profile/{user_id}", s.profileHandler)
		r.HandleFunc("DELETE /profile/{user_id}", s.profileResetHandler)
		r.HandleFunc("GET /sources/health", s.sourcesHealthHandler)
		r.HandleFunc("POST /sources/{name}/enable", s.sourceEnableHandler)
		r.HandleFunc("POST /sources/{name}/disable", s.sourceDisableHandler)
		r.HandleFunc("GET /status", s.statusHandler)
	})
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
