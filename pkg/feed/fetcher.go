package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/chainvibe/chainvibe/pkg/config"
	"github.com/chainvibe/chainvibe/pkg/domain"
)

// maxPayloadSize caps how much of a feed body is read, some feeds are huge
const maxPayloadSize = 10 * 1024 * 1024

// ErrSourceUnhealthy marks a source skipped because the health monitor has it disabled
var ErrSourceUnhealthy = errors.New("source unhealthy, skipped")

//go:generate moq -out mocks/parser.go -pkg mocks -skip-ensure -fmt goimports . Parser
//go:generate moq -out mocks/monitor.go -pkg mocks -skip-ensure -fmt goimports . Monitor

// Parser converts a raw payload into canonical articles
type Parser interface {
	Parse(payload []byte, src domain.Source) ([]domain.Article, error)
}

// Monitor is the per-source circuit breaker the fetcher reports to
type Monitor interface {
	RecordSuccess(sourceName string, latency time.Duration, itemCount int)
	RecordFailure(sourceName string, err error)
	IsHealthy(sourceName string) bool
	ShouldProbe(sourceName string) bool
}

// Result is the outcome of one source's fetch task. Exactly one of Articles
// or Err is meaningful; a batch always yields one Result per source.
type Result struct {
	Source   domain.Source
	Articles []domain.Article
	Latency  time.Duration
	Err      error
}

// Fetcher fans out over the source registry with bounded concurrency. A
// slow or failing source never blocks or fails the batch: its Result
// carries the error and the rest proceed.
type Fetcher struct {
	client         *http.Client
	parser         Parser
	monitor        Monitor
	timeout        time.Duration
	maxConcurrent  int
	perSourceLimit int
	userAgent      string
}

// NewFetcher creates a fetcher reporting to the given monitor
func NewFetcher(parser Parser, monitor Monitor, cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		parser:         parser,
		monitor:        monitor,
		timeout:        cfg.Timeout,
		maxConcurrent:  cfg.MaxConcurrent,
		perSourceLimit: cfg.PerSourceLimit,
		userAgent:      cfg.UserAgent,
	}
}

// FetchAll fetches every enabled source concurrently and returns one Result
// per source, failures included. Sources the monitor has disabled are
// skipped without a request unless they are due a recovery probe.
func (f *Fetcher) FetchAll(ctx context.Context, sources []domain.Source) []Result {
	results := make([]Result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrent)

	for i, src := range sources {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, src)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors, partial failures live in results

	return results
}

// fetchOne runs the full fetch task for a single source: health gate, HTTP
// request with per-request timeout, parse, and health reporting
func (f *Fetcher) fetchOne(ctx context.Context, src domain.Source) Result {
	if !src.Enabled {
		return Result{Source: src, Err: fmt.Errorf("source %s disabled in configuration", src.Name)}
	}
	if !f.monitor.IsHealthy(src.Name) {
		if !f.monitor.ShouldProbe(src.Name) {
			lgr.Printf("[DEBUG] skipping unhealthy source %s", src.Name)
			return Result{Source: src, Err: ErrSourceUnhealthy}
		}
		lgr.Printf("[DEBUG] probing disabled source %s", src.Name)
	}

	start := time.Now()
	payload, err := f.fetch(ctx, src)
	latency := time.Since(start)
	if err != nil {
		f.monitor.RecordFailure(src.Name, err)
		lgr.Printf("[WARN] fetch failed for source %s: %v", src.Name, err)
		return Result{Source: src, Latency: latency, Err: fmt.Errorf("fetch %s: %w", src.Name, err)}
	}

	articles, err := f.parser.Parse(payload, src)
	if err != nil {
		f.monitor.RecordFailure(src.Name, err)
		lgr.Printf("[WARN] parse failed for source %s: %v", src.Name, err)
		return Result{Source: src, Latency: latency, Err: fmt.Errorf("parse %s: %w", src.Name, err)}
	}

	if f.perSourceLimit > 0 && len(articles) > f.perSourceLimit {
		articles = articles[:f.perSourceLimit]
	}

	f.monitor.RecordSuccess(src.Name, latency, len(articles))
	lgr.Printf("[DEBUG] fetched %d items from %s in %v", len(articles), src.Name, latency)
	return Result{Source: src, Articles: articles, Latency: latency}
}

// fetch retrieves the raw payload from a source endpoint
func (f *Fetcher) fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req, src.Format)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return payload, nil
}
