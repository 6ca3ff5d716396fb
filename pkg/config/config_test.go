package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvibe/chainvibe/pkg/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 15s
fetch:
  timeout: 5s
  max_concurrent: 3
dedup:
  threshold: 0.8
sources:
  - name: CoinDesk
    url: https://www.coindesk.com/arc/outboundfeeds/rss/
    priority: 1
  - name: CryptoPanic
    url: https://cryptopanic.com/api/v1/posts/
    format: json-api
    priority: 3
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 15*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, 3, cfg.Fetch.MaxConcurrent)
		assert.InEpsilon(t, 0.8, cfg.Dedup.Threshold, 0.0001)

		sources := cfg.GetSources()
		require.Len(t, sources, 2)
		assert.Equal(t, domain.FormatRSS, sources[0].Format)
		assert.True(t, sources[0].Enabled)
		assert.Equal(t, domain.FormatJSONAPI, sources[1].Format)
		assert.Equal(t, 3, sources[1].Priority)
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
sources:
  - name: CoinDesk
    url: https://example.com/rss
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, 5, cfg.Fetch.MaxConcurrent)
		assert.Equal(t, 5*time.Minute, cfg.Fetch.RefreshInterval)
		assert.InEpsilon(t, 0.75, cfg.Dedup.Threshold, 0.0001)
		assert.InEpsilon(t, 0.30, cfg.Scoring.Weights.ContentSimilarity, 0.0001)
		assert.Equal(t, 20, cfg.Pipeline.DefaultLimit)
		assert.Equal(t, 4, cfg.Sources[0].Priority)
		assert.Equal(t, "general", cfg.Sources[0].Category)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("FEED_URL", "https://example.com/feed")
		path := writeConfig(t, `
sources:
  - name: EnvFeed
    url: ${FEED_URL}
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/feed", cfg.Sources[0].URL)
	})

	t.Run("disabled source preserved", func(t *testing.T) {
		path := writeConfig(t, `
sources:
  - name: Dead
    url: https://example.com/rss
    enabled: false
  - name: Live
    url: https://example.com/rss2
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		sources := cfg.GetSources()
		assert.False(t, sources[0].Enabled)
		assert.True(t, sources[1].Enabled)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
	})

	t.Run("no sources", func(t *testing.T) {
		path := writeConfig(t, `
server:
  listen: ":8080"
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one source")
	})

	t.Run("bad format", func(t *testing.T) {
		path := writeConfig(t, `
sources:
  - name: Bad
    url: https://example.com
    format: soap
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})

	t.Run("duplicate source names", func(t *testing.T) {
		path := writeConfig(t, `
sources:
  - name: Dup
    url: https://example.com/a
  - name: Dup
    url: https://example.com/b
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate source name")
	})

	t.Run("weights must sum to one", func(t *testing.T) {
		path := writeConfig(t, `
scoring:
  weights:
    content_similarity: 0.9
    entity_match: 0.9
    sentiment_alignment: 0.1
    source_preference: 0.1
    recency: 0.1
    engagement_prediction: 0.1
sources:
  - name: CoinDesk
    url: https://example.com/rss
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sum to 1.0")
	})

	t.Run("bad threshold", func(t *testing.T) {
		path := writeConfig(t, `
dedup:
  threshold: 1.5
sources:
  - name: CoinDesk
    url: https://example.com/rss
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "threshold")
	})
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	assert.NotNil(t, schema)
}
