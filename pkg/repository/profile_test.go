package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvibe/chainvibe/pkg/domain"
	"github.com/chainvibe/chainvibe/pkg/profile"
)

func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	cfg := Config{
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Second,
	}
	repos, err := NewRepositories(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repos.Close()) })
	return repos
}

func TestProfileRepository_SaveAndLoad(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Ping(ctx))

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	p := domain.NewUserProfile("u1", now)
	p.Topics["defi"] = 2.3
	p.Sources["CoinDesk"] = 1
	p.ReadingHistory = []domain.HistoryEntry{{ArticleID: "a1", Title: "Some Story", Timestamp: now}}
	p.DataPoints = 3
	p.Confidence = 0.06
	p.UpdatedAt = now

	require.NoError(t, repos.Profile.Save(ctx, p))

	loaded, err := repos.Profile.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)
	assert.InDelta(t, 2.3, loaded.Topics["defi"], 0.001)
	assert.InDelta(t, 1.0, loaded.Sources["CoinDesk"], 0.001)
	require.Len(t, loaded.ReadingHistory, 1)
	assert.Equal(t, "a1", loaded.ReadingHistory[0].ArticleID)
	assert.Equal(t, 3, loaded.DataPoints)
}

func TestProfileRepository_LoadMissing(t *testing.T) {
	repos := setupTestRepos(t)

	_, err := repos.Profile.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestProfileRepository_Upsert(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	p := domain.NewUserProfile("u1", time.Now())
	require.NoError(t, repos.Profile.Save(ctx, p))

	p.DataPoints = 10
	p.Topics["bitcoin"] = 5
	require.NoError(t, repos.Profile.Save(ctx, p))

	loaded, err := repos.Profile.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, loaded.DataPoints, "second save replaces the document")
	assert.InDelta(t, 5.0, loaded.Topics["bitcoin"], 0.001)
}

func TestProfileRepository_Delete(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	p := domain.NewUserProfile("u1", time.Now())
	require.NoError(t, repos.Profile.Save(ctx, p))
	require.NoError(t, repos.Profile.Delete(ctx, "u1"))

	_, err := repos.Profile.Load(ctx, "u1")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	assert.NoError(t, repos.Profile.Delete(ctx, "u1"), "deleting a missing profile is not an error")
}

func TestProfileRepository_ConcurrentSaves(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.NewUserProfile("u1", time.Now())
			p.DataPoints = i
			assert.NoError(t, repos.Profile.Save(ctx, p))
		}(i)
	}
	wg.Wait()

	loaded, err := repos.Profile.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", loaded.UserID)
}
