package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct{ memoryCacheRepo }

func (f *failingCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func TestCachedLoadsOnceAndSkipsErrors(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	calls := 0
	load := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"A-101", "B-201"}, nil
	}

	first, hit, err := Cached(context.Background(), cache, "rooms", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := Cached(context.Background(), cache, "rooms", 0, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, _, err = Cached(context.Background(), cache, "broken", 0, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.NotContains(t, repo.data, "broken")
}

func TestCachedFailsOpen(t *testing.T) {
	calls := 0
	load := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	disabled := NewCacheService(newMemoryCache(), nil, time.Minute, nil, false)
	v, hit, err := Cached(context.Background(), disabled, "k", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)

	broken := NewCacheService(&failingCacheRepo{memoryCacheRepo: *newMemoryCache()}, nil, time.Minute, nil, true)
	v, hit, err = Cached(context.Background(), broken, "k", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)

	var nilCache *CacheService
	_, hit, err = Cached(context.Background(), nilCache, "k", 0, load)
	require.NoError(t, err)
	assert.False(t, hit)
}
