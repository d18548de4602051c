package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redirector/internal/service"
	"redirector/internal/types"
)

func TestResolver_Resolve(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	store := &fakeStore{links: []*types.LinkRecord{
		{ID: 1, ShortCode: "abc123", Alias: "launch", Destination: "https://example.com"},
		{ID: 2, ShortCode: "xyz789", Alias: "promo", Destination: "https://example.com/promo", ExpiresAt: &past},
		{ID: 3, ShortCode: "fresh1", Destination: "https://example.com/fresh", ExpiresAt: &future},
	}}
	resolver := service.NewResolver(store, nil, 0)

	t.Run("by short code", func(t *testing.T) {
		link, err := resolver.Resolve(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(1), link.ID)
		assert.Equal(t, "https://example.com", link.Destination)
	})

	t.Run("by alias", func(t *testing.T) {
		link, err := resolver.Resolve(context.Background(), "launch")
		require.NoError(t, err)
		assert.Equal(t, int64(1), link.ID)
		assert.Equal(t, "https://example.com", link.Destination)
	})

	t.Run("expired via alias", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), "promo")
		assert.ErrorIs(t, err, service.ErrExpired)
	})

	t.Run("expired by code too", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), "xyz789")
		assert.ErrorIs(t, err, service.ErrExpired)
	})

	t.Run("future expiry still resolves", func(t *testing.T) {
		link, err := resolver.Resolve(context.Background(), "fresh1")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/fresh", link.Destination)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), "nosuch")
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("match is case-sensitive", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), "ABC123")
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestResolver_CodeMatchWinsOverAliasCollision(t *testing.T) {
	// One record's alias equals another record's code. The store
	// contract resolves this in favor of the short_code match.
	store := &fakeStore{links: []*types.LinkRecord{
		{ID: 1, ShortCode: "first", Alias: "shared", Destination: "https://example.com/first"},
		{ID: 2, ShortCode: "shared", Destination: "https://example.com/second"},
	}}
	resolver := service.NewResolver(store, nil, 0)

	link, err := resolver.Resolve(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(2), link.ID)
	assert.Equal(t, "https://example.com/second", link.Destination)
}

func TestResolver_BackendFailureMapsToNotFound(t *testing.T) {
	store := &fakeStore{findErr: errors.New("connection refused")}
	resolver := service.NewResolver(store, nil, 0)

	_, err := resolver.Resolve(context.Background(), "abc123")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestResolver_Cache(t *testing.T) {
	t.Run("warms cache on miss and serves hits from it", func(t *testing.T) {
		store := &fakeStore{links: []*types.LinkRecord{
			{ID: 1, ShortCode: "abc123", Destination: "https://example.com"},
		}}
		cache := newFakeCache()
		resolver := service.NewResolver(store, cache, time.Minute)

		_, err := resolver.Resolve(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, 1, store.lookups())
		assert.Equal(t, 1, cache.sets)

		_, err = resolver.Resolve(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, 1, store.lookups(), "second resolve should hit the cache")
	})

	t.Run("cache hit still enforces expiry", func(t *testing.T) {
		past := time.Now().Add(-time.Minute)
		store := &fakeStore{}
		cache := newFakeCache()
		cache.data["gone"] = &types.LinkRecord{ID: 7, ShortCode: "gone", Destination: "https://example.com", ExpiresAt: &past}
		resolver := service.NewResolver(store, cache, time.Minute)

		_, err := resolver.Resolve(context.Background(), "gone")
		assert.ErrorIs(t, err, service.ErrExpired)
		assert.Equal(t, 0, store.lookups())
	})

	t.Run("cache error falls through to the store", func(t *testing.T) {
		store := &fakeStore{links: []*types.LinkRecord{
			{ID: 1, ShortCode: "abc123", Destination: "https://example.com"},
		}}
		cache := newFakeCache()
		cache.getErr = errors.New("broken pipe")
		resolver := service.NewResolver(store, cache, time.Minute)

		link, err := resolver.Resolve(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(1), link.ID)
		assert.Equal(t, 1, store.lookups())
	})
}
