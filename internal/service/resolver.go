package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"redirector/internal/types"
)

var (
	// ErrNotFound covers both a genuinely unknown code and a failed
	// lookup backend; clients must not be able to tell them apart.
	ErrNotFound = errors.New("link not found")
	// ErrExpired marks a record whose expiration has passed.
	ErrExpired = errors.New("link expired")
)

// LinkStore is the contract the core needs from durable link storage.
// The store guarantees uniqueness of a value across the short_code and
// custom_alias columns, so a lookup matches at most one record.
type LinkStore interface {
	FindLinkByCodeOrAlias(ctx context.Context, code string) (*types.LinkRecord, error)
	IncrementClicks(ctx context.Context, linkID int64) error
}

// LinkCache is an optional look-aside cache in front of the store.
// A miss surfaces as redis.Nil.
type LinkCache interface {
	Get(ctx context.Context, code string) (*types.LinkRecord, error)
	Set(ctx context.Context, code string, link *types.LinkRecord, expiration time.Duration) error
}

// Resolver maps a requested code or alias to its link record. This is
// the only stage the HTTP response waits on.
type Resolver struct {
	store    LinkStore
	cache    LinkCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewResolver(store LinkStore, cache LinkCache, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Resolve returns the record for a code or alias. Expiry is checked on
// every call, including cache hits, so a stale cache never serves an
// expired link. Matching is exact and case-sensitive.
func (r *Resolver) Resolve(ctx context.Context, code string) (*types.LinkRecord, error) {
	link, err := r.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.ExpiresAt != nil && link.ExpiresAt.Before(r.now()) {
		return nil, ErrExpired
	}
	return link, nil
}

func (r *Resolver) lookup(ctx context.Context, code string) (*types.LinkRecord, error) {
	if r.cache != nil {
		link, err := r.cache.Get(ctx, code)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache error", "error", err)
		}
	}

	link, err := r.store.FindLinkByCodeOrAlias(ctx, code)
	if err != nil {
		// Absence and backend failure map to the same outcome for the
		// client, but are logged apart for operability.
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("unknown code", "code", code)
		} else {
			slog.Error("link lookup failed", "code", code, "error", err)
		}
		return nil, ErrNotFound
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, code, link, r.cacheTTL); err != nil {
			slog.Warn("failed to warm up cache", "error", err)
		}
	}
	return link, nil
}
