package service_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"redirector/internal/types"
)

type fakeStore struct {
	mu         sync.Mutex
	links      []*types.LinkRecord
	findErr    error
	incErr     error
	findCalls  int
	increments []int64
}

func (f *fakeStore) FindLinkByCodeOrAlias(_ context.Context, code string) (*types.LinkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	// Mirrors the store contract: a short_code match wins over an
	// alias match, and only one row is ever returned.
	for _, l := range f.links {
		if l.ShortCode == code {
			cp := *l
			return &cp, nil
		}
	}
	for _, l := range f.links {
		if l.Alias != "" && l.Alias == code {
			cp := *l
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) IncrementClicks(_ context.Context, linkID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return f.incErr
	}
	f.increments = append(f.increments, linkID)
	return nil
}

func (f *fakeStore) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findCalls
}

func (f *fakeStore) incremented() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.increments...)
}

type fakeCache struct {
	mu     sync.Mutex
	data   map[string]*types.LinkRecord
	getErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]*types.LinkRecord)}
}

func (f *fakeCache) Get(_ context.Context, code string) (*types.LinkRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if link, ok := f.data[code]; ok {
		cp := *link
		return &cp, nil
	}
	return nil, redis.Nil
}

func (f *fakeCache) Set(_ context.Context, code string, link *types.LinkRecord, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *link
	f.data[code] = &cp
	f.sets++
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []types.ClickEvent
}

func (f *fakeSink) PushClick(ev types.ClickEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) all() []types.ClickEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ClickEvent(nil), f.events...)
}
