package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"redirector/internal/types"
)

// Cache is a look-aside cache of resolved link records, keyed by the
// requested code or alias. A miss surfaces as redis.Nil.
type Cache struct {
	rdb *redis.Client
}

func ConnectRedis(addr, password string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

func (c *Cache) Get(ctx context.Context, code string) (*types.LinkRecord, error) {
	raw, err := c.rdb.Get(ctx, code).Bytes()
	if err != nil {
		return nil, err
	}
	var link types.LinkRecord
	if err := json.Unmarshal(raw, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Cache) Set(ctx context.Context, code string, link *types.LinkRecord, expiration time.Duration) error {
	raw, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, code, raw, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, code).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
