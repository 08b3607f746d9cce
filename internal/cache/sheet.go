package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeSheetKey = "pricing:active-sheet"

// Sheet caches the body of the active ground-rate sheet in Redis so the quote
// path does not read Postgres for every calculation. All methods are nil-safe:
// a missing client degrades to a cache miss.
type Sheet struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSheet constructs a sheet cache with the provided TTL.
func NewSheet(client *redis.Client, ttl time.Duration) *Sheet {
	return &Sheet{client: client, ttl: ttl}
}

// Get returns the cached sheet body and whether the key existed.
func (c *Sheet) Get(ctx context.Context) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}
	body, err := c.client.Get(ctx, activeSheetKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return body, true, nil
}

// Set stores the sheet body with the configured TTL.
func (c *Sheet) Set(ctx context.Context, csvText string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, activeSheetKey, csvText, c.ttl).Err()
}

// Invalidate drops the cached sheet, forcing the next quote to re-read the
// active version. Called when an admin activates a different version.
func (c *Sheet) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, activeSheetKey).Err()
}
