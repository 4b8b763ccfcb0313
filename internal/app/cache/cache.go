// Package cache holds the read-through cache for the public listing
// query. Earnings reads are deliberately never cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
)

const listingPrefix = "listing:"

type ListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewListingCache(addr string, ttlSeconds int) *ListingCache {
	if addr == "" || ttlSeconds <= 0 {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &ListingCache{rdb: rdb, ttl: time.Duration(ttlSeconds) * time.Second}
}

func listingKey(category string, query string, featured bool) string {
	key := listingPrefix + category + "|" + query
	if featured {
		key += "|featured"
	}
	return key
}

// Get returns the cached listing, or ok=false on miss or any Redis error.
func (c *ListingCache) Get(ctx context.Context, category string, query string, featured bool) ([]entity.Resource, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, listingKey(category, query, featured)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Logger.Err(err).Msg("listing cache get")
		}
		return nil, false
	}

	var resources []entity.Resource
	if err := json.Unmarshal(raw, &resources); err != nil {
		return nil, false
	}
	return resources, true
}

func (c *ListingCache) Set(ctx context.Context, category string, query string, featured bool, resources []entity.Resource) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(resources)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, listingKey(category, query, featured), raw, c.ttl).Err(); err != nil {
		logger.Logger.Err(err).Msg("listing cache set")
	}
}

// Invalidate drops all cached listings. Called when a resource is
// submitted or featured, both rare next to reads.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	iter := c.rdb.Scan(ctx, 0, listingPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Logger.Err(err).Msg("listing cache invalidate")
		}
	}
	if err := iter.Err(); err != nil {
		logger.Logger.Err(err).Msg("listing cache scan")
	}
}

func (c *ListingCache) Close() {
	if c == nil {
		return
	}
	c.rdb.Close()
}
