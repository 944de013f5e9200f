// Package redis provides caching in Redis: the recent public post
// feed and short-lived market price quotes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crypto-comrades/social-api/api"
)

// Redis provides caching in Redis. It implements api.Cache and
// market.PriceCache.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure
// the connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	postPrefix = "posts"
	maxSize    = 20

	pricePrefix = "price"
	priceTTL    = 2 * time.Minute
)

// ListPosts returns the cached posts sorted by creation time in
// descending order.
func (r *Redis) ListPosts(ctx context.Context) ([]api.Post, error) {
	vals, err := r.cli.ZRevRangeByScore(ctx, postPrefix, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().UnixNano()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}

	out := make([]api.Post, 0, len(vals))
	for _, key := range vals {
		raw, err := r.cli.Get(ctx, key).Result()
		if err == redis.Nil {
			// Index entry outlived the value; drop it.
			_ = r.cli.ZRem(ctx, postPrefix, key).Err()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get: %w", err)
		}

		post, err := unmarshalPost(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, post)
	}

	return out, nil
}

// InsertPost adds the post under posts:POST_ID and adds the key to a
// sorted set scored by creation time.
func (r *Redis) InsertPost(ctx context.Context, post api.Post) error {
	raw, err := marshalPost(post)
	if err != nil {
		return err
	}

	key := postKey(post.ID)
	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.ZAdd(ctx, postPrefix, redis.Z{
				Score:  float64(post.CreatedAt.UnixNano()),
				Member: key,
			})
			return nil
		})
		return err
	}, post.ID)
	if err != nil {
		return fmt.Errorf("redis insert post: %w", err)
	}

	// Simulate an eviction strategy by removing the oldest keys in
	// case the max cache size is exceeded.
	if err := r.evictOldest(ctx); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// RemovePost evicts one post from the cache. Mutations (edits,
// comments, reactions, deletes) evict rather than rewrite; the next
// list fills the gap from the database.
func (r *Redis) RemovePost(ctx context.Context, id string) error {
	key := postKey(id)
	if err := r.cli.ZRem(ctx, postPrefix, key).Err(); err != nil {
		return fmt.Errorf("zrem: %w", err)
	}
	if err := r.cli.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (r *Redis) evictOldest(ctx context.Context) error {
	vals, err := r.cli.ZRange(ctx, postPrefix, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}

	for _, key := range vals {
		_ = r.cli.ZRem(ctx, postPrefix, key).Err()
		_ = r.cli.Del(ctx, key).Err()
	}

	return nil
}

// GetPrices returns cached quotes for the subset of coin IDs present.
func (r *Redis) GetPrices(ctx context.Context, coinIDs []string) (map[string]float64, error) {
	if len(coinIDs) == 0 {
		return map[string]float64{}, nil
	}

	keys := make([]string, len(coinIDs))
	for i, id := range coinIDs {
		keys[i] = priceKey(id)
	}
	vals, err := r.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	out := make(map[string]float64, len(coinIDs))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		price, err := parsePrice(s)
		if err != nil {
			continue
		}
		out[coinIDs[i]] = price
	}
	return out, nil
}

// SetPrices stores quotes with a short TTL.
func (r *Redis) SetPrices(ctx context.Context, prices map[string]float64) error {
	_, err := r.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, price := range prices {
			pipe.Set(ctx, priceKey(id), formatPrice(price), priceTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set prices: %w", err)
	}
	return nil
}
