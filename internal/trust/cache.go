package trust

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through cache for adjusted VTS values. Scoring runs
// touch the same commenter/liker populations across many videos in a window;
// caching avoids refetching the hot user rows.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. ttl bounds staleness after trust
// collaborators update a user.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func vtsKey(id int64) string {
	return "revcore:vts:" + strconv.FormatInt(id, 10)
}

// GetMany fetches cached scores; absent ids are simply omitted.
func (c *RedisCache) GetMany(ctx context.Context, ids []int64) (map[int64]float64, error) {
	if len(ids) == 0 {
		return map[int64]float64{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = vtsKey(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		out[ids[i]] = f
	}
	return out, nil
}

// SetMany stores scores with the configured TTL.
func (c *RedisCache) SetMany(ctx context.Context, scores map[int64]float64) error {
	if len(scores) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for id, v := range scores {
		pipe.Set(ctx, vtsKey(id), strconv.FormatFloat(v, 'f', -1, 64), c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
