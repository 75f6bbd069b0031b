package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Aside implements the cache-aside read pattern: try the cache, otherwise
// run load (which must fill dest) and write the result back with the given
// TTL. Cache failures never fail the read; the loader result wins.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() error) error {
	if client != nil {
		raw, err := client.Get(ctx, key).Bytes()
		if err == nil {
			if uerr := json.Unmarshal(raw, dest); uerr == nil {
				return nil
			}
			// Corrupt entry; drop it and fall through to the loader.
			client.Del(ctx, key)
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("cache read error for %s: %v", key, err)
		}
	}

	if err := load(); err != nil {
		return err
	}

	if client != nil {
		if raw, err := json.Marshal(dest); err == nil {
			if serr := client.Set(ctx, key, raw, ttl).Err(); serr != nil {
				log.Printf("cache write error for %s: %v", key, serr)
			}
		}
	}
	return nil
}
