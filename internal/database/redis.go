package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 5 * time.Second
	redisOpTimeout   = 2 * time.Second
)

// ConnectRedis configures the summary cache client. An empty URL disables
// caching and returns a nil client; callers treat a nil client as a cache miss.
func ConnectRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if options.ReadTimeout == 0 {
		options.ReadTimeout = redisOpTimeout
	}
	if options.WriteTimeout == 0 {
		options.WriteTimeout = redisOpTimeout
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
