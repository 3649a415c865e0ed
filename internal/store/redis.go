package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the client shared by the mark queue and the auth rate
// limiter. Timeouts are short so a stalled Redis degrades requests
// instead of hanging them.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client for the given address.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     16,
	})
	return &Redis{Client: client}
}

// Healthy pings Redis with its own short deadline so health checks stay
// fast even when the caller's context has none.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}
