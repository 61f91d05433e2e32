package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the distributed locker.
type RedisConfig struct {
	Prefix string
	// TTL bounds how long a crashed holder can block a key.
	TTL time.Duration
	// Wait is the longest Lock blocks before giving up.
	Wait time.Duration
	// RetryPerSecond paces SET NX attempts while the key is held elsewhere.
	RetryPerSecond float64
}

// Redis is a lock shared by every process talking to the same server.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger
}

func NewRedis(client *redis.Client, cfg RedisConfig, logger *zerolog.Logger) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "tablebook:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.RetryPerSecond <= 0 {
		cfg.RetryPerSecond = 20
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Redis{
		client: client,
		cfg:    cfg,
		logger: l.With().Str("component", "lock_redis").Logger(),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Wait)
	defer cancel()

	redisKey := r.cfg.Prefix + key
	token := uuid.NewString()
	limiter := rate.NewLimiter(rate.Limit(r.cfg.RetryPerSecond), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
		}
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
	}

	return func() {
		// The caller's context may already be done; release on a fresh one.
		rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer rcancel()
		if err := releaseScript.Run(rctx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
