package redisstore

import (
	"context"
	"fmt"
	"time"

	softdelete "github.com/goliatone/go-auth-softdelete"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRateLimitPrefix = "softdelete:restore"
	DefaultRateLimitWindow = 15 * time.Minute
	DefaultRateLimitMax    = 5
)

// SlidingWindowConfig configures the restore rate limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
	Window    time.Duration
	Max       int
	// ByIP also limits attempts per client IP when set.
	ByIP bool
}

func (c SlidingWindowConfig) withDefaults() SlidingWindowConfig {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultRateLimitPrefix
	}
	if c.Window <= 0 {
		c.Window = DefaultRateLimitWindow
	}
	if c.Max <= 0 {
		c.Max = DefaultRateLimitMax
	}
	return c
}

// RateLimiter counts restore attempts in Redis sorted sets keyed by the
// hashed email, so raw emails never reach Redis.
type RateLimiter struct {
	client redis.UniversalClient
	cfg    SlidingWindowConfig
	now    func() time.Time
}

// NewRateLimiter builds a sliding window RateLimiter.
func NewRateLimiter(client redis.UniversalClient, cfg SlidingWindowConfig) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg.withDefaults(), now: time.Now}
}

// WithClock overrides the limiter clock.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		r.now = now
	}
	return r
}

// Allow implements softdelete.RestoreRateLimiter. Denied attempts are not
// recorded so a blocked caller does not extend its own window.
func (r *RateLimiter) Allow(ctx context.Context, req softdelete.RateLimitRequest) (softdelete.RateLimitDecision, error) {
	now := r.now()

	keys := []string{r.key("email", softdelete.HashIdentifier(req.Email))}
	if r.cfg.ByIP && req.IP != "" {
		keys = append(keys, r.key("ip", req.IP))
	}

	for _, key := range keys {
		count, err := r.count(ctx, key, now)
		if err != nil {
			return softdelete.RateLimitDecision{}, err
		}
		if count >= r.cfg.Max {
			return softdelete.RateLimitDecision{
				Allowed: false,
				Message: fmt.Sprintf("too many restore attempts, retry in %s", r.cfg.Window),
			}, nil
		}
	}

	for _, key := range keys {
		if err := r.record(ctx, key, now); err != nil {
			return softdelete.RateLimitDecision{}, err
		}
	}
	return softdelete.RateLimitDecision{Allowed: true}, nil
}

// Reset clears the attempts recorded for email.
func (r *RateLimiter) Reset(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.key("email", softdelete.HashIdentifier(email))).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "redis del")
	}
	return nil
}

func (r *RateLimiter) count(ctx context.Context, key string, now time.Time) (int, error) {
	threshold := fmt.Sprintf("%d", now.Add(-r.cfg.Window).UnixMilli())
	if err := r.client.ZRemRangeByScore(ctx, key, "-inf", "("+threshold).Err(); err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "redis zremrangebyscore")
	}

	count, err := r.client.ZCount(ctx, key, threshold, fmt.Sprintf("%d", now.UnixMilli())).Result()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryExternal, "redis zcount")
	}
	return int(count), nil
}

func (r *RateLimiter) record(ctx context.Context, key string, at time.Time) error {
	member := redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: fmt.Sprintf("%d:%s", at.UnixNano(), uuid.NewString()),
	}
	if err := r.client.ZAdd(ctx, key, member).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "redis zadd")
	}
	if err := r.client.Expire(ctx, key, r.cfg.Window).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "redis expire")
	}
	return nil
}

func (r *RateLimiter) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.cfg.KeyPrefix, kind, id)
}

var _ softdelete.RestoreRateLimiter = (*RateLimiter)(nil)
var _ softdelete.RestoreRateLimitResetter = (*RateLimiter)(nil)
