// Package cache keeps hot AppConfig lookups in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PhilipLykov/SyslogCollectorAI-sub000/common/logging"
	"github.com/PhilipLykov/SyslogCollectorAI-sub000/events/internal/repository"
)

// KeyWindowDays is the Redis key holding the cached score display window.
const KeyWindowDays = "events:app_config:score_display_window_days"

const unsetMarker = "unset"

// WindowDaysSource is the authoritative store of the window setting.
type WindowDaysSource interface {
	ScoreDisplayWindowDays(ctx context.Context) (int, error)
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// AppConfigCache is a read-through cache in front of WindowDaysSource.
// Redis failures fall through to the source; they never fail a lookup.
type AppConfigCache struct {
	client *redis.Client
	source WindowDaysSource
	ttl    time.Duration
}

// NewAppConfigCache wraps source. A nil client disables caching.
func NewAppConfigCache(client *redis.Client, source WindowDaysSource, ttl time.Duration) *AppConfigCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AppConfigCache{client: client, source: source, ttl: ttl}
}

// IsEnabled reports whether a Redis client is attached.
func (c *AppConfigCache) IsEnabled() bool {
	return c.client != nil
}

// ScoreDisplayWindowDays implements WindowDaysSource.
func (c *AppConfigCache) ScoreDisplayWindowDays(ctx context.Context) (int, error) {
	if !c.IsEnabled() {
		return c.source.ScoreDisplayWindowDays(ctx)
	}

	cached, err := c.client.Get(ctx, KeyWindowDays).Result()
	switch {
	case err == nil:
		if cached == unsetMarker {
			return 0, repository.ErrConfigNotSet
		}
		if days, convErr := strconv.Atoi(cached); convErr == nil {
			return days, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "config cache read failed", logging.Error(err))
	}

	days, err := c.source.ScoreDisplayWindowDays(ctx)
	value := strconv.Itoa(days)
	if errors.Is(err, repository.ErrConfigNotSet) {
		value = unsetMarker
	} else if err != nil {
		return 0, err
	}

	if setErr := c.client.Set(ctx, KeyWindowDays, value, c.ttl).Err(); setErr != nil {
		slog.WarnContext(ctx, "config cache write failed", logging.Error(setErr))
	}
	return days, err
}

// Invalidate drops the cached value.
func (c *AppConfigCache) Invalidate(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	return c.client.Del(ctx, KeyWindowDays).Err()
}
