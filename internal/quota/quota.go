package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blablabla-ai/blablabla/internal/analysis"
)

const (
	// Window is the rolling interval the per-user limit applies to.
	Window = time.Hour

	// cacheTTL bounds how stale a cached count may be. The limit is a soft
	// one: a burst inside the TTL can briefly overshoot.
	cacheTTL = time.Minute
)

// History supplies recording counts for the rolling window.
type History interface {
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	OldestSince(ctx context.Context, userID uuid.UUID, since time.Time) (time.Time, error)
}

// CountCache is an optional read-through cache in front of History.
type CountCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Limiter enforces the per-user analyses-per-hour quota by counting the
// user's recent history. It is read-then-compare, not a reservation: two
// concurrent requests at the boundary may both pass.
type Limiter struct {
	history History
	cache   CountCache // nil disables caching
	limit   int
}

func NewLimiter(history History, cache CountCache, limit int) *Limiter {
	return &Limiter{history: history, cache: cache, limit: limit}
}

// Check returns nil when the user is under quota, or a typed
// QuotaExceededError carrying the wait until the oldest window entry ages
// out. A limit of zero or below disables the quota.
func (l *Limiter) Check(ctx context.Context, userID uuid.UUID) error {
	if l.limit <= 0 {
		return nil
	}

	since := time.Now().Add(-Window)
	count, err := l.count(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("quota check: %w", err)
	}
	if count < l.limit {
		return nil
	}

	retryAfter := Window
	if oldest, err := l.history.OldestSince(ctx, userID, since); err == nil {
		if wait := time.Until(oldest.Add(Window)); wait > 0 {
			retryAfter = wait
		} else {
			retryAfter = time.Second
		}
	}
	return &analysis.QuotaExceededError{Limit: l.limit, RetryAfter: retryAfter}
}

// Invalidate drops the user's cached count so the next Check reflects a
// recording persisted inside the cache TTL. Best effort; a failed delete
// just leaves the usual staleness window.
func (l *Limiter) Invalidate(ctx context.Context, userID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, "quota:"+userID.String()); err != nil {
		slog.Warn("quota count cache invalidate failed", "user_id", userID, "error", err)
	}
}

func (l *Limiter) count(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	key := "quota:" + userID.String()

	if l.cache != nil {
		var cached int
		if err := l.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	count, err := l.history.CountSince(ctx, userID, since)
	if err != nil {
		return 0, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, count, cacheTTL); err != nil {
			slog.Warn("quota count cache write failed", "user_id", userID, "error", err)
		}
	}
	return count, nil
}
