package domain

import (
	"context"
	"time"
)

// LeaderboardEntry is one row of the net-worth ranking.
type LeaderboardEntry struct {
	UserID   string
	NetWorth int64 // cents
}

// LeaderboardCache maintains the net-worth ranking (balance + locked) that
// the read layer serves. Updated after successful commits, never inside a
// transaction.
type LeaderboardCache interface {
	SetNetWorth(ctx context.Context, userID string, netWorth int64) error
	Top(ctx context.Context, n int) ([]LeaderboardEntry, error)
	Rank(ctx context.Context, userID string) (int64, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The engine uses it only as a
// best-effort single-flight guard around settlement sweeps; correctness
// always comes from the store's optimistic transactions.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for post-commit record change fan-out to the
// UI read layer and other subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
