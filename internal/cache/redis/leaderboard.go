package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// leaderboardKey is the sorted set holding every user's net worth in cents.
const leaderboardKey = "leaderboard:networth"

// Leaderboard implements domain.LeaderboardCache on a Redis sorted set. It
// is a read-model only: the ledger is authoritative and re-publishes scores
// after every committed wallet change, so a lost update self-heals on the
// next one.
type Leaderboard struct {
	rdb *redis.Client
}

// NewLeaderboard creates a Leaderboard backed by the given Client.
func NewLeaderboard(c *Client) *Leaderboard {
	return &Leaderboard{rdb: c.Underlying()}
}

// SetNetWorth upserts a user's score.
func (l *Leaderboard) SetNetWorth(ctx context.Context, userID string, netWorth int64) error {
	err := l.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(netWorth),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: leaderboard set %s: %w", userID, err)
	}
	return nil
}

// Top returns the n richest users, highest net worth first.
func (l *Leaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := l.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top %d: %w", n, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		userID, ok := row.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:   userID,
			NetWorth: int64(row.Score),
		})
	}
	return entries, nil
}

// Rank returns a user's 1-based position, richest first. It returns
// domain.ErrNotFound for users with no score yet.
func (l *Leaderboard) Rank(ctx context.Context, userID string) (int64, error) {
	rank, err := l.rdb.ZRevRank(ctx, leaderboardKey, userID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("redis: leaderboard rank %s: %w", userID, err)
	}
	return rank + 1, nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*Leaderboard)(nil)
