package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/service"
	"github.com/stakehouse/stakehouse/internal/store/memory"
)

// stubLeaderboard records net-worth pushes and serves fixed ranks.
type stubLeaderboard struct {
	scores map[string]int64
	ranks  map[string]int64
}

func (s *stubLeaderboard) SetNetWorth(_ context.Context, userID string, netWorth int64) error {
	if s.scores == nil {
		s.scores = map[string]int64{}
	}
	s.scores[userID] = netWorth
	return nil
}

func (s *stubLeaderboard) Top(_ context.Context, _ int) ([]domain.LeaderboardEntry, error) {
	return nil, nil
}

func (s *stubLeaderboard) Rank(_ context.Context, userID string) (int64, error) {
	rank, ok := s.ranks[userID]
	if !ok {
		return 0, fmt.Errorf("rank %s: %w", userID, domain.ErrNotFound)
	}
	return rank, nil
}

func newLedgerWithCache(cache domain.LeaderboardCache) *service.LedgerService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewLedgerService(memory.New(), cache, nil, logger, service.LedgerConfig{SignupGrantCents: 100_000})
}

func TestRankFromLeaderboardCache(t *testing.T) {
	ctx := context.Background()
	cache := &stubLeaderboard{ranks: map[string]int64{}}
	ledger := newLedgerWithCache(cache)

	u, err := ledger.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got := cache.scores[u.ID]; got != 100_000 {
		t.Fatalf("cached net worth = %d, want 100000", got)
	}

	cache.ranks[u.ID] = 3
	rank, err := ledger.Rank(ctx, u.ID)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rank != 3 {
		t.Fatalf("rank = %d, want 3", rank)
	}
}

func TestRankUnrankedUser(t *testing.T) {
	ctx := context.Background()
	ledger := newLedgerWithCache(&stubLeaderboard{})

	rank, err := ledger.Rank(ctx, "nobody")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rank != 0 {
		t.Fatalf("rank = %d, want 0 for unranked user", rank)
	}
}

func TestRankWithoutCache(t *testing.T) {
	ledger := newLedgerWithCache(nil)

	rank, err := ledger.Rank(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if rank != 0 {
		t.Fatalf("rank = %d, want 0 without a cache", rank)
	}
}
