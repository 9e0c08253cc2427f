package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/service"
	"github.com/stakehouse/stakehouse/internal/store/memory"
)

// fixture wires the full service stack against the in-memory store with the
// side channels (bus, notifier, leaderboard, locks) left nil.
type fixture struct {
	store   *memory.Store
	ledger  *service.LedgerService
	betting *service.BettingService
	parlays *service.ParlayService
	matches *service.MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	parlays := service.NewParlayService(store, nil, nil, nil, nil, logger, service.ParlayConfig{})
	return &fixture{
		store:   store,
		ledger:  service.NewLedgerService(store, nil, nil, logger, service.LedgerConfig{SignupGrantCents: 100_000}),
		betting: service.NewBettingService(store, parlays, nil, nil, nil, nil, nil, logger, service.BettingConfig{}),
		parlays: parlays,
		matches: service.NewMatchService(store, nil, nil, nil, nil, logger, service.MatchConfig{TurnTimer: time.Minute}),
	}
}

func (f *fixture) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := f.ledger.CreateUser(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", name, err)
	}
	return u
}

func (f *fixture) event(t *testing.T, title string, outcomes ...domain.Outcome) domain.Event {
	t.Helper()
	if len(outcomes) == 0 {
		outcomes = []domain.Outcome{
			{ID: "yes", Label: "Yes", Odds: 2.0},
			{ID: "no", Label: "No", Odds: 1.8},
		}
	}
	ev, err := f.betting.CreateEvent(context.Background(), title, outcomes, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateEvent(%s): %v", title, err)
	}
	return ev
}

func (f *fixture) balance(t *testing.T, userID string) domain.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %s: %v", userID, err)
	}
	return u
}

// fakeClock is a settable clock for driving turn timeouts.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// zeroRand makes symbol and first-turn draws deterministic: the creator
// always gets X and opens.
type zeroRand struct{}

func (zeroRand) IntN(int) int { return 0 }
