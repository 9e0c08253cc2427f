package reconcile_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/reconcile"
	"github.com/stakehouse/stakehouse/internal/service"
	"github.com/stakehouse/stakehouse/internal/store/memory"
)

type env struct {
	store   *memory.Store
	ledger  *service.LedgerService
	betting *service.BettingService
	matches *service.MatchService
	rec     *reconcile.Reconciler
}

const grant = 100_000

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	parlays := service.NewParlayService(store, nil, nil, nil, nil, logger, service.ParlayConfig{})
	return &env{
		store:   store,
		ledger:  service.NewLedgerService(store, nil, nil, logger, service.LedgerConfig{SignupGrantCents: grant}),
		betting: service.NewBettingService(store, parlays, nil, nil, nil, nil, nil, logger, service.BettingConfig{}),
		matches: service.NewMatchService(store, nil, nil, nil, nil, logger, service.MatchConfig{TurnTimer: time.Minute}),
		rec:     reconcile.New(store, nil, logger, reconcile.Config{SignupGrantCents: grant}),
	}
}

type fixedRand struct{}

func (fixedRand) IntN(int) int { return 0 }

func TestReconcileCleanAfterFullFlows(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice, err := e.ledger.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bob, err := e.ledger.CreateUser(ctx, "bob")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// A settled event: alice wins, bob loses.
	ev, err := e.betting.CreateEvent(ctx, "derby", []domain.Outcome{
		{ID: "yes", Odds: 2.0}, {ID: "no", Odds: 1.8},
	}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if _, err := e.betting.PlaceBet(ctx, alice.ID, ev.ID, "yes", 10_000); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := e.betting.PlaceBet(ctx, bob.ID, ev.ID, "no", 4_000); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := e.betting.ResolveEvent(ctx, ev.ID, "yes"); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}

	// A finished match: alice opens, wins the single round, takes the pot.
	e.matches.WithRand(fixedRand{})
	m, err := e.matches.CreateMatch(ctx, alice.ID, 5_000, 1, "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if _, err := e.matches.JoinMatch(ctx, m.ID, bob.ID); err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	for _, mv := range []struct {
		user string
		cell int
	}{
		{alice.ID, 0}, {bob.ID, 3}, {alice.ID, 1}, {bob.ID, 4}, {alice.ID, 2},
	} {
		if _, err := e.matches.MakeMove(ctx, m.ID, mv.user, mv.cell); err != nil {
			t.Fatalf("MakeMove %d: %v", mv.cell, err)
		}
	}

	// An open match holding escrow, and an administrative transfer.
	if _, err := e.matches.CreateMatch(ctx, bob.ID, 2_000, 3, ""); err != nil {
		t.Fatalf("CreateMatch open: %v", err)
	}
	if _, err := e.ledger.Transfer(ctx, alice.ID, bob.ID, 1_500); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	report, err := e.rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got drifts %+v", report.Drifts)
	}
	if report.UsersChecked != 2 {
		t.Fatalf("users checked = %d, want 2", report.UsersChecked)
	}
	// Stakes only moved between the two wallets and the pot.
	if total := report.TotalBalance + report.TotalLocked; total != 2*grant {
		t.Fatalf("system total = %d, want %d", total, 2*grant)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	alice, err := e.ledger.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Corrupt the wallet behind the ledger's back.
	u, err := e.store.Users().GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	u.Balance += 777
	if err := e.store.Users().Update(ctx, u); err != nil {
		t.Fatalf("update user: %v", err)
	}

	report, err := e.rec.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Drifts) != 1 {
		t.Fatalf("drifts = %+v, want exactly one", report.Drifts)
	}
	d := report.Drifts[0]
	if d.UserID != alice.ID || d.Balance != grant+777 || d.ExpectedBalance != grant {
		t.Fatalf("drift = %+v", d)
	}
}
