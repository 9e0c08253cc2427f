package service_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stakehouse/stakehouse/internal/domain"
	"github.com/stakehouse/stakehouse/internal/service"
)

func (f *fixture) twoLegParlay(t *testing.T, creatorID string, stake int64) (domain.Parlay, domain.Event, domain.Event) {
	t.Helper()
	ev1 := f.event(t, "game one")
	ev2 := f.event(t, "game two")
	picks := []service.ParlayPick{
		{EventID: ev1.ID, OutcomeID: "yes"},
		{EventID: ev2.ID, OutcomeID: "no"},
	}
	parlay, _, err := f.parlays.CreateParlay(context.Background(), creatorID, "double", picks, stake)
	if err != nil {
		t.Fatalf("CreateParlay: %v", err)
	}
	return parlay, ev1, ev2
}

func TestCreateParlaySnapshotsOddsAndDebits(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")

	parlay, _, _ := f.twoLegParlay(t, u.ID, 5_000)

	// 2.0 * 1.8 compounded, +5% per leg.
	wantBase := 3.6
	wantFinal := 3.6 * 1.10
	if math.Abs(parlay.BaseMultiplier-wantBase) > 1e-9 {
		t.Fatalf("base multiplier = %v, want %v", parlay.BaseMultiplier, wantBase)
	}
	if math.Abs(parlay.FinalMultiplier-wantFinal) > 1e-9 {
		t.Fatalf("final multiplier = %v, want %v", parlay.FinalMultiplier, wantFinal)
	}
	if got := f.balance(t, u.ID).Balance; got != 95_000 {
		t.Fatalf("balance after stake = %d, want 95000", got)
	}
}

func TestCreateParlayRejectsClosedLeg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	open := f.event(t, "open market")
	locked := f.event(t, "locked market")
	if _, err := f.betting.LockEvent(ctx, locked.ID); err != nil {
		t.Fatalf("LockEvent: %v", err)
	}

	picks := []service.ParlayPick{
		{EventID: open.ID, OutcomeID: "yes"},
		{EventID: locked.ID, OutcomeID: "yes"},
	}
	if _, _, err := f.parlays.CreateParlay(ctx, u.ID, "stale", picks, 1_000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if got := f.balance(t, u.ID).Balance; got != 100_000 {
		t.Fatalf("rejected parlay moved money: balance = %d", got)
	}
}

func TestCreateParlayRejectsDuplicateEvent(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "alice")
	ev := f.event(t, "game")

	picks := []service.ParlayPick{
		{EventID: ev.ID, OutcomeID: "yes"},
		{EventID: ev.ID, OutcomeID: "no"},
	}
	if _, _, err := f.parlays.CreateParlay(context.Background(), u.ID, "hedge", picks, 1_000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestParlayWinsOnlyWhenAllLegsWin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	parlay, ev1, ev2 := f.twoLegParlay(t, u.ID, 5_000)

	if _, err := f.betting.ResolveEvent(ctx, ev1.ID, "yes"); err != nil {
		t.Fatalf("resolve ev1: %v", err)
	}
	// One leg still pending: nothing settles.
	wagers, err := f.parlays.ListUserWagers(ctx, u.ID, domain.ListOpts{})
	if err != nil {
		t.Fatalf("ListUserWagers: %v", err)
	}
	if len(wagers) != 1 || wagers[0].Status != domain.WagerStatusPending {
		t.Fatalf("wagers after first leg = %+v, want one pending", wagers)
	}

	if _, err := f.betting.ResolveEvent(ctx, ev2.ID, "no"); err != nil {
		t.Fatalf("resolve ev2: %v", err)
	}
	wagers, _ = f.parlays.ListUserWagers(ctx, u.ID, domain.ListOpts{})
	if wagers[0].Status != domain.WagerStatusWon {
		t.Fatalf("wager status = %s, want won", wagers[0].Status)
	}

	payout := domain.MulCents(5_000, parlay.FinalMultiplier)
	if got := f.balance(t, u.ID).Balance; got != 95_000+payout {
		t.Fatalf("balance = %d, want %d", got, 95_000+payout)
	}
}

func TestParlayLostLegDominates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	_, ev1, _ := f.twoLegParlay(t, u.ID, 5_000)

	// First leg loses; the second is still open but the parlay is decided.
	if _, err := f.betting.ResolveEvent(ctx, ev1.ID, "no"); err != nil {
		t.Fatalf("resolve ev1: %v", err)
	}
	wagers, _ := f.parlays.ListUserWagers(ctx, u.ID, domain.ListOpts{})
	if wagers[0].Status != domain.WagerStatusLost {
		t.Fatalf("wager status = %s, want lost", wagers[0].Status)
	}
	if got := f.balance(t, u.ID).Balance; got != 95_000 {
		t.Fatalf("lost parlay paid out: balance = %d", got)
	}
}

func TestParlayVoidedLegRefundsWithPendingLegs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	_, ev1, _ := f.twoLegParlay(t, u.ID, 5_000)

	// Void one leg while the other is still open: full refund, immediately.
	if _, err := f.betting.ResolveEvent(ctx, ev1.ID, domain.VoidOutcomeID); err != nil {
		t.Fatalf("void ev1: %v", err)
	}
	wagers, _ := f.parlays.ListUserWagers(ctx, u.ID, domain.ListOpts{})
	if wagers[0].Status != domain.WagerStatusVoided {
		t.Fatalf("wager status = %s, want voided", wagers[0].Status)
	}
	if got := f.balance(t, u.ID).Balance; got != 100_000 {
		t.Fatalf("balance after void = %d, want 100000", got)
	}
}

func TestParlayVoidThenLostStaysLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	_, ev1, ev2 := f.twoLegParlay(t, u.ID, 5_000)

	// A lost leg lands first; the later void must not resurrect the wager.
	if _, err := f.betting.ResolveEvent(ctx, ev1.ID, "no"); err != nil {
		t.Fatalf("resolve ev1: %v", err)
	}
	if _, err := f.betting.ResolveEvent(ctx, ev2.ID, domain.VoidOutcomeID); err != nil {
		t.Fatalf("void ev2: %v", err)
	}
	wagers, _ := f.parlays.ListUserWagers(ctx, u.ID, domain.ListOpts{})
	if wagers[0].Status != domain.WagerStatusLost {
		t.Fatalf("wager status = %s, want lost to stick", wagers[0].Status)
	}
	if got := f.balance(t, u.ID).Balance; got != 95_000 {
		t.Fatalf("balance = %d, want 95000", got)
	}
}

func TestTailedWagersSettleIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	tailer := f.user(t, "bob")
	parlay, ev1, ev2 := f.twoLegParlay(t, creator.ID, 5_000)

	tailed, err := f.parlays.PlaceWager(ctx, tailer.ID, parlay.ID, 2_000)
	if err != nil {
		t.Fatalf("PlaceWager: %v", err)
	}
	if tailed.PotentialPayout != domain.MulCents(2_000, parlay.FinalMultiplier) {
		t.Fatalf("tailed payout = %d, want %d", tailed.PotentialPayout, domain.MulCents(2_000, parlay.FinalMultiplier))
	}

	if _, err := f.betting.ResolveEvent(ctx, ev1.ID, "yes"); err != nil {
		t.Fatalf("resolve ev1: %v", err)
	}
	if _, err := f.betting.ResolveEvent(ctx, ev2.ID, "no"); err != nil {
		t.Fatalf("resolve ev2: %v", err)
	}

	if got := f.balance(t, creator.ID).Balance; got != 95_000+domain.MulCents(5_000, parlay.FinalMultiplier) {
		t.Fatalf("creator balance = %d", got)
	}
	if got := f.balance(t, tailer.ID).Balance; got != 98_000+domain.MulCents(2_000, parlay.FinalMultiplier) {
		t.Fatalf("tailer balance = %d", got)
	}
}

func TestPlaceWagerAfterLegCloses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.user(t, "alice")
	tailer := f.user(t, "bob")
	parlay, ev1, _ := f.twoLegParlay(t, creator.ID, 5_000)

	if _, err := f.betting.LockEvent(ctx, ev1.ID); err != nil {
		t.Fatalf("LockEvent: %v", err)
	}
	if _, err := f.parlays.PlaceWager(ctx, tailer.ID, parlay.ID, 2_000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
