package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

func TestPlaceBetDebitsAndSnapshotsOdds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	bet, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 2_500)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if bet.Odds != 2.0 {
		t.Fatalf("odds = %v, want snapshot 2.0", bet.Odds)
	}
	if bet.PotentialPayout != 5_000 {
		t.Fatalf("potential payout = %d, want 5000", bet.PotentialPayout)
	}
	if got := f.balance(t, u.ID).Balance; got != 97_500 {
		t.Fatalf("balance after stake = %d, want 97500", got)
	}
}

func TestPlaceBetRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	cases := []struct {
		name    string
		event   string
		outcome string
		amount  int64
		want    error
	}{
		{"zero amount", ev.ID, "yes", 0, domain.ErrValidation},
		{"unknown outcome", ev.ID, "maybe", 1_000, domain.ErrValidation},
		{"unknown event", "nope", "yes", 1_000, domain.ErrNotFound},
		{"over balance", ev.ID, "yes", 1_000_000, domain.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.betting.PlaceBet(ctx, u.ID, tc.event, tc.outcome, tc.amount); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if got := f.balance(t, u.ID).Balance; got != 100_000 {
		t.Fatalf("rejected bets moved money: balance = %d", got)
	}
}

func TestPlaceBetCapPerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	for i := 0; i < 3; i++ {
		if _, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 1_000); err != nil {
			t.Fatalf("bet %d: %v", i+1, err)
		}
	}
	if _, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "no", 1_000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("fourth bet err = %v, want ErrValidation", err)
	}

	other := f.event(t, "other market")
	if _, err := f.betting.PlaceBet(ctx, u.ID, other.ID, "yes", 1_000); err != nil {
		t.Fatalf("cap leaked across events: %v", err)
	}
}

func TestPlaceBetOnLockedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	if _, err := f.betting.LockEvent(ctx, ev.ID); err != nil {
		t.Fatalf("LockEvent: %v", err)
	}
	if _, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 1_000); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bet on locked event err = %v, want ErrValidation", err)
	}
}

func TestResolveEventSettlesBets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := f.user(t, "alice")
	loser := f.user(t, "bob")
	ev := f.event(t, "rain tomorrow")

	winBet, err := f.betting.PlaceBet(ctx, winner.ID, ev.ID, "yes", 10_000)
	if err != nil {
		t.Fatalf("PlaceBet winner: %v", err)
	}
	if _, err := f.betting.PlaceBet(ctx, loser.ID, ev.ID, "no", 10_000); err != nil {
		t.Fatalf("PlaceBet loser: %v", err)
	}

	resolved, err := f.betting.ResolveEvent(ctx, ev.ID, "yes")
	if err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}
	if resolved.Status != domain.EventStatusSettled {
		t.Fatalf("event status = %s, want settled", resolved.Status)
	}

	// 100_000 - 10_000 stake + 20_000 payout.
	if got := f.balance(t, winner.ID).Balance; got != 110_000 {
		t.Fatalf("winner balance = %d, want 110000", got)
	}
	if got := f.balance(t, loser.ID).Balance; got != 90_000 {
		t.Fatalf("loser balance = %d, want 90000", got)
	}

	settled, err := f.betting.GetBet(ctx, winBet.ID)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if settled.Status != domain.BetStatusWon || settled.SettledAt == nil {
		t.Fatalf("bet = %+v, want status won with SettledAt set", settled)
	}
}

func TestResolveEventIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	if _, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 10_000); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := f.betting.ResolveEvent(ctx, ev.ID, "yes"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	after := f.balance(t, u.ID).Balance

	// Same winner again resumes the (already finished) sweep without paying
	// anything twice; only a conflicting winner is rejected.
	if _, err := f.betting.ResolveEvent(ctx, ev.ID, "yes"); err != nil {
		t.Fatalf("second resolve err = %v, want nil", err)
	}
	if _, err := f.betting.ResolveEvent(ctx, ev.ID, "no"); !errors.Is(err, domain.ErrAlreadySettled) {
		t.Fatalf("conflicting resolve err = %v, want ErrAlreadySettled", err)
	}
	if got := f.balance(t, u.ID).Balance; got != after {
		t.Fatalf("repeat resolve moved money: %d -> %d", after, got)
	}
}

func TestResolveEventResumesInterruptedSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	bet, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 10_000)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	// Replicate a crash between the event transition and the bet sweep: the
	// event is already settled in the store while the bet is still pending.
	stored, err := f.store.Events().GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	stored.Status = domain.EventStatusSettled
	stored.WinnerOutcomeID = "yes"
	stored.ResolutionTime = time.Now().UTC()
	if err := f.store.Events().Update(ctx, stored); err != nil {
		t.Fatalf("seed settled event: %v", err)
	}

	if _, err := f.betting.ResolveEvent(ctx, ev.ID, "yes"); err != nil {
		t.Fatalf("resumed resolve err = %v, want nil", err)
	}

	settled, err := f.betting.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if settled.Status != domain.BetStatusWon {
		t.Fatalf("bet status after resume = %s, want won", settled.Status)
	}
	if got := f.balance(t, u.ID).Balance; got != 110_000 {
		t.Fatalf("balance after resume = %d, want 110000", got)
	}
}

func TestVoidEventRefundsStakes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	bet, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "yes", 7_500)
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}

	resolved, err := f.betting.ResolveEvent(ctx, ev.ID, domain.VoidOutcomeID)
	if err != nil {
		t.Fatalf("ResolveEvent void: %v", err)
	}
	if resolved.Status != domain.EventStatusVoided {
		t.Fatalf("event status = %s, want voided", resolved.Status)
	}
	if got := f.balance(t, u.ID).Balance; got != 100_000 {
		t.Fatalf("balance after void = %d, want full refund 100000", got)
	}
	settled, _ := f.betting.GetBet(ctx, bet.ID)
	if settled.Status != domain.BetStatusVoided {
		t.Fatalf("bet status = %s, want voided", settled.Status)
	}
}

func TestResolveLockedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "alice")
	ev := f.event(t, "rain tomorrow")

	if _, err := f.betting.PlaceBet(ctx, u.ID, ev.ID, "no", 5_000); err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	if _, err := f.betting.LockEvent(ctx, ev.ID); err != nil {
		t.Fatalf("LockEvent: %v", err)
	}
	if _, err := f.betting.ResolveEvent(ctx, ev.ID, "no"); err != nil {
		t.Fatalf("resolving a locked event: %v", err)
	}
	// 100_000 - 5_000 + round(5_000 * 1.8).
	if got := f.balance(t, u.ID).Balance; got != 104_000 {
		t.Fatalf("balance = %d, want 104000", got)
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	future := time.Now().Add(time.Hour)
	two := []domain.Outcome{{ID: "a", Odds: 1.5}, {ID: "b", Odds: 2.5}}

	cases := []struct {
		name     string
		title    string
		outcomes []domain.Outcome
		deadline time.Time
	}{
		{"no title", "", two, future},
		{"one outcome", "x", two[:1], future},
		{"dup outcome ids", "x", []domain.Outcome{{ID: "a", Odds: 1.5}, {ID: "a", Odds: 2.0}}, future},
		{"reserved void id", "x", []domain.Outcome{{ID: domain.VoidOutcomeID, Odds: 1.5}, {ID: "b", Odds: 2.0}}, future},
		{"odds below 1", "x", []domain.Outcome{{ID: "a", Odds: 0.9}, {ID: "b", Odds: 2.0}}, future},
		{"past deadline", "x", two, time.Now().Add(-time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.betting.CreateEvent(ctx, tc.title, tc.outcomes, tc.deadline); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}
