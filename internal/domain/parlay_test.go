package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stakehouse/stakehouse/internal/domain"
)

func legs(odds ...float64) []domain.ParlayLeg {
	out := make([]domain.ParlayLeg, len(odds))
	for i, o := range odds {
		out[i] = domain.ParlayLeg{
			EventID:   string(rune('a' + i)),
			OutcomeID: "o1",
			Odds:      o,
		}
	}
	return out
}

func TestComputeParlayMultiplier(t *testing.T) {
	base, bonus, final := domain.ComputeParlayMultiplier(legs(1.90, 1.90, 2.50))

	if math.Abs(base-9.025) > 1e-9 {
		t.Errorf("base: got %v, want 9.025", base)
	}
	if math.Abs(bonus-0.10) > 1e-9 {
		t.Errorf("bonus: got %v, want 0.10", bonus)
	}
	if math.Abs(final-9.9275) > 1e-9 {
		t.Errorf("final: got %v, want 9.9275", final)
	}

	// A $10 wager on this ticket pays $99.28 after cent rounding.
	if payout := domain.MulCents(1000, final); payout != 9928 {
		t.Errorf("payout: got %d, want 9928", payout)
	}
}

func TestValidateParlayLegs(t *testing.T) {
	cases := []struct {
		name string
		legs []domain.ParlayLeg
		ok   bool
	}{
		{"two legs ok", legs(1.5, 2.0), true},
		{"ten legs ok", legs(1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1), true},
		{"one leg rejected", legs(1.5), false},
		{"eleven legs rejected", legs(1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1, 1.1), false},
		{"sub-1.0 odds rejected", legs(0.9, 2.0), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := domain.ValidateParlayLegs(c.legs)
			if c.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !c.ok && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateParlayLegs_DuplicateEvent(t *testing.T) {
	dup := []domain.ParlayLeg{
		{EventID: "e1", OutcomeID: "o1", Odds: 1.5},
		{EventID: "e1", OutcomeID: "o2", Odds: 2.0},
	}
	if err := domain.ValidateParlayLegs(dup); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate event legs, got %v", err)
	}
}

func TestDeriveLegState(t *testing.T) {
	leg := domain.ParlayLeg{EventID: "e1", OutcomeID: "yes", Odds: 1.8}

	cases := []struct {
		name  string
		event domain.Event
		want  domain.LegState
	}{
		{"open event pending", domain.Event{Status: domain.EventStatusOpen}, domain.LegPending},
		{"locked event pending", domain.Event{Status: domain.EventStatusLocked}, domain.LegPending},
		{"matching winner won", domain.Event{Status: domain.EventStatusSettled, WinnerOutcomeID: "yes"}, domain.LegWon},
		{"other winner lost", domain.Event{Status: domain.EventStatusSettled, WinnerOutcomeID: "no"}, domain.LegLost},
		{"voided status voided", domain.Event{Status: domain.EventStatusVoided, WinnerOutcomeID: domain.VoidOutcomeID}, domain.LegVoided},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := domain.DeriveLegState(leg, &c.event); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestAggregateLegs(t *testing.T) {
	cases := []struct {
		name   string
		states []domain.LegState
		want   domain.WagerStatus
	}{
		{"all won", []domain.LegState{domain.LegWon, domain.LegWon}, domain.WagerStatusWon},
		{"one pending", []domain.LegState{domain.LegWon, domain.LegPending}, domain.WagerStatusPending},
		{"any lost dominates", []domain.LegState{domain.LegWon, domain.LegLost, domain.LegVoided}, domain.WagerStatusLost},
		{"voided without loss refunds", []domain.LegState{domain.LegWon, domain.LegVoided, domain.LegPending}, domain.WagerStatusVoided},
		{"all pending", []domain.LegState{domain.LegPending, domain.LegPending}, domain.WagerStatusPending},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := domain.AggregateLegs(c.states); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}
