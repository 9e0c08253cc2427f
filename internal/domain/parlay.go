package domain

import (
	"fmt"
	"time"
)

// Parlay leg count limits and the per-leg bonus rate applied on top of the
// compound multiplier.
const (
	MinParlayLegs     = 2
	MaxParlayLegs     = 10
	ParlayBonusPerLeg = 0.05
)

// ParlayLeg is one event+outcome pick inside a parlay. Odds are snapshotted
// from the event at parlay creation and never re-read, so later odds edits
// cannot retroactively change an outstanding parlay's payout.
type ParlayLeg struct {
	EventID   string
	OutcomeID string
	Odds      float64
}

// Parlay is a shared multi-leg ticket. Stakes live on ParlayWager records so
// other users can tail the same ticket.
type Parlay struct {
	ID              string
	CreatorID       string
	Title           string
	Legs            []ParlayLeg
	BaseMultiplier  float64
	BonusRate       float64
	FinalMultiplier float64
	Version         int64
	CreatedAt       time.Time
}

// HasLegOn reports whether the parlay carries a leg on the given event.
func (p *Parlay) HasLegOn(eventID string) bool {
	for _, leg := range p.Legs {
		if leg.EventID == eventID {
			return true
		}
	}
	return false
}

// ComputeParlayMultiplier derives the parlay's compound multiplier from its
// legs: base = product of leg odds, bonus = 0.05 per leg beyond the first,
// final = base * (1 + bonus).
func ComputeParlayMultiplier(legs []ParlayLeg) (base, bonus, final float64) {
	base = 1.0
	for _, leg := range legs {
		base *= leg.Odds
	}
	bonus = ParlayBonusPerLeg * float64(len(legs)-1)
	final = base * (1 + bonus)
	return base, bonus, final
}

// ValidateParlayLegs checks the structural rules for a leg list: 2-10 legs,
// at most one leg per event, odds at least 1.0.
func ValidateParlayLegs(legs []ParlayLeg) error {
	if len(legs) < MinParlayLegs || len(legs) > MaxParlayLegs {
		return fmt.Errorf("%w: parlay must have %d-%d legs, got %d",
			ErrValidation, MinParlayLegs, MaxParlayLegs, len(legs))
	}
	seen := make(map[string]bool, len(legs))
	for _, leg := range legs {
		if seen[leg.EventID] {
			return fmt.Errorf("%w: more than one leg on event %s", ErrValidation, leg.EventID)
		}
		seen[leg.EventID] = true
		if leg.Odds < 1.0 {
			return fmt.Errorf("%w: leg odds %.4f below 1.0", ErrValidation, leg.Odds)
		}
	}
	return nil
}

// WagerStatus is the settlement state of a parlay wager.
type WagerStatus string

const (
	WagerStatusPending WagerStatus = "pending"
	WagerStatusWon     WagerStatus = "won"
	WagerStatusLost    WagerStatus = "lost"
	WagerStatusVoided  WagerStatus = "voided"
)

// ParlayWager is a per-user stake on a parlay (the creator's own stake or a
// tailing user's). Like single bets it debits the spendable balance directly.
type ParlayWager struct {
	ID              string
	ParlayID        string
	UserID          string
	Amount          int64 // cents, > 0
	PotentialPayout int64 // cents, Amount x FinalMultiplier rounded at placement
	Status          WagerStatus
	Version         int64
	CreatedAt       time.Time
	SettledAt       *time.Time
}

// Terminal reports whether the wager has already been settled.
func (w *ParlayWager) Terminal() bool {
	return w.Status != WagerStatusPending
}

// LegState is a leg's settlement state derived from its event.
type LegState int

const (
	LegPending LegState = iota
	LegWon
	LegLost
	LegVoided
)

func (s LegState) String() string {
	switch s {
	case LegWon:
		return "won"
	case LegLost:
		return "lost"
	case LegVoided:
		return "voided"
	default:
		return "pending"
	}
}

// DeriveLegState computes a leg's state from the current state of its event.
// A leg on an unresolved event is pending regardless of other legs.
func DeriveLegState(leg ParlayLeg, ev *Event) LegState {
	switch ev.Status {
	case EventStatusVoided:
		return LegVoided
	case EventStatusSettled:
		if ev.WinnerOutcomeID == VoidOutcomeID {
			return LegVoided
		}
		if ev.WinnerOutcomeID == leg.OutcomeID {
			return LegWon
		}
		return LegLost
	default:
		return LegPending
	}
}

// AggregateLegs folds per-leg states into the parlay-level outcome. Parlay
// status is derived, never stored: any lost leg loses the parlay outright,
// a voided leg (with none lost) voids it, and the parlay only wins once every
// leg has resolved won.
func AggregateLegs(states []LegState) WagerStatus {
	anyVoided := false
	allWon := true
	for _, s := range states {
		switch s {
		case LegLost:
			return WagerStatusLost
		case LegVoided:
			anyVoided = true
			allWon = false
		case LegPending:
			allWon = false
		}
	}
	if anyVoided {
		return WagerStatusVoided
	}
	if allWon {
		return WagerStatusWon
	}
	return WagerStatusPending
}
