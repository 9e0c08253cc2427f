package domain

import "time"

// EventStatus represents the lifecycle state of a prediction-market event.
// Transitions only move forward: open -> (locked) -> settled | voided.
type EventStatus string

const (
	EventStatusOpen    EventStatus = "open"
	EventStatusLocked  EventStatus = "locked"
	EventStatusSettled EventStatus = "settled"
	EventStatusVoided  EventStatus = "voided"
)

// VoidOutcomeID is the sentinel winner ID meaning the event was voided and
// all pending bets are refunded.
const VoidOutcomeID = "void"

// Outcome is one of the possible results of an event, with the odds offered
// at the time of display. Odds drift over an event's lifetime; bets snapshot
// them at placement.
type Outcome struct {
	ID    string
	Label string
	Odds  float64 // decimal odds, >= 1.0
}

// Event is a prediction-market event created by an admin authority.
type Event struct {
	ID              string
	Title           string
	Status          EventStatus
	Outcomes        []Outcome
	WinnerOutcomeID string // set on settlement; VoidOutcomeID when voided
	Deadline        time.Time
	ResolutionTime  time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Outcome returns the outcome with the given ID, or false when the event has
// no such outcome.
func (e *Event) Outcome(id string) (Outcome, bool) {
	for _, o := range e.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// AcceptsBets reports whether a bet can still be placed on the event.
func (e *Event) AcceptsBets(now time.Time) bool {
	return e.Status == EventStatusOpen && now.Before(e.Deadline)
}

// Resolvable reports whether the event can still be settled or voided.
// Settled and voided events are terminal.
func (e *Event) Resolvable() bool {
	return e.Status == EventStatusOpen || e.Status == EventStatusLocked
}

// BetStatus is the settlement state of a single bet. A bet transitions out of
// pending exactly once, driven by the settlement of its event.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
	BetStatusVoided  BetStatus = "voided"
)

// Bet is a single-event stake. The stake is debited from the spendable
// balance at placement; it does not use the match escrow path. Odds are
// captured at placement and immutable thereafter.
type Bet struct {
	ID              string
	UserID          string
	EventID         string
	OutcomeID       string
	Amount          int64 // cents, > 0
	Odds            float64
	PotentialPayout int64 // cents, Amount x Odds rounded at placement
	Status          BetStatus
	Version         int64
	CreatedAt       time.Time
	SettledAt       *time.Time
}

// Terminal reports whether the bet has already been settled. Settlement
// sweeps check this before mutating so retries never double-pay.
func (b *Bet) Terminal() bool {
	return b.Status != BetStatusPending
}
