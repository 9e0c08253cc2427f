package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// Every Update below is a compare-and-swap: the write commits only when the
// stored Version still equals the Version read into the record, and the
// stored Version is bumped by one. A stale record fails with
// ErrVersionConflict, which aborts the surrounding Atomic transaction so the
// caller can re-read and retry.

// UserStore persists users and their wallets.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	Update(ctx context.Context, u User) error
	List(ctx context.Context, opts ListOpts) ([]User, error)
}

// EventStore persists prediction-market events.
type EventStore interface {
	Create(ctx context.Context, ev Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	Update(ctx context.Context, ev Event) error
	ListOpen(ctx context.Context, opts ListOpts) ([]Event, error)
}

// BetStore persists single-event bets.
type BetStore interface {
	Create(ctx context.Context, b Bet) error
	GetByID(ctx context.Context, id string) (Bet, error)
	Update(ctx context.Context, b Bet) error
	ListPendingByEvent(ctx context.Context, eventID string) ([]Bet, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bet, error)
	CountByUserEvent(ctx context.Context, userID, eventID string) (int, error)
}

// ParlayStore persists parlay tickets. Parlays are immutable after creation;
// their settlement state is derived from the referenced events.
type ParlayStore interface {
	Create(ctx context.Context, p Parlay) error
	GetByID(ctx context.Context, id string) (Parlay, error)
	ListByEvent(ctx context.Context, eventID string) ([]Parlay, error)
}

// ParlayWagerStore persists per-user parlay stakes.
type ParlayWagerStore interface {
	Create(ctx context.Context, w ParlayWager) error
	GetByID(ctx context.Context, id string) (ParlayWager, error)
	Update(ctx context.Context, w ParlayWager) error
	ListPendingByParlay(ctx context.Context, parlayID string) ([]ParlayWager, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]ParlayWager, error)
}

// MatchStore persists wagered duels.
type MatchStore interface {
	Create(ctx context.Context, m Match) error
	GetByID(ctx context.Context, id string) (Match, error)
	Update(ctx context.Context, m Match) error
	ListOpen(ctx context.Context, opts ListOpts) ([]Match, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Match, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of money-moving operations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Store bundles all record stores together with Atomic, the optimistic
// transaction primitive every state-changing engine operation runs inside.
//
// Atomic runs fn against a transaction-scoped Store: reads observe a
// snapshot, writes are staged, and the whole set commits together. When any
// staged CAS write observes a stale version the transaction aborts with
// ErrVersionConflict and nothing is applied. Returning any error from fn
// rolls the transaction back.
type Store interface {
	Users() UserStore
	Events() EventStore
	Bets() BetStore
	Parlays() ParlayStore
	ParlayWagers() ParlayWagerStore
	Matches() MatchStore
	Audit() AuditStore

	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
