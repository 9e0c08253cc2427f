// Package memory implements domain.Store with in-process maps. It backs the
// dev run mode and the service-layer tests. A single mutex serializes Atomic
// transactions; the per-record version checks still apply, so callers observe
// the same optimistic-concurrency behavior as with the postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// dataset holds every record map. Atomic clones it, runs the transaction
// body against the clone, and swaps it in on success, so a failed
// transaction leaves no trace.
type dataset struct {
	users   map[string]domain.User
	events  map[string]domain.Event
	bets    map[string]domain.Bet
	parlays map[string]domain.Parlay
	wagers  map[string]domain.ParlayWager
	matches map[string]domain.Match
	audit   []domain.AuditEntry
}

func newDataset() *dataset {
	return &dataset{
		users:   make(map[string]domain.User),
		events:  make(map[string]domain.Event),
		bets:    make(map[string]domain.Bet),
		parlays: make(map[string]domain.Parlay),
		wagers:  make(map[string]domain.ParlayWager),
		matches: make(map[string]domain.Match),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.events {
		c.events[k] = cloneEvent(v)
	}
	for k, v := range d.bets {
		c.bets[k] = v
	}
	for k, v := range d.parlays {
		c.parlays[k] = cloneParlay(v)
	}
	for k, v := range d.wagers {
		c.wagers[k] = v
	}
	for k, v := range d.matches {
		c.matches[k] = cloneMatch(v)
	}
	c.audit = append([]domain.AuditEntry(nil), d.audit...)
	return c
}

func cloneEvent(ev domain.Event) domain.Event {
	ev.Outcomes = append([]domain.Outcome(nil), ev.Outcomes...)
	return ev
}

func cloneParlay(p domain.Parlay) domain.Parlay {
	p.Legs = append([]domain.ParlayLeg(nil), p.Legs...)
	return p
}

func cloneMatch(m domain.Match) domain.Match {
	players := make(map[string]*domain.MatchPlayer, len(m.Players))
	for id, p := range m.Players {
		cp := *p
		players[id] = &cp
	}
	m.Players = players
	return m
}

// Store is the top-level in-memory store. Direct (non-Atomic) operations
// each take the mutex for the duration of the single operation.
type Store struct {
	mu   sync.Mutex
	data *dataset
	now  func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: newDataset(), now: time.Now}
}

func (s *Store) Users() domain.UserStore               { return userStore{s} }
func (s *Store) Events() domain.EventStore             { return eventStore{s} }
func (s *Store) Bets() domain.BetStore                 { return betStore{s} }
func (s *Store) Parlays() domain.ParlayStore           { return parlayStore{s} }
func (s *Store) ParlayWagers() domain.ParlayWagerStore { return wagerStore{s} }
func (s *Store) Matches() domain.MatchStore            { return matchStore{s} }
func (s *Store) Audit() domain.AuditStore              { return auditStore{s} }

// Atomic runs fn against a cloned dataset and swaps the clone in only when
// fn succeeds. Nested Atomic calls join the enclosing transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	tx := &txStore{data: work, now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.data = work
	return nil
}

// withData runs fn holding the store mutex.
func (s *Store) withData(fn func(d *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// txStore is the transaction-scoped view handed to Atomic bodies. The
// enclosing Atomic holds the store mutex, so no further locking is needed.
type txStore struct {
	data *dataset
	now  func() time.Time
}

func (t *txStore) Users() domain.UserStore               { return txUserStore{t} }
func (t *txStore) Events() domain.EventStore             { return txEventStore{t} }
func (t *txStore) Bets() domain.BetStore                 { return txBetStore{t} }
func (t *txStore) Parlays() domain.ParlayStore           { return txParlayStore{t} }
func (t *txStore) ParlayWagers() domain.ParlayWagerStore { return txWagerStore{t} }
func (t *txStore) Matches() domain.MatchStore            { return txMatchStore{t} }
func (t *txStore) Audit() domain.AuditStore              { return txAuditStore{t} }

func (t *txStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	return fn(ctx, t)
}
