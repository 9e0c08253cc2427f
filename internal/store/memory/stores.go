package memory

import (
	"context"
	"sort"
	"time"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// The dataset-level accessors below implement the actual reads and writes;
// the exported store types are thin wrappers that either take the store
// mutex (direct use) or run lock-free inside an Atomic body (tx use).

func (d *dataset) createUser(u domain.User) error {
	if _, ok := d.users[u.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.users[u.ID] = u
	return nil
}

func (d *dataset) getUser(id string) (domain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (d *dataset) updateUser(u domain.User) error {
	cur, ok := d.users[u.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != u.Version {
		return domain.ErrVersionConflict
	}
	u.Version++
	u.UpdatedAt = time.Now()
	d.users[u.ID] = u
	return nil
}

func (d *dataset) listUsers(opts domain.ListOpts) []domain.User {
	out := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) createEvent(ev domain.Event) error {
	if _, ok := d.events[ev.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (d *dataset) getEvent(id string) (domain.Event, error) {
	ev, ok := d.events[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return cloneEvent(ev), nil
}

func (d *dataset) updateEvent(ev domain.Event) error {
	cur, ok := d.events[ev.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != ev.Version {
		return domain.ErrVersionConflict
	}
	ev.Version++
	ev.UpdatedAt = time.Now()
	d.events[ev.ID] = cloneEvent(ev)
	return nil
}

func (d *dataset) listOpenEvents(opts domain.ListOpts) []domain.Event {
	var out []domain.Event
	for _, ev := range d.events {
		if ev.Status == domain.EventStatusOpen {
			out = append(out, cloneEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) createBet(b domain.Bet) error {
	if _, ok := d.bets[b.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.bets[b.ID] = b
	return nil
}

func (d *dataset) getBet(id string) (domain.Bet, error) {
	b, ok := d.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (d *dataset) updateBet(b domain.Bet) error {
	cur, ok := d.bets[b.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != b.Version {
		return domain.ErrVersionConflict
	}
	b.Version++
	d.bets[b.ID] = b
	return nil
}

func (d *dataset) listPendingBetsByEvent(eventID string) []domain.Bet {
	var out []domain.Bet
	for _, b := range d.bets {
		if b.EventID == eventID && b.Status == domain.BetStatusPending {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *dataset) listBetsByUser(userID string, opts domain.ListOpts) []domain.Bet {
	var out []domain.Bet
	for _, b := range d.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) countBetsByUserEvent(userID, eventID string) int {
	n := 0
	for _, b := range d.bets {
		if b.UserID == userID && b.EventID == eventID {
			n++
		}
	}
	return n
}

func (d *dataset) createParlay(p domain.Parlay) error {
	if _, ok := d.parlays[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.parlays[p.ID] = cloneParlay(p)
	return nil
}

func (d *dataset) getParlay(id string) (domain.Parlay, error) {
	p, ok := d.parlays[id]
	if !ok {
		return domain.Parlay{}, domain.ErrNotFound
	}
	return cloneParlay(p), nil
}

func (d *dataset) listParlaysByEvent(eventID string) []domain.Parlay {
	var out []domain.Parlay
	for _, p := range d.parlays {
		if p.HasLegOn(eventID) {
			out = append(out, cloneParlay(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *dataset) createWager(w domain.ParlayWager) error {
	if _, ok := d.wagers[w.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.wagers[w.ID] = w
	return nil
}

func (d *dataset) getWager(id string) (domain.ParlayWager, error) {
	w, ok := d.wagers[id]
	if !ok {
		return domain.ParlayWager{}, domain.ErrNotFound
	}
	return w, nil
}

func (d *dataset) updateWager(w domain.ParlayWager) error {
	cur, ok := d.wagers[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != w.Version {
		return domain.ErrVersionConflict
	}
	w.Version++
	d.wagers[w.ID] = w
	return nil
}

func (d *dataset) listPendingWagersByParlay(parlayID string) []domain.ParlayWager {
	var out []domain.ParlayWager
	for _, w := range d.wagers {
		if w.ParlayID == parlayID && w.Status == domain.WagerStatusPending {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *dataset) listWagersByUser(userID string, opts domain.ListOpts) []domain.ParlayWager {
	var out []domain.ParlayWager
	for _, w := range d.wagers {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) createMatch(m domain.Match) error {
	if _, ok := d.matches[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	d.matches[m.ID] = cloneMatch(m)
	return nil
}

func (d *dataset) getMatch(id string) (domain.Match, error) {
	m, ok := d.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (d *dataset) updateMatch(m domain.Match) error {
	cur, ok := d.matches[m.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != m.Version {
		return domain.ErrVersionConflict
	}
	m.Version++
	d.matches[m.ID] = cloneMatch(m)
	return nil
}

func (d *dataset) listOpenMatches(opts domain.ListOpts) []domain.Match {
	var out []domain.Match
	for _, m := range d.matches {
		if m.Status == domain.MatchStatusOpen {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) listMatchesByUser(userID string, opts domain.ListOpts) []domain.Match {
	var out []domain.Match
	for _, m := range d.matches {
		if m.IsParticipant(userID) {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts)
}

func (d *dataset) logAudit(event string, detail map[string]any, now time.Time) {
	d.audit = append(d.audit, domain.AuditEntry{
		ID:        int64(len(d.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: now,
	})
}

func (d *dataset) listAudit(opts domain.ListOpts) []domain.AuditEntry {
	out := append([]domain.AuditEntry(nil), d.audit...)
	return paginate(out, opts)
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

// --- direct (mutex-per-operation) wrappers ---

type userStore struct{ s *Store }

func (st userStore) Create(ctx context.Context, u domain.User) error {
	return st.s.withData(func(d *dataset) error { return d.createUser(u) })
}

func (st userStore) GetByID(ctx context.Context, id string) (u domain.User, err error) {
	err = st.s.withData(func(d *dataset) error { u, err = d.getUser(id); return err })
	return u, err
}

func (st userStore) Update(ctx context.Context, u domain.User) error {
	return st.s.withData(func(d *dataset) error { return d.updateUser(u) })
}

func (st userStore) List(ctx context.Context, opts domain.ListOpts) (out []domain.User, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listUsers(opts); return nil })
	return out, err
}

type eventStore struct{ s *Store }

func (st eventStore) Create(ctx context.Context, ev domain.Event) error {
	return st.s.withData(func(d *dataset) error { return d.createEvent(ev) })
}

func (st eventStore) GetByID(ctx context.Context, id string) (ev domain.Event, err error) {
	err = st.s.withData(func(d *dataset) error { ev, err = d.getEvent(id); return err })
	return ev, err
}

func (st eventStore) Update(ctx context.Context, ev domain.Event) error {
	return st.s.withData(func(d *dataset) error { return d.updateEvent(ev) })
}

func (st eventStore) ListOpen(ctx context.Context, opts domain.ListOpts) (out []domain.Event, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listOpenEvents(opts); return nil })
	return out, err
}

type betStore struct{ s *Store }

func (st betStore) Create(ctx context.Context, b domain.Bet) error {
	return st.s.withData(func(d *dataset) error { return d.createBet(b) })
}

func (st betStore) GetByID(ctx context.Context, id string) (b domain.Bet, err error) {
	err = st.s.withData(func(d *dataset) error { b, err = d.getBet(id); return err })
	return b, err
}

func (st betStore) Update(ctx context.Context, b domain.Bet) error {
	return st.s.withData(func(d *dataset) error { return d.updateBet(b) })
}

func (st betStore) ListPendingByEvent(ctx context.Context, eventID string) (out []domain.Bet, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listPendingBetsByEvent(eventID); return nil })
	return out, err
}

func (st betStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) (out []domain.Bet, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listBetsByUser(userID, opts); return nil })
	return out, err
}

func (st betStore) CountByUserEvent(ctx context.Context, userID, eventID string) (n int, err error) {
	err = st.s.withData(func(d *dataset) error { n = d.countBetsByUserEvent(userID, eventID); return nil })
	return n, err
}

type parlayStore struct{ s *Store }

func (st parlayStore) Create(ctx context.Context, p domain.Parlay) error {
	return st.s.withData(func(d *dataset) error { return d.createParlay(p) })
}

func (st parlayStore) GetByID(ctx context.Context, id string) (p domain.Parlay, err error) {
	err = st.s.withData(func(d *dataset) error { p, err = d.getParlay(id); return err })
	return p, err
}

func (st parlayStore) ListByEvent(ctx context.Context, eventID string) (out []domain.Parlay, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listParlaysByEvent(eventID); return nil })
	return out, err
}

type wagerStore struct{ s *Store }

func (st wagerStore) Create(ctx context.Context, w domain.ParlayWager) error {
	return st.s.withData(func(d *dataset) error { return d.createWager(w) })
}

func (st wagerStore) GetByID(ctx context.Context, id string) (w domain.ParlayWager, err error) {
	err = st.s.withData(func(d *dataset) error { w, err = d.getWager(id); return err })
	return w, err
}

func (st wagerStore) Update(ctx context.Context, w domain.ParlayWager) error {
	return st.s.withData(func(d *dataset) error { return d.updateWager(w) })
}

func (st wagerStore) ListPendingByParlay(ctx context.Context, parlayID string) (out []domain.ParlayWager, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listPendingWagersByParlay(parlayID); return nil })
	return out, err
}

func (st wagerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) (out []domain.ParlayWager, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listWagersByUser(userID, opts); return nil })
	return out, err
}

type matchStore struct{ s *Store }

func (st matchStore) Create(ctx context.Context, m domain.Match) error {
	return st.s.withData(func(d *dataset) error { return d.createMatch(m) })
}

func (st matchStore) GetByID(ctx context.Context, id string) (m domain.Match, err error) {
	err = st.s.withData(func(d *dataset) error { m, err = d.getMatch(id); return err })
	return m, err
}

func (st matchStore) Update(ctx context.Context, m domain.Match) error {
	return st.s.withData(func(d *dataset) error { return d.updateMatch(m) })
}

func (st matchStore) ListOpen(ctx context.Context, opts domain.ListOpts) (out []domain.Match, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listOpenMatches(opts); return nil })
	return out, err
}

func (st matchStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) (out []domain.Match, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listMatchesByUser(userID, opts); return nil })
	return out, err
}

type auditStore struct{ s *Store }

func (st auditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	return st.s.withData(func(d *dataset) error { d.logAudit(event, detail, st.s.now()); return nil })
}

func (st auditStore) List(ctx context.Context, opts domain.ListOpts) (out []domain.AuditEntry, err error) {
	err = st.s.withData(func(d *dataset) error { out = d.listAudit(opts); return nil })
	return out, err
}

// --- transaction-scoped wrappers (mutex already held by Atomic) ---

type txUserStore struct{ t *txStore }

func (st txUserStore) Create(ctx context.Context, u domain.User) error { return st.t.data.createUser(u) }
func (st txUserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	return st.t.data.getUser(id)
}
func (st txUserStore) Update(ctx context.Context, u domain.User) error { return st.t.data.updateUser(u) }
func (st txUserStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	return st.t.data.listUsers(opts), nil
}

type txEventStore struct{ t *txStore }

func (st txEventStore) Create(ctx context.Context, ev domain.Event) error {
	return st.t.data.createEvent(ev)
}
func (st txEventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	return st.t.data.getEvent(id)
}
func (st txEventStore) Update(ctx context.Context, ev domain.Event) error {
	return st.t.data.updateEvent(ev)
}
func (st txEventStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	return st.t.data.listOpenEvents(opts), nil
}

type txBetStore struct{ t *txStore }

func (st txBetStore) Create(ctx context.Context, b domain.Bet) error { return st.t.data.createBet(b) }
func (st txBetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	return st.t.data.getBet(id)
}
func (st txBetStore) Update(ctx context.Context, b domain.Bet) error { return st.t.data.updateBet(b) }
func (st txBetStore) ListPendingByEvent(ctx context.Context, eventID string) ([]domain.Bet, error) {
	return st.t.data.listPendingBetsByEvent(eventID), nil
}
func (st txBetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	return st.t.data.listBetsByUser(userID, opts), nil
}
func (st txBetStore) CountByUserEvent(ctx context.Context, userID, eventID string) (int, error) {
	return st.t.data.countBetsByUserEvent(userID, eventID), nil
}

type txParlayStore struct{ t *txStore }

func (st txParlayStore) Create(ctx context.Context, p domain.Parlay) error {
	return st.t.data.createParlay(p)
}
func (st txParlayStore) GetByID(ctx context.Context, id string) (domain.Parlay, error) {
	return st.t.data.getParlay(id)
}
func (st txParlayStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Parlay, error) {
	return st.t.data.listParlaysByEvent(eventID), nil
}

type txWagerStore struct{ t *txStore }

func (st txWagerStore) Create(ctx context.Context, w domain.ParlayWager) error {
	return st.t.data.createWager(w)
}
func (st txWagerStore) GetByID(ctx context.Context, id string) (domain.ParlayWager, error) {
	return st.t.data.getWager(id)
}
func (st txWagerStore) Update(ctx context.Context, w domain.ParlayWager) error {
	return st.t.data.updateWager(w)
}
func (st txWagerStore) ListPendingByParlay(ctx context.Context, parlayID string) ([]domain.ParlayWager, error) {
	return st.t.data.listPendingWagersByParlay(parlayID), nil
}
func (st txWagerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ParlayWager, error) {
	return st.t.data.listWagersByUser(userID, opts), nil
}

type txMatchStore struct{ t *txStore }

func (st txMatchStore) Create(ctx context.Context, m domain.Match) error {
	return st.t.data.createMatch(m)
}
func (st txMatchStore) GetByID(ctx context.Context, id string) (domain.Match, error) {
	return st.t.data.getMatch(id)
}
func (st txMatchStore) Update(ctx context.Context, m domain.Match) error {
	return st.t.data.updateMatch(m)
}
func (st txMatchStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Match, error) {
	return st.t.data.listOpenMatches(opts), nil
}
func (st txMatchStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Match, error) {
	return st.t.data.listMatchesByUser(userID, opts), nil
}

type txAuditStore struct{ t *txStore }

func (st txAuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	st.t.data.logAudit(event, detail, st.t.now())
	return nil
}
func (st txAuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return st.t.data.listAudit(opts), nil
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
var _ domain.Store = (*txStore)(nil)
