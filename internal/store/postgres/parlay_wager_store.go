package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// ParlayWagerStore implements domain.ParlayWagerStore using PostgreSQL.
type ParlayWagerStore struct {
	db DBTX
}

const wagerSelectCols = `id, parlay_id, user_id, amount, potential_payout,
	status, version, created_at, settled_at`

func scanWager(row pgx.Row) (domain.ParlayWager, error) {
	var w domain.ParlayWager
	err := row.Scan(
		&w.ID, &w.ParlayID, &w.UserID, &w.Amount, &w.PotentialPayout,
		&w.Status, &w.Version, &w.CreatedAt, &w.SettledAt,
	)
	return w, err
}

// Create inserts a new wager row.
func (s *ParlayWagerStore) Create(ctx context.Context, w domain.ParlayWager) error {
	const query = `
		INSERT INTO parlay_wagers (id, parlay_id, user_id, amount,
			potential_payout, status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(ctx, query,
		w.ID, w.ParlayID, w.UserID, w.Amount,
		w.PotentialPayout, w.Status, w.Version, w.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "create parlay wager")
	}
	return nil
}

// GetByID returns the wager with the given ID.
func (s *ParlayWagerStore) GetByID(ctx context.Context, id string) (domain.ParlayWager, error) {
	const query = `SELECT ` + wagerSelectCols + ` FROM parlay_wagers WHERE id = $1`
	w, err := scanWager(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.ParlayWager{}, mapErr(err, fmt.Sprintf("get parlay wager %s", id))
	}
	return w, nil
}

// Update writes the wager's settlement state with a version compare-and-swap.
func (s *ParlayWagerStore) Update(ctx context.Context, w domain.ParlayWager) error {
	const query = `
		UPDATE parlay_wagers
		SET status = $1, settled_at = $2, version = version + 1
		WHERE id = $3 AND version = $4`
	tag, err := s.db.Exec(ctx, query, w.Status, w.SettledAt, w.ID, w.Version)
	if err != nil {
		return mapErr(err, fmt.Sprintf("update parlay wager %s", w.ID))
	}
	return casCheck(tag, fmt.Sprintf("update parlay wager %s", w.ID))
}

// ListPendingByParlay returns the parlay's not-yet-settled wagers, oldest
// first. The recompute sweep walks this list.
func (s *ParlayWagerStore) ListPendingByParlay(ctx context.Context, parlayID string) ([]domain.ParlayWager, error) {
	const query = `SELECT ` + wagerSelectCols + ` FROM parlay_wagers
		WHERE parlay_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, parlayID, domain.WagerStatusPending)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list pending wagers for parlay %s", parlayID))
	}
	defer rows.Close()
	return collectWagers(rows)
}

// ListByUser returns a user's wagers, newest first.
func (s *ParlayWagerStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ParlayWager, error) {
	query := `SELECT ` + wagerSelectCols + ` FROM parlay_wagers WHERE user_id = $1 ORDER BY created_at DESC`
	query, args := limitOffset(query, opts, []any{userID})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list wagers for user %s", userID))
	}
	defer rows.Close()
	return collectWagers(rows)
}

func collectWagers(rows pgx.Rows) ([]domain.ParlayWager, error) {
	var wagers []domain.ParlayWager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, mapErr(err, "scan parlay wager")
		}
		wagers = append(wagers, w)
	}
	return wagers, rows.Err()
}

// Compile-time interface check.
var _ domain.ParlayWagerStore = (*ParlayWagerStore)(nil)
