package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	db DBTX
}

const betSelectCols = `id, user_id, event_id, outcome_id, amount, odds,
	potential_payout, status, version, created_at, settled_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	err := row.Scan(
		&b.ID, &b.UserID, &b.EventID, &b.OutcomeID, &b.Amount, &b.Odds,
		&b.PotentialPayout, &b.Status, &b.Version, &b.CreatedAt, &b.SettledAt,
	)
	return b, err
}

// Create inserts a new bet row.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (id, user_id, event_id, outcome_id, amount, odds,
			potential_payout, status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Exec(ctx, query,
		b.ID, b.UserID, b.EventID, b.OutcomeID, b.Amount, b.Odds,
		b.PotentialPayout, b.Status, b.Version, b.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "create bet")
	}
	return nil
}

// GetByID returns the bet with the given ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	const query = `SELECT ` + betSelectCols + ` FROM bets WHERE id = $1`
	b, err := scanBet(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Bet{}, mapErr(err, fmt.Sprintf("get bet %s", id))
	}
	return b, nil
}

// Update writes the bet's settlement state with a version compare-and-swap.
func (s *BetStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets
		SET status = $1, settled_at = $2, version = version + 1
		WHERE id = $3 AND version = $4`
	tag, err := s.db.Exec(ctx, query, b.Status, b.SettledAt, b.ID, b.Version)
	if err != nil {
		return mapErr(err, fmt.Sprintf("update bet %s", b.ID))
	}
	return casCheck(tag, fmt.Sprintf("update bet %s", b.ID))
}

// ListPendingByEvent returns the event's not-yet-settled bets, oldest first.
// The settlement sweep walks this list.
func (s *BetStore) ListPendingByEvent(ctx context.Context, eventID string) ([]domain.Bet, error) {
	const query = `SELECT ` + betSelectCols + ` FROM bets
		WHERE event_id = $1 AND status = $2 ORDER BY created_at`
	rows, err := s.db.Query(ctx, query, eventID, domain.BetStatusPending)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list pending bets for event %s", eventID))
	}
	defer rows.Close()
	return collectBets(rows)
}

// ListByUser returns a user's bets, newest first.
func (s *BetStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE user_id = $1 ORDER BY created_at DESC`
	query, args := limitOffset(query, opts, []any{userID})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list bets for user %s", userID))
	}
	defer rows.Close()
	return collectBets(rows)
}

// CountByUserEvent counts a user's bets on one event, settled or not. The
// per-event bet cap is enforced against this count.
func (s *BetStore) CountByUserEvent(ctx context.Context, userID, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bets WHERE user_id = $1 AND event_id = $2`
	var count int
	if err := s.db.QueryRow(ctx, query, userID, eventID).Scan(&count); err != nil {
		return 0, mapErr(err, "count bets")
	}
	return count, nil
}

func collectBets(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, mapErr(err, "scan bet")
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
