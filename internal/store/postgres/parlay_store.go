package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// ParlayStore implements domain.ParlayStore using PostgreSQL. Parlays are
// immutable after creation: legs live as a JSONB array on the row and the
// settlement state is always derived from the referenced events.
type ParlayStore struct {
	db DBTX
}

type parlayLegRow struct {
	EventID   string  `json:"event_id"`
	OutcomeID string  `json:"outcome_id"`
	Odds      float64 `json:"odds"`
}

func encodeLegs(legs []domain.ParlayLeg) ([]byte, error) {
	rows := make([]parlayLegRow, 0, len(legs))
	for _, leg := range legs {
		rows = append(rows, parlayLegRow(leg))
	}
	return json.Marshal(rows)
}

func decodeLegs(data []byte) ([]domain.ParlayLeg, error) {
	var rows []parlayLegRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	legs := make([]domain.ParlayLeg, 0, len(rows))
	for _, r := range rows {
		legs = append(legs, domain.ParlayLeg(r))
	}
	return legs, nil
}

const parlaySelectCols = `id, creator_id, title, legs, base_multiplier,
	bonus_rate, final_multiplier, version, created_at`

func scanParlay(row pgx.Row) (domain.Parlay, error) {
	var (
		p        domain.Parlay
		legsJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.CreatorID, &p.Title, &legsJSON, &p.BaseMultiplier,
		&p.BonusRate, &p.FinalMultiplier, &p.Version, &p.CreatedAt,
	)
	if err != nil {
		return domain.Parlay{}, err
	}
	if p.Legs, err = decodeLegs(legsJSON); err != nil {
		return domain.Parlay{}, err
	}
	return p, nil
}

// Create inserts a new parlay row.
func (s *ParlayStore) Create(ctx context.Context, p domain.Parlay) error {
	legsJSON, err := encodeLegs(p.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal parlay legs: %w", err)
	}

	const query = `
		INSERT INTO parlays (id, creator_id, title, legs, base_multiplier,
			bonus_rate, final_multiplier, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = s.db.Exec(ctx, query,
		p.ID, p.CreatorID, p.Title, legsJSON, p.BaseMultiplier,
		p.BonusRate, p.FinalMultiplier, p.Version, p.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "create parlay")
	}
	return nil
}

// GetByID returns the parlay with the given ID.
func (s *ParlayStore) GetByID(ctx context.Context, id string) (domain.Parlay, error) {
	const query = `SELECT ` + parlaySelectCols + ` FROM parlays WHERE id = $1`
	p, err := scanParlay(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Parlay{}, mapErr(err, fmt.Sprintf("get parlay %s", id))
	}
	return p, nil
}

// ListByEvent returns every parlay with a leg on the given event, matched
// with a JSONB containment query against the legs array.
func (s *ParlayStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Parlay, error) {
	const query = `SELECT ` + parlaySelectCols + ` FROM parlays
		WHERE legs @> $1 ORDER BY created_at`
	probe, err := json.Marshal([]map[string]string{{"event_id": eventID}})
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal leg probe: %w", err)
	}

	rows, err := s.db.Query(ctx, query, probe)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list parlays for event %s", eventID))
	}
	defer rows.Close()

	var parlays []domain.Parlay
	for rows.Next() {
		p, err := scanParlay(rows)
		if err != nil {
			return nil, mapErr(err, "scan parlay")
		}
		parlays = append(parlays, p)
	}
	return parlays, rows.Err()
}

// Compile-time interface check.
var _ domain.ParlayStore = (*ParlayStore)(nil)
