package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Outcomes are
// stored as a JSONB array on the event row; they are immutable after
// creation so the settlement read path never joins.
type EventStore struct {
	db DBTX
}

type outcomeRow struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Odds  float64 `json:"odds"`
}

func encodeOutcomes(outcomes []domain.Outcome) ([]byte, error) {
	rows := make([]outcomeRow, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, outcomeRow(o))
	}
	return json.Marshal(rows)
}

func decodeOutcomes(data []byte) ([]domain.Outcome, error) {
	var rows []outcomeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	outcomes := make([]domain.Outcome, 0, len(rows))
	for _, r := range rows {
		outcomes = append(outcomes, domain.Outcome(r))
	}
	return outcomes, nil
}

const eventSelectCols = `id, title, status, outcomes, winner_outcome_id, deadline,
	resolution_time, version, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		ev           domain.Event
		outcomesJSON []byte
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Status, &outcomesJSON, &ev.WinnerOutcomeID,
		&ev.Deadline, &ev.ResolutionTime, &ev.Version, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	if ev.Outcomes, err = decodeOutcomes(outcomesJSON); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Create inserts a new event row.
func (s *EventStore) Create(ctx context.Context, ev domain.Event) error {
	outcomesJSON, err := encodeOutcomes(ev.Outcomes)
	if err != nil {
		return fmt.Errorf("postgres: marshal outcomes: %w", err)
	}

	const query = `
		INSERT INTO events (id, title, status, outcomes, winner_outcome_id, deadline,
			resolution_time, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	_, err = s.db.Exec(ctx, query,
		ev.ID, ev.Title, ev.Status, outcomesJSON, ev.WinnerOutcomeID,
		ev.Deadline, ev.ResolutionTime, ev.Version, ev.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "create event")
	}
	return nil
}

// GetByID returns the event with the given ID.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	const query = `SELECT ` + eventSelectCols + ` FROM events WHERE id = $1`
	ev, err := scanEvent(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Event{}, mapErr(err, fmt.Sprintf("get event %s", id))
	}
	return ev, nil
}

// Update writes the event's lifecycle state with a version compare-and-swap.
// The outcome list and deadline are immutable after creation.
func (s *EventStore) Update(ctx context.Context, ev domain.Event) error {
	const query = `
		UPDATE events
		SET status = $1, winner_outcome_id = $2, resolution_time = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5`
	tag, err := s.db.Exec(ctx, query,
		ev.Status, ev.WinnerOutcomeID, ev.ResolutionTime, ev.ID, ev.Version,
	)
	if err != nil {
		return mapErr(err, fmt.Sprintf("update event %s", ev.ID))
	}
	return casCheck(tag, fmt.Sprintf("update event %s", ev.ID))
}

// ListOpen returns events still in the open state, soonest deadline first.
func (s *EventStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT ` + eventSelectCols + ` FROM events WHERE status = $1 ORDER BY deadline`
	query, args := limitOffset(query, opts, []any{domain.EventStatusOpen})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list open events")
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, mapErr(err, "scan event")
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
