package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL. The per-player
// state and the board are JSONB columns: they change together on every move
// and the version CAS on the row already serializes writers, so normalized
// tables would buy nothing.
type MatchStore struct {
	db DBTX
}

const matchSelectCols = `id, creator_id, private_opponent, wager, pot, status,
	players, current_turn, starting_player, last_move_at, match_type, board,
	round, result, winner_id, version, created_at, completed_at`

func scanMatch(row pgx.Row) (domain.Match, error) {
	var (
		m           domain.Match
		playersJSON []byte
		boardJSON   []byte
	)
	err := row.Scan(
		&m.ID, &m.CreatorID, &m.PrivateOpponent, &m.Wager, &m.Pot, &m.Status,
		&playersJSON, &m.CurrentTurn, &m.StartingPlayer, &m.LastMoveAt,
		&m.MatchType, &boardJSON, &m.Round, &m.Result, &m.WinnerID,
		&m.Version, &m.CreatedAt, &m.CompletedAt,
	)
	if err != nil {
		return domain.Match{}, err
	}
	if err := json.Unmarshal(playersJSON, &m.Players); err != nil {
		return domain.Match{}, err
	}
	if err := json.Unmarshal(boardJSON, &m.Board); err != nil {
		return domain.Match{}, err
	}
	return m, nil
}

func matchJSON(m domain.Match) (players, board []byte, err error) {
	if players, err = json.Marshal(m.Players); err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal match players: %w", err)
	}
	if board, err = json.Marshal(m.Board); err != nil {
		return nil, nil, fmt.Errorf("postgres: marshal match board: %w", err)
	}
	return players, board, nil
}

// Create inserts a new match row.
func (s *MatchStore) Create(ctx context.Context, m domain.Match) error {
	playersJSON, boardJSON, err := matchJSON(m)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO matches (id, creator_id, private_opponent, wager, pot, status,
			players, current_turn, starting_player, last_move_at, match_type,
			board, round, result, winner_id, version, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = s.db.Exec(ctx, query,
		m.ID, m.CreatorID, m.PrivateOpponent, m.Wager, m.Pot, m.Status,
		playersJSON, m.CurrentTurn, m.StartingPlayer, m.LastMoveAt, m.MatchType,
		boardJSON, m.Round, m.Result, m.WinnerID, m.Version, m.CreatedAt, m.CompletedAt,
	)
	if err != nil {
		return mapErr(err, "create match")
	}
	return nil
}

// GetByID returns the match with the given ID.
func (s *MatchStore) GetByID(ctx context.Context, id string) (domain.Match, error) {
	const query = `SELECT ` + matchSelectCols + ` FROM matches WHERE id = $1`
	m, err := scanMatch(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Match{}, mapErr(err, fmt.Sprintf("get match %s", id))
	}
	return m, nil
}

// Update writes the full mutable match state with a version compare-and-swap.
// Concurrent joins and moves race on this single CAS.
func (s *MatchStore) Update(ctx context.Context, m domain.Match) error {
	playersJSON, boardJSON, err := matchJSON(m)
	if err != nil {
		return err
	}

	const query = `
		UPDATE matches
		SET status = $1, pot = $2, players = $3, current_turn = $4,
			starting_player = $5, last_move_at = $6, board = $7, round = $8,
			result = $9, winner_id = $10, completed_at = $11,
			version = version + 1
		WHERE id = $12 AND version = $13`
	tag, err := s.db.Exec(ctx, query,
		m.Status, m.Pot, playersJSON, m.CurrentTurn,
		m.StartingPlayer, m.LastMoveAt, boardJSON, m.Round,
		m.Result, m.WinnerID, m.CompletedAt,
		m.ID, m.Version,
	)
	if err != nil {
		return mapErr(err, fmt.Sprintf("update match %s", m.ID))
	}
	return casCheck(tag, fmt.Sprintf("update match %s", m.ID))
}

// ListOpen returns joinable challenges, oldest first.
func (s *MatchStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Match, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches WHERE status = $1 ORDER BY created_at`
	query, args := limitOffset(query, opts, []any{domain.MatchStatusOpen})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list open matches")
	}
	defer rows.Close()
	return collectMatches(rows)
}

// ListByUser returns matches the user participates in, newest first. The
// participant check runs against the players JSONB keys and the creator
// column so open challenges the user created are included too.
func (s *MatchStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Match, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches
		WHERE creator_id = $1 OR jsonb_exists(players, $1) ORDER BY created_at DESC`
	query, args := limitOffset(query, opts, []any{userID})

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("list matches for user %s", userID))
	}
	defer rows.Close()
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]domain.Match, error) {
	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, mapErr(err, "scan match")
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Compile-time interface check.
var _ domain.MatchStore = (*MatchStore)(nil)
