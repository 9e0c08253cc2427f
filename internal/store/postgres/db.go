package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx so every
// sub-store works both directly against the pool and inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store. The zero pool marks a transaction-scoped
// instance: its Atomic joins the enclosing transaction instead of opening a
// new one.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewStore creates the root Store backed by the client's pool.
func NewStore(c *Client) *Store {
	return &Store{db: c.Pool(), pool: c.Pool()}
}

func (s *Store) Users() domain.UserStore               { return &UserStore{db: s.db} }
func (s *Store) Events() domain.EventStore             { return &EventStore{db: s.db} }
func (s *Store) Bets() domain.BetStore                 { return &BetStore{db: s.db} }
func (s *Store) Parlays() domain.ParlayStore           { return &ParlayStore{db: s.db} }
func (s *Store) ParlayWagers() domain.ParlayWagerStore { return &ParlayWagerStore{db: s.db} }
func (s *Store) Matches() domain.MatchStore            { return &MatchStore{db: s.db} }
func (s *Store) Audit() domain.AuditStore              { return &AuditStore{db: s.db} }

// Atomic runs fn inside a database transaction. A nested call joins the
// transaction already in flight rather than opening a second one.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// mapErr translates driver errors into the domain taxonomy.
func mapErr(err error, op string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("postgres: %s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("postgres: %s: %w", op, domain.ErrAlreadyExists)
	default:
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// casCheck turns a zero-row UPDATE into a version conflict. Callers read the
// row in the same transaction before updating, so an untouched row means the
// version moved underneath them.
func casCheck(tag pgconn.CommandTag, op string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %s: %w", op, domain.ErrVersionConflict)
	}
	return nil
}

// limitOffset appends pagination clauses to a query.
func limitOffset(query string, opts domain.ListOpts, args []any) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// Compile-time interface check.
var _ domain.Store = (*Store)(nil)
