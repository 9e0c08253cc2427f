package postgres

import (
	"context"
	"fmt"

	"github.com/stakehouse/stakehouse/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	db DBTX
}

const userSelectCols = `id, username, balance, locked_balance, version, created_at, updated_at`

// Create inserts a new user row.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, username, balance, locked_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := s.db.Exec(ctx, query,
		u.ID, u.Username, u.Balance, u.LockedBalance, u.Version, u.CreatedAt,
	)
	if err != nil {
		return mapErr(err, "create user")
	}
	return nil
}

// GetByID returns the user with the given ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userSelectCols + ` FROM users WHERE id = $1`
	var u domain.User
	err := s.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Balance, &u.LockedBalance,
		&u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapErr(err, fmt.Sprintf("get user %s", id))
	}
	return u, nil
}

// Update writes the user's wallet state with a version compare-and-swap.
func (s *UserStore) Update(ctx context.Context, u domain.User) error {
	const query = `
		UPDATE users
		SET balance = $1, locked_balance = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4`
	tag, err := s.db.Exec(ctx, query, u.Balance, u.LockedBalance, u.ID, u.Version)
	if err != nil {
		return mapErr(err, fmt.Sprintf("update user %s", u.ID))
	}
	return casCheck(tag, fmt.Sprintf("update user %s", u.ID))
}

// List returns users ordered by creation time.
func (s *UserStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	query := `SELECT ` + userSelectCols + ` FROM users ORDER BY created_at`
	query, args := limitOffset(query, opts, nil)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list users")
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Balance, &u.LockedBalance,
			&u.Version, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, mapErr(err, "scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Compile-time interface check.
var _ domain.UserStore = (*UserStore)(nil)
