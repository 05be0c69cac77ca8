package storage

import (
	"context"
	"database/sql"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

func (s *SQLStore) FindUser(ctx context.Context, id string) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, ErrDisabled
	}
	return findUser(ctx, s.db, `SELECT id, name, role FROM users WHERE id = ?`, id)
}

// FindFirstUserByRole returns the oldest user holding role.
func (s *SQLStore) FindFirstUserByRole(ctx context.Context, role string) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, ErrDisabled
	}
	return findFirstUserByRole(ctx, s.db, role)
}

func findFirstUserByRole(ctx context.Context, q querier, role string) (domain.User, error) {
	return findUser(ctx, q,
		`SELECT id, name, role FROM users WHERE role = ? ORDER BY created_at, rowid LIMIT 1`, role)
}

func findUser(ctx context.Context, q querier, query string, arg any) (domain.User, error) {
	var u domain.User
	err := q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, errors.WithStack(domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, errors.Wrap(err, "query user")
	}
	return u, nil
}
