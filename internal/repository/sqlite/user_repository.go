package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"userbench/internal/domain"
	"userbench/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

type UserRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewUserRepository returns a sqlite backed repository. A positive timeout
// bounds every call, including the wait for a free connection.
func NewUserRepository(db *sql.DB, timeout time.Duration) repository.UserRepository {
	return &UserRepository{db: db, timeout: timeout}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, first_name, last_name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, classify("insert user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user last insert id: %w", err)
	}

	stored := *user
	stored.ID = id
	return &stored, nil
}

func (r *UserRepository) FindPage(ctx context.Context, limit, offset int64) ([]domain.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT id, username, email, first_name, last_name, created_at, updated_at
FROM users
ORDER BY id ASC
LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, classify("query users page", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate users page", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, classify("count users", err)
	}
	return total, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return classify("ping sqlite", err)
	}
	return nil
}

func (r *UserRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}

func classify(op string, err error) error {
	switch {
	case strings.Contains(strings.ToLower(err.Error()), "unique constraint failed"):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrDuplicateUser, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		strings.Contains(strings.ToLower(err.Error()), "database is locked"):
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
