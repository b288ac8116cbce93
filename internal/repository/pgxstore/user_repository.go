package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"userbench/internal/domain"
	"userbench/internal/repository"
	"userbench/internal/repository/postgres"
)

const uniqueViolation = "23505"

// UserRepository stores users through a native pgx pool.
type UserRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewUserRepository(pool *pgxpool.Pool, timeout time.Duration) repository.UserRepository {
	return &UserRepository{pool: pool, timeout: timeout}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgres.Schema); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	stored := *user
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		user.Username, user.Email, user.FirstName, user.LastName, user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	).Scan(&stored.ID)
	if err != nil {
		return nil, classify("insert user", err)
	}
	return &stored, nil
}

func (r *UserRepository) FindPage(ctx context.Context, limit, offset int64) ([]domain.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, username, email, first_name, last_name, created_at, updated_at
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, classify("query users page", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = u.CreatedAt.UTC()
		u.UpdatedAt = u.UpdatedAt.UTC()
		users = append(users, u)
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return 0, classify("count users", err)
	}
	return total, nil
}

func (r *UserRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if err := r.pool.Ping(ctx); err != nil {
		return classify("ping postgres", err)
	}
	return nil
}

func (r *UserRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrDuplicateUser, pgErr.ConstraintName)
	}

	var (
		connectErr *pgconn.ConnectError
		netErr     net.Error
	)
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connectErr) ||
		errors.As(err, &netErr) ||
		pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
