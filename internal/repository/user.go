package repository

import (
	"context"

	"userbench/internal/domain"
)

// UserRepository defines persistence operations for User entities.
//
// Count and FindPage are independent reads; callers combining them get no
// snapshot guarantee between the two.
type UserRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, user *domain.User) (*domain.User, error)
	FindPage(ctx context.Context, limit, offset int64) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
