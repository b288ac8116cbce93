package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"userbench/internal/domain"
	"userbench/internal/dto"
	"userbench/internal/repository"
)

// DefaultMaxPageSize applies when Options.MaxPageSize is unset.
const DefaultMaxPageSize = 1000

// UserService describes the two operations served by the API.
type UserService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (dto.UserResponse, error)
	ListUsers(ctx context.Context, page, size int64) (dto.PageResponse[dto.UserResponse], error)
}

// Options tune both service implementations.
type Options struct {
	MaxPageSize int64
	// Now is overridable in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type userService struct {
	users repository.UserRepository
	opts  Options
}

// NewUserService returns the worker-per-request implementation: every call
// runs to completion on the caller's goroutine.
func NewUserService(users repository.UserRepository, opts Options) UserService {
	return &userService{
		users: users,
		opts:  opts.withDefaults(),
	}
}

func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (dto.UserResponse, error) {
	user, err := newUser(req, s.opts.Now)
	if err != nil {
		return dto.UserResponse{}, err
	}

	stored, err := s.users.Insert(ctx, user)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.ToResponse(*stored), nil
}

func (s *userService) ListUsers(ctx context.Context, page, size int64) (dto.PageResponse[dto.UserResponse], error) {
	offset, err := pageOffset(page, size, s.opts.MaxPageSize)
	if err != nil {
		return dto.PageResponse[dto.UserResponse]{}, err
	}

	// Two independent reads: the total may be taken at a different instant than the page.
	total, err := s.users.Count(ctx)
	if err != nil {
		return dto.PageResponse[dto.UserResponse]{}, err
	}
	users, err := s.users.FindPage(ctx, size, offset)
	if err != nil {
		return dto.PageResponse[dto.UserResponse]{}, err
	}

	return dto.NewPage(dto.ToResponses(users), page, size, total), nil
}

// newUser validates req and builds the entity with both timestamps set to
// the same instant. Field values are stored exactly as supplied; blank
// checks ignore surrounding whitespace. Microsecond precision survives
// every supported store.
func newUser(req dto.CreateUserRequest, now func() time.Time) (*domain.User, error) {
	switch {
	case blank(req.Username):
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	case blank(req.Email):
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	case blank(req.FirstName):
		return nil, fmt.Errorf("%w: firstName is required", domain.ErrInvalidInput)
	case blank(req.LastName):
		return nil, fmt.Errorf("%w: lastName is required", domain.ErrInvalidInput)
	}

	user := dto.ToEntity(req)
	ts := now().UTC().Truncate(time.Microsecond)
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return user, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func pageOffset(page, size, maxSize int64) (int64, error) {
	if page < 0 {
		return 0, fmt.Errorf("%w: page must not be negative", domain.ErrInvalidInput)
	}
	if size < 1 {
		return 0, fmt.Errorf("%w: size must be at least 1", domain.ErrInvalidInput)
	}
	if size > maxSize {
		return 0, fmt.Errorf("%w: size must not exceed %d", domain.ErrInvalidInput, maxSize)
	}
	const maxInt64 = int64(^uint64(0) >> 1)
	if page > maxInt64/size {
		return 0, fmt.Errorf("%w: page out of range", domain.ErrInvalidInput)
	}
	return page * size, nil
}
