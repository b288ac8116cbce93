package service

import (
	"context"

	"userbench/internal/domain"
	"userbench/internal/dto"
	"userbench/internal/eventloop"
	"userbench/internal/repository"
)

// EventLoopUserService implements UserService on top of an eventloop.Loop.
type EventLoopUserService struct {
	loop  *eventloop.Loop
	users repository.UserRepository
	opts  Options
}

// NewEventLoopUserService returns the continuation-passing implementation.
// Validation and mapping run on loop workers, repository calls run off the
// loop, and the calling goroutine only waits for the final result.
func NewEventLoopUserService(loop *eventloop.Loop, users repository.UserRepository, opts Options) *EventLoopUserService {
	return &EventLoopUserService{
		loop:  loop,
		users: users,
		opts:  opts.withDefaults(),
	}
}

func (s *EventLoopUserService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (dto.UserResponse, error) {
	return s.CreateUserAsync(ctx, req).Await(ctx)
}

func (s *EventLoopUserService) ListUsers(ctx context.Context, page, size int64) (dto.PageResponse[dto.UserResponse], error) {
	return s.ListUsersAsync(ctx, page, size).Await(ctx)
}

func (s *EventLoopUserService) CreateUserAsync(ctx context.Context, req dto.CreateUserRequest) *eventloop.Promise[dto.UserResponse] {
	built := eventloop.Run(s.loop, func() (*domain.User, error) {
		return newUser(req, s.opts.Now)
	})
	saved := eventloop.Then(built, func(user *domain.User) *eventloop.Promise[*domain.User] {
		return eventloop.Go(s.loop, ctx, func(ctx context.Context) (*domain.User, error) {
			return s.users.Insert(ctx, user)
		})
	})
	return eventloop.Map(saved, func(user *domain.User) (dto.UserResponse, error) {
		return dto.ToResponse(*user), nil
	})
}

// ListUsersAsync counts first and fetches the page from the count's
// continuation. The two reads are not isolated from concurrent inserts.
func (s *EventLoopUserService) ListUsersAsync(ctx context.Context, page, size int64) *eventloop.Promise[dto.PageResponse[dto.UserResponse]] {
	offset, err := pageOffset(page, size, s.opts.MaxPageSize)
	if err != nil {
		return eventloop.Rejected[dto.PageResponse[dto.UserResponse]](s.loop, err)
	}

	counted := eventloop.Go(s.loop, ctx, s.users.Count)
	return eventloop.Then(counted, func(total int64) *eventloop.Promise[dto.PageResponse[dto.UserResponse]] {
		users := eventloop.Go(s.loop, ctx, func(ctx context.Context) ([]domain.User, error) {
			return s.users.FindPage(ctx, size, offset)
		})
		return eventloop.Map(users, func(users []domain.User) (dto.PageResponse[dto.UserResponse], error) {
			return dto.NewPage(dto.ToResponses(users), page, size, total), nil
		})
	})
}
