package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"userbench/internal/domain"
	"userbench/internal/dto"
	"userbench/internal/eventloop"
)

// memoryRepo is an in-process UserRepository with the same uniqueness rules as the stores.
type memoryRepo struct {
	mu     sync.Mutex
	users  []domain.User
	calls  []string
	err    error
	nextID int64
}

func (r *memoryRepo) Init(context.Context) error { return nil }

func (r *memoryRepo) Insert(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "insert")
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrDuplicateUser
		}
	}
	r.nextID++
	stored := *user
	stored.ID = r.nextID
	r.users = append(r.users, stored)
	return &stored, nil
}

func (r *memoryRepo) FindPage(_ context.Context, limit, offset int64) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "page")
	if r.err != nil {
		return nil, r.err
	}
	out := []domain.User{}
	for i := offset; i < int64(len(r.users)) && i < offset+limit; i++ {
		out = append(out, r.users[i])
	}
	return out, nil
}

func (r *memoryRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "count")
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.users)), nil
}

func (r *memoryRepo) Ping(context.Context) error { return r.err }

func (r *memoryRepo) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

var fixedNow = time.Date(2024, 3, 4, 5, 6, 7, 891234567, time.UTC)

// implementations returns both execution models over a fresh repository.
func implementations(t *testing.T) map[string]func(*memoryRepo) UserService {
	t.Helper()
	opts := Options{MaxPageSize: 50, Now: func() time.Time { return fixedNow }}
	return map[string]func(*memoryRepo) UserService{
		"blocking": func(repo *memoryRepo) UserService {
			return NewUserService(repo, opts)
		},
		"eventloop": func(repo *memoryRepo) UserService {
			logger := logrus.New()
			logger.SetOutput(io.Discard)
			loop := eventloop.New(eventloop.Config{Workers: 2, QueueSize: 64, Logger: logger})
			loop.Start()
			t.Cleanup(loop.Close)
			return NewEventLoopUserService(loop, repo, opts)
		},
	}
}

func validRequest() dto.CreateUserRequest {
	return dto.CreateUserRequest{Username: "a", Email: "a@x.com", FirstName: "F", LastName: "L"}
}

func TestCreateUser(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepo{}
			svc := build(repo)

			resp, err := svc.CreateUser(context.Background(), validRequest())
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if resp.ID <= 0 {
				t.Errorf("expected positive id, got %d", resp.ID)
			}
			want := fixedNow.Truncate(time.Microsecond)
			if !resp.CreatedAt.Equal(want) || !resp.UpdatedAt.Equal(resp.CreatedAt) {
				t.Errorf("timestamps: created %v updated %v, want both %v", resp.CreatedAt, resp.UpdatedAt, want)
			}
			if resp.Username != "a" || resp.Email != "a@x.com" || resp.FirstName != "F" || resp.LastName != "L" {
				t.Errorf("fields not preserved: %+v", resp)
			}
		})
	}
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.CreateUserRequest)
	}{
		{"empty username", func(r *dto.CreateUserRequest) { r.Username = "" }},
		{"blank email", func(r *dto.CreateUserRequest) { r.Email = "   " }},
		{"empty first name", func(r *dto.CreateUserRequest) { r.FirstName = "" }},
		{"empty last name", func(r *dto.CreateUserRequest) { r.LastName = "\t" }},
	}

	for name, build := range implementations(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				repo := &memoryRepo{}
				svc := build(repo)

				req := validRequest()
				tt.mutate(&req)
				_, err := svc.CreateUser(context.Background(), req)
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				if calls := repo.callLog(); len(calls) != 0 {
					t.Errorf("invalid input must not reach the store, calls %v", calls)
				}
			})
		}
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepo{}
			svc := build(repo)
			ctx := context.Background()

			if _, err := svc.CreateUser(ctx, validRequest()); err != nil {
				t.Fatalf("first create: %v", err)
			}
			dup := validRequest()
			dup.Email = "other@x.com"
			if _, err := svc.CreateUser(ctx, dup); !errors.Is(err, domain.ErrDuplicateUser) {
				t.Fatalf("expected ErrDuplicateUser, got %v", err)
			}
			if len(repo.users) != 1 {
				t.Errorf("expected one stored user, got %d", len(repo.users))
			}
		})
	}
}

func TestListUsers(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepo{}
			svc := build(repo)
			ctx := context.Background()

			for _, u := range []string{"a", "b", "c", "d", "e"} {
				req := dto.CreateUserRequest{Username: u, Email: u + "@x.com", FirstName: "F", LastName: "L"}
				if _, err := svc.CreateUser(ctx, req); err != nil {
					t.Fatalf("create %s: %v", u, err)
				}
			}

			page, err := svc.ListUsers(ctx, 1, 2)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if page.TotalElements != 5 || page.TotalPages != 3 || page.Page != 1 || page.Size != 2 {
				t.Errorf("unexpected envelope %+v", page)
			}
			if len(page.Content) != 2 || page.Content[0].Username != "c" || page.Content[1].Username != "d" {
				t.Errorf("unexpected content %+v", page.Content)
			}

			beyond, err := svc.ListUsers(ctx, 3, 2)
			if err != nil {
				t.Fatalf("list beyond: %v", err)
			}
			if len(beyond.Content) != 0 || beyond.Content == nil || beyond.TotalElements != 5 || beyond.TotalPages != 3 {
				t.Errorf("unexpected page past the end %+v", beyond)
			}
		})
	}
}

func TestListUsers_CountsBeforeFetching(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepo{}
			svc := build(repo)

			if _, err := svc.ListUsers(context.Background(), 0, 20); err != nil {
				t.Fatalf("list: %v", err)
			}
			calls := repo.callLog()
			if len(calls) != 2 || calls[0] != "count" || calls[1] != "page" {
				t.Errorf("expected count then page, got %v", calls)
			}
		})
	}
}

func TestListUsers_RejectsBadPaging(t *testing.T) {
	tests := []struct {
		name       string
		page, size int64
	}{
		{"zero size", 0, 0},
		{"negative size", 0, -1},
		{"negative page", -1, 20},
		{"size above max", 0, 51},
		{"offset overflow", 1 << 62, 50},
	}

	for name, build := range implementations(t) {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				repo := &memoryRepo{}
				svc := build(repo)

				_, err := svc.ListUsers(context.Background(), tt.page, tt.size)
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				if calls := repo.callLog(); len(calls) != 0 {
					t.Errorf("rejected paging must not reach the store, calls %v", calls)
				}
			})
		}
	}
}

func TestListUsers_PropagatesStorageErrors(t *testing.T) {
	for name, build := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := &memoryRepo{err: domain.ErrStorageUnavailable}
			svc := build(repo)

			if _, err := svc.ListUsers(context.Background(), 0, 10); !errors.Is(err, domain.ErrStorageUnavailable) {
				t.Fatalf("expected ErrStorageUnavailable, got %v", err)
			}
			if calls := repo.callLog(); len(calls) != 1 {
				t.Errorf("a failed count must stop the chain, calls %v", calls)
			}
		})
	}
}

func TestPageOffset(t *testing.T) {
	offset, err := pageOffset(3, 20, 100)
	if err != nil || offset != 60 {
		t.Fatalf("got %d, %v; want 60", offset, err)
	}
}
