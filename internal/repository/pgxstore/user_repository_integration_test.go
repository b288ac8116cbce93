package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"userbench/internal/domain"
	"userbench/internal/repository"
)

// testDSNEnv names a disposable database; the tests below create and drop
// their own schema in it.
const testDSNEnv = "USERBENCH_TEST_PG_DSN"

const testSchema = "userbench_pgx_test"

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err == nil {
			q := u.Query()
			q.Set("search_path", schema)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return dsn + " search_path=" + schema
}

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()

	admin, err := Open(ctx, dsn, PoolOptions{MaxConns: 1})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if _, err := admin.Exec(ctx, "DROP SCHEMA IF EXISTS "+testSchema+" CASCADE; CREATE SCHEMA "+testSchema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+testSchema+" CASCADE")
		admin.Close()
	})

	pool, err := Open(ctx, withSearchPath(dsn, testSchema), PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := NewUserRepository(pool, 5*time.Second)
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo
}

func testUser(n int) *domain.User {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678901000, time.UTC)
	return &domain.User{
		Username:  fmt.Sprintf("user%d", n),
		Email:     fmt.Sprintf("user%d@example.com", n),
		FirstName: "First",
		LastName:  "Last",
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestInsert_ReturnsID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		stored, err := repo.Insert(ctx, testUser(i))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if stored.ID <= last {
			t.Fatalf("expected id greater than %d, got %d", last, stored.ID)
		}
		last = stored.ID
	}
}

func TestInsert_UniqueViolation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Insert(ctx, testUser(1)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	sameName := testUser(1)
	sameName.Email = "other@example.com"
	if _, err := repo.Insert(ctx, sameName); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for username, got %v", err)
	}
	sameEmail := testUser(1)
	sameEmail.Username = "other"
	if _, err := repo.Insert(ctx, sameEmail); !errors.Is(err, domain.ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for email, got %v", err)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 stored user, got %d", total)
	}
}

func TestFindPage_LimitOffset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := repo.Insert(ctx, testUser(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	second, err := repo.FindPage(ctx, 2, 2)
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if len(second) != 2 || second[0].Username != "user2" || second[1].Username != "user3" {
		t.Fatalf("unexpected second page %+v", second)
	}

	beyond, err := repo.FindPage(ctx, 2, 10)
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if beyond == nil || len(beyond) != 0 {
		t.Errorf("expected empty non-nil slice past the end, got %#v", beyond)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 5 {
		t.Errorf("expected 5, got %d", total)
	}
}

func TestFindPage_RoundTripsTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := testUser(9)
	if _, err := repo.Insert(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	users, err := repo.FindPage(ctx, 10, 0)
	if err != nil {
		t.Fatalf("find page: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	got := users[0]
	if !got.CreatedAt.Equal(in.CreatedAt) || !got.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("timestamps changed: got %v want %v", got.CreatedAt, in.CreatedAt)
	}
	if got.CreatedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamps, got %v", got.CreatedAt.Location())
	}
}
