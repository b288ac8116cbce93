package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"userbench/internal/domain"
)

func TestClassify(t *testing.T) {
	dup := classify("insert user", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	if !errors.Is(dup, domain.ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", dup)
	}

	wrapped := classify("insert user", fmt.Errorf("query: %w", &pgconn.PgError{Code: "23505"}))
	if !errors.Is(wrapped, domain.ErrDuplicateUser) {
		t.Errorf("expected wrapped unique violation to classify, got %v", wrapped)
	}

	timeout := classify("count users", context.DeadlineExceeded)
	if !errors.Is(timeout, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", timeout)
	}

	other := classify("count users", &pgconn.PgError{Code: "42601"})
	if errors.Is(other, domain.ErrDuplicateUser) || errors.Is(other, domain.ErrStorageUnavailable) {
		t.Errorf("syntax error must stay unclassified, got %v", other)
	}
}
