package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"userbench/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique violation", &pq.Error{Code: "23505", Constraint: "users_email_key"}, domain.ErrDuplicateUser},
		{"wrapped unique violation", fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}), domain.ErrDuplicateUser},
		{"acquire timeout", context.DeadlineExceeded, domain.ErrStorageUnavailable},
		{"bad conn", driver.ErrBadConn, domain.ErrStorageUnavailable},
		{"other pq error", &pq.Error{Code: "42P01"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			if tt.want == nil {
				if errors.Is(got, domain.ErrDuplicateUser) || errors.Is(got, domain.ErrStorageUnavailable) {
					t.Fatalf("expected unclassified error, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
