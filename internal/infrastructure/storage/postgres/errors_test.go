package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"retailops/internal/core/apperror"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped deadlock", fmt.Errorf("lock snapshot: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"wrapped in app error", apperror.NewInternal(&pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestMapError(t *testing.T) {
	err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "invoices_tenant_sale_key"}, "invoice")
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicate))

	err = MapError(&pgconn.PgError{Code: "23514", ConstraintName: "inventory_snapshots_on_hand_check"}, "snapshot")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidArgument))

	plain := errors.New("conn reset")
	assert.Same(t, plain, MapError(plain, "invoice"))
}
