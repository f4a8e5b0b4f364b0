package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapWriteError(t *testing.T) {
	otherUnique := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "patients_email_key"}
	plain := errors.New("connection reset by peer")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"live slot index", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: liveSlotConstraint}, ErrSlotConflict},
		{"wrapped live slot index", fmt.Errorf("commit: %w", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: liveSlotConstraint}), ErrSlotConflict},
		{"patient foreign key", &pgconn.PgError{Code: pgForeignKeyViolated, ConstraintName: patientFKConstraint}, ErrPatientNotFound},
		{"other unique constraint", otherUnique, otherUnique},
		{"not a postgres error", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapWriteError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
