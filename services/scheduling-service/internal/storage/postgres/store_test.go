package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapAppointmentErr(t *testing.T) {
	other := errors.New("connection reset")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, storage.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, storage.ErrSlotTaken},
		{"exclusion", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01"}), storage.ErrRangeConflict},
		{"other", other, other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapAppointmentErr(tc.in); !errors.Is(got, tc.want) && got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseTimes(t *testing.T) {
	s, e, err := parseTimes("09:00:00", "10:30:00")
	if err != nil {
		t.Fatalf("parseTimes failed: %v", err)
	}
	if s.Minutes() != 540 || e.Minutes() != 630 {
		t.Fatalf("unexpected minutes %d %d", s.Minutes(), e.Minutes())
	}
	if _, _, err := parseTimes("25:00:00", "10:00:00"); err == nil {
		t.Fatalf("expected error for invalid start")
	}
}
