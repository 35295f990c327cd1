// Package postgres implements storage.Storage on pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/calmspace/practice/libs/db"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

type Store struct {
	pool *db.Pool
}

var _ storage.Storage = (*Store)(nil)

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(ptx pgx.Tx) error {
		return fn(ctx, &tx{tx: ptx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type tx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*tx)(nil)

// LockDate takes a transaction-scoped advisory lock keyed by the calendar date.
func (t *tx) LockDate(ctx context.Context, date time.Time) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "appointments:"+clock.FormatDate(date))
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapAppointmentErr translates constraint violations on appointments into
// storage sentinels.
func mapAppointmentErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	}
	switch pgCode(err) {
	case codeUniqueViolation:
		return storage.ErrSlotTaken
	case codeExclusionViolation:
		return storage.ErrRangeConflict
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseTimes converts the stored HH:MM:SS pair back into clock values.
func parseTimes(start, end string) (clock.TimeOfDay, clock.TimeOfDay, error) {
	s, err := clock.Parse(start)
	if err != nil {
		return clock.TimeOfDay{}, clock.TimeOfDay{}, err
	}
	e, err := clock.Parse(end)
	if err != nil {
		return clock.TimeOfDay{}, clock.TimeOfDay{}, err
	}
	return s, e, nil
}
