package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

func (t *tx) WeeklySchedules(ctx context.Context, weekday int) ([]model.WeeklySchedule, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id::text, day_of_week, start_time, end_time, is_active
		FROM weekly_schedules
		WHERE day_of_week = $1 AND is_active
		ORDER BY start_time ASC
	`, weekday)
	if err != nil {
		return nil, err
	}
	return collectWeekly(rows)
}

func (t *tx) ListWeeklySchedules(ctx context.Context) ([]model.WeeklySchedule, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id::text, day_of_week, start_time, end_time, is_active
		FROM weekly_schedules
		ORDER BY day_of_week ASC, start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectWeekly(rows)
}

func collectWeekly(rows pgx.Rows) ([]model.WeeklySchedule, error) {
	defer rows.Close()
	var out []model.WeeklySchedule
	for rows.Next() {
		var (
			w          model.WeeklySchedule
			start, end string
		)
		if err := rows.Scan(&w.ID, &w.DayOfWeek, &start, &end, &w.Active); err != nil {
			return nil, err
		}
		var err error
		if w.Start, w.End, err = parseTimes(start, end); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (t *tx) ReplaceWeeklySchedules(ctx context.Context, items []model.WeeklySchedule) error {
	if _, err := t.tx.Exec(ctx, `UPDATE weekly_schedules SET is_active = FALSE WHERE is_active`); err != nil {
		return err
	}
	for _, w := range items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO weekly_schedules (id, day_of_week, start_time, end_time, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
		`, w.ID, w.DayOfWeek, w.Start.String(), w.End.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) ExceptionForDate(ctx context.Context, date time.Time) (*model.ScheduleException, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT exception_date, start_time, end_time, is_available, reason
		FROM schedule_exceptions
		WHERE exception_date = $1
	`, date)
	ex, err := scanException(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ex, nil
}

func scanException(row pgx.Row) (model.ScheduleException, error) {
	var (
		ex         model.ScheduleException
		start, end *string
	)
	if err := row.Scan(&ex.Date, &start, &end, &ex.Available, &ex.Reason); err != nil {
		return model.ScheduleException{}, err
	}
	if start != nil {
		v, err := clock.Parse(*start)
		if err != nil {
			return model.ScheduleException{}, err
		}
		ex.Start = &v
	}
	if end != nil {
		v, err := clock.Parse(*end)
		if err != nil {
			return model.ScheduleException{}, err
		}
		ex.End = &v
	}
	return ex, nil
}

func optionalTime(t *clock.TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

func (t *tx) UpsertException(ctx context.Context, ex model.ScheduleException) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO schedule_exceptions (exception_date, start_time, end_time, is_available, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (exception_date) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_available = EXCLUDED.is_available,
			reason = EXCLUDED.reason
	`, ex.Date, optionalTime(ex.Start), optionalTime(ex.End), ex.Available, ex.Reason)
	return err
}

func (t *tx) DeleteException(ctx context.Context, date time.Time) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM schedule_exceptions WHERE exception_date = $1`, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *tx) ListExceptions(ctx context.Context, from, to time.Time) ([]model.ScheduleException, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT exception_date, start_time, end_time, is_available, reason
		FROM schedule_exceptions
		WHERE exception_date BETWEEN $1 AND $2
		ORDER BY exception_date ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduleException
	for rows.Next() {
		ex, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

const blockColumns = `id::text, block_date, start_time, end_time, block_type, description, created_at`

func collectBlocks(rows pgx.Rows) ([]model.ManualBlock, error) {
	defer rows.Close()
	var out []model.ManualBlock
	for rows.Next() {
		var (
			b          model.ManualBlock
			start, end string
		)
		if err := rows.Scan(&b.ID, &b.Date, &start, &end, &b.Type, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if b.Start, b.End, err = parseTimes(start, end); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (t *tx) ManualBlocksForDate(ctx context.Context, date time.Time) ([]model.ManualBlock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+blockColumns+`
		FROM manual_blocks
		WHERE block_date = $1
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (t *tx) ListManualBlocks(ctx context.Context, from, to time.Time) ([]model.ManualBlock, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+blockColumns+`
		FROM manual_blocks
		WHERE block_date BETWEEN $1 AND $2
		ORDER BY block_date ASC, start_minute ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectBlocks(rows)
}

func (t *tx) InsertManualBlock(ctx context.Context, b model.ManualBlock) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO manual_blocks (id, block_date, start_time, end_time, start_minute, end_minute, block_type, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.Date, b.Start.String(), b.End.String(), b.Start.Minutes(), b.End.Minutes(), b.Type, b.Description)
	if pgCode(err) == codeExclusionViolation {
		return storage.ErrBlockOverlap
	}
	return err
}

func (t *tx) DeleteManualBlock(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM manual_blocks WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
