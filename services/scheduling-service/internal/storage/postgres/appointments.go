package postgres

import (
	"context"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `
	a.id::text, a.appt_date, a.start_time, a.end_time, a.duration_minutes, a.status,
	a.patient_id, COALESCE(a.treatment_id::text, ''), a.amount, a.notes, a.paid, a.payment_ref,
	a.cancel_reason, a.cancelled_at, a.created_at, a.updated_at,
	COALESCE(NULLIF(trim(p.first_name || ' ' || p.last_name), ''), '')`

const appointmentFrom = `
	FROM appointments a
	LEFT JOIN patients p ON p.national_id = a.patient_id`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a          model.Appointment
		start, end string
		status     string
	)
	err := row.Scan(
		&a.ID,
		&a.Date,
		&start,
		&end,
		&a.DurationMinutes,
		&status,
		&a.PatientID,
		&a.TreatmentID,
		&a.Amount,
		&a.Notes,
		&a.Paid,
		&a.PaymentRef,
		&a.CancelReason,
		&a.CancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PatientName,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	if a.Start, a.End, err = parseTimes(start, end); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (t *tx) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.id::text = $1
		FOR UPDATE OF a
	`, id)
	a, err := scanAppointment(row)
	return a, mapNotFound(err)
}

func (t *tx) AppointmentsForDate(ctx context.Context, date time.Time) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.appt_date = $1
		ORDER BY a.start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (t *tx) ListAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+appointmentColumns+appointmentFrom+`
		WHERE a.appt_date BETWEEN $1 AND $2
		ORDER BY a.appt_date ASC, a.start_minute ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (t *tx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, appt_date, start_time, end_time, start_minute, end_minute, duration_minutes, status,
			 patient_id, treatment_id, amount, notes, paid, payment_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, a.ID, a.Date, a.Start.String(), a.End.String(), a.StartMinute(), a.EndMinute(), a.DurationMinutes,
		string(a.Status), a.PatientID, nullIfEmpty(a.TreatmentID), a.Amount, a.Notes, a.Paid, a.PaymentRef)
	return mapAppointmentErr(err)
}

func (t *tx) UpdateAppointment(ctx context.Context, a model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET appt_date = $2,
			start_time = $3,
			end_time = $4,
			start_minute = $5,
			end_minute = $6,
			duration_minutes = $7,
			status = $8,
			treatment_id = $9,
			amount = $10,
			notes = $11,
			paid = $12,
			payment_ref = $13,
			cancel_reason = $14,
			cancelled_at = $15,
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.Date, a.Start.String(), a.End.String(), a.StartMinute(), a.EndMinute(), a.DurationMinutes,
		string(a.Status), nullIfEmpty(a.TreatmentID), a.Amount, a.Notes, a.Paid, a.PaymentRef,
		a.CancelReason, a.CancelledAt)
	if err != nil {
		return mapAppointmentErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mapAppointmentErr(pgx.ErrNoRows)
	}
	return nil
}
