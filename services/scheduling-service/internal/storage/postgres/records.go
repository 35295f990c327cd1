package postgres

import (
	"context"
	"errors"

	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

func (t *tx) GetPatient(ctx context.Context, nationalID string) (model.Patient, error) {
	var p model.Patient
	err := t.tx.QueryRow(ctx, `
		SELECT national_id, first_name, last_name, email, phone, created_at, updated_at
		FROM patients
		WHERE national_id = $1
	`, nationalID).Scan(&p.NationalID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	return p, mapNotFound(err)
}

func (t *tx) UpsertPatient(ctx context.Context, p model.Patient) (model.Patient, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO patients (national_id, first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (national_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			updated_at = now()
		RETURNING created_at, updated_at
	`, p.NationalID, p.FirstName, p.LastName, p.Email, p.Phone).Scan(&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *tx) GetTreatment(ctx context.Context, id string) (model.Treatment, error) {
	var (
		tr   model.Treatment
		kind string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, kind, name, price, duration_minutes, is_active
		FROM treatments
		WHERE id::text = $1
	`, id).Scan(&tr.ID, &kind, &tr.Name, &tr.Price, &tr.DurationMinutes, &tr.Active)
	tr.Kind = model.TreatmentKind(kind)
	return tr, mapNotFound(err)
}

func (t *tx) LockIdempotencyKey(ctx context.Context, key string) (storage.IdempotencyRecord, bool, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, key)
	if err == nil {
		return rec, rec.AppointmentID != "", nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storage.IdempotencyRecord{}, false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return storage.IdempotencyRecord{}, false, err
	}

	rec, err = t.selectIdempotencyForUpdate(ctx, key)
	if err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	return rec, rec.AppointmentID != "", nil
}

func (t *tx) selectIdempotencyForUpdate(ctx context.Context, key string) (storage.IdempotencyRecord, error) {
	var rec storage.IdempotencyRecord
	err := t.tx.QueryRow(ctx, `
		SELECT idempotency_key, COALESCE(appointment_id::text, '')
		FROM idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&rec.Key, &rec.AppointmentID)
	return rec, err
}

func (t *tx) FinalizeIdempotency(ctx context.Context, rec storage.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE idempotency_keys
		SET appointment_id = $2,
			updated_at = now()
		WHERE idempotency_key = $1
	`, rec.Key, nullIfEmpty(rec.AppointmentID))
	return err
}

func (t *tx) RecordPaymentEvent(ctx context.Context, evt storage.PaymentEvent) error {
	payload := evt.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO payment_events (provider, event_id, event_type, appointment_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, event_id) DO NOTHING
	`, evt.Provider, evt.EventID, evt.EventType, nullIfEmpty(evt.AppointmentID), payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDuplicate
	}
	return nil
}
