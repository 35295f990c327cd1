package storage

import (
	"context"
	"encoding/json"

	"github.com/calmspace/practice/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt to one recipient.
type Notification struct {
	AppointmentID string
	Kind          string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
	ProviderID    string
	Error         string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, kind, channel, recipient, payload, status, provider_id, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
	`, n.AppointmentID, n.Kind, n.Channel, n.Recipient, payload, n.Status, n.ProviderID, n.Error)
	return err
}
