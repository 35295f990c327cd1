// Package storage declares the persistence contract of the scheduling service.
// Implementations live in storage/postgres and storage/memory; one is chosen at
// startup and every operation runs inside Storage.Atomic.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken is a uniqueness violation on (date, start) among non-cancelled appointments.
	ErrSlotTaken = errors.New("appointment slot already taken")
	// ErrRangeConflict is an overlap violation among non-cancelled appointments.
	ErrRangeConflict = errors.New("appointment range overlaps another appointment")
	ErrBlockOverlap  = errors.New("manual block overlaps another block")
	ErrDuplicate     = errors.New("duplicate record")
)

// DayReader is everything availability and conflict checks need for one date.
type DayReader interface {
	// WeeklySchedules returns active windows for weekday (0 = Sunday).
	WeeklySchedules(ctx context.Context, weekday int) ([]model.WeeklySchedule, error)
	// ExceptionForDate returns nil when the date has no exception.
	ExceptionForDate(ctx context.Context, date time.Time) (*model.ScheduleException, error)
	ManualBlocksForDate(ctx context.Context, date time.Time) ([]model.ManualBlock, error)
	// AppointmentsForDate returns every appointment on date, cancelled included,
	// with PatientName resolved when possible.
	AppointmentsForDate(ctx context.Context, date time.Time) ([]model.Appointment, error)
}

type ScheduleAdmin interface {
	ListWeeklySchedules(ctx context.Context) ([]model.WeeklySchedule, error)
	// ReplaceWeeklySchedules deactivates every current window and stores items as the new set.
	ReplaceWeeklySchedules(ctx context.Context, items []model.WeeklySchedule) error
	UpsertException(ctx context.Context, ex model.ScheduleException) error
	DeleteException(ctx context.Context, date time.Time) error
	ListExceptions(ctx context.Context, from, to time.Time) ([]model.ScheduleException, error)
	InsertManualBlock(ctx context.Context, b model.ManualBlock) error
	DeleteManualBlock(ctx context.Context, id string) error
	ListManualBlocks(ctx context.Context, from, to time.Time) ([]model.ManualBlock, error)
}

type AppointmentStore interface {
	// GetAppointment locks the row for the rest of the transaction where supported.
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	InsertAppointment(ctx context.Context, a model.Appointment) error
	UpdateAppointment(ctx context.Context, a model.Appointment) error
	ListAppointments(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type PatientStore interface {
	GetPatient(ctx context.Context, nationalID string) (model.Patient, error)
	// UpsertPatient creates the patient or updates its mutable fields.
	UpsertPatient(ctx context.Context, p model.Patient) (model.Patient, error)
}

type TreatmentReader interface {
	GetTreatment(ctx context.Context, id string) (model.Treatment, error)
}

type IdempotencyRecord struct {
	Key           string
	AppointmentID string
}

type IdempotencyStore interface {
	// LockIdempotencyKey reserves key for this transaction; exists reports a
	// previously finalized record.
	LockIdempotencyKey(ctx context.Context, key string) (rec IdempotencyRecord, exists bool, err error)
	FinalizeIdempotency(ctx context.Context, rec IdempotencyRecord) error
}

type PaymentEvent struct {
	Provider      string
	EventID       string
	EventType     string
	AppointmentID string
	Payload       []byte
}

type PaymentEventStore interface {
	// RecordPaymentEvent returns ErrDuplicate for an already processed event id.
	RecordPaymentEvent(ctx context.Context, evt PaymentEvent) error
}

// Tx is a unit of work.
type Tx interface {
	DayReader
	ScheduleAdmin
	AppointmentStore
	PatientStore
	TreatmentReader
	IdempotencyStore
	PaymentEventStore

	// LockDate serializes writers touching the same calendar date.
	LockDate(ctx context.Context, date time.Time) error
}

type Storage interface {
	// Atomic runs fn in a transaction, committing when fn returns nil.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
