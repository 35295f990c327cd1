package model

import (
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Occupies reports whether an appointment in this status blocks its slot.
func (s Status) Occupies() bool { return s == StatusPending || s == StatusConfirmed }

type Appointment struct {
	ID              string
	Date            time.Time
	Start           clock.TimeOfDay
	End             clock.TimeOfDay
	DurationMinutes int
	Status          Status
	PatientID       string
	TreatmentID     string
	Amount          int64
	Notes           string
	Paid            bool
	PaymentRef      string
	CancelReason    string
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// PatientName is filled by day reads for conflict messages; it is not persisted.
	PatientName string
}

func (a Appointment) StartMinute() int { return a.Start.Minutes() }
func (a Appointment) EndMinute() int   { return a.End.Minutes() }

type Patient struct {
	NationalID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p Patient) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

type TreatmentKind string

const (
	KindTreatment TreatmentKind = "treatment"
	KindPackage   TreatmentKind = "package"
)

// Treatment is a bookable service or package; Price is in minor currency units.
type Treatment struct {
	ID              string
	Kind            TreatmentKind
	Name            string
	Price           int64
	DurationMinutes int
	Active          bool
}
