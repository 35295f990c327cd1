// Package events holds the appointment notification intents shared by the
// scheduling and notification services.
package events

const (
	TopicAppointmentCreated     = "scheduling.appointment.created.v1"
	TopicAppointmentRescheduled = "scheduling.appointment.rescheduled.v1"
	TopicAppointmentCancelled   = "scheduling.appointment.cancelled.v1"
)

// Topics lists every topic the scheduling service publishes.
var Topics = []string{
	TopicAppointmentCreated,
	TopicAppointmentRescheduled,
	TopicAppointmentCancelled,
}

// AppointmentSnapshot is the appointment as it looked when the intent was raised.
// Date is YYYY-MM-DD and times are HH:MM:SS in the practice's local time.
type AppointmentSnapshot struct {
	ID              string `json:"id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	TreatmentName   string `json:"treatment_name,omitempty"`
	PatientID       string `json:"patient_id"`
	PatientName     string `json:"patient_name,omitempty"`
	PatientEmail    string `json:"patient_email,omitempty"`
	PatientPhone    string `json:"patient_phone,omitempty"`
}

type AppointmentCreated struct {
	Appointment AppointmentSnapshot `json:"appointment"`
	Channel     string              `json:"channel"`
}

type AppointmentRescheduled struct {
	Previous AppointmentSnapshot `json:"previous"`
	Current  AppointmentSnapshot `json:"current"`
}

type AppointmentCancelled struct {
	Appointment AppointmentSnapshot `json:"appointment"`
	Reason      string              `json:"reason,omitempty"`
}

// Intent is a notification intent ready to be handed to a notifier.
type Intent struct {
	Type        string
	AggregateID string
	Payload     any
}
