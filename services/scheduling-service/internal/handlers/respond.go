package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
)

// writeErr maps coded errors to their status. Anything else is logged and
// answered with a bare 500.
func writeErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		httpx.WriteError(w, apperr.HTTPStatus(e.Code), string(e.Code), e.Message)
		return
	}
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		httpx.WriteError(w, http.StatusServiceUnavailable, "TIMEOUT", "request timed out")
		return
	}
	logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", httpx.RequestIDFromContext(r.Context()),
		"err", err,
	)
	httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, string(apperr.Validation), err.Error())
}

type patientResponse struct {
	NationalID string `json:"nationalId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type treatmentResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Name            string `json:"name"`
	Price           int64  `json:"price"`
	DurationMinutes int    `json:"durationMinutes"`
}

type appointmentResponse struct {
	ID              string             `json:"id"`
	Date            string             `json:"date"`
	StartTime       string             `json:"startTime"`
	EndTime         string             `json:"endTime"`
	DurationMinutes int                `json:"durationMinutes"`
	Status          string             `json:"status"`
	PatientID       string             `json:"patientId"`
	PatientName     string             `json:"patientName,omitempty"`
	TreatmentID     string             `json:"treatmentId,omitempty"`
	Amount          int64              `json:"amount"`
	Notes           string             `json:"notes,omitempty"`
	Paid            bool               `json:"paid"`
	PaymentRef      string             `json:"paymentRef,omitempty"`
	CancelReason    string             `json:"cancelReason,omitempty"`
	CancelledAt     *time.Time         `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	Patient         *patientResponse   `json:"patient,omitempty"`
	Treatment       *treatmentResponse `json:"treatment,omitempty"`
}

func toAppointment(a model.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              a.ID,
		Date:            clock.FormatDate(a.Date),
		StartTime:       a.Start.String(),
		EndTime:         a.End.String(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		PatientID:       a.PatientID,
		PatientName:     a.PatientName,
		TreatmentID:     a.TreatmentID,
		Amount:          a.Amount,
		Notes:           a.Notes,
		Paid:            a.Paid,
		PaymentRef:      a.PaymentRef,
		CancelReason:    a.CancelReason,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toBooking(b scheduling.Booking) appointmentResponse {
	out := toAppointment(b.Appointment)
	if b.Patient.NationalID != "" {
		out.PatientName = b.Patient.FullName()
		out.Patient = &patientResponse{
			NationalID: b.Patient.NationalID,
			FirstName:  b.Patient.FirstName,
			LastName:   b.Patient.LastName,
			Email:      b.Patient.Email,
			Phone:      b.Patient.Phone,
		}
	}
	if b.Treatment.ID != "" {
		out.Treatment = &treatmentResponse{
			ID:              b.Treatment.ID,
			Kind:            string(b.Treatment.Kind),
			Name:            b.Treatment.Name,
			Price:           b.Treatment.Price,
			DurationMinutes: b.Treatment.DurationMinutes,
		}
	}
	return out
}
