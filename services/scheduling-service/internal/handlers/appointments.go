package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/calmspace/practice/libs/auth"
	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
)

type AppointmentHandler struct {
	svc    *scheduling.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *scheduling.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

// channelOf treats callers that may manage appointments as the admin channel.
func channelOf(r *http.Request) scheduling.Channel {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && p.Can(auth.ManageAppointments) {
		return scheduling.ChannelAdmin
	}
	return scheduling.ChannelPublic
}

type availabilityResponse struct {
	Date           string   `json:"date"`
	AvailableSlots []string `json:"availableSlots"`
	TotalSlots     int      `json:"totalSlots"`
}

func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Availability(r.Context(), channelOf(r), r.URL.Query().Get("date"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, availabilityResponse{
		Date:           clock.FormatDate(res.Date),
		AvailableSlots: res.Starts(),
		TotalSlots:     res.Total(),
	})
}

type createRequest struct {
	Patient struct {
		NationalID string `json:"nationalId"`
		FirstName  string `json:"firstName"`
		LastName   string `json:"lastName"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
	} `json:"patient"`
	TreatmentID string `json:"treatmentId"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	EndTime     string `json:"endTime"`
	Notes       string `json:"notes"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.svc.CreateAppointment(r.Context(), channelOf(r), scheduling.CreateInput{
		Patient: scheduling.PatientInput{
			NationalID: req.Patient.NationalID,
			FirstName:  req.Patient.FirstName,
			LastName:   req.Patient.LastName,
			Email:      req.Patient.Email,
			Phone:      req.Patient.Phone,
		},
		TreatmentID:    req.TreatmentID,
		Date:           req.Date,
		Start:          req.Time,
		End:            req.EndTime,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	if b.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, toBooking(b))
}

type rescheduleRequest struct {
	NewDate      string `json:"newDate"`
	NewStartTime string `json:"newStartTime"`
	NewEndTime   string `json:"newEndTime"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.svc.Reschedule(r.Context(), r.PathValue("id"), scheduling.RescheduleInput{
		Date:  req.NewDate,
		Start: req.NewStartTime,
		End:   req.NewEndTime,
	})
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBooking(b))
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req, true); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.svc.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBooking(b))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.svc.ChangeStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBooking(b))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBooking(b))
}

// List takes either ?date= or ?from=&to=.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if d := q.Get("date"); d != "" {
		from, to = d, d
	}
	appts, err := h.svc.ListAppointments(r.Context(), from, to)
	if err != nil {
		writeErr(w, r, h.logger, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointment(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}
