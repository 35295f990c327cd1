package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calmspace/practice/libs/httpx"
	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/scheduling"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const metadataAppointmentID = "appointment_id"

// PaymentHandler receives Stripe webhooks. The signature is the authentication.
type PaymentHandler struct {
	svc       *scheduling.Service
	logger    *slog.Logger
	secret    string
	tolerance time.Duration
}

func NewPaymentHandler(svc *scheduling.Service, logger *slog.Logger, secret string, tolerance time.Duration) *PaymentHandler {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &PaymentHandler{svc: svc, logger: logger, secret: secret, tolerance: tolerance}
}

func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.secret) == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "stripe webhook not configured")
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "missing Stripe-Signature header")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, string(apperr.Validation), "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		h.logger.Warn("stripe webhook rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "invalid signature")
		return
	}

	evtType := string(evt.Type)
	appointmentID, reference, ok := h.paymentTarget(evt)
	if !ok {
		h.logger.Info("stripe event ignored", "event_id", evt.ID, "event_type", evtType)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	appt, applied, err := h.svc.MarkPaid(r.Context(), scheduling.PaymentInput{
		Provider:      "stripe",
		EventID:       evt.ID,
		EventType:     evtType,
		AppointmentID: appointmentID,
		Reference:     reference,
		Payload:       body,
	})
	if err != nil {
		// An unknown appointment will never resolve; acknowledge so Stripe stops retrying.
		if apperr.CodeOf(err) == apperr.NotFound || apperr.CodeOf(err) == apperr.Validation {
			h.logger.Warn("stripe event for unknown appointment", "event_id", evt.ID, "appointment_id", appointmentID)
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
			return
		}
		writeErr(w, r, h.logger, err)
		return
	}
	status := "applied"
	if !applied {
		status = "duplicate"
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": status, "appointmentId": appt.ID})
}

// paymentTarget extracts the appointment id and payment reference from the
// events that settle a booking.
func (h *PaymentHandler) paymentTarget(evt stripe.Event) (appointmentID, reference string, ok bool) {
	switch evt.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			h.logger.Error("stripe: invalid payment intent payload", "err", err)
			return "", "", false
		}
		appointmentID = strings.TrimSpace(pi.Metadata[metadataAppointmentID])
		reference = pi.ID
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			return "", "", false
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return "", "", false
		}
		appointmentID = strings.TrimSpace(session.Metadata[metadataAppointmentID])
		reference = session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			reference = session.PaymentIntent.ID
		}
	default:
		return "", "", false
	}
	return appointmentID, reference, appointmentID != ""
}
