// Package notify turns appointment events into patient and practice messages.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/libs/kafkax"
	"github.com/calmspace/practice/services/notification-service/internal/email"
	"github.com/calmspace/practice/services/notification-service/internal/sms"
	"github.com/calmspace/practice/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Reminders interface {
	Schedule(ctx context.Context, a events.AppointmentSnapshot) (bool, error)
	Cancel(ctx context.Context, appointmentID string) error
}

type Config struct {
	Practice string
	// PracticeInbox receives a copy of every booking change. Empty disables it.
	PracticeInbox string
	// FailSuffix simulates a failed delivery for recipients ending with it.
	FailSuffix string
}

type Dispatcher struct {
	email     email.Sender
	sms       sms.Sender
	store     Recorder
	reminders Reminders
	cfg       Config
	logger    *slog.Logger
}

// NewDispatcher wires the senders. sms and reminders may be nil.
func NewDispatcher(emailSender email.Sender, smsSender sms.Sender, store Recorder, reminders Reminders, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Practice == "" {
		cfg.Practice = "the practice"
	}
	return &Dispatcher{email: emailSender, sms: smsSender, store: store, reminders: reminders, cfg: cfg, logger: logger}
}

// Handle processes one appointment event. Undecodable or unknown events are
// logged and dropped; only storage and scheduling errors are returned.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	switch meta.EventType {
	case events.TopicAppointmentCreated:
		var evt events.AppointmentCreated
		if !d.decode(msg, &evt) {
			return nil
		}
		_, err := d.deliver(ctx, email.KindCreated, email.Message{Appointment: evt.Appointment}, true)
		return errors.Join(err, d.schedule(ctx, evt.Appointment))

	case events.TopicAppointmentRescheduled:
		var evt events.AppointmentRescheduled
		if !d.decode(msg, &evt) {
			return nil
		}
		prev := evt.Previous
		_, err := d.deliver(ctx, email.KindRescheduled, email.Message{Appointment: evt.Current, Previous: &prev}, true)
		return errors.Join(err, d.schedule(ctx, evt.Current))

	case events.TopicAppointmentCancelled:
		var evt events.AppointmentCancelled
		if !d.decode(msg, &evt) {
			return nil
		}
		_, err := d.deliver(ctx, email.KindCancelled, email.Message{Appointment: evt.Appointment, Reason: evt.Reason}, true)
		if d.reminders != nil {
			err = errors.Join(err, d.reminders.Cancel(ctx, evt.Appointment.ID))
		}
		return err

	default:
		d.logger.Warn("unhandled event type", "event_type", meta.EventType, "topic", msg.Topic)
		return nil
	}
}

// Remind delivers a fired reminder. A failed send is returned so the task is retried.
func (d *Dispatcher) Remind(ctx context.Context, a events.AppointmentSnapshot) error {
	failed, err := d.deliver(ctx, email.KindReminder, email.Message{Appointment: a}, false)
	if err != nil {
		return err
	}
	if failed > 0 {
		return errors.New("reminder delivery failed for " + a.ID)
	}
	return nil
}

func (d *Dispatcher) decode(msg kafka.Message, dst any) bool {
	if err := json.Unmarshal(msg.Value, dst); err != nil {
		d.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return false
	}
	return true
}

func (d *Dispatcher) schedule(ctx context.Context, a events.AppointmentSnapshot) error {
	if d.reminders == nil {
		return nil
	}
	_, err := d.reminders.Schedule(ctx, a)
	return err
}

// deliver sends kind to every reachable recipient and records each attempt.
// It returns how many sends failed.
func (d *Dispatcher) deliver(ctx context.Context, kind email.Kind, m email.Message, practiceCopy bool) (int, error) {
	m.Practice = d.cfg.Practice
	a := m.Appointment
	failed := 0
	var errs []error

	record := func(channel, recipient, providerID string, sendErr error) {
		n := storage.Notification{
			AppointmentID: a.ID,
			Kind:          string(kind),
			Channel:       channel,
			Recipient:     recipient,
			Payload: map[string]any{
				"date":       a.Date,
				"start_time": a.StartTime,
				"status":     a.Status,
			},
			Status:     storage.StatusSent,
			ProviderID: providerID,
		}
		if sendErr != nil {
			failed++
			n.Status = storage.StatusFailed
			n.ProviderID = ""
			n.Error = sendErr.Error()
			d.logger.Error("notification send failed", "err", sendErr, "channel", channel, "appointment_id", a.ID, "kind", kind)
		}
		if err := d.store.Insert(ctx, n); err != nil {
			d.logger.Error("failed to persist notification", "err", err)
			errs = append(errs, err)
		}
	}

	if a.PatientEmail != "" {
		subject, body, err := email.RenderPatient(kind, m)
		if err == nil {
			err = d.sendEmail(a.PatientEmail, subject, body)
		}
		record("email", a.PatientEmail, email.ProviderID, err)
	}
	if a.PatientPhone != "" && d.sms != nil {
		subject, _, err := email.RenderPatient(kind, m)
		if err == nil {
			err = d.sendSMS(ctx, a.PatientPhone, d.cfg.Practice+": "+subject)
		}
		record("sms", a.PatientPhone, d.sms.ProviderID(), err)
	}
	if practiceCopy && d.cfg.PracticeInbox != "" {
		subject, body, err := email.RenderPractice(kind, m)
		if err == nil {
			err = d.sendEmail(d.cfg.PracticeInbox, subject, body)
		}
		record("email", d.cfg.PracticeInbox, email.ProviderID, err)
	}

	d.logger.Info("notification processed", "appointment_id", a.ID, "kind", kind, "failed", failed)
	return failed, errors.Join(errs...)
}

var errSimulated = errors.New("simulated failure")

func (d *Dispatcher) simulatedFailure(recipient string) bool {
	return d.cfg.FailSuffix != "" && strings.HasSuffix(recipient, d.cfg.FailSuffix)
}

func (d *Dispatcher) sendEmail(to, subject, body string) error {
	if d.simulatedFailure(to) {
		return errSimulated
	}
	return d.email.Send(to, subject, body)
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, body string) error {
	if d.simulatedFailure(to) {
		return errSimulated
	}
	return d.sms.Send(ctx, to, body)
}
