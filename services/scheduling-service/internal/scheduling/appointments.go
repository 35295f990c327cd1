package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/availability"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/conflict"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

type PatientInput struct {
	NationalID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
}

type CreateInput struct {
	Patient     PatientInput
	TreatmentID string
	Date        string
	Start       string
	// End defaults to Start plus the treatment duration.
	End            string
	Notes          string
	IdempotencyKey string
}

type RescheduleInput struct {
	Date  string
	Start string
	End   string
}

// Booking is an appointment with the records it references.
type Booking struct {
	Appointment model.Appointment
	Patient     model.Patient
	Treatment   model.Treatment
	// Replayed is set when an idempotency key matched an earlier booking.
	Replayed bool
}

const lastMinuteOfDay = 24*60 - 1

func (in CreateInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Patient.NationalID) == "" {
		missing = append(missing, "patient.nationalId")
	}
	if strings.TrimSpace(in.Patient.FirstName) == "" {
		missing = append(missing, "patient.firstName")
	}
	if strings.TrimSpace(in.TreatmentID) == "" {
		missing = append(missing, "treatmentId")
	}
	if strings.TrimSpace(in.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(in.Start) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.Validation, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// loadDay reads what the conflict validator needs for date. Windows are only
// resolved when withWindows is set.
func loadDay(ctx context.Context, tx storage.Tx, date time.Time, withWindows bool) (conflict.Day, error) {
	appts, err := tx.AppointmentsForDate(ctx, date)
	if err != nil {
		return conflict.Day{}, err
	}
	blocks, err := tx.ManualBlocksForDate(ctx, date)
	if err != nil {
		return conflict.Day{}, err
	}
	day := conflict.Day{Appointments: appts, Blocks: blocks}
	if withWindows {
		if day.Windows, err = availability.ResolveWindows(ctx, tx, date); err != nil {
			return conflict.Day{}, err
		}
	}
	return day, nil
}

func (s *Service) CreateAppointment(ctx context.Context, ch Channel, in CreateInput) (Booking, error) {
	if err := in.validate(); err != nil {
		return Booking{}, err
	}
	date, err := parseDate("date", in.Date)
	if err != nil {
		return Booking{}, err
	}
	start, err := parseTime("time", in.Start)
	if err != nil {
		return Booking{}, err
	}
	var end *clock.TimeOfDay
	if strings.TrimSpace(in.End) != "" {
		e, err := parseTime("endTime", in.End)
		if err != nil {
			return Booking{}, err
		}
		end = &e
	}
	if ch == ChannelPublic {
		if date.Before(s.today()) {
			return Booking{}, apperr.New(apperr.Validation, "date %s is in the past", clock.FormatDate(date))
		}
		if s.startedToday(date, start.Minutes()) {
			return Booking{}, apperr.New(apperr.Validation, "%s on %s has already started", start.Short(), clock.FormatDate(date))
		}
		if s.sundayClosed(date, ch) {
			return Booking{}, apperr.New(apperr.Validation, "bookings are not accepted on Sundays")
		}
	}

	status := model.StatusPending
	if ch == ChannelAdmin {
		status = model.StatusConfirmed
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	var out Booking
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if key != "" {
			rec, exists, err := tx.LockIdempotencyKey(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				out, err = loadBooking(ctx, tx, rec.AppointmentID)
				out.Replayed = true
				return err
			}
		}

		treatment, err := tx.GetTreatment(ctx, in.TreatmentID)
		if err != nil {
			return notFound(err, "treatment %s not found", in.TreatmentID)
		}
		if !treatment.Active {
			return apperr.New(apperr.NotFound, "treatment %s is not available", in.TreatmentID)
		}
		if end == nil {
			m := start.Minutes() + treatment.DurationMinutes
			if m > lastMinuteOfDay {
				return apperr.New(apperr.InvalidRange, "%s plus %d minutes runs past midnight", start.Short(), treatment.DurationMinutes)
			}
			e := clock.FromMinutes(m)
			end = &e
		}

		if err := tx.LockDate(ctx, date); err != nil {
			return err
		}
		day, err := loadDay(ctx, tx, date, ch == ChannelPublic && s.cfg.EnforceHours)
		if err != nil {
			return err
		}
		duration, err := conflict.Validate(conflict.Proposal{
			Start:          start,
			End:            *end,
			MinimumMinutes: treatment.DurationMinutes,
		}, day)
		if err != nil {
			return err
		}

		patient, err := s.resolvePatient(ctx, tx, in.Patient)
		if err != nil {
			return err
		}

		appt := model.Appointment{
			ID:              s.newID(),
			Date:            date,
			Start:           start,
			End:             *end,
			DurationMinutes: duration,
			Status:          status,
			PatientID:       patient.NationalID,
			TreatmentID:     treatment.ID,
			Amount:          treatment.Price,
			Notes:           strings.TrimSpace(in.Notes),
		}
		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return storeErr(err)
		}
		if key != "" {
			if err := tx.FinalizeIdempotency(ctx, storage.IdempotencyRecord{Key: key, AppointmentID: appt.ID}); err != nil {
				return err
			}
		}
		appt, err = tx.GetAppointment(ctx, appt.ID)
		if err != nil {
			return err
		}
		out = Booking{Appointment: appt, Patient: patient, Treatment: treatment}
		return nil
	})
	if err != nil {
		return Booking{}, err
	}

	if !out.Replayed {
		s.emit(context.WithoutCancel(ctx), events.Intent{
			Type:        events.TopicAppointmentCreated,
			AggregateID: out.Appointment.ID,
			Payload: events.AppointmentCreated{
				Appointment: snapshot(out.Appointment, out.Patient, out.Treatment.Name),
				Channel:     string(ch),
			},
		})
	}
	return out, nil
}

// resolvePatient creates the patient or overwrites its non-empty mutable fields.
func (s *Service) resolvePatient(ctx context.Context, tx storage.Tx, in PatientInput) (model.Patient, error) {
	id := strings.TrimSpace(in.NationalID)
	p, err := tx.GetPatient(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return model.Patient{}, err
	}
	p.NationalID = id
	for _, f := range []struct {
		dst *string
		val string
	}{
		{&p.FirstName, in.FirstName},
		{&p.LastName, in.LastName},
		{&p.Email, in.Email},
		{&p.Phone, in.Phone},
	} {
		if v := strings.TrimSpace(f.val); v != "" {
			*f.dst = v
		}
	}
	return tx.UpsertPatient(ctx, p)
}

// loadBooking reads an appointment with its patient and treatment. Missing
// references are left zero.
func loadBooking(ctx context.Context, tx storage.Tx, id string) (Booking, error) {
	appt, err := tx.GetAppointment(ctx, id)
	if err != nil {
		return Booking{}, notFound(err, "appointment %s not found", id)
	}
	b := Booking{Appointment: appt}
	if b.Patient, err = tx.GetPatient(ctx, appt.PatientID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Booking{}, err
	}
	if appt.TreatmentID != "" {
		if b.Treatment, err = tx.GetTreatment(ctx, appt.TreatmentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Booking{}, err
		}
	}
	return b, nil
}

func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (Booking, error) {
	date, err := parseDate("newDate", in.Date)
	if err != nil {
		return Booking{}, err
	}
	start, err := parseTime("newStartTime", in.Start)
	if err != nil {
		return Booking{}, err
	}
	end, err := parseTime("newEndTime", in.End)
	if err != nil {
		return Booking{}, err
	}

	var before, after Booking
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if before, err = loadBooking(ctx, tx, id); err != nil {
			return err
		}
		current := before.Appointment
		if current.Status == model.StatusCancelled {
			return apperr.New(apperr.Validation, "appointment %s is cancelled", id)
		}

		// The treatment sets the minimum, but never above the current length, so
		// an appointment can always be moved onto its own range.
		minimum := current.DurationMinutes
		if t := before.Treatment.DurationMinutes; t > 0 && (minimum <= 0 || t < minimum) {
			minimum = t
		}

		if err := lockDates(ctx, tx, current.Date, date); err != nil {
			return err
		}
		day, err := loadDay(ctx, tx, date, false)
		if err != nil {
			return err
		}
		duration, err := conflict.Validate(conflict.Proposal{
			Start:          start,
			End:            end,
			ExcludeID:      current.ID,
			MinimumMinutes: minimum,
		}, day)
		if err != nil {
			return err
		}

		updated := current
		updated.Date = date
		updated.Start = start
		updated.End = end
		updated.DurationMinutes = duration
		if err := tx.UpdateAppointment(ctx, updated); err != nil {
			return storeErr(err)
		}
		after = before
		after.Appointment, err = tx.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return Booking{}, err
	}

	s.emit(context.WithoutCancel(ctx), events.Intent{
		Type:        events.TopicAppointmentRescheduled,
		AggregateID: id,
		Payload: events.AppointmentRescheduled{
			Previous: snapshot(before.Appointment, before.Patient, before.Treatment.Name),
			Current:  snapshot(after.Appointment, after.Patient, after.Treatment.Name),
		},
	})
	return after, nil
}

// lockDates takes the date locks in a stable order so concurrent reschedules
// across the same two dates cannot deadlock.
func lockDates(ctx context.Context, tx storage.Tx, a, b time.Time) error {
	if b.Before(a) {
		a, b = b, a
	}
	if err := tx.LockDate(ctx, a); err != nil {
		return err
	}
	if b.Equal(a) {
		return nil
	}
	return tx.LockDate(ctx, b)
}

// Cancel marks the appointment cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Booking, error) {
	reason = strings.TrimSpace(reason)
	var (
		out     Booking
		changed bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if out, err = loadBooking(ctx, tx, id); err != nil {
			return err
		}
		if out.Appointment.Status == model.StatusCancelled {
			return nil
		}
		now := s.now().UTC()
		appt := out.Appointment
		appt.Status = model.StatusCancelled
		appt.CancelReason = reason
		appt.CancelledAt = &now
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		changed = true
		out.Appointment, err = tx.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	if changed {
		s.emitCancelled(ctx, out, reason)
	}
	return out, nil
}

func (s *Service) emitCancelled(ctx context.Context, b Booking, reason string) {
	s.emit(context.WithoutCancel(ctx), events.Intent{
		Type:        events.TopicAppointmentCancelled,
		AggregateID: b.Appointment.ID,
		Payload: events.AppointmentCancelled{
			Appointment: snapshot(b.Appointment, b.Patient, b.Treatment.Name),
			Reason:      reason,
		},
	})
}

// ChangeStatus moves an appointment to status. Bringing a cancelled
// appointment back re-checks its range against the day and announces it as
// created again, so reminders are rescheduled.
func (s *Service) ChangeStatus(ctx context.Context, id, status string) (Booking, error) {
	next := model.Status(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return Booking{}, apperr.New(apperr.Validation, "status must be one of pending, confirmed, completed, cancelled")
	}

	var (
		out         Booking
		cancelled   bool
		reactivated bool
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if out, err = loadBooking(ctx, tx, id); err != nil {
			return err
		}
		appt := out.Appointment
		if appt.Status == next {
			return nil
		}

		if appt.Status == model.StatusCancelled {
			if err := tx.LockDate(ctx, appt.Date); err != nil {
				return err
			}
			day, err := loadDay(ctx, tx, appt.Date, false)
			if err != nil {
				return err
			}
			if _, err := conflict.Validate(conflict.Proposal{Start: appt.Start, End: appt.End, ExcludeID: appt.ID}, day); err != nil {
				return err
			}
			appt.CancelReason = ""
			appt.CancelledAt = nil
			reactivated = next.Occupies()
		}
		if next == model.StatusCancelled {
			now := s.now().UTC()
			appt.CancelledAt = &now
			cancelled = true
		}
		appt.Status = next
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return storeErr(err)
		}
		out.Appointment, err = tx.GetAppointment(ctx, id)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	switch {
	case cancelled:
		s.emitCancelled(ctx, out, "")
	case reactivated:
		s.emit(context.WithoutCancel(ctx), events.Intent{
			Type:        events.TopicAppointmentCreated,
			AggregateID: out.Appointment.ID,
			Payload: events.AppointmentCreated{
				Appointment: snapshot(out.Appointment, out.Patient, out.Treatment.Name),
				Channel:     string(ChannelAdmin),
			},
		})
	}
	return out, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (Booking, error) {
	var out Booking
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		out, err = loadBooking(ctx, tx, id)
		return err
	})
	return out, err
}

// ListAppointments returns the appointments between from and to inclusive.
func (s *Service) ListAppointments(ctx context.Context, from, to string) ([]model.Appointment, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	var out []model.Appointment
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		out, err = tx.ListAppointments(ctx, start, end)
		return err
	})
	return out, err
}

type PaymentInput struct {
	Provider      string
	EventID       string
	EventType     string
	AppointmentID string
	Reference     string
	Payload       []byte
}

// MarkPaid applies a payment provider event. A replayed event id returns
// applied=false without touching the appointment.
func (s *Service) MarkPaid(ctx context.Context, in PaymentInput) (appt model.Appointment, applied bool, err error) {
	if strings.TrimSpace(in.AppointmentID) == "" {
		return model.Appointment{}, false, apperr.New(apperr.Validation, "payment event %s has no appointment id", in.EventID)
	}
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		if appt, err = tx.GetAppointment(ctx, in.AppointmentID); err != nil {
			return notFound(err, "appointment %s not found", in.AppointmentID)
		}
		err = tx.RecordPaymentEvent(ctx, storage.PaymentEvent{
			Provider:      in.Provider,
			EventID:       in.EventID,
			EventType:     in.EventType,
			AppointmentID: in.AppointmentID,
			Payload:       in.Payload,
		})
		if errors.Is(err, storage.ErrDuplicate) {
			return nil
		}
		if err != nil {
			return err
		}
		applied = true
		if appt.Paid {
			return nil
		}
		appt.Paid = true
		appt.PaymentRef = in.Reference
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		appt, err = tx.GetAppointment(ctx, in.AppointmentID)
		return err
	})
	if err != nil {
		return model.Appointment{}, false, err
	}
	if applied {
		s.logger.Info("appointment paid", "appointment_id", appt.ID, "provider", in.Provider, "event_id", in.EventID)
	}
	return appt, applied, nil
}
