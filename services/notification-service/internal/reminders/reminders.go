// Package reminders schedules the day-before reminder of an appointment as a
// delayed asynq task and delivers it when it fires.
package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calmspace/practice/libs/events"
	"github.com/hibiken/asynq"
)

const (
	TypeSend     = "reminder:send"
	DefaultQueue = "reminders"
)

type Payload struct {
	Appointment events.AppointmentSnapshot `json:"appointment"`
}

// TaskID is stable per appointment so a reschedule replaces the pending task.
func TaskID(appointmentID string) string {
	return "reminder:" + appointmentID
}

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Deleter interface {
	DeleteTask(queue, id string) error
}

type Config struct {
	Lead     time.Duration
	Location *time.Location
	Queue    string
	MaxRetry int
}

type Scheduler struct {
	enq    Enqueuer
	del    Deleter
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(enq Enqueuer, del Deleter, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	return &Scheduler{enq: enq, del: del, cfg: cfg, now: time.Now, logger: logger}
}

// FireAt is the appointment start in the practice's zone minus the lead time.
func (s *Scheduler) FireAt(a events.AppointmentSnapshot) (time.Time, error) {
	start, err := startOf(a, s.cfg.Location)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-s.cfg.Lead), nil
}

func startOf(a events.AppointmentSnapshot, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, a.Date+" "+a.StartTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointment %s: invalid start %q %q", a.ID, a.Date, a.StartTime)
}

// Schedule replaces any pending reminder for the appointment. It reports
// false when the reminder time has already passed.
func (s *Scheduler) Schedule(ctx context.Context, a events.AppointmentSnapshot) (bool, error) {
	fireAt, err := s.FireAt(a)
	if err != nil {
		return false, err
	}
	if err := s.Cancel(ctx, a.ID); err != nil {
		return false, err
	}
	if !fireAt.After(s.now()) {
		s.logger.Info("reminder skipped; too close to the appointment", "appointment_id", a.ID, "fire_at", fireAt)
		return false, nil
	}

	body, err := json.Marshal(Payload{Appointment: a})
	if err != nil {
		return false, err
	}
	task := asynq.NewTask(TypeSend, body)
	_, err = s.enq.EnqueueContext(ctx, task,
		asynq.TaskID(TaskID(a.ID)),
		asynq.ProcessAt(fireAt),
		asynq.Queue(s.cfg.Queue),
		asynq.MaxRetry(s.cfg.MaxRetry),
	)
	if err != nil {
		return false, fmt.Errorf("enqueue reminder for %s: %w", a.ID, err)
	}
	s.logger.Info("reminder scheduled", "appointment_id", a.ID, "fire_at", fireAt)
	return true, nil
}

// Cancel removes the pending reminder, if any.
func (s *Scheduler) Cancel(_ context.Context, appointmentID string) error {
	err := s.del.DeleteTask(s.cfg.Queue, TaskID(appointmentID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("delete reminder for %s: %w", appointmentID, err)
}

// Deliver sends a fired reminder.
type Deliver func(ctx context.Context, a events.AppointmentSnapshot) error

// Handler decodes reminder tasks for the asynq server. Malformed payloads are
// not retried.
func Handler(deliver Deliver, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid reminder payload", "err", err)
			return fmt.Errorf("decode reminder: %v: %w", err, asynq.SkipRetry)
		}
		if p.Appointment.ID == "" {
			return fmt.Errorf("reminder without appointment id: %w", asynq.SkipRetry)
		}
		return deliver(ctx, p.Appointment)
	}
}

// NewServeMux routes reminder tasks to deliver.
func NewServeMux(deliver Deliver, logger *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSend, Handler(deliver, logger))
	return mux
}
