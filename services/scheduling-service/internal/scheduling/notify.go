package scheduling

import (
	"context"
	"log/slog"

	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
)

// LogNotifier only logs intents. It is used when no outbox is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, intent events.Intent) error {
	n.logger.Info("notification intent", "type", intent.Type, "appointment_id", intent.AggregateID)
	return nil
}

func snapshot(a model.Appointment, p model.Patient, treatmentName string) events.AppointmentSnapshot {
	name := p.FullName()
	if name == "" {
		name = a.PatientName
	}
	return events.AppointmentSnapshot{
		ID:              a.ID,
		Date:            clock.FormatDate(a.Date),
		StartTime:       a.Start.String(),
		EndTime:         a.End.String(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		TreatmentName:   treatmentName,
		PatientID:       a.PatientID,
		PatientName:     name,
		PatientEmail:    p.Email,
		PatientPhone:    p.Phone,
	}
}

// emit hands intent to the notifier. Failures are logged and never returned.
func (s *Service) emit(ctx context.Context, intent events.Intent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notifier panicked", "type", intent.Type, "appointment_id", intent.AggregateID, "panic", r)
		}
	}()
	if err := s.notifier.Notify(ctx, intent); err != nil {
		s.logger.Error("notification failed", "type", intent.Type, "appointment_id", intent.AggregateID, "err", err)
	}
}
