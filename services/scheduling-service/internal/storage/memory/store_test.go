package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func appt(id, start, end string, status model.Status) model.Appointment {
	s, e := clock.MustParse(start), clock.MustParse(end)
	return model.Appointment{ID: id, Date: day, Start: s, End: e, DurationMinutes: e.Minutes() - s.Minutes(), Status: status, PatientID: "p-1"}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertAppointment(ctx, appt("a-1", "09:00", "10:00", model.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetAppointment(ctx, "a-1"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected rolled back insert, got %v", err)
		}
		return nil
	})
}

func TestAppointmentInvariants(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAppointment(ctx, appt("a-1", "10:00", "11:00", model.StatusConfirmed))
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	cases := []struct {
		name string
		a    model.Appointment
		want error
	}{
		{"same start", appt("a-2", "10:00", "10:30", model.StatusPending), storage.ErrSlotTaken},
		{"overlap", appt("a-3", "10:30", "11:30", model.StatusPending), storage.ErrRangeConflict},
		{"adjacent", appt("a-4", "11:00", "12:00", model.StatusPending), nil},
		{"cancelled ignored", appt("a-5", "10:00", "11:00", model.StatusCancelled), nil},
	}
	for _, tc := range cases {
		err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.InsertAppointment(ctx, tc.a)
		})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestManualBlocksMayNotOverlap(t *testing.T) {
	s := New()
	ctx := context.Background()
	block := func(id, start, end string) model.ManualBlock {
		return model.ManualBlock{ID: id, Date: day, Start: clock.MustParse(start), End: clock.MustParse(end), Type: "personal"}
	}

	err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertManualBlock(ctx, block("b-1", "13:00", "14:00"))
	})
	if err != nil {
		t.Fatalf("insert block failed: %v", err)
	}
	err = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertManualBlock(ctx, block("b-2", "13:30", "14:30"))
	})
	if !errors.Is(err, storage.ErrBlockOverlap) {
		t.Fatalf("expected ErrBlockOverlap, got %v", err)
	}
	err = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertManualBlock(ctx, block("b-3", "14:00", "15:00"))
	})
	if err != nil {
		t.Fatalf("adjacent block should be accepted: %v", err)
	}
}

func TestReplaceWeeklyDeactivatesPrevious(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := func(id string, dow int, start, end string) model.WeeklySchedule {
		return model.WeeklySchedule{ID: id, DayOfWeek: dow, Start: clock.MustParse(start), End: clock.MustParse(end)}
	}

	_ = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.ReplaceWeeklySchedules(ctx, []model.WeeklySchedule{w("w-1", 1, "09:00", "12:00")})
	})
	_ = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.ReplaceWeeklySchedules(ctx, []model.WeeklySchedule{w("w-2", 1, "14:00", "18:00")})
	})
	_ = s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		active, err := tx.WeeklySchedules(ctx, 1)
		if err != nil {
			t.Fatalf("WeeklySchedules failed: %v", err)
		}
		if len(active) != 1 || active[0].ID != "w-2" {
			t.Fatalf("expected only w-2 active, got %+v", active)
		}
		all, _ := tx.ListWeeklySchedules(ctx)
		if len(all) != 2 {
			t.Fatalf("expected history of 2 windows, got %d", len(all))
		}
		return nil
	})
}

func TestPaymentEventsAreDeduplicated(t *testing.T) {
	s := New()
	ctx := context.Background()
	evt := storage.PaymentEvent{Provider: "stripe", EventID: "evt_1", AppointmentID: "a-1"}
	for i, want := range []error{nil, storage.ErrDuplicate} {
		err := s.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.RecordPaymentEvent(ctx, evt)
		})
		if !errors.Is(err, want) {
			t.Fatalf("attempt %d: expected %v, got %v", i, want, err)
		}
	}
}
