package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/calmspace/practice/libs/events"
	"github.com/hibiken/asynq"
)

type fakeQueue struct {
	tasks     []*asynq.Task
	opts      [][]asynq.Option
	deleted   []string
	deleteErr error
	enqErr    error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.enqErr != nil {
		return nil, q.enqErr
	}
	q.tasks = append(q.tasks, task)
	q.opts = append(q.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func (q *fakeQueue) DeleteTask(queue, id string) error {
	q.deleted = append(q.deleted, queue+"/"+id)
	return q.deleteErr
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) (any, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newScheduler(q *fakeQueue, now time.Time) *Scheduler {
	loc := time.FixedZone("ART", -3*3600)
	s := NewScheduler(q, q, discard, Config{Location: loc})
	s.now = func() time.Time { return now }
	return s
}

func appt() events.AppointmentSnapshot {
	return events.AppointmentSnapshot{ID: "a-1", Date: "2026-03-02", StartTime: "10:00:00", EndTime: "11:00:00"}
}

func TestScheduleEnqueuesDayBefore(t *testing.T) {
	q := &fakeQueue{}
	s := newScheduler(q, time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC))

	ok, err := s.Schedule(context.Background(), appt())
	if err != nil || !ok {
		t.Fatalf("Schedule = %v, %v", ok, err)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != TypeSend {
		t.Fatalf("expected one %s task, got %d", TypeSend, len(q.tasks))
	}
	if id, _ := optionValue(q.opts[0], asynq.TaskIDOpt); id != "reminder:a-1" {
		t.Fatalf("unexpected task id %v", id)
	}
	at, _ := optionValue(q.opts[0], asynq.ProcessAtOpt)
	want := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	if got, ok := at.(time.Time); !ok || !got.Equal(want) {
		t.Fatalf("process at %v, want %v", at, want)
	}
	if len(q.deleted) != 1 || q.deleted[0] != DefaultQueue+"/reminder:a-1" {
		t.Fatalf("expected the previous reminder to be cleared first, got %v", q.deleted)
	}

	var p Payload
	if err := json.Unmarshal(q.tasks[0].Payload(), &p); err != nil || p.Appointment.ID != "a-1" {
		t.Fatalf("unexpected payload %s (%v)", q.tasks[0].Payload(), err)
	}
}

func TestScheduleSkipsPastReminder(t *testing.T) {
	q := &fakeQueue{}
	s := newScheduler(q, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	ok, err := s.Schedule(context.Background(), appt())
	if err != nil || ok {
		t.Fatalf("expected skip, got %v, %v", ok, err)
	}
	if len(q.tasks) != 0 {
		t.Fatalf("expected no task, got %d", len(q.tasks))
	}
}

func TestScheduleErrors(t *testing.T) {
	bad := appt()
	bad.StartTime = "ten"
	if _, err := newScheduler(&fakeQueue{}, time.Time{}).Schedule(context.Background(), bad); err == nil {
		t.Fatal("expected error for invalid start")
	}

	q := &fakeQueue{enqErr: errors.New("redis down")}
	if _, err := newScheduler(q, time.Time{}).Schedule(context.Background(), appt()); err == nil {
		t.Fatal("expected enqueue error")
	}
}

func TestCancelIgnoresMissingTask(t *testing.T) {
	q := &fakeQueue{deleteErr: asynq.ErrTaskNotFound}
	if err := newScheduler(q, time.Time{}).Cancel(context.Background(), "a-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	q.deleteErr = errors.New("boom")
	if err := newScheduler(q, time.Time{}).Cancel(context.Background(), "a-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandler(t *testing.T) {
	var got events.AppointmentSnapshot
	h := Handler(func(_ context.Context, a events.AppointmentSnapshot) error {
		got = a
		return nil
	}, discard)

	body, _ := json.Marshal(Payload{Appointment: appt()})
	if err := h.ProcessTask(context.Background(), asynq.NewTask(TypeSend, body)); err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if got.ID != "a-1" {
		t.Fatalf("unexpected delivery %+v", got)
	}

	err := h.ProcessTask(context.Background(), asynq.NewTask(TypeSend, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
