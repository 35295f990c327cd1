package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/libs/kafkax"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestNotifierWritesOutboxRow(t *testing.T) {
	db := &fakeExec{}
	n := NewNotifier(db, NewRepository())
	intent := events.Intent{
		Type:        events.TopicAppointmentCancelled,
		AggregateID: "appt-1",
		Payload: events.AppointmentCancelled{
			Appointment: events.AppointmentSnapshot{ID: "appt-1", Date: "2026-03-02", StartTime: "10:00:00"},
			Reason:      "sick",
		},
	}
	if err := n.Notify(context.Background(), intent); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(db.args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(db.args))
	}
	if db.args[0] != "appointment" || db.args[1] != "appt-1" || db.args[2] != events.TopicAppointmentCancelled {
		t.Fatalf("unexpected envelope %v", db.args[:3])
	}
	var decoded events.AppointmentCancelled
	if err := json.Unmarshal(db.args[3].([]byte), &decoded); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if decoded.Reason != "sick" || decoded.Appointment.StartTime != "10:00:00" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestNotifierPropagatesInsertErrors(t *testing.T) {
	boom := errors.New("boom")
	n := NewNotifier(&fakeExec{err: boom}, NewRepository())
	err := n.Notify(context.Background(), events.Intent{Type: events.TopicAppointmentCreated, AggregateID: "a", Payload: struct{}{}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestFromIntentRejectsUnencodablePayload(t *testing.T) {
	if _, err := FromIntent(events.Intent{Type: "x", Payload: make(chan int)}); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestToMessageCarriesMeta(t *testing.T) {
	msg := toMessage(context.Background(), Record{
		EventID:     "evt-1",
		AggregateID: "appt-1",
		EventType:   events.TopicAppointmentCreated,
		Payload:     []byte(`{}`),
		CreatedAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	if msg.Topic != events.TopicAppointmentCreated || string(msg.Key) != "appt-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != events.TopicAppointmentCreated || meta.AggregateID != "appt-1" || meta.OccurredAt.IsZero() {
		t.Fatalf("unexpected meta %+v", meta)
	}
}
