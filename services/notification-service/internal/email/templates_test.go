package email

import (
	"strings"
	"testing"
	"time"

	"github.com/calmspace/practice/libs/events"
)

func snapshot() events.AppointmentSnapshot {
	return events.AppointmentSnapshot{
		ID:            "appt-1",
		Date:          "2026-03-02",
		StartTime:     "10:00:00",
		EndTime:       "11:00:00",
		TreatmentName: "Individual therapy",
		PatientID:     "30111222",
		PatientName:   "Ana Ruiz",
	}
}

func TestRenderPatient(t *testing.T) {
	prev := snapshot()
	prev.StartTime = "09:00:00"
	cases := []struct {
		kind    Kind
		msg     Message
		subject string
		body    []string
	}{
		{KindCreated, Message{Practice: "Calm Space", Appointment: snapshot()}, "Your appointment on 2026-03-02 at 10:00", []string{"Hello Ana Ruiz", "Individual therapy at Calm Space", "from 10:00 to 11:00"}},
		{KindRescheduled, Message{Practice: "Calm Space", Appointment: snapshot(), Previous: &prev}, "Your appointment moved to 2026-03-02 at 10:00", []string{"on 2026-03-02 at 09:00 was moved"}},
		{KindCancelled, Message{Practice: "Calm Space", Appointment: snapshot(), Reason: "illness"}, "Your appointment on 2026-03-02 was cancelled", []string{"Reason: illness"}},
		{KindReminder, Message{Practice: "Calm Space", Appointment: snapshot()}, "Reminder: appointment tomorrow at 10:00", []string{"reminder of your Individual therapy"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			subject, body, err := RenderPatient(tc.kind, tc.msg)
			if err != nil {
				t.Fatalf("RenderPatient failed: %v", err)
			}
			if subject != tc.subject {
				t.Fatalf("subject %q, want %q", subject, tc.subject)
			}
			for _, want := range tc.body {
				if !strings.Contains(body, want) {
					t.Fatalf("body %q missing %q", body, want)
				}
			}
		})
	}
}

func TestRenderPatientFallbacks(t *testing.T) {
	snap := snapshot()
	snap.PatientName, snap.TreatmentName = "", ""
	_, body, err := RenderPatient(KindCreated, Message{Practice: "Calm Space", Appointment: snap})
	if err != nil {
		t.Fatalf("RenderPatient failed: %v", err)
	}
	if !strings.Contains(body, "Hello there") || !strings.Contains(body, "your session") {
		t.Fatalf("unexpected body %q", body)
	}
	if _, _, err := RenderPatient(Kind("bogus"), Message{}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRenderPractice(t *testing.T) {
	subject, body, err := RenderPractice(KindCancelled, Message{Appointment: snapshot(), Reason: "no show"})
	if err != nil {
		t.Fatalf("RenderPractice failed: %v", err)
	}
	if subject != "[cancelled] 2026-03-02 10:00 Ana Ruiz" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Appointment appt-1 cancelled.") || !strings.Contains(body, "Reason: no show") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := buildMessage("a@x", "b@y", "Hi", "line one\nline two\n", date, "<id@x>")
	if !strings.HasPrefix(msg, "From: a@x\r\nTo: b@y\r\nSubject: Hi\r\nDate: Sun, 01 Mar 2026 09:30:00 +0000\r\nMessage-ID: <id@x>\r\n") {
		t.Fatalf("unexpected headers %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two\r\n") {
		t.Fatalf("unexpected body %q", msg)
	}

	encoded := buildMessage("a@x", "b@y", "Turno de Martín", "x", date, "<id@x>")
	if !strings.Contains(encoded, "Subject: =?utf-8?q?Turno_de_Mart=C3=ADn?=\r\n") {
		t.Fatalf("expected encoded subject, got %q", encoded)
	}
}
