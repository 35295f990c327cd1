package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/calmspace/practice/libs/events"
)

type Kind string

const (
	KindCreated     Kind = "created"
	KindRescheduled Kind = "rescheduled"
	KindCancelled   Kind = "cancelled"
	KindReminder    Kind = "reminder"
)

// Message is the data every template renders from. Previous is only set for
// reschedules.
type Message struct {
	Practice    string
	Appointment events.AppointmentSnapshot
	Previous    *events.AppointmentSnapshot
	Reason      string
}

type rendered struct {
	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"hhmm": func(s string) string {
		if len(s) >= 5 {
			return s[:5]
		}
		return s
	},
	"fallback": func(s, fallback string) string {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	},
}

func mustPair(name, subject, body string) rendered {
	return rendered{
		subject: template.Must(template.New(name + ".subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(name + ".body").Funcs(funcs).Parse(body)),
	}
}

var patientTemplates = map[Kind]rendered{
	KindCreated: mustPair("created",
		`Your appointment on {{.Appointment.Date}} at {{hhmm .Appointment.StartTime}}`,
		`Hello {{fallback .Appointment.PatientName "there"}},

your {{fallback .Appointment.TreatmentName "session"}} at {{.Practice}} is booked for {{.Appointment.Date}} from {{hhmm .Appointment.StartTime}} to {{hhmm .Appointment.EndTime}}.
`),
	KindRescheduled: mustPair("rescheduled",
		`Your appointment moved to {{.Appointment.Date}} at {{hhmm .Appointment.StartTime}}`,
		`Hello {{fallback .Appointment.PatientName "there"}},

your appointment at {{.Practice}}{{with .Previous}} on {{.Date}} at {{hhmm .StartTime}}{{end}} was moved to {{.Appointment.Date}} from {{hhmm .Appointment.StartTime}} to {{hhmm .Appointment.EndTime}}.
`),
	KindCancelled: mustPair("cancelled",
		`Your appointment on {{.Appointment.Date}} was cancelled`,
		`Hello {{fallback .Appointment.PatientName "there"}},

your appointment at {{.Practice}} on {{.Appointment.Date}} at {{hhmm .Appointment.StartTime}} was cancelled.{{with .Reason}}
Reason: {{.}}{{end}}
`),
	KindReminder: mustPair("reminder",
		`Reminder: appointment tomorrow at {{hhmm .Appointment.StartTime}}`,
		`Hello {{fallback .Appointment.PatientName "there"}},

this is a reminder of your {{fallback .Appointment.TreatmentName "session"}} at {{.Practice}} on {{.Appointment.Date}} at {{hhmm .Appointment.StartTime}}.
`),
}

var practiceTemplate = mustPair("practice",
	`[{{.Kind}}] {{.Appointment.Date}} {{hhmm .Appointment.StartTime}} {{fallback .Appointment.PatientName .Appointment.PatientID}}`,
	`Appointment {{.Appointment.ID}} {{.Kind}}.
Patient: {{fallback .Appointment.PatientName .Appointment.PatientID}}
When: {{.Appointment.Date}} {{hhmm .Appointment.StartTime}}-{{hhmm .Appointment.EndTime}}{{with .Previous}}
Was: {{.Date}} {{hhmm .StartTime}}-{{hhmm .EndTime}}{{end}}{{with .Reason}}
Reason: {{.}}{{end}}
`)

// RenderPatient returns the subject and plain text body sent to the patient.
func RenderPatient(kind Kind, m Message) (string, string, error) {
	t, ok := patientTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("no patient template for %q", kind)
	}
	return execute(t, m)
}

// RenderPractice returns the summary sent to the practice inbox.
func RenderPractice(kind Kind, m Message) (string, string, error) {
	return execute(practiceTemplate, struct {
		Message
		Kind Kind
	}{m, kind})
}

func execute(t rendered, data any) (string, string, error) {
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
