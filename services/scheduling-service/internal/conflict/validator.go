// Package conflict decides whether a proposed appointment range can be booked
// on a day.
package conflict

import (
	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
)

type Proposal struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
	// ExcludeID skips the appointment being rescheduled.
	ExcludeID      string
	MinimumMinutes int
}

// Day is the state of one date the proposal is checked against. Windows is
// only checked when non-nil.
type Day struct {
	Appointments []model.Appointment
	Blocks       []model.ManualBlock
	Windows      []model.Window
}

// Validate runs the checks in order and returns the first failure. On success
// it returns the duration in minutes.
func Validate(p Proposal, d Day) (int, error) {
	start, end := p.Start.Minutes(), p.End.Minutes()
	if end <= start {
		return 0, apperr.New(apperr.InvalidRange, "end time %s must be after start time %s", p.End.Short(), p.Start.Short())
	}
	duration := end - start
	if p.MinimumMinutes > 0 && duration < p.MinimumMinutes {
		return 0, apperr.New(apperr.DurationTooShort, "appointment needs at least %d minutes, got %d", p.MinimumMinutes, duration)
	}

	var active []model.Appointment
	for _, a := range d.Appointments {
		if a.Status == model.StatusCancelled || (p.ExcludeID != "" && a.ID == p.ExcludeID) {
			continue
		}
		active = append(active, a)
	}
	for _, a := range active {
		if a.StartMinute() == start {
			return 0, apperr.New(apperr.SlotTaken, "%s is already booked by %s", p.Start.Short(), patientLabel(a))
		}
	}
	for _, a := range active {
		if clock.Overlaps(start, end, a.StartMinute(), a.EndMinute()) {
			return 0, apperr.New(apperr.RangeConflict, "overlaps the appointment %s-%s of %s",
				a.Start.Short(), a.End.Short(), patientLabel(a))
		}
	}
	for _, b := range d.Blocks {
		if clock.Overlaps(start, end, b.Start.Minutes(), b.End.Minutes()) {
			return 0, apperr.New(apperr.Blocked, "time %s-%s is blocked%s", b.Start.Short(), b.End.Short(), blockLabel(b))
		}
	}
	if d.Windows != nil && !insideAny(start, end, d.Windows) {
		return 0, apperr.New(apperr.OutsideHours, "%s-%s is outside working hours", p.Start.Short(), p.End.Short())
	}
	return duration, nil
}

func insideAny(start, end int, windows []model.Window) bool {
	for _, w := range windows {
		if w.Contains(start, end) {
			return true
		}
	}
	return false
}

func patientLabel(a model.Appointment) string {
	if a.PatientName != "" {
		return "patient " + a.PatientName
	}
	return "patient " + a.PatientID
}

func blockLabel(b model.ManualBlock) string {
	if b.Description != "" {
		return " (" + b.Description + ")"
	}
	if b.Type != "" {
		return " (" + b.Type + ")"
	}
	return ""
}
