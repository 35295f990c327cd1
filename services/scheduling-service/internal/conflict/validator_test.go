package conflict

import (
	"strings"
	"testing"

	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
)

func proposal(start, end string) Proposal {
	return Proposal{Start: clock.MustParse(start), End: clock.MustParse(end)}
}

func booked(id, start, end string, status model.Status) model.Appointment {
	return model.Appointment{
		ID:          id,
		Start:       clock.MustParse(start),
		End:         clock.MustParse(end),
		Status:      status,
		PatientID:   "12345678",
		PatientName: "Ana Ruiz",
	}
}

func block(start, end string) model.ManualBlock {
	return model.ManualBlock{Start: clock.MustParse(start), End: clock.MustParse(end), Type: "vacation"}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Proposal
		day  Day
		want apperr.Code
	}{
		{
			name: "overlap with confirmed appointment",
			p:    proposal("14:00", "15:00"),
			day:  Day{Appointments: []model.Appointment{booked("a-1", "14:30", "15:30", model.StatusConfirmed)}},
			want: apperr.RangeConflict,
		},
		{
			name: "end equals start",
			p:    proposal("10:00", "10:00"),
			want: apperr.InvalidRange,
		},
		{
			name: "end before start",
			p:    proposal("11:00", "10:00"),
			want: apperr.InvalidRange,
		},
		{
			name: "manual block",
			p:    proposal("13:30", "14:30"),
			day:  Day{Blocks: []model.ManualBlock{block("13:00", "14:00")}},
			want: apperr.Blocked,
		},
		{
			name: "same start",
			p:    proposal("09:00", "09:30"),
			day:  Day{Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusPending)}},
			want: apperr.SlotTaken,
		},
		{
			name: "too short",
			p:    Proposal{Start: clock.MustParse("09:00"), End: clock.MustParse("09:30"), MinimumMinutes: 60},
			want: apperr.DurationTooShort,
		},
		{
			name: "range checked before minimum",
			p:    Proposal{Start: clock.MustParse("09:00"), End: clock.MustParse("09:00"), MinimumMinutes: 60},
			want: apperr.InvalidRange,
		},
		{
			name: "slot taken wins over block",
			p:    proposal("09:00", "10:00"),
			day: Day{
				Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusConfirmed)},
				Blocks:       []model.ManualBlock{block("09:00", "10:00")},
			},
			want: apperr.SlotTaken,
		},
		{
			name: "cancelled appointment ignored",
			p:    proposal("09:00", "10:00"),
			day:  Day{Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusCancelled)}},
		},
		{
			name: "completed appointment still occupies",
			p:    proposal("09:30", "10:30"),
			day:  Day{Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusCompleted)}},
			want: apperr.RangeConflict,
		},
		{
			name: "adjacent ranges do not overlap",
			p:    proposal("10:00", "11:00"),
			day: Day{
				Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusConfirmed)},
				Blocks:       []model.ManualBlock{block("11:00", "12:00")},
			},
		},
		{
			name: "excluded appointment",
			p:    Proposal{Start: clock.MustParse("09:00"), End: clock.MustParse("10:00"), ExcludeID: "a-1"},
			day:  Day{Appointments: []model.Appointment{booked("a-1", "09:00", "10:00", model.StatusConfirmed)}},
		},
		{
			name: "outside working hours",
			p:    proposal("11:30", "12:30"),
			day:  Day{Windows: []model.Window{{Start: clock.MustParse("09:00"), End: clock.MustParse("12:00")}}},
			want: apperr.OutsideHours,
		},
		{
			name: "nil windows skip the hours check",
			p:    proposal("22:00", "23:00"),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.p, tc.day)
			if got := apperr.CodeOf(err); got != tc.want {
				t.Fatalf("expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func TestValidateReturnsDuration(t *testing.T) {
	minutes, err := Validate(proposal("09:15", "10:45"), Day{})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if minutes != 90 {
		t.Fatalf("expected 90 minutes, got %d", minutes)
	}
}

func TestValidateMessagesNameTheConflict(t *testing.T) {
	_, err := Validate(proposal("14:00", "15:00"), Day{
		Appointments: []model.Appointment{booked("a-1", "14:30", "15:30", model.StatusConfirmed)},
	})
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected coded error, got %v", err)
	}
	if !strings.Contains(e.Message, "14:30-15:30") || !strings.Contains(e.Message, "Ana Ruiz") {
		t.Fatalf("message does not name the conflict: %q", e.Message)
	}

	_, err = Validate(Proposal{Start: clock.MustParse("09:00"), End: clock.MustParse("09:30"), MinimumMinutes: 50}, Day{})
	if e, _ := apperr.As(err); e == nil || !strings.Contains(e.Message, "50") || !strings.Contains(e.Message, "30") {
		t.Fatalf("expected required and given minutes, got %v", err)
	}
}
