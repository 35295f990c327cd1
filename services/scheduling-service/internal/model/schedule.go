package model

import (
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
)

// WeeklySchedule is one working window on a weekday (0 = Sunday).
type WeeklySchedule struct {
	ID        string
	DayOfWeek int
	Start     clock.TimeOfDay
	End       clock.TimeOfDay
	Active    bool
}

// ScheduleException overrides the weekly schedule for a single date. When
// Available is false the whole day is closed; otherwise Start/End replace the
// weekly windows.
type ScheduleException struct {
	Date      time.Time
	Start     *clock.TimeOfDay
	End       *clock.TimeOfDay
	Available bool
	Reason    string
}

type ManualBlock struct {
	ID          string
	Date        time.Time
	Start       clock.TimeOfDay
	End         clock.TimeOfDay
	Type        string
	Description string
	CreatedAt   time.Time
}

// Window is a resolved bookable range within a day.
type Window struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
}

func (w Window) Contains(start, end int) bool {
	return start >= w.Start.Minutes() && end <= w.End.Minutes()
}
