// Package availability computes the free appointment slots of a calendar day.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

const DefaultSlotMinutes = 60

type Slot struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
}

type Result struct {
	Date  time.Time
	Slots []Slot
}

func (r Result) Total() int { return len(r.Slots) }

// Starts returns the slot start times formatted as HH:MM.
func (r Result) Starts() []string {
	out := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		out = append(out, s.Start.Short())
	}
	return out
}

type Calculator struct {
	slotMinutes int
}

func NewCalculator(slotMinutes int) *Calculator {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	return &Calculator{slotMinutes: slotMinutes}
}

func (c *Calculator) SlotMinutes() int { return c.slotMinutes }

// ResolveWindows merges the weekly schedule with the date's exception. A closed
// exception yields no windows; an open exception with hours replaces the weekly
// windows; an open exception without hours leaves them untouched.
func ResolveWindows(ctx context.Context, r storage.DayReader, date time.Time) ([]model.Window, error) {
	ex, err := r.ExceptionForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		if !ex.Available {
			return []model.Window{}, nil
		}
		if ex.Start != nil && ex.End != nil {
			return []model.Window{{Start: *ex.Start, End: *ex.End}}, nil
		}
	}

	weekly, err := r.WeeklySchedules(ctx, int(date.Weekday()))
	if err != nil {
		return nil, err
	}
	windows := make([]model.Window, 0, len(weekly))
	for _, w := range weekly {
		if !w.Active {
			continue
		}
		windows = append(windows, model.Window{Start: w.Start, End: w.End})
	}
	return windows, nil
}

// Calculate returns the free slots of date in ascending order. It only reads.
func (c *Calculator) Calculate(ctx context.Context, r storage.DayReader, date time.Time) (Result, error) {
	date = clock.DateOf(date)
	windows, err := ResolveWindows(ctx, r, date)
	if err != nil {
		return Result{}, err
	}
	res := Result{Date: date, Slots: []Slot{}}
	if len(windows) == 0 {
		return res, nil
	}

	appts, err := r.AppointmentsForDate(ctx, date)
	if err != nil {
		return Result{}, err
	}
	blocks, err := r.ManualBlocksForDate(ctx, date)
	if err != nil {
		return Result{}, err
	}

	taken := map[int]bool{}
	var booked []Interval
	for _, a := range appts {
		if !a.Status.Occupies() {
			continue
		}
		taken[a.StartMinute()] = true
		booked = append(booked, Interval{Start: a.StartMinute(), End: a.EndMinute()})
	}
	blocked := make([]Interval, 0, len(blocks))
	for _, b := range blocks {
		blocked = append(blocked, Interval{Start: b.Start.Minutes(), End: b.End.Minutes()})
	}

	seen := map[int]bool{}
	var starts []int
	for _, w := range windows {
		for _, s := range SliceWindow(w, c.slotMinutes) {
			end := s + c.slotMinutes
			if seen[s] || taken[s] || overlapsAny(s, end, booked) || overlapsAny(s, end, blocked) {
				continue
			}
			seen[s] = true
			starts = append(starts, s)
		}
	}
	sort.Ints(starts)

	for _, s := range starts {
		res.Slots = append(res.Slots, Slot{Start: clock.FromMinutes(s), End: clock.FromMinutes(s + c.slotMinutes)})
	}
	return res, nil
}
