// Package clock parses and formats the wall-clock times and calendar dates
// used by schedules and appointments.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime = errors.New("invalid time of day")
	ErrInvalidDate = errors.New("invalid date")
)

const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Parse normalizes "HH:MM" and "HH:MM:SS". Strings with more than three
// colon separated parts keep the first two and reset seconds to zero.
func Parse(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	var hh, mm, ss string
	switch {
	case len(parts) == 2:
		hh, mm, ss = parts[0], parts[1], "00"
	case len(parts) == 3:
		hh, mm, ss = parts[0], parts[1], parts[2]
	case len(parts) > 3:
		hh, mm, ss = parts[0], parts[1], "00"
	default:
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}

	h, okH := component(hh, 23)
	m, okM := component(mm, 59)
	s, okS := component(ss, 59)
	if !okH || !okM || !okS {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return TimeOfDay{Hour: h, Minute: m, Second: s}, nil
}

func component(s string, max int) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0, false
	}
	return n, true
}

// MustParse is for constants and tests.
func MustParse(raw string) TimeOfDay {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// FromMinutes builds a TimeOfDay from minutes since midnight.
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// Minutes since midnight; seconds are dropped.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.seconds() < o.seconds()
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Overlaps is the half-open interval test for [aStart,aEnd) and [bStart,bEnd) in minutes.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf truncates t to its calendar date (in t's location) at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
