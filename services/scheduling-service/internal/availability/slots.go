package availability

import (
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
)

// Interval is a half-open range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// SliceWindow returns the start minute of every full slot of length size inside
// w. A trailing partial slot is dropped.
func SliceWindow(w model.Window, size int) []int {
	if size <= 0 {
		return nil
	}
	start, end := w.Start.Minutes(), w.End.Minutes()
	if end <= start {
		return nil
	}

	var starts []int
	for t := start; t+size <= end; t += size {
		starts = append(starts, t)
	}
	return starts
}

func overlapsAny(start, end int, busy []Interval) bool {
	for _, b := range busy {
		if clock.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
