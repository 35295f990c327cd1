package scheduling

import (
	"context"

	"github.com/calmspace/practice/services/scheduling-service/internal/availability"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

// Availability returns the free slots for date. Public callers get no slots on
// closed Sundays or past dates, and none that already started today.
func (s *Service) Availability(ctx context.Context, ch Channel, rawDate string) (availability.Result, error) {
	date, err := parseDate("date", rawDate)
	if err != nil {
		return availability.Result{}, err
	}
	empty := availability.Result{Date: date, Slots: []availability.Slot{}}
	today := s.today()
	if ch == ChannelPublic && (s.sundayClosed(date, ch) || date.Before(today)) {
		return empty, nil
	}

	var res availability.Result
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		res, err = s.calc.Calculate(ctx, tx, date)
		return err
	})
	if err != nil {
		return availability.Result{}, err
	}

	if ch == ChannelPublic && date.Equal(today) {
		kept := res.Slots[:0]
		for _, slot := range res.Slots {
			if !s.startedToday(date, slot.Start.Minutes()) {
				kept = append(kept, slot)
			}
		}
		res.Slots = kept
	}
	return res, nil
}
