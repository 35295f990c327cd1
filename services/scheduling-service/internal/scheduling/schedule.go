package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

type WeeklyInput struct {
	DayOfWeek int
	Start     string
	End       string
}

type ExceptionInput struct {
	Date      string
	Start     string
	End       string
	Available bool
	Reason    string
}

type BlockInput struct {
	Date        string
	Start       string
	End         string
	Type        string
	Description string
}

func parseRangeOfDay(startRaw, endRaw string) (clock.TimeOfDay, clock.TimeOfDay, error) {
	start, err := parseTime("startTime", startRaw)
	if err != nil {
		return clock.TimeOfDay{}, clock.TimeOfDay{}, err
	}
	end, err := parseTime("endTime", endRaw)
	if err != nil {
		return clock.TimeOfDay{}, clock.TimeOfDay{}, err
	}
	if end.Minutes() <= start.Minutes() {
		return clock.TimeOfDay{}, clock.TimeOfDay{}, apperr.New(apperr.InvalidRange, "end time %s must be after start time %s", end.Short(), start.Short())
	}
	return start, end, nil
}

// ReplaceWeeklySchedule deactivates the current weekly windows and stores items
// as the new schedule. Windows of one weekday may not overlap.
func (s *Service) ReplaceWeeklySchedule(ctx context.Context, items []WeeklyInput) ([]model.WeeklySchedule, error) {
	windows := make([]model.WeeklySchedule, 0, len(items))
	for i, in := range items {
		if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
			return nil, apperr.New(apperr.Validation, "item %d: dayOfWeek must be between 0 and 6", i)
		}
		start, end, err := parseRangeOfDay(in.Start, in.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, model.WeeklySchedule{
			ID:        s.newID(),
			DayOfWeek: in.DayOfWeek,
			Start:     start,
			End:       end,
			Active:    true,
		})
	}
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].DayOfWeek != windows[j].DayOfWeek {
			return windows[i].DayOfWeek < windows[j].DayOfWeek
		}
		return windows[i].Start.Minutes() < windows[j].Start.Minutes()
	})
	for i := 1; i < len(windows); i++ {
		prev, cur := windows[i-1], windows[i]
		if prev.DayOfWeek == cur.DayOfWeek && clock.Overlaps(prev.Start.Minutes(), prev.End.Minutes(), cur.Start.Minutes(), cur.End.Minutes()) {
			return nil, apperr.New(apperr.Validation, "windows %s-%s and %s-%s overlap on day %d",
				prev.Start.Short(), prev.End.Short(), cur.Start.Short(), cur.End.Short(), cur.DayOfWeek)
		}
	}

	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.ReplaceWeeklySchedules(ctx, windows)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("weekly schedule replaced", "windows", len(windows))
	return windows, nil
}

// ListWeeklySchedule returns the weekly windows; inactive ones only when all is set.
func (s *Service) ListWeeklySchedule(ctx context.Context, all bool) ([]model.WeeklySchedule, error) {
	var out []model.WeeklySchedule
	err := s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		items, err := tx.ListWeeklySchedules(ctx)
		if err != nil {
			return err
		}
		for _, w := range items {
			if all || w.Active {
				out = append(out, w)
			}
		}
		return nil
	})
	return out, err
}

// UpsertException stores the single exception of a date. An available
// exception takes both hours or neither.
func (s *Service) UpsertException(ctx context.Context, in ExceptionInput) (model.ScheduleException, error) {
	date, err := parseDate("date", in.Date)
	if err != nil {
		return model.ScheduleException{}, err
	}
	ex := model.ScheduleException{Date: date, Available: in.Available, Reason: strings.TrimSpace(in.Reason)}

	hasStart, hasEnd := strings.TrimSpace(in.Start) != "", strings.TrimSpace(in.End) != ""
	switch {
	case !in.Available:
	case hasStart && hasEnd:
		start, end, err := parseRangeOfDay(in.Start, in.End)
		if err != nil {
			return model.ScheduleException{}, err
		}
		ex.Start, ex.End = &start, &end
	case hasStart || hasEnd:
		return model.ScheduleException{}, apperr.New(apperr.Validation, "startTime and endTime must be given together")
	}

	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.LockDate(ctx, date); err != nil {
			return err
		}
		return tx.UpsertException(ctx, ex)
	})
	if err != nil {
		return model.ScheduleException{}, err
	}
	return ex, nil
}

func (s *Service) DeleteException(ctx context.Context, rawDate string) error {
	date, err := parseDate("date", rawDate)
	if err != nil {
		return err
	}
	return s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		return notFound(tx.DeleteException(ctx, date), "no exception on %s", clock.FormatDate(date))
	})
}

func (s *Service) ListExceptions(ctx context.Context, from, to string) ([]model.ScheduleException, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	var out []model.ScheduleException
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		out, err = tx.ListExceptions(ctx, start, end)
		return err
	})
	return out, err
}

// CreateBlock stores a manual block. Blocks of one date may not overlap.
func (s *Service) CreateBlock(ctx context.Context, in BlockInput) (model.ManualBlock, error) {
	date, err := parseDate("date", in.Date)
	if err != nil {
		return model.ManualBlock{}, err
	}
	start, end, err := parseRangeOfDay(in.Start, in.End)
	if err != nil {
		return model.ManualBlock{}, err
	}
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		kind = "other"
	}
	block := model.ManualBlock{
		ID:          s.newID(),
		Date:        date,
		Start:       start,
		End:         end,
		Type:        kind,
		Description: strings.TrimSpace(in.Description),
	}

	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.LockDate(ctx, date); err != nil {
			return err
		}
		existing, err := tx.ManualBlocksForDate(ctx, date)
		if err != nil {
			return err
		}
		for _, b := range existing {
			if clock.Overlaps(start.Minutes(), end.Minutes(), b.Start.Minutes(), b.End.Minutes()) {
				return apperr.New(apperr.BlockOverlap, "overlaps the block %s-%s", b.Start.Short(), b.End.Short())
			}
		}
		return storeErr(tx.InsertManualBlock(ctx, block))
	})
	if err != nil {
		return model.ManualBlock{}, err
	}
	return block, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id string) error {
	return s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		err := tx.DeleteManualBlock(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.New(apperr.NotFound, "block %s not found", id)
		}
		return err
	})
}

func (s *Service) ListBlocks(ctx context.Context, from, to string) ([]model.ManualBlock, error) {
	start, end, err := parseRange(from, to)
	if err != nil {
		return nil, err
	}
	var out []model.ManualBlock
	err = s.store.Atomic(ctx, func(ctx context.Context, tx storage.Tx) error {
		out, err = tx.ListManualBlocks(ctx, start, end)
		return err
	})
	return out, err
}
