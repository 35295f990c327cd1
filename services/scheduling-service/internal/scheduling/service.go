// Package scheduling orchestrates appointment bookings: it validates requests
// against the day's state, writes through storage.Storage and raises
// notification intents once a change is committed.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/calmspace/practice/libs/events"
	"github.com/calmspace/practice/services/scheduling-service/internal/apperr"
	"github.com/calmspace/practice/services/scheduling-service/internal/availability"
	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
	"github.com/google/uuid"
)

// Channel is the already authorized origin of a request.
type Channel string

const (
	ChannelPublic Channel = "public"
	ChannelAdmin  Channel = "admin"
)

// Notifier receives intents after the originating transaction committed.
type Notifier interface {
	Notify(ctx context.Context, intent events.Intent) error
}

type Config struct {
	AllowSundayBookings bool
	SlotMinutes         int
	// EnforceHours rejects public bookings that do not fit a resolved window.
	EnforceHours bool
	// Location decides what "today" is for past-date checks.
	Location *time.Location
}

type Service struct {
	store    storage.Storage
	calc     *availability.Calculator
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store storage.Storage, notifier Notifier, logger *slog.Logger, cfg Config, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	s := &Service{
		store:    store,
		calc:     availability.NewCalculator(cfg.SlotMinutes),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	return clock.DateOf(s.now().In(s.cfg.Location))
}

// startedToday reports whether start on date is not after the current
// practice-local minute.
func (s *Service) startedToday(date time.Time, start int) bool {
	local := s.now().In(s.cfg.Location)
	if !date.Equal(clock.DateOf(local)) {
		return false
	}
	return start <= local.Hour()*60+local.Minute()
}

func (s *Service) sundayClosed(date time.Time, ch Channel) bool {
	return ch == ChannelPublic && !s.cfg.AllowSundayBookings && date.Weekday() == time.Sunday
}

// storeErr translates store constraint sentinels into coded errors.
func storeErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrSlotTaken):
		return apperr.New(apperr.SlotTaken, "the requested start time was just booked")
	case errors.Is(err, storage.ErrRangeConflict):
		return apperr.New(apperr.RangeConflict, "the requested time overlaps an appointment that was just booked")
	case errors.Is(err, storage.ErrBlockOverlap):
		return apperr.New(apperr.BlockOverlap, "the block overlaps another block")
	}
	return err
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.New(apperr.NotFound, format, args...)
	}
	return err
}

func parseDate(field, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, apperr.New(apperr.Validation, "%s is required", field)
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return time.Time{}, apperr.New(apperr.Validation, "%s must be YYYY-MM-DD", field)
	}
	return d, nil
}

func parseTime(field, raw string) (clock.TimeOfDay, error) {
	if strings.TrimSpace(raw) == "" {
		return clock.TimeOfDay{}, apperr.New(apperr.Validation, "%s is required", field)
	}
	t, err := clock.Parse(raw)
	if err != nil {
		return clock.TimeOfDay{}, apperr.New(apperr.InvalidTimeFormat, "%s %q is not a valid time", field, raw)
	}
	return t, nil
}

const maxRangeDays = 92

// parseRange parses an inclusive date range; an empty to means the single day from.
func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := parseDate("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start
	if strings.TrimSpace(to) != "" {
		if end, err = parseDate("to", to); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apperr.New(apperr.Validation, "to must not be before from")
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, apperr.New(apperr.Validation, "range may span at most %d days", maxRangeDays)
	}
	return start, end, nil
}
