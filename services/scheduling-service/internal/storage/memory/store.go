// Package memory is an in-process Storage for development and tests. Atomic
// runs one transaction at a time against a copy of the state and swaps it in
// on success, so a failed operation leaves no partial writes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/calmspace/practice/services/scheduling-service/internal/clock"
	"github.com/calmspace/practice/services/scheduling-service/internal/model"
	"github.com/calmspace/practice/services/scheduling-service/internal/storage"
)

type state struct {
	weekly        []model.WeeklySchedule
	exceptions    map[string]model.ScheduleException
	blocks        map[string]model.ManualBlock
	appointments  map[string]model.Appointment
	patients      map[string]model.Patient
	treatments    map[string]model.Treatment
	idempotency   map[string]string
	paymentEvents map[string]struct{}
}

func newState() *state {
	return &state{
		exceptions:    map[string]model.ScheduleException{},
		blocks:        map[string]model.ManualBlock{},
		appointments:  map[string]model.Appointment{},
		patients:      map[string]model.Patient{},
		treatments:    map[string]model.Treatment{},
		idempotency:   map[string]string{},
		paymentEvents: map[string]struct{}{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.weekly = append([]model.WeeklySchedule(nil), s.weekly...)
	for k, v := range s.exceptions {
		c.exceptions[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.treatments {
		c.treatments[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k := range s.paymentEvents {
		c.paymentEvents[k] = struct{}{}
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithTreatments seeds the read-only treatment catalog.
func WithTreatments(items ...model.Treatment) Option {
	return func(s *Store) {
		for _, t := range items {
			s.st.treatments[t.ID] = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

type tx struct {
	st  *state
	now func() time.Time
}

var _ storage.Tx = (*tx)(nil)

func dateKey(d time.Time) string { return clock.FormatDate(d) }

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

func (t *tx) LockDate(context.Context, time.Time) error { return nil }

func (t *tx) WeeklySchedules(_ context.Context, weekday int) ([]model.WeeklySchedule, error) {
	var out []model.WeeklySchedule
	for _, w := range t.st.weekly {
		if w.Active && w.DayOfWeek == weekday {
			out = append(out, w)
		}
	}
	sortWeekly(out)
	return out, nil
}

func (t *tx) ExceptionForDate(_ context.Context, date time.Time) (*model.ScheduleException, error) {
	ex, ok := t.st.exceptions[dateKey(date)]
	if !ok {
		return nil, nil
	}
	return &ex, nil
}

func (t *tx) ManualBlocksForDate(_ context.Context, date time.Time) ([]model.ManualBlock, error) {
	key := dateKey(date)
	var out []model.ManualBlock
	for _, b := range t.st.blocks {
		if dateKey(b.Date) == key {
			out = append(out, b)
		}
	}
	sortBlocks(out)
	return out, nil
}

func (t *tx) AppointmentsForDate(_ context.Context, date time.Time) ([]model.Appointment, error) {
	key := dateKey(date)
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if dateKey(a.Date) != key {
			continue
		}
		if p, ok := t.st.patients[a.PatientID]; ok {
			a.PatientName = p.FullName()
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (t *tx) ListWeeklySchedules(context.Context) ([]model.WeeklySchedule, error) {
	out := append([]model.WeeklySchedule(nil), t.st.weekly...)
	sortWeekly(out)
	return out, nil
}

func (t *tx) ReplaceWeeklySchedules(_ context.Context, items []model.WeeklySchedule) error {
	for i := range t.st.weekly {
		t.st.weekly[i].Active = false
	}
	for _, it := range items {
		it.Active = true
		t.st.weekly = append(t.st.weekly, it)
	}
	return nil
}

func (t *tx) UpsertException(_ context.Context, ex model.ScheduleException) error {
	t.st.exceptions[dateKey(ex.Date)] = ex
	return nil
}

func (t *tx) DeleteException(_ context.Context, date time.Time) error {
	key := dateKey(date)
	if _, ok := t.st.exceptions[key]; !ok {
		return storage.ErrNotFound
	}
	delete(t.st.exceptions, key)
	return nil
}

func (t *tx) ListExceptions(_ context.Context, from, to time.Time) ([]model.ScheduleException, error) {
	var out []model.ScheduleException
	for _, ex := range t.st.exceptions {
		if inRange(ex.Date, from, to) {
			out = append(out, ex)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *tx) InsertManualBlock(_ context.Context, b model.ManualBlock) error {
	key := dateKey(b.Date)
	for _, other := range t.st.blocks {
		if dateKey(other.Date) != key {
			continue
		}
		if clock.Overlaps(b.Start.Minutes(), b.End.Minutes(), other.Start.Minutes(), other.End.Minutes()) {
			return storage.ErrBlockOverlap
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now().UTC()
	}
	t.st.blocks[b.ID] = b
	return nil
}

func (t *tx) DeleteManualBlock(_ context.Context, id string) error {
	if _, ok := t.st.blocks[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.st.blocks, id)
	return nil
}

func (t *tx) ListManualBlocks(_ context.Context, from, to time.Time) ([]model.ManualBlock, error) {
	var out []model.ManualBlock
	for _, b := range t.st.blocks {
		if inRange(b.Date, from, to) {
			out = append(out, b)
		}
	}
	sortBlocks(out)
	return out, nil
}

func (t *tx) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := t.st.appointments[id]
	if !ok {
		return model.Appointment{}, storage.ErrNotFound
	}
	return a, nil
}

// checkInvariants mirrors the unique index and exclusion constraint of the postgres schema.
func (t *tx) checkInvariants(a model.Appointment) error {
	if a.Status == model.StatusCancelled {
		return nil
	}
	key := dateKey(a.Date)
	for _, other := range t.st.appointments {
		if other.ID == a.ID || other.Status == model.StatusCancelled || dateKey(other.Date) != key {
			continue
		}
		if other.Start.Minutes() == a.Start.Minutes() {
			return storage.ErrSlotTaken
		}
		if clock.Overlaps(a.StartMinute(), a.EndMinute(), other.StartMinute(), other.EndMinute()) {
			return storage.ErrRangeConflict
		}
	}
	return nil
}

func (t *tx) InsertAppointment(_ context.Context, a model.Appointment) error {
	if _, exists := t.st.appointments[a.ID]; exists {
		return storage.ErrDuplicate
	}
	if err := t.checkInvariants(a); err != nil {
		return err
	}
	now := t.now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	a.PatientName = ""
	t.st.appointments[a.ID] = a
	return nil
}

func (t *tx) UpdateAppointment(_ context.Context, a model.Appointment) error {
	if _, exists := t.st.appointments[a.ID]; !exists {
		return storage.ErrNotFound
	}
	if err := t.checkInvariants(a); err != nil {
		return err
	}
	a.UpdatedAt = t.now().UTC()
	a.PatientName = ""
	t.st.appointments[a.ID] = a
	return nil
}

func (t *tx) ListAppointments(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if !inRange(a.Date, from, to) {
			continue
		}
		if p, ok := t.st.patients[a.PatientID]; ok {
			a.PatientName = p.FullName()
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (t *tx) GetPatient(_ context.Context, nationalID string) (model.Patient, error) {
	p, ok := t.st.patients[nationalID]
	if !ok {
		return model.Patient{}, storage.ErrNotFound
	}
	return p, nil
}

func (t *tx) UpsertPatient(_ context.Context, p model.Patient) (model.Patient, error) {
	now := t.now().UTC()
	if existing, ok := t.st.patients[p.NationalID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	t.st.patients[p.NationalID] = p
	return p, nil
}

func (t *tx) GetTreatment(_ context.Context, id string) (model.Treatment, error) {
	tr, ok := t.st.treatments[id]
	if !ok {
		return model.Treatment{}, storage.ErrNotFound
	}
	return tr, nil
}

func (t *tx) LockIdempotencyKey(_ context.Context, key string) (storage.IdempotencyRecord, bool, error) {
	id, ok := t.st.idempotency[key]
	if !ok || id == "" {
		return storage.IdempotencyRecord{Key: key}, false, nil
	}
	return storage.IdempotencyRecord{Key: key, AppointmentID: id}, true, nil
}

func (t *tx) FinalizeIdempotency(_ context.Context, rec storage.IdempotencyRecord) error {
	t.st.idempotency[rec.Key] = rec.AppointmentID
	return nil
}

func (t *tx) RecordPaymentEvent(_ context.Context, evt storage.PaymentEvent) error {
	key := evt.Provider + ":" + evt.EventID
	if _, ok := t.st.paymentEvents[key]; ok {
		return storage.ErrDuplicate
	}
	t.st.paymentEvents[key] = struct{}{}
	return nil
}

func sortWeekly(items []model.WeeklySchedule) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DayOfWeek != items[j].DayOfWeek {
			return items[i].DayOfWeek < items[j].DayOfWeek
		}
		return items[i].Start.Before(items[j].Start)
	})
}

func sortBlocks(items []model.ManualBlock) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].Start.Before(items[j].Start)
	})
}

func sortAppointments(items []model.Appointment) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		if items[i].Start != items[j].Start {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].ID < items[j].ID
	})
}
