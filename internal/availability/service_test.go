package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/settings"
)

// -- Fakes --

type fakeRepo struct {
	windows    map[uuid.UUID]WeeklyAvailability
	exceptions map[uuid.UUID]ScheduleException
	calls      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		windows:    make(map[uuid.UUID]WeeklyAvailability),
		exceptions: make(map[uuid.UUID]ScheduleException),
	}
}

func (f *fakeRepo) ListActive(_ context.Context) ([]WeeklyAvailability, error) {
	f.calls++
	var out []WeeklyAvailability
	for _, a := range f.windows {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) List(_ context.Context) ([]WeeklyAvailability, error) {
	out := make([]WeeklyAvailability, 0, len(f.windows))
	for _, a := range f.windows {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	a, ok := f.windows[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &a, nil
}

func (f *fakeRepo) Create(_ context.Context, a WeeklyAvailability) (*WeeklyAvailability, error) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.windows[a.ID] = a
	return &a, nil
}

func (f *fakeRepo) Update(_ context.Context, a WeeklyAvailability) (*WeeklyAvailability, error) {
	if _, ok := f.windows[a.ID]; !ok {
		return nil, ErrAvailabilityNotFound
	}
	a.UpdatedAt = time.Now()
	f.windows[a.ID] = a
	return &a, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.windows[id]; !ok {
		return ErrAvailabilityNotFound
	}
	delete(f.windows, id)
	return nil
}

func (f *fakeRepo) ListExceptions(_ context.Context, from, to calendar.Date) ([]ScheduleException, error) {
	var out []ScheduleException
	for _, e := range f.exceptions {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) CreateException(_ context.Context, e ScheduleException) (*ScheduleException, error) {
	e.ID = uuid.New()
	f.exceptions[e.ID] = e
	return &e, nil
}

func (f *fakeRepo) DeleteException(_ context.Context, id uuid.UUID) error {
	if _, ok := f.exceptions[id]; !ok {
		return ErrExceptionNotFound
	}
	delete(f.exceptions, id)
	return nil
}

type fakeReservations []Reservation

func (f fakeReservations) ListReservations(_ context.Context, from, to calendar.Date) ([]Reservation, error) {
	var out []Reservation
	for _, r := range f {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func newTestService(repo *fakeRepo, res fakeReservations) *Service {
	return NewService(repo, res, Options{DefaultSlotDuration: 60, MaxRangeDays: 31}, zerolog.Nop())
}

// -- Tests --

func TestServiceAvailableSlotsRereadsState(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.CreateAvailability(ctx, weekly(time.Monday, "09:00", "10:00", 30)); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots, err := svc.AvailableSlots(ctx, monday, monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}

	if _, err := svc.CreateException(ctx, ScheduleException{Date: monday, IsAvailable: false}); err != nil {
		t.Fatalf("create exception: %v", err)
	}

	slots, err = svc.AvailableSlots(ctx, monday, monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("closure not picked up, got %d slots", len(slots))
	}
	if repo.calls < 2 {
		t.Errorf("expected fresh read per query, ListActive called %d times", repo.calls)
	}
}

func TestServiceAvailableSlotsExcludesReservations(t *testing.T) {
	repo := newFakeRepo()
	res := fakeReservations{{Date: monday, StartTime: calendar.MustParseClock("09:00")}}
	svc := newTestService(repo, res)
	ctx := context.Background()

	if _, err := svc.CreateAvailability(ctx, weekly(time.Monday, "09:00", "10:00", 30)); err != nil {
		t.Fatalf("create: %v", err)
	}

	slots, err := svc.AvailableSlots(ctx, monday, monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 1 || slots[0].StartTime.String() != "09:30" {
		t.Errorf("got %v", starts(slots))
	}
}

func TestServiceAvailableSlotsRangeChecks(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	ctx := context.Background()

	if _, err := svc.AvailableSlots(ctx, monday, monday.AddDays(-1)); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.AvailableSlots(ctx, monday, monday.AddDays(31)); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("oversized range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := svc.AvailableSlots(ctx, monday, monday.AddDays(30)); err != nil {
		t.Errorf("31 day range should pass, got %v", err)
	}
}

func TestServiceCreateAvailabilityValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		a    WeeklyAvailability
	}{
		{"end before start", weekly(time.Monday, "12:00", "09:00", 30)},
		{"zero duration", weekly(time.Monday, "09:00", "12:00", 0)},
		{"duration too long", weekly(time.Monday, "09:00", "09:30", 45)},
		{"bad weekday", weekly(time.Weekday(7), "09:00", "12:00", 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateAvailability(ctx, tt.a); !errors.Is(err, ErrInvalidAvailability) {
				t.Errorf("expected ErrInvalidAvailability, got %v", err)
			}
		})
	}
}

func TestServiceUpdateAvailabilityPatch(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateAvailability(ctx, weekly(time.Monday, "09:00", "12:00", 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	end := calendar.MustParseClock("13:00")
	updated, err := svc.UpdateAvailability(ctx, created.ID, AvailabilityPatch{EndTime: &end})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.EndTime != end {
		t.Errorf("end not applied: %s", updated.EndTime)
	}
	if updated.StartTime.String() != "09:00" || updated.SlotDuration != 30 || updated.DayOfWeek != time.Monday {
		t.Errorf("unset fields changed: %+v", updated)
	}

	bad := calendar.MustParseClock("08:00")
	if _, err := svc.UpdateAvailability(ctx, created.ID, AvailabilityPatch{EndTime: &bad}); !errors.Is(err, ErrInvalidAvailability) {
		t.Errorf("expected ErrInvalidAvailability, got %v", err)
	}

	if _, err := svc.UpdateAvailability(ctx, uuid.New(), AvailabilityPatch{}); !errors.Is(err, ErrAvailabilityNotFound) {
		t.Errorf("expected ErrAvailabilityNotFound, got %v", err)
	}
}

func TestServiceExceptionValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		e    ScheduleException
	}{
		{"missing date", ScheduleException{IsAvailable: false}},
		{"only start", ScheduleException{Date: monday, StartTime: clockPtr("09:00")}},
		{"inverted", ScheduleException{Date: monday, StartTime: clockPtr("12:00"), EndTime: clockPtr("09:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateException(ctx, tt.e); !errors.Is(err, ErrInvalidException) {
				t.Errorf("expected ErrInvalidException, got %v", err)
			}
		})
	}
}

func TestServiceDeleteUnknown(t *testing.T) {
	svc := newTestService(newFakeRepo(), nil)
	ctx := context.Background()

	if err := svc.DeleteAvailability(ctx, uuid.New()); !errors.Is(err, ErrAvailabilityNotFound) {
		t.Errorf("expected ErrAvailabilityNotFound, got %v", err)
	}
	if err := svc.DeleteException(ctx, uuid.New()); !errors.Is(err, ErrExceptionNotFound) {
		t.Errorf("expected ErrExceptionNotFound, got %v", err)
	}
}

func TestServiceInSchedule(t *testing.T) {
	repo := newFakeRepo()
	// A reservation on the slot does not take it out of the schedule
	svc := newTestService(repo, fakeReservations{{Date: monday, StartTime: calendar.MustParseClock("09:30")}})
	ctx := context.Background()

	if _, err := svc.CreateAvailability(ctx, weekly(time.Monday, "09:00", "10:00", 30)); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := svc.InSchedule(ctx, Slot{Date: monday, StartTime: calendar.MustParseClock("09:30"), EndTime: calendar.MustParseClock("10:00")})
	if err != nil || !ok {
		t.Errorf("expected in schedule, got %v %v", ok, err)
	}
	ok, err = svc.InSchedule(ctx, Slot{Date: monday, StartTime: calendar.MustParseClock("09:30"), EndTime: calendar.MustParseClock("17:00")})
	if err != nil || ok {
		t.Errorf("stretched end time must not match, got %v %v", ok, err)
	}
	ok, err = svc.InSchedule(ctx, Slot{Date: monday.AddDays(1), StartTime: calendar.MustParseClock("09:30"), EndTime: calendar.MustParseClock("10:00")})
	if err != nil || ok {
		t.Errorf("tuesday has no windows, got %v %v", ok, err)
	}
}

func TestServiceListAvailabilitiesIncludesInactive(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	a, err := svc.CreateAvailability(ctx, weekly(time.Monday, "09:00", "10:00", 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	off := false
	if _, err := svc.UpdateAvailability(ctx, a.ID, AvailabilityPatch{IsActive: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	list, err := svc.ListAvailabilities(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a.ID || list[0].IsActive {
		t.Errorf("expected the inactive window to be listed, got %+v", list)
	}

	slots, err := svc.AvailableSlots(ctx, monday, monday)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("inactive window must not generate slots, got %d", len(slots))
	}
}

type fixedSettings struct {
	s   settings.Settings
	err error
}

func (f fixedSettings) Current(context.Context) (settings.Settings, error) {
	return f.s, f.err
}

func TestServiceDefaultSlotDurationFromSettings(t *testing.T) {
	ctx := context.Background()
	tuesday := monday.AddDays(1)
	opening := ScheduleException{
		Date:        tuesday,
		StartTime:   clockPtr("09:00"),
		EndTime:     clockPtr("10:00"),
		IsAvailable: true,
	}

	tests := []struct {
		name     string
		settings settings.Source
		want     int
	}{
		{"configured default", nil, 1},
		{"saved default", fixedSettings{s: settings.Settings{SlotDurationDefault: 30}}, 2},
		{"settings unavailable", fixedSettings{err: errors.New("connection refused")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc := NewService(repo, fakeReservations(nil), Options{DefaultSlotDuration: 60, Settings: tt.settings}, zerolog.Nop())
			if _, err := svc.CreateException(ctx, opening); err != nil {
				t.Fatalf("create exception: %v", err)
			}

			slots, err := svc.AvailableSlots(ctx, tuesday, tuesday)
			if err != nil {
				t.Fatalf("slots: %v", err)
			}
			if len(slots) != tt.want {
				t.Errorf("expected %d slots, got %d", tt.want, len(slots))
			}
		})
	}
}

