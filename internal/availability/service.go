package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/settings"
)

var (
	ErrInvalidAvailability = errors.New("invalid availability")
	ErrInvalidException    = errors.New("invalid exception")
)

type Service struct {
	repo         Repository
	reservations ReservationSource
	resolver     Resolver
	settings     settings.Source
	maxRangeDays int
	log          zerolog.Logger
}

type Options struct {
	DefaultSlotDuration int
	// MaxRangeDays caps a single slot query. Zero disables the cap.
	MaxRangeDays int
	// Settings, when set, overrides DefaultSlotDuration with the
	// slot_duration_default saved by an admin.
	Settings settings.Source
}

func NewService(repo Repository, reservations ReservationSource, opts Options, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		reservations: reservations,
		resolver:     NewResolver(opts.DefaultSlotDuration),
		settings:     opts.Settings,
		maxRangeDays: opts.MaxRangeDays,
		log:          log.With().Str("component", "availability").Logger(),
	}
}

// resolverFor picks up the current default slot duration. A settings read
// failure falls back to the configured default rather than failing the query.
func (s *Service) resolverFor(ctx context.Context) Resolver {
	if s.settings == nil {
		return s.resolver
	}
	current, err := s.settings.Current(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read settings, using configured slot duration")
		return s.resolver
	}
	return NewResolver(current.SlotDurationDefault)
}

// AvailableSlots reads the current windows, exceptions and reservations and
// returns the free slots in [from, to]. Nothing is cached between calls.
func (s *Service) AvailableSlots(ctx context.Context, from, to calendar.Date) ([]Slot, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, from, to)
	}
	if s.maxRangeDays > 0 && from.DaysUntil(to) >= s.maxRangeDays {
		return nil, fmt.Errorf("%w: range may span at most %d days", ErrInvalidRange, s.maxRangeDays)
	}

	availabilities, exceptions, reservations, err := s.load(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return s.resolverFor(ctx).Compute(from, to, availabilities, exceptions, reservations)
}

// InSchedule reports whether the weekly windows and exceptions generate slot
// for its date. Reservations are not consulted.
func (s *Service) InSchedule(ctx context.Context, slot Slot) (bool, error) {
	availabilities, exceptions, err := s.loadSchedule(ctx, slot.Date, slot.Date)
	if err != nil {
		return false, err
	}
	return s.resolverFor(ctx).Offers(slot, availabilities, exceptions, nil), nil
}

func (s *Service) load(ctx context.Context, from, to calendar.Date) ([]WeeklyAvailability, []ScheduleException, []Reservation, error) {
	availabilities, exceptions, err := s.loadSchedule(ctx, from, to)
	if err != nil {
		return nil, nil, nil, err
	}
	reservations, err := s.reservations.ListReservations(ctx, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list reservations: %w", err)
	}
	return availabilities, exceptions, reservations, nil
}

func (s *Service) loadSchedule(ctx context.Context, from, to calendar.Date) ([]WeeklyAvailability, []ScheduleException, error) {
	availabilities, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list availabilities: %w", err)
	}
	exceptions, err := s.repo.ListExceptions(ctx, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list exceptions: %w", err)
	}
	return availabilities, exceptions, nil
}

// -- Weekly windows --

// ListActiveAvailabilities returns the windows that currently generate slots.
func (s *Service) ListActiveAvailabilities(ctx context.Context) ([]WeeklyAvailability, error) {
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active availabilities: %w", err)
	}
	return list, nil
}

// ListAvailabilities returns every weekly window, inactive ones included, for
// the admin panel.
func (s *Service) ListAvailabilities(ctx context.Context) ([]WeeklyAvailability, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list availabilities: %w", err)
	}
	return list, nil
}

func (s *Service) CreateAvailability(ctx context.Context, a WeeklyAvailability) (*WeeklyAvailability, error) {
	a.IsActive = true
	if err := validateAvailability(a); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create availability: %w", err)
	}

	s.log.Info().
		Str("availability_id", created.ID.String()).
		Int("day_of_week", int(created.DayOfWeek)).
		Msg("availability created")
	return created, nil
}

// UpdateAvailability applies only the fields set in patch.
func (s *Service) UpdateAvailability(ctx context.Context, id uuid.UUID, patch AvailabilityPatch) (*WeeklyAvailability, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}

	patch.Apply(current)
	if err := validateAvailability(*current); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, *current)
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update availability: %w", err)
	}

	s.log.Info().Str("availability_id", id.String()).Msg("availability updated")
	return updated, nil
}

func (s *Service) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return err
		}
		return fmt.Errorf("delete availability: %w", err)
	}
	s.log.Info().Str("availability_id", id.String()).Msg("availability deleted")
	return nil
}

func validateAvailability(a WeeklyAvailability) error {
	if a.DayOfWeek < 0 || a.DayOfWeek > 6 {
		return fmt.Errorf("%w: day_of_week must be between 0 and 6", ErrInvalidAvailability)
	}
	if !a.Window().Valid() {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidAvailability)
	}
	if a.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot_duration must be positive", ErrInvalidAvailability)
	}
	if a.SlotDuration > a.Window().Minutes() {
		return fmt.Errorf("%w: slot_duration %d does not fit in %s", ErrInvalidAvailability, a.SlotDuration, a.Window())
	}
	return nil
}

// -- Exceptions --

func (s *Service) ListExceptions(ctx context.Context, from, to calendar.Date) ([]ScheduleException, error) {
	list, err := s.repo.ListExceptions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	return list, nil
}

func (s *Service) CreateException(ctx context.Context, e ScheduleException) (*ScheduleException, error) {
	if err := validateException(e); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateException(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create exception: %w", err)
	}

	s.log.Info().
		Str("exception_id", created.ID.String()).
		Str("date", created.Date.String()).
		Bool("is_available", created.IsAvailable).
		Msg("exception created")
	return created, nil
}

func (s *Service) DeleteException(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteException(ctx, id); err != nil {
		if errors.Is(err, ErrExceptionNotFound) {
			return err
		}
		return fmt.Errorf("delete exception: %w", err)
	}
	s.log.Info().Str("exception_id", id.String()).Msg("exception deleted")
	return nil
}

func validateException(e ScheduleException) error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidException)
	}
	if (e.StartTime == nil) != (e.EndTime == nil) {
		return fmt.Errorf("%w: start_time and end_time must be given together", ErrInvalidException)
	}
	if w, ok := e.Window(); ok && !w.Valid() {
		return fmt.Errorf("%w: start_time must be before end_time", ErrInvalidException)
	}
	if e.SlotDuration != nil && *e.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot_duration must be positive", ErrInvalidException)
	}
	return nil
}
