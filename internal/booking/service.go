package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/calendar"
	redisclient "github.com/hackgods/therapy-booking/internal/redis"
	"github.com/hackgods/therapy-booking/internal/settings"
)

const (
	EventBookingCreated        = "BOOKING_CREATED"
	EventBookingCreatedByAdmin = "BOOKING_CREATED_BY_ADMIN"
	EventBookingUpdated        = "BOOKING_UPDATED"
	EventBookingCancelled      = "BOOKING_CANCELLED"
	EventBookingsCompleted     = "BOOKINGS_COMPLETED"
	EventReminderSent          = "REMINDER_SENT"
)

// DefaultCutoff is the minimum lead time for patient changes.
const DefaultCutoff = 24 * time.Hour

// Notifier delivers booking messages. Errors are logged by the caller and
// never fail the booking operation.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b Booking) error
	NotifyBookingCancelled(ctx context.Context, b Booking, cancelledBy Role) error
	NotifyBookingReminder(ctx context.Context, b Booking) error
}

// SlotChecker tells whether the weekly windows and exceptions generate a
// slot, ignoring reservations. Reservations are checked inside the slot
// transaction instead.
type SlotChecker interface {
	InSchedule(ctx context.Context, slot availability.Slot) (bool, error)
}

type Options struct {
	// Cutoff is the protected window before an appointment in which patients
	// can no longer update or cancel it.
	Cutoff time.Duration
	// EnforceOfferedSlots rejects patient bookings for slots the schedule
	// does not generate.
	EnforceOfferedSlots bool
	// Location interprets booking dates and times. Defaults to time.Local.
	Location *time.Location
	// ReminderDaysBefore is how many days ahead reminders are sent.
	// Zero disables reminders.
	ReminderDaysBefore int
	// Settings, when set, takes precedence over ReminderDaysBefore and can
	// switch off online booking and notifications.
	Settings settings.Source
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	slots    SlotChecker
	notifier Notifier
	opts     Options
	log      zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, slots SlotChecker, notifier Notifier, opts Options, log zerolog.Logger) *Service {
	if opts.Cutoff <= 0 {
		opts.Cutoff = DefaultCutoff
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		slots:    slots,
		notifier: notifier,
		opts:     opts,
		log:      log.With().Str("component", "booking").Logger(),
	}
}

// CreateBooking reserves a slot for the calling patient. The slot conflict
// check runs first, then the one-booking-per-day check, then the schedule
// check, all inside the same serialized transaction as the insert.
func (s *Service) CreateBooking(ctx context.Context, patientID uuid.UUID, nb NewBooking) (*Booking, error) {
	nb.PatientID = patientID
	nb.CreatedBy = RolePatient

	if !s.currentSettings(ctx).AllowOnlineBooking {
		return nil, ErrOnlineBookingDisabled
	}

	created, err := s.reserve(ctx, nb, true)
	if err != nil {
		return nil, err
	}

	s.runHooks(ctx, created.ID,
		s.notifyHook("notify_confirmed", func(ctx context.Context) error {
			return s.notifier.NotifyBookingConfirmed(ctx, *created)
		}),
		hook{"event_log", func(ctx context.Context) error {
			return s.logEvent(ctx, created.ID, Caller{ID: patientID, Role: RolePatient}, EventBookingCreated, map[string]any{
				"date":       created.Date,
				"start_time": created.StartTime,
			})
		}},
	)

	s.log.Info().
		Str("booking_id", created.ID.String()).
		Str("patient_id", patientID.String()).
		Str("date", created.Date.String()).
		Str("start_time", created.StartTime.String()).
		Msg("booking created")

	return created, nil
}

// CreateBookingForPatient is the admin path. Only the slot conflict rule is
// applied: an admin may give a patient a second appointment on the same day,
// and may book outside the generated schedule.
func (s *Service) CreateBookingForPatient(ctx context.Context, adminID uuid.UUID, nb NewBooking) (*Booking, error) {
	nb.CreatedBy = RoleAdmin

	created, err := s.reserve(ctx, nb, false)
	if err != nil {
		return nil, err
	}

	s.runHooks(ctx, created.ID,
		s.notifyHook("notify_confirmed", func(ctx context.Context) error {
			return s.notifier.NotifyBookingConfirmed(ctx, *created)
		}),
		hook{"event_log", func(ctx context.Context) error {
			return s.logEvent(ctx, created.ID, Caller{ID: adminID, Role: RoleAdmin}, EventBookingCreatedByAdmin, map[string]any{
				"patient_id": created.PatientID,
				"date":       created.Date,
				"start_time": created.StartTime,
			})
		}},
	)

	s.log.Info().
		Str("booking_id", created.ID.String()).
		Str("patient_id", created.PatientID.String()).
		Str("admin_id", adminID.String()).
		Msg("booking created by admin")

	return created, nil
}

func (s *Service) reserve(ctx context.Context, nb NewBooking, patientRules bool) (*Booking, error) {
	if err := nb.validate(); err != nil {
		return nil, err
	}

	keys := []string{SlotKey(nb.Date, nb.StartTime)}
	inSchedule := true
	if patientRules {
		keys = append(keys, PatientDayKey(nb.PatientID, nb.Date))

		// Read on the pool before the transaction holds a connection
		var err error
		inSchedule, err = s.inSchedule(ctx, availability.Slot{Date: nb.Date, StartTime: nb.StartTime, EndTime: nb.EndTime})
		if err != nil {
			return nil, err
		}
	}

	var created *Booking

	err := s.locker.WithLock(ctx, keys[0], func(lockCtx context.Context) error {
		return s.repo.WithinSlotTx(lockCtx, keys, func(txCtx context.Context, tx Tx) error {
			// Inside the critical section check for a live booking on this slot
			taken, err := tx.ActiveAtSlot(txCtx, nb.Date, nb.StartTime, uuid.Nil)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if taken {
				return ErrSlotConflict
			}

			if patientRules {
				if err := s.checkPatientDay(txCtx, tx, nb.PatientID, nb.Date, uuid.Nil); err != nil {
					return err
				}
				if !inSchedule {
					return ErrSlotNotOffered
				}
			}

			b, err := tx.Insert(txCtx, nb, StatusConfirmed)
			if err != nil {
				if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrPatientNotFound) {
					return err
				}
				return fmt.Errorf("insert booking: %w", err)
			}
			created = b
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}

	return created, nil
}

func (s *Service) checkPatientDay(ctx context.Context, tx Tx, patientID uuid.UUID, date calendar.Date, excludeID uuid.UUID) error {
	has, err := tx.ActiveForPatientOn(ctx, patientID, date, excludeID)
	if err != nil {
		return fmt.Errorf("check patient day: %w", err)
	}
	if has {
		return ErrPatientDoubleBooking
	}
	return nil
}

// inSchedule must not be called from inside WithinSlotTx: the checker reads
// through the pool.
func (s *Service) inSchedule(ctx context.Context, slot availability.Slot) (bool, error) {
	if !s.opts.EnforceOfferedSlots || s.slots == nil {
		return true, nil
	}
	ok, err := s.slots.InSchedule(ctx, slot)
	if err != nil {
		return false, fmt.Errorf("check schedule: %w", err)
	}
	return ok, nil
}

// UpdateBooking applies the set fields of patch. Patients may only touch
// their own bookings and only while the original start is at least the
// cutoff away; admins are exempt from both rules.
func (s *Service) UpdateBooking(ctx context.Context, id uuid.UUID, caller Caller, patch Patch) (*Booking, error) {
	current, err := s.authorizeChange(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	if patch.Empty() {
		return current, nil
	}

	next := patch.Apply(*current)
	if next.StartTime >= next.EndTime {
		return nil, invalid("start_time must be before end_time")
	}

	var updated *Booking
	if !patch.MovesSlot(*current) {
		// A new end time can stretch the slot past its window
		if !caller.IsAdmin() && next.EndTime != current.EndTime {
			ok, err := s.inSchedule(ctx, next.Slot())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrSlotNotOffered
			}
		}
		updated, err = s.repo.UpdateFields(ctx, id, patch)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return nil, err
			}
			return nil, fmt.Errorf("update booking: %w", err)
		}
	} else {
		updated, err = s.move(ctx, *current, next, caller, patch)
		if err != nil {
			return nil, err
		}
	}

	s.runHooks(ctx, id, hook{"event_log", func(ctx context.Context) error {
		return s.logEvent(ctx, id, caller, EventBookingUpdated, map[string]any{
			"from_date":       current.Date,
			"from_start_time": current.StartTime,
			"date":            updated.Date,
			"start_time":      updated.StartTime,
		})
	}})

	s.log.Info().
		Str("booking_id", id.String()).
		Str("caller_id", caller.ID.String()).
		Str("caller_role", string(caller.Role)).
		Msg("booking updated")

	return updated, nil
}

func (s *Service) move(ctx context.Context, current, next Booking, caller Caller, patch Patch) (*Booking, error) {
	patientRules := !caller.IsAdmin()

	keys := []string{SlotKey(next.Date, next.StartTime)}
	inSchedule := true
	if patientRules {
		keys = append(keys, PatientDayKey(current.PatientID, next.Date))

		var err error
		inSchedule, err = s.inSchedule(ctx, next.Slot())
		if err != nil {
			return nil, err
		}
	}

	var updated *Booking

	err := s.locker.WithLock(ctx, keys[0], func(lockCtx context.Context) error {
		return s.repo.WithinSlotTx(lockCtx, keys, func(txCtx context.Context, tx Tx) error {
			taken, err := tx.ActiveAtSlot(txCtx, next.Date, next.StartTime, current.ID)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if taken {
				return ErrSlotConflict
			}

			if patientRules {
				if err := s.checkPatientDay(txCtx, tx, current.PatientID, next.Date, current.ID); err != nil {
					return err
				}
				if !inSchedule {
					return ErrSlotNotOffered
				}
			}

			b, err := tx.UpdateFields(txCtx, current.ID, patch)
			if err != nil {
				if errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrInvalidTransition) {
					return err
				}
				return fmt.Errorf("update booking: %w", err)
			}
			updated = b
			return nil
		})
	})
	if err != nil {
		return nil, lockError(err)
	}

	return updated, nil
}

// CancelBooking marks the booking cancelled. The row is kept with its
// original date and time.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, caller Caller, reason *string) (*Booking, error) {
	if _, err := s.authorizeChange(ctx, id, caller); err != nil {
		return nil, err
	}

	cancelled, err := s.repo.Cancel(ctx, id, reason, s.opts.Now())
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	cancelledBy := RolePatient
	if caller.IsAdmin() {
		cancelledBy = RoleAdmin
	}

	s.runHooks(ctx, id,
		s.notifyHook("notify_cancelled", func(ctx context.Context) error {
			return s.notifier.NotifyBookingCancelled(ctx, *cancelled, cancelledBy)
		}),
		hook{"event_log", func(ctx context.Context) error {
			return s.logEvent(ctx, id, caller, EventBookingCancelled, map[string]any{
				"cancelled_by": cancelledBy,
				"reason":       reason,
			})
		}},
	)

	s.log.Info().
		Str("booking_id", id.String()).
		Str("caller_id", caller.ID.String()).
		Str("cancelled_by", string(cancelledBy)).
		Msg("booking cancelled")

	return cancelled, nil
}

func (s *Service) authorizeChange(ctx context.Context, id uuid.UUID, caller Caller) (*Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if !caller.IsAdmin() {
		if b.PatientID != caller.ID {
			return nil, ErrForbidden
		}
		startsAt := b.StartsAt(s.opts.Location)
		if startsAt.Sub(s.opts.Now()) < s.opts.Cutoff {
			return nil, &TooLateError{Cutoff: s.opts.Cutoff, StartsAt: startsAt}
		}
	}

	if !b.Status.Live() {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
	}

	return b, nil
}

// GetBooking returns a booking. Patients only see their own; anything else
// is reported as not found.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID, caller Caller) (*Booking, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if !caller.IsAdmin() && b.PatientID != caller.ID {
		return nil, ErrNotFound
	}
	return b, nil
}

// ListMyBookings returns the patient's bookings, newest first.
func (s *Service) ListMyBookings(ctx context.Context, patientID uuid.UUID) ([]Booking, error) {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by patient: %w", err)
	}
	return list, nil
}

// ListBookings is the admin listing with optional filters.
func (s *Service) ListBookings(ctx context.Context, filter ListFilter) ([]Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid(fmt.Sprintf("unknown status %q", filter.Status))
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

// CompletePastBookings is intended to be called by the worker periodically.
// Confirmed bookings whose end has passed become completed.
func (s *Service) CompletePastBookings(ctx context.Context) (int64, error) {
	now := s.opts.Now().In(s.opts.Location)
	today := calendar.DateOf(now)
	clock := calendar.NewClock(now.Hour(), now.Minute())

	n, err := s.repo.CompletePast(ctx, today, clock)
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}

	if n > 0 {
		if err := s.logEvent(ctx, uuid.Nil, Caller{Role: RoleAdmin}, EventBookingsCompleted, map[string]any{
			"count":  n,
			"before": today.String() + " " + clock.String(),
		}); err != nil {
			s.log.Warn().Err(err).Msg("failed to record completion event")
		}
	}
	return n, nil
}

// SendReminders notifies patients of confirmed bookings reminder_days_before
// days from today. Each booking is reminded once; a failed send is retried
// on the next run.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	current := s.currentSettings(ctx)
	if !current.NotificationEnabled || current.ReminderDaysBefore <= 0 {
		return 0, nil
	}

	target := calendar.DateOf(s.opts.Now().In(s.opts.Location)).AddDays(current.ReminderDaysBefore)
	due, err := s.repo.DueForReminder(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, b := range due {
		if err := s.notifier.NotifyBookingReminder(ctx, b); err != nil {
			s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("reminder failed")
			continue
		}
		sent++
		if err := s.repo.MarkReminded(ctx, b.ID, s.opts.Now()); err != nil {
			// The patient may get a second reminder on the next run
			s.log.Error().Err(err).Str("booking_id", b.ID.String()).Msg("failed to mark booking reminded")
		}

		if err := s.logEvent(ctx, b.ID, Caller{Role: RoleAdmin}, EventReminderSent, map[string]any{"date": b.Date}); err != nil {
			s.log.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("failed to record reminder event")
		}
	}
	return sent, nil
}

// lockError maps a lost lock race to a slot conflict: another request holds
// the slot long enough that this one gave up waiting.
func lockError(err error) error {
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: slot is currently being booked", ErrSlotConflict)
	}
	return err
}

// currentSettings reads the admin settings, falling back to Options when no
// source is configured or the read fails.
func (s *Service) currentSettings(ctx context.Context) settings.Settings {
	fallback := settings.Settings{
		NotificationEnabled: true,
		AllowOnlineBooking:  true,
		ReminderDaysBefore:  s.opts.ReminderDaysBefore,
	}
	if s.opts.Settings == nil {
		return fallback
	}
	current, err := s.opts.Settings.Current(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read settings, using configured defaults")
		return fallback
	}
	return current
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// runHooks runs post-commit side effects. Each one is isolated: an error or
// panic is logged and the rest still run.
func (s *Service) runHooks(ctx context.Context, bookingID uuid.UUID, hooks ...hook) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Str("hook", h.name).
						Str("booking_id", bookingID.String()).
						Interface("panic", r).
						Msg("post-commit hook panicked")
				}
			}()
			if err := h.fn(ctx); err != nil {
				s.log.Error().
					Err(err).
					Str("hook", h.name).
					Str("booking_id", bookingID.String()).
					Msg("post-commit hook failed")
			}
		}()
	}
}

// notifyHook skips fn while notifications are switched off.
func (s *Service) notifyHook(name string, fn func(ctx context.Context) error) hook {
	return hook{name, func(ctx context.Context) error {
		if !s.currentSettings(ctx).NotificationEnabled {
			return nil
		}
		return fn(ctx)
	}}
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, actor Caller, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		ActorRole: actor.Role,
		Payload:   data,
		CreatedAt: s.opts.Now(),
	}
	if bookingID != uuid.Nil {
		id := bookingID
		ev.BookingID = &id
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		ev.ActorID = &id
	}

	return s.repo.InsertEvent(ctx, ev)
}
