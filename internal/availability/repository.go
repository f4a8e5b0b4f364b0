package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

var (
	ErrAvailabilityNotFound = errors.New("availability not found")
	ErrExceptionNotFound    = errors.New("exception not found")
)

// Repository contains all DB interactions needed by the availability service.
type Repository interface {
	// Weekly windows. ListActive feeds slot generation; List is the admin view.
	ListActive(ctx context.Context) ([]WeeklyAvailability, error)
	List(ctx context.Context) ([]WeeklyAvailability, error)
	GetByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error)
	Create(ctx context.Context, a WeeklyAvailability) (*WeeklyAvailability, error)
	Update(ctx context.Context, a WeeklyAvailability) (*WeeklyAvailability, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Exceptions. A zero from or to leaves that side of the range open.
	ListExceptions(ctx context.Context, from, to calendar.Date) ([]ScheduleException, error)
	CreateException(ctx context.Context, e ScheduleException) (*ScheduleException, error)
	DeleteException(ctx context.Context, id uuid.UUID) error
}

// ReservationSource lists the (date, start) pairs held by pending or
// confirmed bookings. The booking repository implements it.
type ReservationSource interface {
	ListReservations(ctx context.Context, from, to calendar.Date) ([]Reservation, error)
}
