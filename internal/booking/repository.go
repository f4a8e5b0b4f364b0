package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/calendar"
)

// Repository contains all DB interactions needed by the arbiter.
type Repository interface {
	availability.ReservationSource

	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListActive(ctx context.Context, from, to calendar.Date) ([]Booking, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error)
	List(ctx context.Context, filter ListFilter) ([]Booking, error)

	// WithinSlotTx runs fn in one transaction after serializing on every key.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinSlotTx(ctx context.Context, keys []string, fn func(ctx context.Context, tx Tx) error) error

	// Updates that never move a booking to another slot
	UpdateFields(ctx context.Context, id uuid.UUID, patch Patch) (*Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason *string, at time.Time) (*Booking, error)
	CompletePast(ctx context.Context, before calendar.Date, beforeTime calendar.Clock) (int64, error)

	// Reminders
	DueForReminder(ctx context.Context, date calendar.Date) ([]Booking, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error

	// Admin dashboard. Bookings from today to upcomingUntil inclusive are
	// counted; cancellations from cancelledSince on.
	Stats(ctx context.Context, today, upcomingUntil calendar.Date, cancelledSince time.Time) (*DashboardStats, error)
}

// Tx is the view of the repository available inside WithinSlotTx.
type Tx interface {
	// For conflict checks. excludeID skips the booking being moved.
	ActiveAtSlot(ctx context.Context, date calendar.Date, start calendar.Clock, excludeID uuid.UUID) (bool, error)
	ActiveForPatientOn(ctx context.Context, patientID uuid.UUID, date calendar.Date, excludeID uuid.UUID) (bool, error)

	Insert(ctx context.Context, nb NewBooking, status Status) (*Booking, error)
	UpdateFields(ctx context.Context, id uuid.UUID, patch Patch) (*Booking, error)
}

// SlotKey names the lock that serializes writers of one (date, start) pair.
func SlotKey(date calendar.Date, start calendar.Clock) string {
	return "slot:" + date.String() + ":" + start.String()
}

// PatientDayKey names the lock that serializes one patient's bookings on a date.
func PatientDayKey(patientID uuid.UUID, date calendar.Date) string {
	return "patient:" + patientID.String() + ":" + date.String()
}
