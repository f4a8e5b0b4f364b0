package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/auth"
	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/patient"
	"github.com/hackgods/therapy-booking/internal/settings"
)

type BookingService interface {
	CreateBooking(ctx context.Context, patientID uuid.UUID, nb booking.NewBooking) (*booking.Booking, error)
	CreateBookingForPatient(ctx context.Context, adminID uuid.UUID, nb booking.NewBooking) (*booking.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, caller booking.Caller, patch booking.Patch) (*booking.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID, caller booking.Caller, reason *string) (*booking.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID, caller booking.Caller) (*booking.Booking, error)
	ListMyBookings(ctx context.Context, patientID uuid.UUID) ([]booking.Booking, error)
	ListBookings(ctx context.Context, filter booking.ListFilter) ([]booking.Booking, error)
	DashboardStats(ctx context.Context) (*booking.DashboardStats, error)
}

type AvailabilityService interface {
	AvailableSlots(ctx context.Context, from, to calendar.Date) ([]availability.Slot, error)
	ListActiveAvailabilities(ctx context.Context) ([]availability.WeeklyAvailability, error)
	ListAvailabilities(ctx context.Context) ([]availability.WeeklyAvailability, error)
	CreateAvailability(ctx context.Context, a availability.WeeklyAvailability) (*availability.WeeklyAvailability, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, patch availability.AvailabilityPatch) (*availability.WeeklyAvailability, error)
	DeleteAvailability(ctx context.Context, id uuid.UUID) error
	ListExceptions(ctx context.Context, from, to calendar.Date) ([]availability.ScheduleException, error)
	CreateException(ctx context.Context, e availability.ScheduleException) (*availability.ScheduleException, error)
	DeleteException(ctx context.Context, id uuid.UUID) error
}

type PatientService interface {
	Search(ctx context.Context, search string, limit int) ([]patient.Summary, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type SettingsService interface {
	Current(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, patch settings.Patch) (*settings.Settings, error)
}

type RouterConfig struct {
	Bookings     BookingService
	Availability AvailabilityService
	Patients     PatientService
	Settings     SettingsService
	Auth         *auth.Authenticator
	Health       *HealthHandler
	Log          zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(RecoveryMiddleware(cfg.Log))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	bh := &bookingHandlers{svc: cfg.Bookings, log: cfg.Log}
	ah := &availabilityHandlers{svc: cfg.Availability, log: cfg.Log}
	adm := &adminHandlers{bookings: cfg.Bookings, patients: cfg.Patients, settings: cfg.Settings, log: cfg.Log}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Get("/availability/slots", ah.listSlots)
		r.Get("/availability", ah.listAvailabilities)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(booking.RoleAdmin))
			r.Post("/availability", ah.createAvailability)
			r.Put("/availability/{id}", ah.updateAvailability)
			r.Delete("/availability/{id}", ah.deleteAvailability)

			r.Get("/availability/exceptions", ah.listExceptions)
			r.Post("/availability/exceptions", ah.createException)
			r.Delete("/availability/exceptions/{id}", ah.deleteException)

			r.Get("/admin/bookings", bh.listAll)
			r.Post("/admin/bookings", bh.createForPatient)

			r.Get("/admin/stats", adm.stats)
			r.Get("/admin/patients", adm.listPatients)
			r.Delete("/admin/patients/{id}", adm.deletePatient)
			r.Get("/admin/settings", adm.getSettings)
			r.Put("/admin/settings", adm.updateSettings)
		})

		r.With(RequireRole(booking.RolePatient)).Post("/bookings", bh.create)
		r.With(RequireRole(booking.RolePatient)).Get("/bookings/me", bh.listMine)
		r.Get("/bookings/{id}", bh.get)
		r.Put("/bookings/{id}", bh.update)
		r.Post("/bookings/{id}/cancel", bh.cancel)
	})

	return r
}
