package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
	"github.com/hackgods/therapy-booking/internal/patient"
	"github.com/hackgods/therapy-booking/internal/settings"
)

// Field formats are checked by the validator before conversion, so the
// Must/parse helpers below cannot fail on validated input.

type CreateBookingRequest struct {
	Date      string  `json:"date" validate:"required,date"`
	StartTime string  `json:"start_time" validate:"required,clock"`
	EndTime   string  `json:"end_time" validate:"required,clock"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
}

func (req CreateBookingRequest) toNewBooking() booking.NewBooking {
	return booking.NewBooking{
		Date:      mustDate(req.Date),
		StartTime: calendar.MustParseClock(req.StartTime),
		EndTime:   calendar.MustParseClock(req.EndTime),
		Reason:    req.Reason,
	}
}

type AdminCreateBookingRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	CreateBookingRequest
}

type UpdateBookingRequest struct {
	Date      *string `json:"date" validate:"omitempty,date"`
	StartTime *string `json:"start_time" validate:"omitempty,clock"`
	EndTime   *string `json:"end_time" validate:"omitempty,clock"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
}

func (req UpdateBookingRequest) toPatch() booking.Patch {
	var p booking.Patch
	if req.Date != nil {
		d := mustDate(*req.Date)
		p.Date = &d
	}
	p.StartTime = optionalClock(req.StartTime)
	p.EndTime = optionalClock(req.EndTime)
	p.Reason = req.Reason
	return p
}

// CancelBookingRequest accepts the reason under either name; the admin
// panel sends cancellation_reason.
type CancelBookingRequest struct {
	Reason             *string `json:"reason" validate:"omitempty,max=1000"`
	CancellationReason *string `json:"cancellation_reason" validate:"omitempty,max=1000"`
}

func (req CancelBookingRequest) reason() *string {
	if req.CancellationReason != nil {
		return req.CancellationReason
	}
	return req.Reason
}

type AvailabilityRequest struct {
	DayOfWeek    *int   `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required,clock"`
	EndTime      string `json:"end_time" validate:"required,clock"`
	SlotDuration int    `json:"slot_duration" validate:"required,min=5,max=480"`
}

func (req AvailabilityRequest) toAvailability() availability.WeeklyAvailability {
	return availability.WeeklyAvailability{
		DayOfWeek:    time.Weekday(*req.DayOfWeek),
		StartTime:    calendar.MustParseClock(req.StartTime),
		EndTime:      calendar.MustParseClock(req.EndTime),
		SlotDuration: req.SlotDuration,
		IsActive:     true,
	}
}

type UpdateAvailabilityRequest struct {
	DayOfWeek    *int    `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	StartTime    *string `json:"start_time" validate:"omitempty,clock"`
	EndTime      *string `json:"end_time" validate:"omitempty,clock"`
	SlotDuration *int    `json:"slot_duration" validate:"omitempty,min=5,max=480"`
	IsActive     *bool   `json:"is_active"`
}

func (req UpdateAvailabilityRequest) toPatch() availability.AvailabilityPatch {
	var p availability.AvailabilityPatch
	if req.DayOfWeek != nil {
		d := time.Weekday(*req.DayOfWeek)
		p.DayOfWeek = &d
	}
	p.StartTime = optionalClock(req.StartTime)
	p.EndTime = optionalClock(req.EndTime)
	p.SlotDuration = req.SlotDuration
	p.IsActive = req.IsActive
	return p
}

type ExceptionRequest struct {
	Date         string  `json:"date" validate:"required,date"`
	StartTime    *string `json:"start_time" validate:"omitempty,clock"`
	EndTime      *string `json:"end_time" validate:"omitempty,clock"`
	IsAvailable  *bool   `json:"is_available" validate:"required"`
	Reason       *string `json:"reason" validate:"omitempty,max=500"`
	SlotDuration *int    `json:"slot_duration" validate:"omitempty,min=5,max=480"`
}

func (req ExceptionRequest) toException() availability.ScheduleException {
	return availability.ScheduleException{
		Date:         mustDate(req.Date),
		StartTime:    optionalClock(req.StartTime),
		EndTime:      optionalClock(req.EndTime),
		IsAvailable:  *req.IsAvailable,
		Reason:       req.Reason,
		SlotDuration: req.SlotDuration,
	}
}

type UpdateSettingsRequest struct {
	CabinetName         *string `json:"cabinet_name" validate:"omitempty,min=1,max=200"`
	Address             *string `json:"address" validate:"omitempty,max=500"`
	ContactEmail        *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone        *string `json:"contact_phone" validate:"omitempty,max=50"`
	LogoURL             *string `json:"logo_url" validate:"omitempty,url"`
	NotificationEnabled *bool   `json:"notification_enabled"`
	ReminderDaysBefore  *int    `json:"reminder_days_before" validate:"omitempty,min=0,max=30"`
	AllowOnlineBooking  *bool   `json:"allow_online_booking"`
	SlotDurationDefault *int    `json:"slot_duration_default" validate:"omitempty,min=5,max=480"`
}

func (req UpdateSettingsRequest) toPatch() settings.Patch {
	return settings.Patch{
		CabinetName:         req.CabinetName,
		Address:             req.Address,
		ContactEmail:        req.ContactEmail,
		ContactPhone:        req.ContactPhone,
		LogoURL:             req.LogoURL,
		NotificationEnabled: req.NotificationEnabled,
		ReminderDaysBefore:  req.ReminderDaysBefore,
		AllowOnlineBooking:  req.AllowOnlineBooking,
		SlotDurationDefault: req.SlotDurationDefault,
	}
}

type PatientListResponse struct {
	Patients []patient.Summary `json:"patients"`
	Count    int               `json:"count"`
}

type SlotsResponse struct {
	StartDate calendar.Date       `json:"start_date"`
	EndDate   calendar.Date       `json:"end_date"`
	Slots     []availability.Slot `json:"slots"`
}

type BookingListResponse struct {
	Bookings []booking.Booking `json:"bookings"`
	Count    int               `json:"count"`
}

func mustDate(s string) calendar.Date {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func optionalClock(s *string) *calendar.Clock {
	if s == nil {
		return nil
	}
	c := calendar.MustParseClock(*s)
	return &c
}

func parseUUIDParam(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	return id, err == nil
}
