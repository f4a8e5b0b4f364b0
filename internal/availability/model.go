package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

// WeeklyAvailability is a recurring weekly open window.
type WeeklyAvailability struct {
	ID           uuid.UUID      `json:"id"`
	DayOfWeek    time.Weekday   `json:"day_of_week"` // 0 = Sunday
	StartTime    calendar.Clock `json:"start_time"`
	EndTime      calendar.Clock `json:"end_time"`
	SlotDuration int            `json:"slot_duration"` // minutes
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (a WeeklyAvailability) Window() calendar.Interval {
	return calendar.Interval{Start: a.StartTime, End: a.EndTime}
}

// ScheduleException overrides the weekly pattern for a single date.
// IsAvailable=false closes the day, or only [StartTime, EndTime) when both are
// set. IsAvailable=true with a time range opens that range instead of the
// weekly windows.
type ScheduleException struct {
	ID           uuid.UUID       `json:"id"`
	Date         calendar.Date   `json:"date"`
	StartTime    *calendar.Clock `json:"start_time,omitempty"`
	EndTime      *calendar.Clock `json:"end_time,omitempty"`
	IsAvailable  bool            `json:"is_available"`
	Reason       *string         `json:"reason,omitempty"`
	SlotDuration *int            `json:"slot_duration,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Window returns the exception's time range, if it has one.
func (e ScheduleException) Window() (calendar.Interval, bool) {
	if e.StartTime == nil || e.EndTime == nil {
		return calendar.Interval{}, false
	}
	return calendar.Interval{Start: *e.StartTime, End: *e.EndTime}, true
}

// Reservation is the part of a live booking the resolver cares about.
type Reservation struct {
	Date      calendar.Date
	StartTime calendar.Clock
}

// Slot is a computed, never persisted, bookable interval.
type Slot struct {
	Date      calendar.Date  `json:"date"`
	StartTime calendar.Clock `json:"start_time"`
	EndTime   calendar.Clock `json:"end_time"`
}

// AvailabilityPatch carries optional fields; nil means unchanged.
type AvailabilityPatch struct {
	DayOfWeek    *time.Weekday
	StartTime    *calendar.Clock
	EndTime      *calendar.Clock
	SlotDuration *int
	IsActive     *bool
}

func (p AvailabilityPatch) Apply(a *WeeklyAvailability) {
	if p.DayOfWeek != nil {
		a.DayOfWeek = *p.DayOfWeek
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.SlotDuration != nil {
		a.SlotDuration = *p.SlotDuration
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
}
