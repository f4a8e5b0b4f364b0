package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/calendar"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Live reports whether the booking still holds its slot.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Caller identifies who is acting on a booking.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

type Booking struct {
	ID                 uuid.UUID      `json:"id"`
	PatientID          uuid.UUID      `json:"patient_id"`
	Date               calendar.Date  `json:"date"`
	StartTime          calendar.Clock `json:"start_time"`
	EndTime            calendar.Clock `json:"end_time"`
	Status             Status         `json:"status"`
	Reason             *string        `json:"reason,omitempty"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	CancellationReason *string        `json:"cancellation_reason,omitempty"`
	CreatedBy          Role           `json:"created_by"`
	ReminderSentAt     *time.Time     `json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (b Booking) Slot() availability.Slot {
	return availability.Slot{Date: b.Date, StartTime: b.StartTime, EndTime: b.EndTime}
}

// StartsAt is the appointment start as a wall-clock instant in loc.
func (b Booking) StartsAt(loc *time.Location) time.Time {
	return b.Date.At(b.StartTime, loc)
}

// NewBooking holds the fields supplied when reserving a slot.
type NewBooking struct {
	PatientID uuid.UUID
	Date      calendar.Date
	StartTime calendar.Clock
	EndTime   calendar.Clock
	Reason    *string
	CreatedBy Role
}

func (n NewBooking) validate() error {
	if n.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if n.Date.IsZero() {
		return invalid("date is required")
	}
	if n.StartTime >= n.EndTime {
		return invalid("start_time must be before end_time")
	}
	return nil
}

// Patch carries the optional fields of an update; nil means unchanged.
type Patch struct {
	Date      *calendar.Date
	StartTime *calendar.Clock
	EndTime   *calendar.Clock
	Reason    *string
}

func (p Patch) Empty() bool {
	return p.Date == nil && p.StartTime == nil && p.EndTime == nil && p.Reason == nil
}

// MovesSlot reports whether applying p to b changes the (date, start) key.
func (p Patch) MovesSlot(b Booking) bool {
	return (p.Date != nil && !p.Date.Equal(b.Date)) ||
		(p.StartTime != nil && *p.StartTime != b.StartTime)
}

// Apply returns a copy of b with the patch applied.
func (p Patch) Apply(b Booking) Booking {
	if p.Date != nil {
		b.Date = *p.Date
	}
	if p.StartTime != nil {
		b.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		b.EndTime = *p.EndTime
	}
	if p.Reason != nil {
		b.Reason = p.Reason
	}
	return b
}

// ListFilter narrows admin listings. Zero values are ignored.
type ListFilter struct {
	Status    Status
	From      calendar.Date
	To        calendar.Date
	PatientID uuid.UUID
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	ActorID   *uuid.UUID
	ActorRole Role
	Payload   []byte
	CreatedAt time.Time
}
