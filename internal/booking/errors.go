package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound              = errors.New("booking not found")
	ErrSlotConflict          = errors.New("this slot is already booked")
	ErrPatientDoubleBooking  = errors.New("patient already has an appointment on this day")
	ErrForbidden             = errors.New("not allowed to modify this booking")
	ErrTooLate               = errors.New("too late to modify this booking")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrSlotNotOffered        = errors.New("slot is not offered by the current schedule")
	ErrInvalidBooking        = errors.New("invalid booking")
	ErrPatientNotFound       = errors.New("patient not found")
	ErrOnlineBookingDisabled = errors.New("online booking is currently disabled")
)

// TooLateError is returned when a patient tries to change a booking inside
// the protected window. It matches ErrTooLate with errors.Is.
type TooLateError struct {
	Cutoff   time.Duration
	StartsAt time.Time
}

func (e *TooLateError) Error() string {
	return fmt.Sprintf("changes must be made at least %s before the appointment (scheduled %s)",
		formatCutoff(e.Cutoff), e.StartsAt.Format("2006-01-02 15:04"))
}

func (e *TooLateError) Is(target error) bool {
	return target == ErrTooLate
}

func formatCutoff(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidBooking, msg)
}
