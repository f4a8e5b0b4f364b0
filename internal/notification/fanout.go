package notification

import (
	"context"
	"errors"

	"github.com/hackgods/therapy-booking/internal/booking"
)

// Fanout delivers every message to all notifiers and joins their errors.
type Fanout []booking.Notifier

func (f Fanout) NotifyBookingConfirmed(ctx context.Context, b booking.Booking) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.NotifyBookingConfirmed(ctx, b))
	}
	return errors.Join(errs...)
}

func (f Fanout) NotifyBookingCancelled(ctx context.Context, b booking.Booking, by booking.Role) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.NotifyBookingCancelled(ctx, b, by))
	}
	return errors.Join(errs...)
}

func (f Fanout) NotifyBookingReminder(ctx context.Context, b booking.Booking) error {
	var errs []error
	for _, n := range f {
		errs = append(errs, n.NotifyBookingReminder(ctx, b))
	}
	return errors.Join(errs...)
}
