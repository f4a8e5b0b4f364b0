package booking

import (
	"context"

	"github.com/rs/zerolog"
)

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) NotifyBookingConfirmed(context.Context, Booking) error       { return nil }
func (NopNotifier) NotifyBookingCancelled(context.Context, Booking, Role) error { return nil }
func (NopNotifier) NotifyBookingReminder(context.Context, Booking) error        { return nil }

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development when no mail provider is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) NotifyBookingConfirmed(_ context.Context, b Booking) error {
	n.event(b).Msg("booking confirmed notification")
	return nil
}

func (n LogNotifier) NotifyBookingCancelled(_ context.Context, b Booking, by Role) error {
	n.event(b).Str("cancelled_by", string(by)).Msg("booking cancelled notification")
	return nil
}

func (n LogNotifier) NotifyBookingReminder(_ context.Context, b Booking) error {
	n.event(b).Msg("booking reminder notification")
	return nil
}

func (n LogNotifier) event(b Booking) *zerolog.Event {
	return n.Log.Info().
		Str("booking_id", b.ID.String()).
		Str("patient_id", b.PatientID.String()).
		Str("date", b.Date.String()).
		Str("start_time", b.StartTime.String())
}
