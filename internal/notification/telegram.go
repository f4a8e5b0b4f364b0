package notification

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"github.com/hackgods/therapy-booking/internal/booking"
)

// TelegramConfig targets the practice's own chats, not patients.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64
	// APIURL overrides the Bot API endpoint.
	APIURL string
}

// TelegramNotifier alerts the therapist about new and cancelled bookings.
type TelegramNotifier struct {
	bot   *tele.Bot
	chats []int64
	log   zerolog.Logger
}

func NewTelegramNotifier(cfg TelegramConfig, log zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.Token == "" || len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram token and chat ids are required")
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:   bot,
		chats: cfg.ChatIDs,
		log:   log.With().Str("component", "telegram").Logger(),
	}, nil
}

func (n *TelegramNotifier) NotifyBookingConfirmed(_ context.Context, b booking.Booking) error {
	msg := fmt.Sprintf("✅ <b>New booking</b>\n📆 %s\n⏰ %s - %s\n👤 %s",
		b.Date, b.StartTime, b.EndTime, b.PatientID)
	if b.CreatedBy == booking.RoleAdmin {
		msg += "\n(created by admin)"
	}
	if b.Reason != nil {
		msg += "\n📝 " + html.EscapeString(*b.Reason)
	}
	return n.broadcast(msg)
}

func (n *TelegramNotifier) NotifyBookingCancelled(_ context.Context, b booking.Booking, cancelledBy booking.Role) error {
	msg := fmt.Sprintf("❌ <b>Booking cancelled</b> by %s\n📆 %s\n⏰ %s - %s\n👤 %s",
		cancelledBy, b.Date, b.StartTime, b.EndTime, b.PatientID)
	if b.CancellationReason != nil {
		msg += "\n📝 " + html.EscapeString(*b.CancellationReason)
	}
	return n.broadcast(msg)
}

// NotifyBookingReminder is a no-op: reminders are for patients.
func (n *TelegramNotifier) NotifyBookingReminder(context.Context, booking.Booking) error {
	return nil
}

func (n *TelegramNotifier) broadcast(msg string) error {
	var errs []error
	for _, id := range n.chats {
		if _, err := n.bot.Send(tele.ChatID(id), msg, tele.ModeHTML); err != nil {
			errs = append(errs, fmt.Errorf("send to chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
