package settings

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrInvalidSettings  = errors.New("invalid settings")
)

// Bounds enforced on update
const (
	MaxReminderDaysBefore  = 30
	MinSlotDurationDefault = 5
	MaxSlotDurationDefault = 480
)

// Settings is the practice-wide configuration editable by admins.
type Settings struct {
	CabinetName         string    `json:"cabinet_name"`
	Address             *string   `json:"address,omitempty"`
	ContactEmail        *string   `json:"contact_email,omitempty"`
	ContactPhone        *string   `json:"contact_phone,omitempty"`
	LogoURL             *string   `json:"logo_url,omitempty"`
	NotificationEnabled bool      `json:"notification_enabled"`
	ReminderDaysBefore  int       `json:"reminder_days_before"`
	AllowOnlineBooking  bool      `json:"allow_online_booking"`
	SlotDurationDefault int       `json:"slot_duration_default"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Patch carries the optional fields of an update; nil means unchanged.
type Patch struct {
	CabinetName         *string
	Address             *string
	ContactEmail        *string
	ContactPhone        *string
	LogoURL             *string
	NotificationEnabled *bool
	ReminderDaysBefore  *int
	AllowOnlineBooking  *bool
	SlotDurationDefault *int
}

func (p Patch) Empty() bool {
	return p.CabinetName == nil && p.Address == nil && p.ContactEmail == nil &&
		p.ContactPhone == nil && p.LogoURL == nil && p.NotificationEnabled == nil &&
		p.ReminderDaysBefore == nil && p.AllowOnlineBooking == nil && p.SlotDurationDefault == nil
}

// Apply returns a copy of s with the patch applied.
func (p Patch) Apply(s Settings) Settings {
	if p.CabinetName != nil {
		s.CabinetName = *p.CabinetName
	}
	if p.Address != nil {
		s.Address = p.Address
	}
	if p.ContactEmail != nil {
		s.ContactEmail = p.ContactEmail
	}
	if p.ContactPhone != nil {
		s.ContactPhone = p.ContactPhone
	}
	if p.LogoURL != nil {
		s.LogoURL = p.LogoURL
	}
	if p.NotificationEnabled != nil {
		s.NotificationEnabled = *p.NotificationEnabled
	}
	if p.ReminderDaysBefore != nil {
		s.ReminderDaysBefore = *p.ReminderDaysBefore
	}
	if p.AllowOnlineBooking != nil {
		s.AllowOnlineBooking = *p.AllowOnlineBooking
	}
	if p.SlotDurationDefault != nil {
		s.SlotDurationDefault = *p.SlotDurationDefault
	}
	return s
}

// Source is the read side used by the booking and availability services.
type Source interface {
	Current(ctx context.Context) (Settings, error)
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s Settings) (*Settings, error)
}

type Service struct {
	repo     Repository
	defaults Settings
	log      zerolog.Logger
}

// NewService returns a service that falls back to defaults until an admin
// saves the settings for the first time.
func NewService(repo Repository, defaults Settings, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		log:      log.With().Str("component", "settings").Logger(),
	}
}

func (s *Service) Current(ctx context.Context) (Settings, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return s.defaults, nil
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return *current, nil
}

// Update applies the set fields of patch and stores the result.
func (s *Service) Update(ctx context.Context, patch Patch) (*Settings, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidSettings)
	}

	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(current)
	if err := validate(next); err != nil {
		return nil, err
	}

	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	s.log.Info().
		Bool("allow_online_booking", saved.AllowOnlineBooking).
		Bool("notification_enabled", saved.NotificationEnabled).
		Int("reminder_days_before", saved.ReminderDaysBefore).
		Int("slot_duration_default", saved.SlotDurationDefault).
		Msg("settings updated")
	return saved, nil
}

func validate(s Settings) error {
	if s.CabinetName == "" {
		return fmt.Errorf("%w: cabinet_name is required", ErrInvalidSettings)
	}
	if s.ReminderDaysBefore < 0 || s.ReminderDaysBefore > MaxReminderDaysBefore {
		return fmt.Errorf("%w: reminder_days_before must be between 0 and %d", ErrInvalidSettings, MaxReminderDaysBefore)
	}
	if s.SlotDurationDefault < MinSlotDurationDefault || s.SlotDurationDefault > MaxSlotDurationDefault {
		return fmt.Errorf("%w: slot_duration_default must be between %d and %d", ErrInvalidSettings, MinSlotDurationDefault, MaxSlotDurationDefault)
	}
	if s.ContactEmail != nil && *s.ContactEmail != "" {
		if _, err := mail.ParseAddress(*s.ContactEmail); err != nil {
			return fmt.Errorf("%w: contact_email is not a valid address", ErrInvalidSettings)
		}
	}
	return nil
}
