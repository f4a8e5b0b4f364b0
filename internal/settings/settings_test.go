package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type memRepo struct {
	stored *Settings
	err    error
	saves  int
}

func (m *memRepo) Get(context.Context) (*Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stored == nil {
		return nil, ErrSettingsNotFound
	}
	s := *m.stored
	return &s, nil
}

func (m *memRepo) Save(_ context.Context, s Settings) (*Settings, error) {
	m.saves++
	s.UpdatedAt = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	m.stored = &s
	return &s, nil
}

var defaults = Settings{
	CabinetName:         "Therapy Practice",
	NotificationEnabled: true,
	ReminderDaysBefore:  1,
	AllowOnlineBooking:  true,
	SlotDurationDefault: 60,
}

func ptr[T any](v T) *T { return &v }

func TestCurrentFallsBackToDefaults(t *testing.T) {
	svc := NewService(&memRepo{}, defaults, zerolog.Nop())

	got, err := svc.Current(context.Background())
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.CabinetName != defaults.CabinetName || got.SlotDurationDefault != 60 {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestCurrentPropagatesStoreErrors(t *testing.T) {
	svc := NewService(&memRepo{err: errors.New("connection refused")}, defaults, zerolog.Nop())

	if _, err := svc.Current(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestUpdateAppliesOnlySetFields(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, defaults, zerolog.Nop())
	ctx := context.Background()

	saved, err := svc.Update(ctx, Patch{AllowOnlineBooking: ptr(false), ReminderDaysBefore: ptr(2)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if saved.AllowOnlineBooking || saved.ReminderDaysBefore != 2 {
		t.Errorf("patch not applied: %+v", saved)
	}
	if saved.CabinetName != defaults.CabinetName || !saved.NotificationEnabled {
		t.Errorf("untouched fields changed: %+v", saved)
	}

	// Second update starts from the stored row, not the defaults
	saved, err = svc.Update(ctx, Patch{SlotDurationDefault: ptr(45)})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if saved.AllowOnlineBooking || saved.SlotDurationDefault != 45 {
		t.Errorf("stored row not used: %+v", saved)
	}
}

func TestUpdateValidation(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{"empty patch", Patch{}},
		{"blank name", Patch{CabinetName: ptr("")}},
		{"negative reminder", Patch{ReminderDaysBefore: ptr(-1)}},
		{"reminder too far", Patch{ReminderDaysBefore: ptr(MaxReminderDaysBefore + 1)}},
		{"slot too short", Patch{SlotDurationDefault: ptr(MinSlotDurationDefault - 1)}},
		{"slot too long", Patch{SlotDurationDefault: ptr(MaxSlotDurationDefault + 1)}},
		{"bad email", Patch{ContactEmail: ptr("not-an-address")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memRepo{}
			svc := NewService(repo, defaults, zerolog.Nop())

			if _, err := svc.Update(context.Background(), tt.patch); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("expected ErrInvalidSettings, got %v", err)
			}
			if repo.saves != 0 {
				t.Errorf("invalid settings were saved")
			}
		})
	}
}
