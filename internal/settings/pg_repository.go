package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const settingsColumns = `cabinet_name, address, contact_email, contact_phone, logo_url,
	notification_enabled, reminder_days_before, allow_online_booking, slot_duration_default, updated_at`

func scanSettings(row pgx.Row) (*Settings, error) {
	var s Settings

	err := row.Scan(
		&s.CabinetName,
		&s.Address,
		&s.ContactEmail,
		&s.ContactPhone,
		&s.LogoURL,
		&s.NotificationEnabled,
		&s.ReminderDaysBefore,
		&s.AllowOnlineBooking,
		&s.SlotDurationDefault,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgRepository) Get(ctx context.Context) (*Settings, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM cabinet_settings
		WHERE id = 1
	`)
	return scanSettings(row)
}

// Save writes the single settings row, creating it on first use.
func (r *PgRepository) Save(ctx context.Context, s Settings) (*Settings, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cabinet_settings (id, cabinet_name, address, contact_email, contact_phone, logo_url,
			notification_enabled, reminder_days_before, allow_online_booking, slot_duration_default, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE
		SET cabinet_name = EXCLUDED.cabinet_name,
		    address = EXCLUDED.address,
		    contact_email = EXCLUDED.contact_email,
		    contact_phone = EXCLUDED.contact_phone,
		    logo_url = EXCLUDED.logo_url,
		    notification_enabled = EXCLUDED.notification_enabled,
		    reminder_days_before = EXCLUDED.reminder_days_before,
		    allow_online_booking = EXCLUDED.allow_online_booking,
		    slot_duration_default = EXCLUDED.slot_duration_default,
		    updated_at = now()
		RETURNING `+settingsColumns,
		s.CabinetName, s.Address, s.ContactEmail, s.ContactPhone, s.LogoURL,
		s.NotificationEnabled, s.ReminderDaysBefore, s.AllowOnlineBooking, s.SlotDurationDefault)

	return scanSettings(row)
}
