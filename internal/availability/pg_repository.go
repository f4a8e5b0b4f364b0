package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/therapy-booking/internal/calendar"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const availabilityColumns = `id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	slot_duration, is_active, created_at, updated_at`

const exceptionColumns = `id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	is_available, reason, slot_duration, created_at`

func scanAvailability(row pgx.Row) (*WeeklyAvailability, error) {
	var (
		a          WeeklyAvailability
		day        int
		start, end string
	)

	err := row.Scan(
		&a.ID,
		&day,
		&start,
		&end,
		&a.SlotDuration,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	a.DayOfWeek = time.Weekday(day)
	if a.StartTime, err = calendar.ParseClock(start); err != nil {
		return nil, fmt.Errorf("availability %s start_time: %w", a.ID, err)
	}
	if a.EndTime, err = calendar.ParseClock(end); err != nil {
		return nil, fmt.Errorf("availability %s end_time: %w", a.ID, err)
	}
	return &a, nil
}

func scanException(row pgx.Row) (*ScheduleException, error) {
	var (
		e          ScheduleException
		date       string
		start, end *string
	)

	err := row.Scan(
		&e.ID,
		&date,
		&start,
		&end,
		&e.IsAvailable,
		&e.Reason,
		&e.SlotDuration,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}

	if e.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("exception %s date: %w", e.ID, err)
	}
	if e.StartTime, err = parseOptionalClock(start); err != nil {
		return nil, fmt.Errorf("exception %s start_time: %w", e.ID, err)
	}
	if e.EndTime, err = parseOptionalClock(end); err != nil {
		return nil, fmt.Errorf("exception %s end_time: %w", e.ID, err)
	}
	return &e, nil
}

func parseOptionalClock(s *string) (*calendar.Clock, error) {
	if s == nil {
		return nil, nil
	}
	c, err := calendar.ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func clockArg(c *calendar.Clock) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func dateArg(d calendar.Date) *string {
	if d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

// Interface methods

func (r *PgRepository) ListActive(ctx context.Context) ([]WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE is_active = true
		ORDER BY day_of_week, start_time
	`)
	if err != nil {
		return nil, err
	}
	return collectAvailabilities(rows)
}

func (r *PgRepository) List(ctx context.Context) ([]WeeklyAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		ORDER BY day_of_week, start_time, is_active DESC
	`)
	if err != nil {
		return nil, err
	}
	return collectAvailabilities(rows)
}

func collectAvailabilities(rows pgx.Rows) ([]WeeklyAvailability, error) {
	defer rows.Close()

	var result []WeeklyAvailability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE id = $1
	`, id)
	return scanAvailability(row)
}

func (r *PgRepository) Create(ctx context.Context, a WeeklyAvailability) (*WeeklyAvailability, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availabilities (id, day_of_week, start_time, end_time, slot_duration, is_active, created_at, updated_at)
		VALUES ($1, $2, $3::time, $4::time, $5, $6, now(), now())
		RETURNING `+availabilityColumns,
		a.ID, int(a.DayOfWeek), a.StartTime.String(), a.EndTime.String(), a.SlotDuration, a.IsActive)

	return scanAvailability(row)
}

func (r *PgRepository) Update(ctx context.Context, a WeeklyAvailability) (*WeeklyAvailability, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availabilities
		SET day_of_week = $2,
		    start_time = $3::time,
		    end_time = $4::time,
		    slot_duration = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+availabilityColumns,
		a.ID, int(a.DayOfWeek), a.StartTime.String(), a.EndTime.String(), a.SlotDuration, a.IsActive)

	return scanAvailability(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) ListExceptions(ctx context.Context, from, to calendar.Date) ([]ScheduleException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM schedule_exceptions
		WHERE ($1::date IS NULL OR date >= $1::date)
		  AND ($2::date IS NULL OR date <= $2::date)
		ORDER BY date, start_time NULLS FIRST
	`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleException
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateException(ctx context.Context, e ScheduleException) (*ScheduleException, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (id, date, start_time, end_time, is_available, reason, slot_duration, created_at)
		VALUES ($1, $2::date, $3::time, $4::time, $5, $6, $7, now())
		RETURNING `+exceptionColumns,
		e.ID, e.Date.String(), clockArg(e.StartTime), clockArg(e.EndTime), e.IsAvailable, e.Reason, e.SlotDuration)

	return scanException(row)
}

func (r *PgRepository) DeleteException(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_exceptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete exception: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExceptionNotFound
	}
	return nil
}
