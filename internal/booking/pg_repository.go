package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/calendar"
)

// Constraint names from the migrations
const (
	liveSlotConstraint   = "bookings_live_slot_key"
	patientFKConstraint  = "bookings_patient_id_fkey"
	pgUniqueViolation    = "23505"
	pgForeignKeyViolated = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const bookingColumns = `id, patient_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
	status, reason, cancelled_at, cancellation_reason, created_by, reminder_sent_at, created_at, updated_at`

// scanBooking reads bookingColumns followed by any extra columns into extra.
func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var (
		b          Booking
		date       string
		start, end string
	)

	dest := []any{
		&b.ID,
		&b.PatientID,
		&date,
		&start,
		&end,
		&b.Status,
		&b.Reason,
		&b.CancelledAt,
		&b.CancellationReason,
		&b.CreatedBy,
		&b.ReminderSentAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if b.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("booking %s date: %w", b.ID, err)
	}
	if b.StartTime, err = calendar.ParseClock(start); err != nil {
		return nil, fmt.Errorf("booking %s start_time: %w", b.ID, err)
	}
	if b.EndTime, err = calendar.ParseClock(end); err != nil {
		return nil, fmt.Errorf("booking %s end_time: %w", b.ID, err)
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows, err error) ([]Booking, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// mapWriteError turns constraint violations into domain errors. The partial
// unique index on live (date, start_time) is the last line of defence against
// double booking.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == liveSlotConstraint:
		return ErrSlotConflict
	case pgErr.Code == pgForeignKeyViolated && pgErr.ConstraintName == patientFKConstraint:
		return ErrPatientNotFound
	}
	return err
}

func dateArg(d calendar.Date) *string {
	if d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

func clockArg(c *calendar.Clock) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func patchDateArg(d *calendar.Date) *string {
	if d == nil {
		return nil
	}
	return dateArg(*d)
}

// Interface methods

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListActive(ctx context.Context, from, to calendar.Date) ([]Booking, error) {
	return collectBookings(r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status IN ('pending', 'confirmed')
		  AND date BETWEEN $1::date AND $2::date
		ORDER BY date, start_time
	`, from.String(), to.String()))
}

func (r *PgRepository) ListReservations(ctx context.Context, from, to calendar.Date) ([]availability.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI')
		FROM bookings
		WHERE status IN ('pending', 'confirmed')
		  AND date BETWEEN $1::date AND $2::date
	`, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Reservation
	for rows.Next() {
		var date, start string
		if err := rows.Scan(&date, &start); err != nil {
			return nil, err
		}
		var res availability.Reservation
		if res.Date, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
		if res.StartTime, err = calendar.ParseClock(start); err != nil {
			return nil, err
		}
		result = append(result, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error) {
	return collectBookings(r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE patient_id = $1
		ORDER BY date DESC, start_time DESC
	`, patientID))
}

func (r *PgRepository) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	var status, patient *string
	if filter.Status != "" {
		s := string(filter.Status)
		status = &s
	}
	if filter.PatientID != uuid.Nil {
		p := filter.PatientID.String()
		patient = &p
	}

	return collectBookings(r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE ($1::text IS NULL OR status = $1::text)
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		  AND ($4::uuid IS NULL OR patient_id = $4::uuid)
		ORDER BY date DESC, start_time DESC
	`, status, dateArg(filter.From), dateArg(filter.To), patient))
}

func (r *PgRepository) WithinSlotTx(ctx context.Context, keys []string, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Fixed order so two writers never wait on each other's second key
	ordered := slices.Compact(slices.Sorted(slices.Values(keys)))
	for _, key := range ordered {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("advisory lock %s: %w", key, err)
		}
	}

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *PgRepository) UpdateFields(ctx context.Context, id uuid.UUID, patch Patch) (*Booking, error) {
	return updateFields(ctx, r.pool, id, patch)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, reason *string, at time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns,
		id, at, reason)

	b, err := scanBooking(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: booking is no longer live", ErrInvalidTransition)
	}
	return b, err
}

func (r *PgRepository) CompletePast(ctx context.Context, before calendar.Date, beforeTime calendar.Clock) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'completed',
		    updated_at = now()
		WHERE status = 'confirmed'
		  AND (date < $1::date OR (date = $1::date AND end_time <= $2::time))
	`, before.String(), beforeTime.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) DueForReminder(ctx context.Context, date calendar.Date) ([]Booking, error) {
	return collectBookings(r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = 'confirmed'
		  AND date = $1::date
		  AND reminder_sent_at IS NULL
		ORDER BY start_time
	`, date.String()))
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET reminder_sent_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, booking_id, actor_id, actor_role, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, ev.EventType, ev.BookingID, ev.ActorID, string(ev.ActorRole), ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}

	return nil
}

// Stats runs the dashboard counters and loads the day's appointments with
// their patients.
func (r *PgRepository) Stats(ctx context.Context, today, upcomingUntil calendar.Date, cancelledSince time.Time) (*DashboardStats, error) {
	var stats DashboardStats

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM patients),
			(SELECT count(*) FROM bookings
			 WHERE date BETWEEN $1::date AND $2::date
			   AND status <> 'cancelled'),
			(SELECT count(*) FROM bookings
			 WHERE status = 'cancelled'
			   AND cancelled_at >= $3)
	`, today.String(), upcomingUntil.String(), cancelledSince).Scan(
		&stats.TotalPatients,
		&stats.UpcomingBookings,
		&stats.RecentCancellations,
	)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	// The lateral subquery only exposes contact columns, so bookingColumns
	// stays unambiguous.
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`, pc.email, pc.first_name, pc.last_name, pc.phone
		FROM bookings,
		LATERAL (
			SELECT email, first_name, last_name, phone
			FROM patients
			WHERE patients.id = bookings.patient_id
		) pc
		WHERE date = $1::date
		  AND status <> 'cancelled'
		ORDER BY start_time
	`, today.String())
	if err != nil {
		return nil, fmt.Errorf("list today's bookings: %w", err)
	}
	defer rows.Close()

	stats.TodayBookings = []PatientBooking{}
	for rows.Next() {
		var pb PatientBooking
		b, err := scanBooking(rows, &pb.PatientEmail, &pb.PatientFirstName, &pb.PatientLastName, &pb.PatientPhone)
		if err != nil {
			return nil, err
		}
		pb.Booking = *b
		stats.TodayBookings = append(stats.TodayBookings, pb)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &stats, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Transaction-scoped operations

type pgTx struct {
	q querier
}

func (t *pgTx) ActiveAtSlot(ctx context.Context, date calendar.Date, start calendar.Clock, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE date = $1::date
			  AND start_time = $2::time
			  AND status IN ('pending', 'confirmed')
			  AND id <> $3
		)
	`, date.String(), start.String(), excludeID).Scan(&exists)
	return exists, err
}

func (t *pgTx) ActiveForPatientOn(ctx context.Context, patientID uuid.UUID, date calendar.Date, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE patient_id = $1
			  AND date = $2::date
			  AND status IN ('pending', 'confirmed')
			  AND id <> $3
		)
	`, patientID, date.String(), excludeID).Scan(&exists)
	return exists, err
}

func (t *pgTx) Insert(ctx context.Context, nb NewBooking, status Status) (*Booking, error) {
	id := uuid.New()

	row := t.q.QueryRow(ctx, `
		INSERT INTO bookings (id, patient_id, date, start_time, end_time, status, reason, created_by, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6, $7, $8, now(), now())
		RETURNING `+bookingColumns,
		id, nb.PatientID, nb.Date.String(), nb.StartTime.String(), nb.EndTime.String(), string(status), nb.Reason, string(nb.CreatedBy))

	b, err := scanBooking(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return b, nil
}

func (t *pgTx) UpdateFields(ctx context.Context, id uuid.UUID, patch Patch) (*Booking, error) {
	return updateFields(ctx, t.q, id, patch)
}

func updateFields(ctx context.Context, q querier, id uuid.UUID, patch Patch) (*Booking, error) {
	row := q.QueryRow(ctx, `
		UPDATE bookings
		SET date = COALESCE($2::date, date),
		    start_time = COALESCE($3::time, start_time),
		    end_time = COALESCE($4::time, end_time),
		    reason = COALESCE($5, reason),
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns,
		id, patchDateArg(patch.Date), clockArg(patch.StartTime), clockArg(patch.EndTime), patch.Reason)

	b, err := scanBooking(row)
	if errors.Is(err, ErrNotFound) {
		// Cancelled or completed since it was loaded
		return nil, fmt.Errorf("%w: booking is no longer live", ErrInvalidTransition)
	}
	if err != nil {
		return nil, mapWriteError(err)
	}
	return b, nil
}
