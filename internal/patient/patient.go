package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPatientNotFound    = errors.New("patient not found")
	ErrPatientHasBookings = errors.New("patient has bookings")
)

// Constraint from the migrations that keeps bookings attached to a patient
const (
	bookingPatientFK     = "bookings_patient_id_fkey"
	pgForeignKeyViolated = "23503"
)

type Patient struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the salutation used in patient-facing messages.
func (p Patient) DisplayName() string {
	if name := strings.TrimSpace(p.FirstName); name != "" {
		return name
	}
	if i := strings.Index(p.Email, "@"); i > 0 {
		return p.Email[:i]
	}
	return p.Email
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const patientColumns = `id, email, first_name, last_name, phone, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// Create inserts p, or returns the existing row when the email is taken.
func (r *PgRepository) Create(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, email, first_name, last_name, phone, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, now(), now())
		ON CONFLICT (email) DO UPDATE SET updated_at = patients.updated_at
		RETURNING `+patientColumns,
		p.ID, p.Email, p.FirstName, p.LastName, p.Phone)

	return scanPatient(row)
}

func (r *PgRepository) List(ctx context.Context, limit int) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Summary is a patient row in the admin directory.
type Summary struct {
	Patient
	TotalBookings int `json:"total_bookings"`
}

// Search matches search against email, names and phone, case-insensitively.
// An empty search lists everyone. Newest patients come first.
func (r *PgRepository) Search(ctx context.Context, search string, limit int) ([]Summary, error) {
	var pattern *string
	if search = strings.TrimSpace(search); search != "" {
		p := "%" + escapeLike(search) + "%"
		pattern = &p
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`,
		       (SELECT count(*) FROM bookings b WHERE b.patient_id = patients.id)
		FROM patients
		WHERE $1::text IS NULL
		   OR email ILIKE $1
		   OR first_name ILIKE $1
		   OR last_name ILIKE $1
		   OR phone ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Summary{}
	for rows.Next() {
		var s Summary
		err := rows.Scan(
			&s.ID,
			&s.Email,
			&s.FirstName,
			&s.LastName,
			&s.Phone,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.TotalBookings,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Delete removes a patient without history. Bookings are never deleted, so
// a patient who has any cannot be removed.
func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolated && pgErr.ConstraintName == bookingPatientFK {
			return ErrPatientHasBookings
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
