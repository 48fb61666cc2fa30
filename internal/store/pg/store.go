package pg

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"callagent/internal/domain"
	"callagent/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type Store struct {
	DB DB
}

func New(db DB) *Store { return &Store{DB: db} }

const appointmentColumns = `id, inquiry_id, customer_name, customer_phone, appointment_date, appointment_time,
	property_location, notes, call_id, language, status, created_at`

// EnsureSchema creates the call_appointments table and its indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) InsertAppointment(ctx context.Context, a domain.Appointment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO call_appointments (`+appointmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, a.ID, nullable(a.InquiryID), a.CustomerName, a.CustomerPhone, nullable(a.AppointmentDate), nullable(a.AppointmentTime),
		nullable(a.PropertyLocation), nullable(a.Notes), nullable(a.CallID), string(a.Language), string(a.Status), a.CreatedAt)
	return err
}

// ListAppointments returns appointments newest first.
func (s *Store) ListAppointments(ctx context.Context, f store.ListFilter) ([]domain.Appointment, error) {
	f = f.Normalize()
	rows, err := s.DB.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM call_appointments
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAppointment(ctx context.Context, id string) (domain.Appointment, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM call_appointments WHERE id=$1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Appointment{}, false, nil
		}
		return domain.Appointment{}, false, err
	}
	return a, true, nil
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus) (bool, error) {
	tag, err := s.DB.Exec(ctx, `UPDATE call_appointments SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM call_appointments WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanAppointment(row pgx.Row) (domain.Appointment, error) {
	var (
		a                                            domain.Appointment
		inquiryID, date, tm, location, notes, callID *string
		lang, status                                 string
	)
	err := row.Scan(&a.ID, &inquiryID, &a.CustomerName, &a.CustomerPhone, &date, &tm,
		&location, &notes, &callID, &lang, &status, &a.CreatedAt)
	if err != nil {
		return domain.Appointment{}, err
	}
	a.InquiryID, a.AppointmentDate, a.AppointmentTime = inquiryID, date, tm
	a.PropertyLocation, a.Notes, a.CallID = location, notes, callID
	a.Language = domain.Language(lang)
	a.Status = domain.AppointmentStatus(status)
	return a, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
