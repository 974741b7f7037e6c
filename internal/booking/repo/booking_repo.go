package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-salon/internal/booking/entity"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

// ErrNotFound is returned when no booking matches.
var ErrNotFound = errors.New("booking not found")

const columns = `id, name, email, phone, service, date, time, state, cancel_token, created_at`

// BookingRepo provides data access for the bookings table using sqlx.
// Queries are written with '?' and rebound for the active driver.
type BookingRepo struct {
	db *sqlx.DB
}

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// ConflictCheck inspects the valid bookings already on the candidate's date.
// A non-nil error aborts the insert and is returned unchanged.
type ConflictCheck func(existing []entity.Booking) error

// CreateExclusive runs check and the insert in one transaction. On postgres a
// transaction-scoped advisory lock per date serializes concurrent creations;
// sqlite runs on a single connection so transactions never interleave.
func (r *BookingRepo) CreateExclusive(ctx context.Context, b *entity.Booking, check ConflictCheck) (*entity.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if database.IsPostgres(r.db) {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('bookings:' || $1::text))`, b.Date.String()); err != nil {
			return nil, fmt.Errorf("lock date: %w", err)
		}
	}

	var existing []entity.Booking
	q := tx.Rebind(`SELECT ` + columns + ` FROM bookings WHERE date = ? AND state = ?`)
	if err := tx.SelectContext(ctx, &existing, q, b.Date, entity.StateValid); err != nil {
		return nil, fmt.Errorf("load bookings on date: %w", err)
	}
	if err := check(existing); err != nil {
		return nil, err
	}

	var created entity.Booking
	ins := tx.Rebind(`INSERT INTO bookings (name, email, phone, service, date, time, state, cancel_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING ` + columns)
	if err := tx.GetContext(ctx, &created, ins,
		b.Name, b.Email, b.Phone, b.Service, b.Date, b.Time, entity.StateValid, b.CancelToken, b.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	normalize(&created)
	return &created, nil
}

// FindByID returns the booking in any state.
func (r *BookingRepo) FindByID(ctx context.Context, id int64) (*entity.Booking, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM bookings WHERE id = ?`, id)
}

// FindValidByCancelToken returns the valid booking holding token.
func (r *BookingRepo) FindValidByCancelToken(ctx context.Context, token string) (*entity.Booking, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM bookings WHERE cancel_token = ? AND state = ?`, token, entity.StateValid)
}

func (r *BookingRepo) getOne(ctx context.Context, q string, args ...any) (*entity.Booking, error) {
	var b entity.Booking
	if err := r.db.GetContext(ctx, &b, r.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&b)
	return &b, nil
}

// ListByCreatedDesc returns every booking, newest first.
func (r *BookingRepo) ListByCreatedDesc(ctx context.Context) ([]entity.Booking, error) {
	return r.list(ctx, `SELECT `+columns+` FROM bookings ORDER BY created_at DESC, id DESC`)
}

// ListByTime returns every booking ordered by time of day.
func (r *BookingRepo) ListByTime(ctx context.Context) ([]entity.Booking, error) {
	return r.list(ctx, `SELECT `+columns+` FROM bookings ORDER BY time, date, id`)
}

func (r *BookingRepo) list(ctx context.Context, q string) ([]entity.Booking, error) {
	out := []entity.Booking{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	for i := range out {
		normalize(&out[i])
	}
	return out, nil
}

// SoftDeleteIfValid moves a valid booking to deleted and reports whether it did.
func (r *BookingRepo) SoftDeleteIfValid(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE bookings SET state = ? WHERE id = ? AND state = ?`),
		entity.StateDeleted, id, entity.StateValid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpirePast soft-deletes valid bookings dated before cutoff.
func (r *BookingRepo) ExpirePast(ctx context.Context, cutoff database.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE bookings SET state = ? WHERE state = ? AND date < ?`),
		entity.StateDeleted, entity.StateValid, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire bookings: %w", err)
	}
	return res.RowsAffected()
}

// PurgeDeleted erases deleted bookings created before createdBefore.
func (r *BookingRepo) PurgeDeleted(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM bookings WHERE state = ? AND created_at < ?`),
		entity.StateDeleted, createdBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge bookings: %w", err)
	}
	return res.RowsAffected()
}

func normalize(b *entity.Booking) {
	b.CreatedAt = b.CreatedAt.UTC()
}
