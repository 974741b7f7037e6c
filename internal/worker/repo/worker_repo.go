package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-salon/internal/worker/entity"
)

// ErrNotFound is returned when no worker matches.
var ErrNotFound = errors.New("worker not found")

const columns = `id, username, email, password_hash, is_validated, validation_token, reset_token, reset_token_expires, created_at`

// WorkerRepo provides data access for the workers table using sqlx.
type WorkerRepo struct {
	db *sqlx.DB
}

func NewWorkerRepo(db *sqlx.DB) *WorkerRepo { return &WorkerRepo{db: db} }

// Create inserts a new worker and returns the stored row.
func (r *WorkerRepo) Create(ctx context.Context, w *entity.Worker) (*entity.Worker, error) {
	q := r.db.Rebind(`INSERT INTO workers (username, email, password_hash, is_validated, validation_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + columns)
	var row entity.Worker
	if err := r.db.GetContext(ctx, &row, q, w.Username, w.Email, w.PasswordHash, w.IsValidated, w.ValidationToken, w.CreatedAt); err != nil {
		return nil, err
	}
	normalize(&row)
	return &row, nil
}

// FindByIdentifier matches identifier against both username and email.
func (r *WorkerRepo) FindByIdentifier(ctx context.Context, identifier string) (*entity.Worker, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM workers WHERE username = ? OR email = ? ORDER BY id LIMIT 1`, identifier, identifier)
}

func (r *WorkerRepo) FindByEmail(ctx context.Context, email string) (*entity.Worker, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM workers WHERE email = ?`, email)
}

func (r *WorkerRepo) FindByID(ctx context.Context, id int64) (*entity.Worker, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM workers WHERE id = ?`, id)
}

func (r *WorkerRepo) FindByValidationToken(ctx context.Context, token string) (*entity.Worker, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM workers WHERE validation_token = ?`, token)
}

// FindByResetToken only matches a token whose expiry is after now.
func (r *WorkerRepo) FindByResetToken(ctx context.Context, token string, now time.Time) (*entity.Worker, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM workers WHERE reset_token = ? AND reset_token_expires > ?`, token, now.UTC())
}

func (r *WorkerRepo) getOne(ctx context.Context, q string, args ...any) (*entity.Worker, error) {
	var row entity.Worker
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&row)
	return &row, nil
}

// MarkValidated sets is_validated and clears the validation token.
func (r *WorkerRepo) MarkValidated(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE workers SET is_validated = ?, validation_token = NULL WHERE id = ?`, true, id)
}

func (r *WorkerRepo) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return r.exec(ctx, `UPDATE workers SET reset_token = ?, reset_token_expires = ? WHERE id = ?`, token, expires.UTC(), id)
}

// ResetPassword stores a new hash and burns the reset token, but only while
// token is still the worker's unexpired reset token. It reports whether the
// row changed, so one token admits a single reset.
func (r *WorkerRepo) ResetPassword(ctx context.Context, id int64, token, hash string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE workers SET password_hash = ?, reset_token = NULL, reset_token_expires = NULL
		WHERE id = ? AND reset_token = ? AND reset_token_expires > ?`), hash, id, token, now.UTC())
	if err != nil {
		return false, fmt.Errorf("reset password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateInfo changes username and email and returns the stored row.
func (r *WorkerRepo) UpdateInfo(ctx context.Context, id int64, username, email string) (*entity.Worker, error) {
	q := r.db.Rebind(`UPDATE workers SET username = ?, email = ? WHERE id = ? RETURNING ` + columns)
	var row entity.Worker
	if err := r.db.GetContext(ctx, &row, q, username, email, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&row)
	return &row, nil
}

// Delete removes the worker row.
func (r *WorkerRepo) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM workers WHERE id = ?`, id)
}

// List returns every worker ordered by id.
func (r *WorkerRepo) List(ctx context.Context) ([]entity.Worker, error) {
	out := []entity.Worker{}
	if err := r.db.SelectContext(ctx, &out, `SELECT `+columns+` FROM workers ORDER BY id`); err != nil {
		return nil, err
	}
	for i := range out {
		normalize(&out[i])
	}
	return out, nil
}

func (r *WorkerRepo) exec(ctx context.Context, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("update worker: %w", err)
	}
	return nil
}

func normalize(w *entity.Worker) {
	w.CreatedAt = w.CreatedAt.UTC()
	if w.ResetTokenExpires != nil {
		t := w.ResetTokenExpires.UTC()
		w.ResetTokenExpires = &t
	}
}
