package entity

import "time"

// Worker represents a staff account row in the `workers` table.
type Worker struct {
	ID                int64      `db:"id"`
	Username          string     `db:"username"`
	Email             string     `db:"email"`
	PasswordHash      string     `db:"password_hash"`
	IsValidated       bool       `db:"is_validated"`
	ValidationToken   *string    `db:"validation_token"`
	ResetToken        *string    `db:"reset_token"`
	ResetTokenExpires *time.Time `db:"reset_token_expires"`
	CreatedAt         time.Time  `db:"created_at"`
}

// PublicView is the projection safe to return to clients; it never carries
// the hash or any token.
type PublicView struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	IsValidated bool      `json:"is_validated"`
	CreatedAt   time.Time `json:"created_at"`
}

func (w Worker) Public() PublicView {
	return PublicView{
		ID:          w.ID,
		Username:    w.Username,
		Email:       w.Email,
		IsValidated: w.IsValidated,
		CreatedAt:   w.CreatedAt,
	}
}
