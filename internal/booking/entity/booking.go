package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

const (
	StateValid   = "valid"
	StateDeleted = "deleted"
)

// Booking is a row of the bookings table. Time is always stored as HH:MM:SS.
type Booking struct {
	ID          int64         `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Email       string        `db:"email" json:"email"`
	Phone       string        `db:"phone" json:"phone"`
	Service     string        `db:"service" json:"service"`
	Date        database.Date `db:"date" json:"date"`
	Time        string        `db:"time" json:"time"`
	State       string        `db:"state" json:"state"`
	CancelToken string        `db:"cancel_token" json:"cancel_token"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// PublicView is what anonymous listings expose: everything but the cancel token.
type PublicView struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Service   string        `json:"service"`
	Date      database.Date `json:"date"`
	Time      string        `json:"time"`
	State     string        `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
}

func (b Booking) Public() PublicView {
	return PublicView{
		ID:        b.ID,
		Name:      b.Name,
		Email:     b.Email,
		Phone:     b.Phone,
		Service:   b.Service,
		Date:      b.Date,
		Time:      b.Time,
		State:     b.State,
		CreatedAt: b.CreatedAt,
	}
}
