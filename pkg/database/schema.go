package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(100) NOT NULL,
		phone VARCHAR(30) NOT NULL,
		service VARCHAR(100) NOT NULL,
		date DATE NOT NULL,
		time VARCHAR(20) NOT NULL,
		state VARCHAR(20) NOT NULL DEFAULT 'valid',
		cancel_token VARCHAR(255) UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_state ON bookings (date, state)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id SERIAL PRIMARY KEY,
		username VARCHAR(50) UNIQUE NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reset_token VARCHAR(255),
		reset_token_expires TIMESTAMPTZ,
		is_validated BOOLEAN NOT NULL DEFAULT FALSE,
		validation_token VARCHAR(255)
	)`,
}

// sqlite keeps dates and times as ISO text so lexical order matches time order.
var sqliteSchema = []string{
	`PRAGMA foreign_keys=ON`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		service TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'valid',
		cancel_token TEXT UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_state ON bookings (date, state)`,
	`CREATE TABLE IF NOT EXISTS workers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		reset_token TEXT,
		reset_token_expires DATETIME,
		is_validated INTEGER NOT NULL DEFAULT 0,
		validation_token TEXT
	)`,
}

// EnsureSchema creates the bookings and workers tables if they do not exist (idempotent).
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	stmts := sqliteSchema
	if IsPostgres(db) {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
