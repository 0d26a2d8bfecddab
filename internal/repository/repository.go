// Package repository is the storage layer for accounts and activity events.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/isdelr/iserve-be/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no row matches the lookup key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("record already exists")
)

// UserRepository stores user accounts. Email uniqueness is enforced by the
// store itself, so Insert is an atomic insert-if-absent.
type UserRepository interface {
	Insert(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateFields(ctx context.Context, email string, update models.ProfileUpdate) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// EventRepository stores the account activity log.
type EventRepository interface {
	Insert(ctx context.Context, event models.Event) error
	Recent(ctx context.Context, userID string, limit int) ([]models.Event, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
