// Package repository persists users, enrollment templates and the
// attempt audit log.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/typeshield/typeshield/internal/domain/model"
)

// Store provides read/write access to enrolled state and the attempt log.
type Store interface {
	// CreateUser inserts a new user. Returns ErrDuplicateUser when the
	// username is taken.
	CreateUser(ctx context.Context, user model.User) error

	// GetUserByName returns a user by username. Returns ErrNotFound for
	// unknown usernames.
	GetUserByName(ctx context.Context, username string) (model.User, error)

	// SaveTemplate stores the enrollment template for a user, replacing
	// any existing one (templates are 1:1 with users).
	SaveTemplate(ctx context.Context, userID uuid.UUID, tmpl model.Template) error

	// GetTemplate returns a user's enrollment template. Returns
	// ErrNoTemplate when the user has none.
	GetTemplate(ctx context.Context, userID uuid.UUID) (model.Template, error)

	// LogAttempt appends one attempt record to the audit log.
	LogAttempt(ctx context.Context, rec model.AttemptRecord) error

	// RecentAttempts returns up to limit attempt records for a user,
	// newest first.
	RecentAttempts(ctx context.Context, userID uuid.UUID, limit int) ([]model.AttemptRecord, error)

	// AttemptTotals returns the success and failure counts for a user.
	AttemptTotals(ctx context.Context, userID uuid.UUID) (success, failure int, err error)

	// CountUsers returns the number of enrolled users.
	CountUsers(ctx context.Context) (int, error)

	// Close releases underlying resources.
	Close() error
}
