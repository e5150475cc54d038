// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/countrychat/internal/domain"
)

// Repository defines the interface for persisting users and session records.
type Repository interface {
	// GetUser retrieves a user by ID. Returns nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates a user record if it does not exist yet.
	UpsertUser(ctx context.Context, user *domain.User) error

	// GetSessionRecord retrieves the most recent session record for a user.
	// Returns nil when the user has no durable session.
	GetSessionRecord(ctx context.Context, userID string) (*domain.SessionRecord, error)

	// UpsertSessionRecord creates or replaces a session record keyed by
	// session ID. The event log is overwritten wholesale, not appended.
	UpsertSessionRecord(ctx context.Context, sessionID, userID, events string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
