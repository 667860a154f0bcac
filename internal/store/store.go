// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/finagent/internal/domain"
)

// Repository defines the interface for persisting users, journey session
// snapshots and HR onboarding state.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetJourneySession retrieves the snapshot for one chat tab.
	GetJourneySession(ctx context.Context, userID, sessionID string) (*domain.JourneySession, error)

	// UpsertJourneySession creates or replaces a chat tab snapshot.
	UpsertJourneySession(ctx context.Context, session *domain.JourneySession) error

	// DeleteJourneySession removes a chat tab snapshot.
	DeleteJourneySession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredSessions removes snapshots not updated within ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// GetHRSetup retrieves the HR onboarding state for a user.
	GetHRSetup(ctx context.Context, userID string) (*domain.HRSetup, error)

	// UpsertHRSetup stores the HR onboarding state for a user.
	UpsertHRSetup(ctx context.Context, setup *domain.HRSetup) error

	// DeleteHRSetup clears the HR onboarding state for a user.
	DeleteHRSetup(ctx context.Context, userID string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
