package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/finagent/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serializes snapshot writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journey_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		active_journey TEXT,
		messages_json TEXT NOT NULL,
		steps_json TEXT NOT NULL,
		vars_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_journey_sessions_updated ON journey_sessions(updated_at);

	CREATE TABLE IF NOT EXISTS hr_setup (
		user_id TEXT PRIMARY KEY,
		complete INTEGER NOT NULL DEFAULT 0,
		provider TEXT,
		domain TEXT,
		data_points_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	return withRetry(ctx, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetJourneySession retrieves the snapshot for one chat tab.
func (s *SQLiteStore) GetJourneySession(ctx context.Context, userID, sessionID string) (*domain.JourneySession, error) {
	query := `
		SELECT user_id, session_id, active_journey, messages_json, steps_json,
		       vars_json, created_at, updated_at
		FROM journey_sessions WHERE user_id = ? AND session_id = ?`

	var js domain.JourneySession
	var active sql.NullString
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&js.UserID, &js.SessionID, &active, &js.MessagesJSON, &js.StepsJSON,
		&js.VarsJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan journey session: %w", err)
	}

	js.ActiveJourney = active.String
	js.CreatedAt = time.Unix(createdAt, 0)
	js.UpdatedAt = time.Unix(updatedAt, 0)
	return &js, nil
}

// UpsertJourneySession creates or replaces a chat tab snapshot.
func (s *SQLiteStore) UpsertJourneySession(ctx context.Context, js *domain.JourneySession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		INSERT INTO journey_sessions (
			user_id, session_id, active_journey, messages_json, steps_json,
			vars_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			active_journey = excluded.active_journey,
			messages_json = excluded.messages_json,
			steps_json = excluded.steps_json,
			vars_json = excluded.vars_json,
			updated_at = excluded.updated_at`

	var active interface{}
	if js.ActiveJourney != "" {
		active = js.ActiveJourney
	}
	createdAt := js.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return withRetry(ctx, "upsert journey session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			js.UserID, js.SessionID, active, js.MessagesJSON, js.StepsJSON,
			js.VarsJSON, createdAt.Unix(), time.Now().Unix(),
		)
		return err
	})
}

// DeleteJourneySession removes a chat tab snapshot.
func (s *SQLiteStore) DeleteJourneySession(ctx context.Context, userID, sessionID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	return withRetry(ctx, "delete journey session", func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM journey_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
		return err
	})
}

// CleanupExpiredSessions removes snapshots not updated within ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	threshold := time.Now().Add(-ttl).Unix()
	var affected int64
	err := withRetry(ctx, "cleanup expired sessions", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM journey_sessions WHERE updated_at < ?`, threshold)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}

// GetHRSetup retrieves the HR onboarding state for a user.
func (s *SQLiteStore) GetHRSetup(ctx context.Context, userID string) (*domain.HRSetup, error) {
	query := `
		SELECT user_id, complete, provider, domain, data_points_json, updated_at
		FROM hr_setup WHERE user_id = ?`

	var h domain.HRSetup
	var provider, hrDomain sql.NullString
	var dataPoints string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&h.UserID, &h.Complete, &provider, &hrDomain, &dataPoints, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan hr setup: %w", err)
	}
	if err := json.Unmarshal([]byte(dataPoints), &h.DataPoints); err != nil {
		return nil, fmt.Errorf("decode hr data points: %w", err)
	}

	h.Provider = provider.String
	h.Domain = hrDomain.String
	h.UpdatedAt = time.Unix(updatedAt, 0)
	return &h, nil
}

// UpsertHRSetup stores the HR onboarding state for a user.
func (s *SQLiteStore) UpsertHRSetup(ctx context.Context, h *domain.HRSetup) error {
	dataPoints, err := json.Marshal(h.DataPoints)
	if err != nil {
		return fmt.Errorf("encode hr data points: %w", err)
	}
	query := `
		INSERT INTO hr_setup (user_id, complete, provider, domain, data_points_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			complete = excluded.complete,
			provider = excluded.provider,
			domain = excluded.domain,
			data_points_json = excluded.data_points_json,
			updated_at = excluded.updated_at`

	return withRetry(ctx, "upsert hr setup", func() error {
		_, err := s.db.ExecContext(ctx, query,
			h.UserID, h.Complete, h.Provider, h.Domain, string(dataPoints), time.Now().Unix(),
		)
		return err
	})
}

// DeleteHRSetup clears the HR onboarding state for a user.
func (s *SQLiteStore) DeleteHRSetup(ctx context.Context, userID string) error {
	return withRetry(ctx, "delete hr setup", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM hr_setup WHERE user_id = ?`, userID)
		return err
	})
}

const (
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
)

// withRetry runs fn, retrying SQLITE_BUSY and "database is locked" failures
// with exponential backoff: 100ms, 200ms.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isConflict(err) || i == maxRetries-1 {
			break
		}
		delay := baseRetryDelay * time.Duration(1<<i)
		slog.Debug("sqlite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
