package domain

import (
	"time"
)

// JourneySession is the persisted snapshot of one chat tab.
// The JSON columns hold the journey package's own encodings.
type JourneySession struct {
	UserID        string
	SessionID     string
	ActiveJourney string
	MessagesJSON  string
	StepsJSON     string
	VarsJSON      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Key identifies the session across users and tabs.
func (s *JourneySession) Key() string {
	return SessionKey(s.UserID, s.SessionID)
}

// SessionKey joins a user and tab id.
func SessionKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}
