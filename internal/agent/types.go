// Package agent hosts the journey conversations: a registry of live sessions
// keyed by user and tab, their persistence, and the HTTP/SSE transport.
package agent

import (
	"github.com/ashureev/finagent/internal/journey"
)

// ChatRequest is a free-text message from the user.
type ChatRequest struct {
	Text string `json:"text"`
}

// ActionRequest is a button press. KYC, when set, overrides the configured
// KYC status for this request only.
type ActionRequest struct {
	Action string `json:"action"`
	Value  string `json:"value,omitempty"`
	KYC    string `json:"kyc,omitempty"`
}

// Result is what one operation added to the conversation.
type Result struct {
	Messages []journey.Message `json:"messages"`
	Steps    []journey.Step    `json:"steps"`
	Active   journey.ID        `json:"active_journey,omitempty"`
	LastSeq  int64             `json:"last_seq"`
}

const (
	// EventReset is published when a conversation is cleared.
	EventReset journey.EventType = "reset"
	// EventResync tells a transport that events for the tab were lost and
	// the client should fetch a fresh snapshot.
	EventResync journey.EventType = "resync"
)

// Envelope is a session event addressed to one user tab.
type Envelope struct {
	UserID    string        `json:"-"`
	SessionID string        `json:"-"`
	Event     journey.Event `json:"event"`
}

// persistedState is the vars column of a stored snapshot. Offered and
// standing actions travel with the vars so a restored session accepts the
// same buttons.
type persistedState struct {
	Vars     journey.Vars       `json:"vars"`
	Offered  []journey.ActionID `json:"offered,omitempty"`
	Standing []journey.ActionID `json:"standing,omitempty"`
	LastSeq  int64              `json:"last_seq"`
}
