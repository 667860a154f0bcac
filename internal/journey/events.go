package journey

// EventType names a session change.
type EventType string

const (
	EventMessage        EventType = "message"
	EventMessageRemoved EventType = "message_removed"
	EventSteps          EventType = "steps"
	EventJourney        EventType = "journey"
	EventBusy           EventType = "busy"
)

// Event describes one change to a session. Only the fields relevant to Type
// are set.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Removed []int64   `json:"removed,omitempty"`
	Steps   []Step    `json:"steps,omitempty"`
	Journey ID        `json:"journey,omitempty"`
	Busy    bool      `json:"busy,omitempty"`
}

// Observer receives session events. It is called outside the session lock
// from the goroutine running the operation and must not block.
type Observer func(Event)
