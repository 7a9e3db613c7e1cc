package bus

import "time"

// Event kinds published by the sync layer. Subscribers filter by the namespace prefix
// ("session.", "chat.", "profile.", "theme.").
const (
	SessionStatusChanged  = "session.status_changed"
	SessionAuthenticated  = "session.authenticated"
	SessionSignedOut      = "session.signed_out"
	SessionDegraded       = "session.degraded"
	SessionProfileUpdated = "session.profile_updated"

	ChatCreated         = "chat.created"
	ChatMessageAppended = "chat.message_appended"
	ChatRead            = "chat.read"
	ChatReset           = "chat.reset"
	ChatMessageQueued   = "chat.message_queued"
	ChatMessageFailed   = "chat.message_failed"

	ProfileChanged = "profile.changed"

	ThemeChanged = "theme.changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
