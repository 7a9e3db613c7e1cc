package store

import "time"

// Outbox entry statuses.
const (
	OutboxQueued  = "queued"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxEntry is a live-mode send waiting for the backend to acknowledge it.
// Payload is the JSON-encoded draft.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatID       string
	Payload      string
	Status       string
	Attempts     int
	ErrorMessage string
	ServerMsgID  string
	CreatedAt    time.Time
}
