package api

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/chatsync/internal/domain"
)

// StatusInfo describes the daemon and its session.
type StatusInfo struct {
	Workspace     string `json:"workspace"`
	Mode          string `json:"mode"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Username      string `json:"username,omitempty"`
	Presence      string `json:"presence,omitempty"`
	ActiveChat    string `json:"active_chat,omitempty"`
	Chats         int    `json:"chats"`
	Theme         string `json:"theme"`
	UptimeMs      int64  `json:"uptime_ms"`
}

// Credentials is the body of Login and SignUp. Username and AvatarRef are sign-up hints.
type Credentials struct {
	Identity  string `json:"identity"`
	Secret    string `json:"secret"`
	Username  string `json:"username,omitempty"`
	AvatarRef string `json:"avatar_ref,omitempty"`
}

type PresenceRequest struct {
	Status domain.Status `json:"status"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

type ProfilesResponse struct {
	Profiles []domain.Profile `json:"profiles"`
}

type ChatsResponse struct {
	Chats []domain.ChatSummary `json:"chats"`
}

// OpenChatRequest names the counterpart by id or, failing that, by username.
type OpenChatRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

type ChatRequest struct {
	ChatID string `json:"chat_id"`
}

type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type SendRequest struct {
	ChatID   string             `json:"chat_id"`
	Text     string             `json:"text"`
	Type     domain.MessageType `json:"type,omitempty"`
	ImageRef string             `json:"image_ref,omitempty"`
}

// SendResponse reports how a send ended. Queued means the backend was unreachable and
// the outbox will retry; Dropped means the chat is not known.
type SendResponse struct {
	Message *domain.Message `json:"message,omitempty"`
	Queued  bool            `json:"queued,omitempty"`
	Dropped bool            `json:"dropped,omitempty"`
}

type ThemeMessage struct {
	Theme string `json:"theme"`
}

type WatchRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// Event is a bus event as seen by clients.
type Event struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
