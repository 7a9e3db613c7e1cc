package domain

import (
	"net/url"
	"strings"
	"time"
)

// Status is a user's presence.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Valid reports whether s is a known presence value.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// MessageType enumerates message payload kinds.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// UnknownSender is shown when a sender cannot be resolved to a profile.
const UnknownSender = "Unknown"

// Session is an authenticated session with the backend.
type Session struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Identity     string    `json:"identity,omitempty"`
}

// Renewable reports whether the session carries credentials that can be exchanged for a fresh session.
func (s *Session) Renewable() bool {
	return s != nil && s.RefreshToken != ""
}

// Expired reports whether the access token is past its expiry. A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// Profile is a user directory entry.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarRef string    `json:"avatar_ref"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileHints carries optional values used when a profile is created.
type ProfileHints struct {
	Username  string `json:"username,omitempty"`
	AvatarRef string `json:"avatar_ref,omitempty"`
}

// ProfileUpdate is a partial profile mutation. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Status   *Status `json:"status,omitempty"`
}

// ProfileEventKind is the kind of a pushed directory change.
type ProfileEventKind string

const (
	ProfileInserted ProfileEventKind = "insert"
	ProfileUpdated  ProfileEventKind = "update"
	ProfileDeleted  ProfileEventKind = "delete"
)

// ProfileEvent is a pushed directory change.
type ProfileEvent struct {
	Kind    ProfileEventKind `json:"kind"`
	Profile Profile          `json:"profile"`
}

// Chat is a direct or group conversation.
// Direct chats carry the counterpart in ParticipantUserID.
type Chat struct {
	ID                string    `json:"id"`
	IsGroup           bool      `json:"is_group"`
	DisplayName       string    `json:"display_name"`
	AvatarRef         string    `json:"avatar_ref"`
	CreatedAt         time.Time `json:"created_at"`
	ParticipantUserID string    `json:"participant_user_id,omitempty"`
	CurrentUserID     string    `json:"current_user_id,omitempty"`
}

// Message is a chat message. Only Read ever changes after creation.
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chat_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	Read       bool        `json:"read"`
	Type       MessageType `json:"type"`
	ImageRef   string      `json:"image_ref,omitempty"`
}

// Draft is an outgoing message before the backend has assigned it an id.
type Draft struct {
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name,omitempty"`
	Text       string      `json:"text"`
	Type       MessageType `json:"type,omitempty"`
	ImageRef   string      `json:"image_ref,omitempty"`
	ClientID   string      `json:"client_id,omitempty"`
}

// Normalize fills defaulted fields.
func (d Draft) Normalize() Draft {
	if d.Type == "" {
		d.Type = MessageText
	}
	if d.SenderName == "" {
		d.SenderName = UnknownSender
	}
	return d
}

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	Chat
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

// DefaultAvatar returns a generated avatar URL for a display name.
func DefaultAvatar(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "?"
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}
