// Package backend defines the contract the sync layer uses to reach the authoritative store.
//
// Two implementations exist: remote (HTTP + push channels) and local (fixture-backed,
// in memory). The daemon picks one at construction time.
package backend

import (
	"context"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/mode"
)

// Subscription is a handle on an open push channel.
type Subscription interface {
	Close() error
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Close() error { return f() }

// SessionListener is notified after the backend's session changes. A nil session means
// the session was cleared. Listeners run synchronously on the caller of the change.
type SessionListener func(*domain.Session)

// Auth covers session lifecycle.
type Auth interface {
	// GetSession returns the backend's current session, or nil.
	GetSession(ctx context.Context) (*domain.Session, error)
	SignIn(ctx context.Context, identity, secret string) (*domain.Session, error)
	SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) error
	SignOut(ctx context.Context) error
	// RefreshSession exchanges a renewable credential for a fresh session and adopts it.
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	// OnSessionChange registers fn and returns a function that removes it.
	OnSessionChange(fn SessionListener) (remove func())
}

// Directory covers user profiles.
type Directory interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	CreateProfile(ctx context.Context, userID string, hints domain.ProfileHints) (domain.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) error
	// ListProfiles returns every profile except the one with id excluding (when non-empty).
	ListProfiles(ctx context.Context, excluding string) ([]domain.Profile, error)
	OnProfileChange(ctx context.Context, fn func(domain.ProfileEvent)) (Subscription, error)
}

// Chats covers conversations and messages.
type Chats interface {
	ListChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	// CreateOrGetDirectChat is atomic: concurrent callers for the same pair get the same id.
	CreateOrGetDirectChat(ctx context.Context, userA, userB string) (string, error)
	// ListMessages returns the chat's history ascending by timestamp.
	ListMessages(ctx context.Context, chatID string) ([]domain.Message, error)
	// InsertMessage stores a draft and returns the message as acknowledged by the store.
	InsertMessage(ctx context.Context, chatID string, draft domain.Draft) (domain.Message, error)
	OnMessageInsert(ctx context.Context, chatID string, fn func(domain.Message)) (Subscription, error)
}

// Backend is the full contract.
type Backend interface {
	Auth
	Directory
	Chats
	Mode() mode.Mode
	Close() error
}
