// Package api exposes the daemon over gRPC on the workspace's Unix socket.
//
// The service is registered by hand (see desc.go) and every message is a
// google.protobuf.Struct carrying the JSON form of the types in types.go.
package api

import (
	"context"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/mode"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/theme"
)

// Sessions is the session manager as seen by the API.
type Sessions interface {
	Login(ctx context.Context, identity, secret string) error
	SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) error
	Logout(ctx context.Context) error
	SetStatus(ctx context.Context, st domain.Status) error
	SetUsername(ctx context.Context, name string) error
	CurrentUser() (domain.Profile, bool)
	Authenticated() bool
}

// Chats is the chat registry as seen by the API.
type Chats interface {
	ChatList() []domain.ChatSummary
	Chat(chatID string) (domain.Chat, bool)
	Messages(chatID string) []domain.Message
	ActiveChat() string
	SetActiveChat(chatID string) bool
	CreateOrGetChat(ctx context.Context, counterpartID, displayName, avatarRef, currentUserID string) (string, error)
	SendMessage(ctx context.Context, chatID string, draft domain.Draft) (*domain.Message, error)
}

// Directory is the profile cache as seen by the API.
type Directory interface {
	All() []domain.Profile
	Lookup(ctx context.Context, userID string) (domain.Profile, error)
	ResolveByUsername(name string) (domain.Profile, bool)
}

// Themes owns the theme preference.
type Themes interface {
	Current() theme.Theme
	Set(t theme.Theme) error
}

// Deps bundles what the service needs.
type Deps struct {
	Workspace string
	Mode      mode.Mode
	Sessions  Sessions
	Chats     Chats
	Directory Directory
	Themes    Themes
	Status    *status.Machine
	Bus       *bus.Bus
}

// Service implements chatsync.v1.ChatSync.
type Service struct {
	deps      Deps
	startedAt time.Time
}

// NewService creates the daemon's RPC service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps, startedAt: time.Now()}
}
