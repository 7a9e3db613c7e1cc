// Package local is the disconnected backend: an in-memory store seeded with fixtures.
// It never performs network I/O.
package local

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/fixture"
	"github.com/matheus3301/chatsync/internal/mode"
)

// Backend implements backend.Backend entirely in memory.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	logger   *zap.Logger
	session  *domain.Session
	profiles map[string]domain.Profile
	chats    map[string]*chat
	byClient map[string]domain.Message
	seeded   bool

	nextListener     int
	sessionListeners map[int]backend.SessionListener
	profileListeners map[int]func(domain.ProfileEvent)
	messageListeners map[string]map[int]func(domain.Message)
}

type chat struct {
	info     domain.Chat
	members  []string
	messages []domain.Message
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a local Backend.
type Option func(*Backend)

// WithClock overrides the time source used for timestamps and fixture history.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a local backend seeded with the fixture directory.
func New(opts ...Option) *Backend {
	b := &Backend{
		now:              time.Now,
		logger:           zap.NewNop(),
		profiles:         make(map[string]domain.Profile),
		chats:            make(map[string]*chat),
		byClient:         make(map[string]domain.Message),
		sessionListeners: make(map[int]backend.SessionListener),
		profileListeners: make(map[int]func(domain.ProfileEvent)),
		messageListeners: make(map[string]map[int]func(domain.Message)),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, p := range fixture.Profiles() {
		p.UpdatedAt = b.now()
		b.profiles[p.ID] = p
	}
	return b
}

func (b *Backend) Mode() mode.Mode { return mode.Local }

func (b *Backend) Close() error { return nil }

// seedLocked installs the fixture team chat the first time a user is known.
func (b *Backend) seedLocked(userID string) {
	if b.seeded || userID == "" {
		return
	}
	b.seeded = true
	now := b.now()
	selfName := domain.UnknownSender
	if p, ok := b.profiles[userID]; ok {
		selfName = p.Username
	}
	history := fixture.GroupHistory(userID, selfName, now)
	created := now
	if len(history) > 0 {
		created = history[0].Timestamp
	}
	b.chats[fixture.GroupChatID] = &chat{
		info:     fixture.GroupChat("", created),
		messages: history,
	}
	b.logger.Debug("seeded fixture chat", zap.String("chat_id", fixture.GroupChatID), zap.Int("messages", len(history)))
}
