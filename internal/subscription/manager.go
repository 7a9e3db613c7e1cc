// Package subscription owns the per-chat push channels.
package subscription

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

// Sink receives pushed messages. Appending must be a no-op when the id is already present.
type Sink interface {
	AppendIfAbsent(msg domain.Message) bool
}

// Names resolves a user id to a display name, returning domain.UnknownSender when unknown.
type Names interface {
	DisplayName(userID string) string
}

// Manager holds at most one channel per chat.
type Manager struct {
	chats  backend.Chats
	names  Names
	logger *zap.Logger

	mu      sync.Mutex
	sink    Sink
	entries map[string]*entry
}

// entry is registered before the channel opens so concurrent Subscribe calls see it.
type entry struct {
	sub backend.Subscription
}

func New(chats backend.Chats, names Names, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		chats:   chats,
		names:   names,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Bind sets where pushed messages go.
func (m *Manager) Bind(sink Sink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// Subscribe opens the push channel for chatID. No-op when one is open or opening.
func (m *Manager) Subscribe(ctx context.Context, chatID, currentUserID string) error {
	m.mu.Lock()
	if _, ok := m.entries[chatID]; ok {
		m.mu.Unlock()
		return nil
	}
	e := &entry{}
	m.entries[chatID] = e
	m.mu.Unlock()

	sub, err := m.chats.OnMessageInsert(ctx, chatID, func(msg domain.Message) {
		m.deliver(chatID, msg)
	})

	m.mu.Lock()
	if m.entries[chatID] != e {
		// Released while opening.
		m.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		return nil
	}
	if err != nil {
		delete(m.entries, chatID)
		m.mu.Unlock()
		m.logger.Warn("open chat channel", zap.String("chat_id", chatID), zap.Error(err))
		return err
	}
	e.sub = sub
	m.mu.Unlock()

	m.logger.Debug("chat channel open", zap.String("chat_id", chatID), zap.String("user_id", currentUserID))
	return nil
}

func (m *Manager) deliver(chatID string, msg domain.Message) {
	if msg.ChatID == "" {
		msg.ChatID = chatID
	}
	if name := m.names.DisplayName(msg.SenderID); name != domain.UnknownSender || msg.SenderName == "" {
		msg.SenderName = name
	}
	if msg.Type == "" {
		msg.Type = domain.MessageText
	}

	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink == nil {
		m.logger.Debug("drop push without sink", zap.String("chat_id", chatID), zap.String("message_id", msg.ID))
		return
	}
	sink.AppendIfAbsent(msg)
}

// Unsubscribe releases the channel for chatID. Safe when none exists.
func (m *Manager) Unsubscribe(chatID string) {
	m.mu.Lock()
	e, ok := m.entries[chatID]
	delete(m.entries, chatID)
	m.mu.Unlock()
	if ok {
		m.closeEntry(chatID, e)
	}
}

// UnsubscribeAll releases every channel before returning.
func (m *Manager) UnsubscribeAll() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()
	for id, e := range entries {
		m.closeEntry(id, e)
	}
}

func (m *Manager) closeEntry(chatID string, e *entry) {
	if e.sub == nil {
		return
	}
	if err := e.sub.Close(); err != nil {
		m.logger.Debug("close chat channel", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// Active returns the chats with an open channel, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for id, e := range m.entries {
		if e.sub != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
