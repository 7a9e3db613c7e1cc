package local

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

// DirectChatID is the id of the direct chat between two users, independent of argument order.
func DirectChatID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return "direct:" + userA + ":" + userB
}

func (b *Backend) ListChatsForUser(_ context.Context, userID string) ([]domain.Chat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seedLocked(userID)

	var out []domain.Chat
	for _, c := range b.chats {
		if c.info.IsGroup {
			info := c.info
			info.CurrentUserID = userID
			out = append(out, info)
			continue
		}
		counterpart, ok := other(c.members, userID)
		if !ok {
			continue
		}
		out = append(out, b.directViewLocked(c, userID, counterpart))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) CreateOrGetDirectChat(_ context.Context, userA, userB string) (string, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", apperr.Errorf(apperr.NotFound, "create direct chat", "need two distinct users")
	}
	id := DirectChatID(userA, userB)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.chats[id]; !ok {
		b.chats[id] = &chat{
			info:    domain.Chat{ID: id, CreatedAt: b.now()},
			members: []string{userA, userB},
		}
		b.logger.Debug("created direct chat", zap.String("chat_id", id))
	}
	return id, nil
}

func (b *Backend) ListMessages(_ context.Context, chatID string) ([]domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.chats[chatID]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "list messages", "no chat %s", chatID)
	}
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out, nil
}

// InsertMessage assigns a fresh id and the current time. A repeated ClientID returns the
// message stored the first time.
func (b *Backend) InsertMessage(_ context.Context, chatID string, draft domain.Draft) (domain.Message, error) {
	draft = draft.Normalize()

	b.mu.Lock()
	c, ok := b.chats[chatID]
	if !ok {
		b.mu.Unlock()
		return domain.Message{}, apperr.Errorf(apperr.NotFound, "insert message", "no chat %s", chatID)
	}
	if draft.ClientID != "" {
		if m, dup := b.byClient[draft.ClientID]; dup {
			b.mu.Unlock()
			return m, nil
		}
	}
	msg := domain.Message{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SenderID:   draft.SenderID,
		SenderName: draft.SenderName,
		Text:       draft.Text,
		Timestamp:  b.now(),
		Type:       draft.Type,
		ImageRef:   draft.ImageRef,
	}
	c.messages = append(c.messages, msg)
	if draft.ClientID != "" {
		b.byClient[draft.ClientID] = msg
	}
	fns := make([]func(domain.Message), 0, len(b.messageListeners[chatID]))
	for _, fn := range b.messageListeners[chatID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
	return msg, nil
}

func (b *Backend) OnMessageInsert(_ context.Context, chatID string, fn func(domain.Message)) (backend.Subscription, error) {
	b.mu.Lock()
	id := b.nextListener
	b.nextListener++
	if b.messageListeners[chatID] == nil {
		b.messageListeners[chatID] = make(map[int]func(domain.Message))
	}
	b.messageListeners[chatID][id] = fn
	b.mu.Unlock()

	return backend.SubscriptionFunc(func() error {
		b.mu.Lock()
		delete(b.messageListeners[chatID], id)
		if len(b.messageListeners[chatID]) == 0 {
			delete(b.messageListeners, chatID)
		}
		b.mu.Unlock()
		return nil
	}), nil
}

// ChannelCount returns the number of open message channels for chatID.
func (b *Backend) ChannelCount(chatID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messageListeners[chatID])
}

func (b *Backend) directViewLocked(c *chat, userID, counterpart string) domain.Chat {
	info := c.info
	info.ParticipantUserID = counterpart
	info.CurrentUserID = userID
	if p, ok := b.profiles[counterpart]; ok {
		info.DisplayName = p.Username
		info.AvatarRef = p.AvatarRef
	}
	return info
}

func other(members []string, userID string) (string, bool) {
	if len(members) != 2 {
		return "", false
	}
	switch userID {
	case members[0]:
		return members[1], true
	case members[1]:
		return members[0], true
	}
	return "", false
}
