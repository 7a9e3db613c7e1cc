// Package chats is the client-side cache of chats and their message histories.
package chats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
)

// ErrQueued is returned by SendMessage when the backend was unreachable and the draft
// went to the outbox instead.
var ErrQueued = errors.New("message queued for retry")

// ErrReset is returned when the cache was cleared (sign-out) while an operation ran.
var ErrReset = errors.New("chat cache reset")

// Profiles resolves chat counterparts and message senders.
type Profiles interface {
	Lookup(ctx context.Context, userID string) (domain.Profile, error)
	DisplayName(userID string) string
}

// Subscriber opens and releases per-chat push channels.
type Subscriber interface {
	Subscribe(ctx context.Context, chatID, currentUserID string) error
	UnsubscribeAll()
}

// Queuer stores drafts that failed transiently so they can be sent later.
type Queuer interface {
	Enqueue(chatID string, draft domain.Draft) error
}

// ReadMarked is the payload of bus.ChatRead.
type ReadMarked struct {
	ChatID string `json:"chat_id"`
	Count  int    `json:"count"`
}

// Registry owns every cached chat. All reads return copies.
type Registry struct {
	backend      backend.Chats
	profiles     Profiles
	subs         Subscriber
	queue        Queuer
	bus          *bus.Bus
	logger       *zap.Logger
	fetchTimeout time.Duration
	now          func() time.Time

	// lifecycle serializes Reset against opening a channel.
	lifecycle sync.Mutex

	mu          sync.RWMutex
	gen         uint64
	userID      string
	loading     bool
	initialized bool
	chats       map[string]*entry
	active      string
}

type entry struct {
	chat     domain.Chat
	messages []domain.Message
	ids      map[string]struct{}
}

// NewRegistry builds an empty registry. queue may be nil, in which case transient send
// failures are returned to the caller.
func NewRegistry(chats backend.Chats, profiles Profiles, subs Subscriber, queue Queuer, b *bus.Bus, logger *zap.Logger, fetchTimeout time.Duration) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Registry{
		backend:      chats,
		profiles:     profiles,
		subs:         subs,
		queue:        queue,
		bus:          b,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		chats:        make(map[string]*entry),
	}
}

// Initialize loads the chats of currentUserID with their histories and subscribes to each.
// Repeated calls for the same user do nothing once a load has succeeded; a failed load is
// retried by the next call. Failures are logged and partial state kept.
func (r *Registry) Initialize(ctx context.Context, currentUserID string) {
	r.mu.Lock()
	if r.userID == currentUserID && (r.initialized || r.loading) {
		r.mu.Unlock()
		return
	}
	if r.userID != "" && r.userID != currentUserID {
		// Another user's chats are still cached.
		r.mu.Unlock()
		r.Reset()
		r.mu.Lock()
	}
	r.userID = currentUserID
	r.loading = true
	gen := r.gen
	r.mu.Unlock()

	listCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	list, err := r.backend.ListChatsForUser(listCtx, currentUserID)
	cancel()
	if err != nil {
		r.finishLoad(gen, false)
		r.logger.Warn("list chats", zap.String("user_id", currentUserID), zap.Error(err))
		return
	}

	for _, c := range list {
		if !r.current(gen) {
			r.logger.Debug("chat load abandoned after reset", zap.String("user_id", currentUserID))
			return
		}
		if c.CurrentUserID == "" {
			c.CurrentUserID = currentUserID
		}
		if !c.IsGroup && c.ParticipantUserID != "" {
			r.fillCounterpart(ctx, &c)
		}
		if _, ok := r.cacheGen(gen, c); !ok {
			return
		}
		r.loadHistory(ctx, gen, c.ID)
		r.subscribe(ctx, gen, c.ID, currentUserID)
	}
	if r.finishLoad(gen, true) {
		r.logger.Info("chats initialized", zap.String("user_id", currentUserID), zap.Int("chats", len(list)))
	}
}

// finishLoad ends the load started at gen and reports whether it was still current.
func (r *Registry) finishLoad(gen uint64, ok bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return false
	}
	r.loading = false
	r.initialized = ok
	return true
}

func (r *Registry) current(gen uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen == gen
}

// subscribe opens chatID's channel unless the cache was reset after gen was taken. It
// holds the lifecycle lock so Reset cannot slip between the check and the open.
func (r *Registry) subscribe(ctx context.Context, gen uint64, chatID, userID string) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if !r.current(gen) {
		return
	}
	if err := r.subs.Subscribe(ctx, chatID, userID); err != nil {
		r.logger.Warn("subscribe chat", zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (r *Registry) fillCounterpart(ctx context.Context, c *domain.Chat) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	p, err := r.profiles.Lookup(ctx, c.ParticipantUserID)
	if err != nil {
		r.logger.Debug("resolve chat counterpart", zap.String("chat_id", c.ID), zap.Error(err))
		if c.DisplayName == "" {
			c.DisplayName = domain.UnknownSender
		}
		return
	}
	c.DisplayName = p.Username
	if p.AvatarRef != "" {
		c.AvatarRef = p.AvatarRef
	}
}

func (r *Registry) loadHistory(ctx context.Context, gen uint64, chatID string) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	history, err := r.backend.ListMessages(ctx, chatID)
	if err != nil {
		r.logger.Warn("load history", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.chats[chatID]
	if !ok || r.gen != gen {
		return
	}
	for _, m := range history {
		e.insert(r.withSender(m))
	}
}

// cacheGen adds c unless already present. ok is false when the cache was reset after gen
// was taken, in which case nothing is added.
func (r *Registry) cacheGen(gen uint64, c domain.Chat) (added, ok bool) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return false, false
	}
	if _, exists := r.chats[c.ID]; exists {
		r.mu.Unlock()
		return false, true
	}
	r.chats[c.ID] = &entry{chat: c, ids: make(map[string]struct{})}
	r.mu.Unlock()
	r.bus.Emit(bus.ChatCreated, c)
	return true, true
}

// CreateOrGetChat returns the direct chat with counterpartID, creating it on the backend
// when it is not cached yet. The chat is cached and subscribed.
func (r *Registry) CreateOrGetChat(ctx context.Context, counterpartID, displayName, avatarRef, currentUserID string) (string, error) {
	if id, ok := r.directChat(counterpartID); ok {
		return id, nil
	}
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	id, err := r.backend.CreateOrGetDirectChat(opCtx, currentUserID, counterpartID)
	cancel()
	if err != nil {
		return "", fmt.Errorf("create chat with %s: %w", counterpartID, err)
	}

	c := domain.Chat{
		ID:                id,
		DisplayName:       displayName,
		AvatarRef:         avatarRef,
		CreatedAt:         r.now(),
		ParticipantUserID: counterpartID,
		CurrentUserID:     currentUserID,
	}
	if c.DisplayName == "" {
		r.fillCounterpart(ctx, &c)
	}
	if c.AvatarRef == "" {
		c.AvatarRef = domain.DefaultAvatar(c.DisplayName)
	}
	added, ok := r.cacheGen(gen, c)
	if !ok {
		return "", fmt.Errorf("create chat with %s: %w", counterpartID, ErrReset)
	}
	if added {
		r.loadHistory(ctx, gen, id)
	}
	r.subscribe(ctx, gen, id, currentUserID)
	return id, nil
}

func (r *Registry) directChat(counterpartID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, e := range r.chats {
		if !e.chat.IsGroup && e.chat.ParticipantUserID == counterpartID {
			return id, true
		}
	}
	return "", false
}

// SendMessage inserts draft into chatID and appends the acknowledged message. A message
// for an unknown chat is dropped and (nil, nil) returned.
func (r *Registry) SendMessage(ctx context.Context, chatID string, draft domain.Draft) (*domain.Message, error) {
	r.mu.RLock()
	_, ok := r.chats[chatID]
	userID := r.userID
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("drop message for unknown chat", zap.String("chat_id", chatID))
		return nil, nil
	}

	if draft.SenderID == "" {
		draft.SenderID = userID
	}
	if draft.SenderName == "" {
		draft.SenderName = r.profiles.DisplayName(draft.SenderID)
	}
	if draft.ClientID == "" {
		draft.ClientID = uuid.NewString()
	}
	draft = draft.Normalize()

	opCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	msg, err := r.backend.InsertMessage(opCtx, chatID, draft)
	cancel()
	if err != nil {
		if apperr.IsTransient(err) && r.queue != nil {
			if qerr := r.queue.Enqueue(chatID, draft); qerr != nil {
				return nil, fmt.Errorf("queue message: %w", qerr)
			}
			r.logger.Info("message queued", zap.String("chat_id", chatID), zap.String("client_id", draft.ClientID), zap.Error(err))
			return nil, ErrQueued
		}
		return nil, fmt.Errorf("send message: %w", err)
	}

	if msg.ChatID == "" {
		msg.ChatID = chatID
	}
	if msg.SenderName == "" {
		msg.SenderName = draft.SenderName
	}
	r.AppendIfAbsent(msg)
	return &msg, nil
}

// AppendIfAbsent inserts msg into its chat unless a message with the same id is already
// there. Messages for chats that are not cached are dropped.
func (r *Registry) AppendIfAbsent(msg domain.Message) bool {
	r.mu.Lock()
	e, ok := r.chats[msg.ChatID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	msg = r.withSender(msg)
	added := e.insert(msg)
	r.mu.Unlock()

	if added {
		r.bus.Emit(bus.ChatMessageAppended, msg)
	}
	return added
}

func (r *Registry) withSender(m domain.Message) domain.Message {
	if m.SenderName == "" {
		m.SenderName = r.profiles.DisplayName(m.SenderID)
	}
	if m.Type == "" {
		m.Type = domain.MessageText
	}
	return m
}

// insert places m after every message with a timestamp not after its own.
func (e *entry) insert(m domain.Message) bool {
	if _, dup := e.ids[m.ID]; dup {
		return false
	}
	i := sort.Search(len(e.messages), func(i int) bool {
		return e.messages[i].Timestamp.After(m.Timestamp)
	})
	e.messages = append(e.messages, domain.Message{})
	copy(e.messages[i+1:], e.messages[i:])
	e.messages[i] = m
	e.ids[m.ID] = struct{}{}
	return true
}

// SetActiveChat records chatID as the open chat and marks every message not authored by
// the chat's current user as read. An empty id clears the active chat.
func (r *Registry) SetActiveChat(chatID string) bool {
	r.mu.Lock()
	if chatID == "" {
		r.active = ""
		r.mu.Unlock()
		return true
	}
	e, ok := r.chats[chatID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.active = chatID
	self := r.selfLocked(e)
	marked := 0
	for i := range e.messages {
		if !e.messages[i].Read && e.messages[i].SenderID != self {
			e.messages[i].Read = true
			marked++
		}
	}
	r.mu.Unlock()

	if marked > 0 {
		r.bus.Emit(bus.ChatRead, ReadMarked{ChatID: chatID, Count: marked})
	}
	return true
}

func (r *Registry) selfLocked(e *entry) string {
	if e.chat.CurrentUserID != "" {
		return e.chat.CurrentUserID
	}
	return r.userID
}

// ChatList returns one summary per chat, most recent activity first.
func (r *Registry) ChatList() []domain.ChatSummary {
	r.mu.RLock()
	out := make([]domain.ChatSummary, 0, len(r.chats))
	for _, e := range r.chats {
		s := domain.ChatSummary{Chat: e.chat}
		if n := len(e.messages); n > 0 {
			last := e.messages[n-1]
			s.LastMessage = preview(last)
			s.LastMessageAt = last.Timestamp
		}
		self := r.selfLocked(e)
		for _, m := range e.messages {
			if !m.Read && m.SenderID != self {
				s.UnreadCount++
			}
		}
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ti, tj := activity(out[i]), activity(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func activity(s domain.ChatSummary) time.Time {
	if !s.LastMessageAt.IsZero() {
		return s.LastMessageAt
	}
	return s.CreatedAt
}

func preview(m domain.Message) string {
	if m.Type == domain.MessageImage && m.Text == "" {
		return "[image]"
	}
	return m.Text
}

// Messages returns the history of chatID in display order.
func (r *Registry) Messages(chatID string) []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]domain.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

func (r *Registry) Chat(chatID string) (domain.Chat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.chats[chatID]
	if !ok {
		return domain.Chat{}, false
	}
	return e.chat, true
}

func (r *Registry) ActiveChat() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Reset empties the cache and releases every subscription before returning. A load still
// in flight is abandoned and opens no further channels.
func (r *Registry) Reset() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	r.gen++
	n := len(r.chats)
	r.chats = make(map[string]*entry)
	r.active = ""
	r.userID = ""
	r.loading = false
	r.initialized = false
	r.mu.Unlock()

	r.subs.UnsubscribeAll()

	r.logger.Debug("chat cache reset", zap.Int("chats", n))
	r.bus.Emit(bus.ChatReset, nil)
}
