package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/store"
)

const (
	// DefaultMaxAttempts is how many sends an entry gets before it is marked failed.
	DefaultMaxAttempts = 5

	baseInterval = 2 * time.Second
	maxInterval  = 30 * time.Second
)

// Sink receives acknowledged messages.
type Sink interface {
	AppendIfAbsent(msg domain.Message) bool
}

// Failure is the payload of bus.ChatMessageFailed.
type Failure struct {
	ChatID   string `json:"chat_id"`
	ClientID string `json:"client_id"`
	Error    string `json:"error"`
}

// Sender drains the outbox: queued drafts are re-sent until the backend acknowledges them.
// It starts paused and only sends between Resume and Pause, i.e. while a user is signed in.
type Sender struct {
	db          *store.DB
	chats       backend.Chats
	bus         *bus.Bus
	logger      *zap.Logger
	maxAttempts int
	timeout     time.Duration

	mu     sync.Mutex
	sink   Sink
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}
	active atomic.Bool
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, chats backend.Chats, b *bus.Bus, logger *zap.Logger, timeout time.Duration) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		db:          db,
		chats:       chats,
		bus:         b,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		timeout:     timeout,
		wake:        make(chan struct{}, 1),
	}
}

// Bind sets where acknowledged messages go.
func (s *Sender) Bind(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Enqueue stores a draft for later delivery. The draft's ClientID keys the entry, so
// queueing the same draft twice keeps one entry.
func (s *Sender) Enqueue(chatID string, draft domain.Draft) error {
	if draft.ClientID == "" {
		return fmt.Errorf("enqueue: draft has no client id")
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	if err := s.db.QueueOutbox(draft.ClientID, chatID, string(payload)); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	s.bus.Emit(bus.ChatMessageQueued, map[string]string{"chat_id": chatID, "client_id": draft.ClientID})
	s.poke()
	return nil
}

// Resume lets the loop send again and triggers an immediate pass.
func (s *Sender) Resume() {
	s.active.Store(true)
	s.poke()
}

// Pause stops the loop from sending. Entries stay queued.
func (s *Sender) Pause() {
	s.active.Store(false)
}

// Active reports whether the loop is sending.
func (s *Sender) Active() bool {
	return s.active.Load()
}

func (s *Sender) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start begins polling the outbox for pending messages. Entries left in flight by a
// previous run are queued again first.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueSending(); err != nil {
		s.logger.Error("failed to requeue outbox", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	go s.loop(ctx, done)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Sender) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	interval := baseInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-ctx.Done():
			return
		}

		if !s.active.Load() {
			// Signed out: without a session every send would be rejected as unauthorized.
			interval = baseInterval
			timer.Reset(interval)
			continue
		}
		if s.Flush(ctx) {
			interval = baseInterval
		} else {
			interval = min(interval*2, maxInterval)
		}
		timer.Reset(interval)
	}
}

// Flush sends every queued entry once. It returns false when the backend looked
// unreachable, in which case the remaining entries wait for the next pass.
func (s *Sender) Flush(ctx context.Context) bool {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return false
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return true
		}
		if !s.send(ctx, entry) {
			return false
		}
	}
	return true
}

// send delivers one entry and reports whether the backend was reachable.
func (s *Sender) send(ctx context.Context, entry store.OutboxEntry) bool {
	log := s.logger.With(zap.String("client_msg_id", entry.ClientMsgID), zap.String("chat_id", entry.ChatID))

	var draft domain.Draft
	if err := json.Unmarshal([]byte(entry.Payload), &draft); err != nil {
		log.Error("dropping undecodable outbox entry", zap.Error(err))
		s.fail(entry, err)
		return true
	}
	if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
		log.Error("failed to mark sending", zap.Error(err))
		return true
	}
	attempt := entry.Attempts + 1

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	msg, err := s.chats.InsertMessage(sendCtx, entry.ChatID, draft)
	cancel()
	if err != nil {
		if apperr.IsTransient(err) && attempt < s.maxAttempts {
			log.Warn("send failed, will retry", zap.Int("attempt", attempt), zap.Error(err))
			if mErr := s.db.MarkOutboxRetry(entry.ClientMsgID, err.Error()); mErr != nil {
				log.Error("failed to requeue", zap.Error(mErr))
			}
			return false
		}
		log.Error("send failed", zap.Int("attempt", attempt), zap.Error(err))
		s.fail(entry, err)
		return !apperr.IsTransient(err)
	}

	if err := s.db.MarkOutboxSent(entry.ClientMsgID, msg.ID); err != nil {
		log.Error("failed to mark sent", zap.Error(err))
	}
	if msg.ChatID == "" {
		msg.ChatID = entry.ChatID
	}
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink.AppendIfAbsent(msg)
	}
	log.Info("queued message sent", zap.String("server_msg_id", msg.ID), zap.Int("attempt", attempt))
	return true
}

func (s *Sender) fail(entry store.OutboxEntry, cause error) {
	if err := s.db.MarkOutboxFailed(entry.ClientMsgID, cause.Error()); err != nil {
		s.logger.Error("failed to mark failed", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.bus.Emit(bus.ChatMessageFailed, Failure{ChatID: entry.ChatID, ClientID: entry.ClientMsgID, Error: cause.Error()})
}

// FailQueued gives up on every entry still waiting. Used when the user signs out.
func (s *Sender) FailQueued(reason string) {
	n, err := s.db.FailQueued(reason)
	if err != nil {
		s.logger.Error("failed to drop outbox", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("dropped queued sends", zap.Int64("count", n), zap.String("reason", reason))
	}
}
