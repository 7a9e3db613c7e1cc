package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
)

// Users reports who is signed in.
type Users interface {
	CurrentUserID() string
}

// Directory is the profile cache the engine fills after sign-in.
type Directory interface {
	FetchAll(ctx context.Context, excluding string) []domain.Profile
	SubscribeToChanges(ctx context.Context) error
	Unsubscribe()
}

// Chats is the chat cache the engine loads after sign-in and drops after sign-out.
type Chats interface {
	Initialize(ctx context.Context, currentUserID string)
	Reset()
}

// Outbox holds sends waiting for the backend. It only sends while resumed.
type Outbox interface {
	Resume()
	Pause()
	FailQueued(reason string)
}

// Engine reacts to session transitions on the bus: it bootstraps the profile directory
// and chats and resumes the outbox when a user signs in, and releases them when the user
// signs out.
type Engine struct {
	users    Users
	profiles Directory
	chats    Chats
	outbox   Outbox
	bus      *bus.Bus
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates a new sync engine. outbox may be nil.
func NewEngine(users Users, profiles Directory, chats Chats, outbox Outbox, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		users:    users,
		profiles: profiles,
		chats:    chats,
		outbox:   outbox,
		bus:      b,
		logger:   logger,
	}
}

// Start subscribes to session events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("session.", 64)

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.Handle(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}

// Handle processes one event. Exported so callers can drive the engine synchronously.
func (e *Engine) Handle(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.SessionAuthenticated:
		p, ok := evt.Payload.(domain.Profile)
		if !ok {
			return
		}
		if current := e.users.CurrentUserID(); current != p.ID {
			e.logger.Debug("skipping stale sign-in", zap.String("user_id", p.ID), zap.String("current", current))
			return
		}
		e.bootstrap(ctx, p.ID)
	case bus.SessionDegraded:
		p, ok := evt.Payload.(domain.Profile)
		if !ok {
			return
		}
		// No session: the directory is shown from whatever the backend or seed provides.
		e.profiles.FetchAll(ctx, p.ID)
	case bus.SessionSignedOut:
		e.release()
	}
}

func (e *Engine) bootstrap(ctx context.Context, userID string) {
	profiles := e.profiles.FetchAll(ctx, userID)
	if err := e.profiles.SubscribeToChanges(ctx); err != nil {
		e.logger.Warn("profile changes unavailable", zap.Error(err))
	}
	e.chats.Initialize(ctx, userID)
	if e.outbox != nil {
		e.outbox.Resume()
	}
	e.logger.Info("sync bootstrapped", zap.String("user_id", userID), zap.Int("profiles", len(profiles)))
}

func (e *Engine) release() {
	e.chats.Reset()
	e.profiles.Unsubscribe()
	if e.outbox != nil {
		e.outbox.Pause()
		e.outbox.FailQueued("signed out")
	}
	e.logger.Info("sync released")
}
