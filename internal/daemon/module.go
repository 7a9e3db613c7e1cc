package daemon

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/backend/local"
	"github.com/matheus3301/chatsync/internal/backend/remote"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chats"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/mode"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/profiles"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/snapshot"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/subscription"
	intsync "github.com/matheus3301/chatsync/internal/sync"
	"github.com/matheus3301/chatsync/internal/theme"
	"github.com/matheus3301/chatsync/internal/workspace"
)

// Params holds the resolved workspace configuration passed to the fx module.
type Params struct {
	Workspace  string
	Config     *config.Config
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideSnapshots,
			provideBackend,
			provideThemes,
			provideProfiles,
			provideSubscriptions,
			provideSender,
			provideRegistry,
			provideSessions,
			provideSyncEngine,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(workspace.LogPath(p.Workspace), p.Workspace, p.Config.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus, logger *zap.Logger) *status.Machine {
	return status.NewMachine(b, logger)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := workspace.EnsureDir(p.Workspace); err != nil {
		return nil, err
	}
	logger.Info("acquiring workspace lock", zap.String("workspace", p.Workspace))
	l, err := lock.Acquire(workspace.Dir(p.Workspace))
	if err != nil {
		return nil, err
	}
	logger.Info("workspace lock acquired")
	return l, nil
}

// provideStore takes the lock so the state file is never opened by a second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := workspace.StatePath(p.Workspace)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

func provideSnapshots(db *store.DB) *snapshot.Store {
	return snapshot.New(db)
}

// provideBackend picks the backend once for the process lifetime.
func provideBackend(p Params, logger *zap.Logger) (backend.Backend, error) {
	if mode.Select(p.Config.Remote) == mode.Live {
		c, err := remote.New(p.Config.Remote, remote.WithLogger(logger.Named("remote")))
		if err != nil {
			return nil, err
		}
		logger.Info("live mode", zap.String("endpoint", p.Config.Remote.Endpoint), zap.String("realtime", c.RealtimeURL()))
		return c, nil
	}
	logger.Info("local mode: remote store not configured, using in-memory backend")
	return local.New(local.WithLogger(logger.Named("local"))), nil
}

func provideThemes(snaps *snapshot.Store, b *bus.Bus, logger *zap.Logger) *theme.Manager {
	return theme.NewManager(snaps, b, logger, os.Getenv)
}

func provideProfiles(p Params, be backend.Backend, b *bus.Bus, logger *zap.Logger) *profiles.Store {
	return profiles.New(be, b, logger.Named("profiles"), p.Config.Timeouts.Fetch.Duration)
}

func provideSubscriptions(be backend.Backend, ps *profiles.Store, logger *zap.Logger) *subscription.Manager {
	return subscription.New(be, ps, logger.Named("subscriptions"))
}

func provideSender(p Params, db *store.DB, be backend.Backend, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, be, b, logger.Named("outbox"), p.Config.Timeouts.Fetch.Duration)
}

// provideRegistry binds the push and outbox sinks back to the registry. Drafts are only
// queued in live mode; the local backend never fails transiently.
func provideRegistry(p Params, be backend.Backend, ps *profiles.Store, subs *subscription.Manager, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *chats.Registry {
	var queue chats.Queuer
	if be.Mode() == mode.Live {
		queue = sender
	}
	reg := chats.NewRegistry(be, ps, subs, queue, b, logger.Named("chats"), p.Config.Timeouts.Fetch.Duration)
	subs.Bind(reg)
	sender.Bind(reg)
	return reg
}

func provideSessions(p Params, be backend.Backend, snaps *snapshot.Store, ps *profiles.Store, reg *chats.Registry, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *session.Manager {
	return session.New(session.Config{
		Auth:      be,
		Directory: be,
		Snapshots: snaps,
		Profiles:  ps,
		Chats:     reg,
		Status:    machine,
		Bus:       b,
		Logger:    logger.Named("session"),
		Timeout:   p.Config.Timeouts.Session.Duration,
	})
}

func provideSyncEngine(sessions *session.Manager, ps *profiles.Store, reg *chats.Registry, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(sessions, ps, reg, sender, b, logger.Named("sync"))
}

func provideService(p Params, be backend.Backend, sessions *session.Manager, reg *chats.Registry, ps *profiles.Store, themes *theme.Manager, machine *status.Machine, b *bus.Bus) *api.Service {
	return api.NewService(api.Deps{
		Workspace: p.Workspace,
		Mode:      be.Mode(),
		Sessions:  sessions,
		Chats:     reg,
		Directory: ps,
		Themes:    themes,
		Status:    machine,
		Bus:       b,
	})
}

type lifecycleParams struct {
	fx.In

	Server   *Server
	Lock     *lock.Lock
	DB       *store.DB
	Backend  backend.Backend
	Sessions *session.Manager
	Profiles *profiles.Store
	Chats    *chats.Registry
	Engine   *intsync.Engine
	Sender   *outbox.Sender
	Logger   *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, p lifecycleParams) {
	logger := p.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The engine must be listening before the session can authenticate.
			p.Engine.Start(context.Background())

			go func() {
				if err := p.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			p.Sender.Start(context.Background())

			// Restoration may hit the network; clients see RESTORING meanwhile.
			go p.Sessions.Initialize(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Sender.Stop()
			p.Engine.Stop()
			p.Sessions.Close()
			p.Chats.Reset()
			p.Profiles.Unsubscribe()
			if err := p.Backend.Close(); err != nil {
				logger.Warn("error closing backend", zap.Error(err))
			}
			p.Server.Stop(ctx)
			if err := p.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := p.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
