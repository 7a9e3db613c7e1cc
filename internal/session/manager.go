// Package session owns the authenticated session and the current user's profile.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/status"
)

// defaultUsername is used when neither a hint nor the login identity yields a name.
const defaultUsername = "user"

// Snapshots persists the session and profile slots.
type Snapshots interface {
	LoadSession() (*domain.Session, error)
	SaveSession(sess *domain.Session) error
	LoadProfile() (*domain.Profile, error)
	SaveProfile(p domain.Profile) error
	Clear() error
}

// ProfileCache receives the current user's profile whenever it changes.
type ProfileCache interface {
	Upsert(p domain.Profile) bool
}

// ChatReleaser drops every chat subscription and the chat cache.
type ChatReleaser interface {
	Reset()
}

// Config bundles the Manager's collaborators.
type Config struct {
	Auth      backend.Auth
	Directory backend.Directory
	Snapshots Snapshots
	Profiles  ProfileCache
	Chats     ChatReleaser
	Status    *status.Machine
	Bus       *bus.Bus
	Logger    *zap.Logger
	// Timeout bounds each session exchange. Zero means 10s.
	Timeout time.Duration
}

// Manager holds at most one live session.
type Manager struct {
	auth    backend.Auth
	dir     backend.Directory
	snaps   Snapshots
	cache   ProfileCache
	chats   ChatReleaser
	status  *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	session *domain.Session
	user    *domain.Profile
	// hints are consumed by the next profile bootstrap.
	hints domain.ProfileHints
	// restored is the persisted session being renewed; it supplies the identity the
	// renewed session may lack.
	restored *domain.Session
	remove   func()
	// unwatch stops following pushed profile changes.
	unwatch func()
}

func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	st := cfg.Status
	if st == nil {
		st = status.NewMachine(cfg.Bus, logger)
	}
	return &Manager{
		auth:    cfg.Auth,
		dir:     cfg.Directory,
		snaps:   cfg.Snapshots,
		cache:   cfg.Profiles,
		chats:   cfg.Chats,
		status:  st,
		bus:     cfg.Bus,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Initialize restores the previous session if possible and installs the session listener.
// It never fails: anything that goes wrong leaves the manager signed out or degraded.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	if m.remove == nil {
		m.remove = m.auth.OnSessionChange(m.onSessionChange)
	}
	if m.unwatch == nil && m.bus != nil {
		m.unwatch = m.watchProfiles()
	}
	m.mu.Unlock()

	m.setState(status.Restoring, "")

	getCtx, cancel := context.WithTimeout(ctx, m.timeout)
	sess, err := m.auth.GetSession(getCtx)
	cancel()
	if err != nil {
		m.logger.Warn("get session", zap.Error(err))
	}
	if sess != nil {
		m.adopt(ctx, sess)
		return
	}

	blob, err := m.snaps.LoadSession()
	if err != nil {
		m.logger.Warn("discarding unreadable session snapshot", zap.Error(err))
	}
	if blob == nil {
		m.setState(status.SignedOut, "no stored session")
		return
	}
	if !blob.Renewable() {
		m.degrade(blob.UserID, "stored session cannot be renewed")
		return
	}

	m.mu.Lock()
	m.restored = blob
	m.mu.Unlock()
	refreshCtx, cancel := context.WithTimeout(ctx, m.timeout)
	fresh, err := m.auth.RefreshSession(refreshCtx, blob.RefreshToken)
	cancel()
	m.mu.Lock()
	m.restored = nil
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("silent restoration failed", zap.String("user_id", blob.UserID), zap.Error(err))
		m.degrade(blob.UserID, err.Error())
		return
	}
	if fresh.Identity == "" {
		fresh.Identity = blob.Identity
	}
	m.adopt(ctx, fresh)
}

// degrade shows the persisted profile without a session.
func (m *Manager) degrade(userID, reason string) {
	p, err := m.snaps.LoadProfile()
	if err != nil {
		m.logger.Warn("discarding unreadable profile snapshot", zap.Error(err))
	}
	if p == nil || p.ID != userID {
		m.setState(status.SignedOut, reason)
		return
	}
	m.mu.Lock()
	m.user = p
	m.mu.Unlock()
	m.setState(status.Degraded, reason)
	m.bus.Emit(bus.SessionDegraded, *p)
}

func (m *Manager) onSessionChange(sess *domain.Session) {
	if sess == nil {
		m.clearLocal("session cleared")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	m.adopt(ctx, sess)
}

// adopt installs sess, resolves its profile and persists both. A session whose access
// token is already held is ignored.
func (m *Manager) adopt(ctx context.Context, sess *domain.Session) {
	m.mu.Lock()
	if m.session != nil && m.session.AccessToken == sess.AccessToken {
		m.mu.Unlock()
		return
	}
	cp := *sess
	if cp.Identity == "" {
		for _, prev := range []*domain.Session{m.session, m.restored} {
			if prev != nil && prev.UserID == cp.UserID {
				cp.Identity = prev.Identity
				break
			}
		}
	}
	m.session = &cp
	hints := m.hints
	m.hints = domain.ProfileHints{}
	m.mu.Unlock()

	p := m.resolveProfile(ctx, &cp, hints)

	m.mu.Lock()
	if m.session == nil || m.session.AccessToken != cp.AccessToken {
		// Replaced or cleared while resolving.
		m.mu.Unlock()
		return
	}
	m.user = &p
	m.mu.Unlock()

	if err := m.snaps.SaveSession(&cp); err != nil {
		m.logger.Warn("persist session", zap.Error(err))
	}
	if err := m.snaps.SaveProfile(p); err != nil {
		m.logger.Warn("persist profile", zap.Error(err))
	}
	m.cacheProfile(p)
	m.setState(status.Ready, "")
	m.logger.Info("session adopted", zap.String("user_id", p.ID), zap.String("username", p.Username))
	m.bus.Emit(bus.SessionAuthenticated, p)
}

// resolveProfile gets or creates the profile of sess. When the directory is unreachable a
// provisional profile is built from the same precedence rules.
func (m *Manager) resolveProfile(ctx context.Context, sess *domain.Session, hints domain.ProfileHints) domain.Profile {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	p, err := m.dir.GetProfile(ctx, sess.UserID)
	if err == nil {
		return p
	}
	hints.Username = m.bootstrapName(sess, hints.Username)
	if !apperr.IsNotFound(err) {
		m.logger.Warn("profile lookup failed, using provisional profile", zap.String("user_id", sess.UserID), zap.Error(err))
		return m.provisional(sess.UserID, hints)
	}

	p, err = m.dir.CreateProfile(ctx, sess.UserID, hints)
	if err != nil {
		m.logger.Warn("create profile", zap.String("user_id", sess.UserID), zap.Error(err))
		return m.provisional(sess.UserID, hints)
	}
	m.logger.Info("profile created", zap.String("user_id", p.ID), zap.String("username", p.Username))
	return p
}

// bootstrapName picks the username for a new profile: explicit hint, then the persisted
// snapshot of the same user, then the identity's local part, then defaultUsername.
func (m *Manager) bootstrapName(sess *domain.Session, hint string) string {
	if name := strings.TrimSpace(hint); name != "" {
		return name
	}
	if snap, err := m.snaps.LoadProfile(); err == nil && snap != nil && snap.ID == sess.UserID && snap.Username != "" {
		return snap.Username
	}
	if local, _, _ := strings.Cut(sess.Identity, "@"); strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return defaultUsername
}

func (m *Manager) provisional(userID string, hints domain.ProfileHints) domain.Profile {
	avatar := hints.AvatarRef
	if avatar == "" {
		avatar = domain.DefaultAvatar(hints.Username)
	}
	return domain.Profile{
		ID:        userID,
		Username:  hints.Username,
		AvatarRef: avatar,
		Status:    domain.StatusOffline,
	}
}

// clearLocal forgets the session and wipes the persisted slots.
func (m *Manager) clearLocal(reason string) {
	m.mu.Lock()
	had := m.session != nil || m.user != nil
	m.session = nil
	m.user = nil
	m.mu.Unlock()

	if err := m.snaps.Clear(); err != nil {
		m.logger.Warn("clear snapshot", zap.Error(err))
	}
	m.setState(status.SignedOut, reason)
	if had {
		m.bus.Emit(bus.SessionSignedOut, nil)
	}
}

// Login signs in and bootstraps the user's profile, then marks the user online.
func (m *Manager) Login(ctx context.Context, identity, secret string) error {
	prev := m.status.Current()
	m.setState(status.Authenticating, "")

	signCtx, cancel := context.WithTimeout(ctx, m.timeout)
	sess, err := m.auth.SignIn(signCtx, identity, secret)
	cancel()
	if err != nil {
		m.mu.Lock()
		m.hints = domain.ProfileHints{}
		m.mu.Unlock()
		if prev == status.Degraded {
			m.setState(status.Degraded, err.Error())
		} else {
			m.setState(status.SignedOut, err.Error())
		}
		return fmt.Errorf("login: %w", err)
	}
	if sess.Identity == "" {
		sess.Identity = strings.TrimSpace(identity)
	}
	m.adopt(ctx, sess)

	if err := m.SetStatus(ctx, domain.StatusOnline); err != nil {
		m.logger.Warn("mark online", zap.Error(err))
	}
	return nil
}

// SignUp registers identity and logs in. hints take precedence when the profile is created.
func (m *Manager) SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) error {
	signCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.auth.SignUp(signCtx, identity, secret, hints)
	cancel()
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	m.mu.Lock()
	m.hints = hints
	m.mu.Unlock()
	return m.Login(ctx, identity, secret)
}

// Logout marks the user offline, releases every chat subscription, signs out remotely and
// wipes the persisted session. Remote failures are logged and do not stop the logout.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Authenticated() {
		if err := m.SetStatus(ctx, domain.StatusOffline); err != nil {
			m.logger.Warn("mark offline", zap.Error(err))
		}
	}
	if m.chats != nil {
		m.chats.Reset()
	}

	signCtx, cancel := context.WithTimeout(ctx, m.timeout)
	if err := m.auth.SignOut(signCtx); err != nil {
		m.logger.Warn("remote sign out", zap.Error(err))
	}
	cancel()

	m.clearLocal("logged out")
	return nil
}

// SetStatus updates the user's presence locally, then on the backend.
func (m *Manager) SetStatus(ctx context.Context, st domain.Status) error {
	if !st.Valid() {
		return fmt.Errorf("invalid status %q", st)
	}
	return m.updateProfile(ctx, "set status", domain.ProfileUpdate{Status: &st}, func(p *domain.Profile) {
		p.Status = st
	})
}

// SetUsername renames the user locally, then on the backend.
func (m *Manager) SetUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("username must not be empty")
	}
	return m.updateProfile(ctx, "set username", domain.ProfileUpdate{Username: &name}, func(p *domain.Profile) {
		p.Username = name
	})
}

// updateProfile applies mutate optimistically and keeps it when the backend update fails.
func (m *Manager) updateProfile(ctx context.Context, op string, upd domain.ProfileUpdate, mutate func(*domain.Profile)) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return apperr.Errorf(apperr.Auth, op, "not signed in")
	}
	mutate(m.user)
	m.user.UpdatedAt = m.now()
	p := *m.user
	m.mu.Unlock()

	m.cacheProfile(p)
	m.bus.Emit(bus.SessionProfileUpdated, p)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.dir.UpdateProfile(ctx, p.ID, upd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := m.snaps.SaveProfile(p); err != nil {
		m.logger.Warn("persist profile", zap.Error(err))
	}
	return nil
}

// watchProfiles follows profile.changed so a change pushed for the current user (made
// from another device, say) reaches CurrentUser and the persisted snapshot.
func (m *Manager) watchProfiles() func() {
	ch, unsub := m.bus.Subscribe(bus.ProfileChanged, 32)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt := <-ch:
				if pe, ok := evt.Payload.(domain.ProfileEvent); ok {
					m.applyPushed(pe)
				}
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			close(done)
		})
	}
}

// applyPushed adopts a pushed version of the current user's profile when it is strictly
// newer. Echoes of the manager's own writes carry no newer timestamp and are ignored.
func (m *Manager) applyPushed(evt domain.ProfileEvent) {
	if evt.Kind == domain.ProfileDeleted {
		return
	}
	p := evt.Profile
	m.mu.Lock()
	if m.user == nil || m.user.ID != p.ID || !p.UpdatedAt.After(m.user.UpdatedAt) {
		m.mu.Unlock()
		return
	}
	m.user = &p
	m.mu.Unlock()

	if err := m.snaps.SaveProfile(p); err != nil {
		m.logger.Warn("persist profile", zap.Error(err))
	}
	m.logger.Debug("current user changed remotely", zap.String("user_id", p.ID), zap.String("username", p.Username))
	m.bus.Emit(bus.SessionProfileUpdated, p)
}

func (m *Manager) cacheProfile(p domain.Profile) {
	if m.cache != nil {
		m.cache.Upsert(p)
	}
}

func (m *Manager) setState(to status.State, reason string) {
	if err := m.status.Transition(to, reason); err != nil {
		m.logger.Debug("status unchanged", zap.Error(err))
	}
}

// CurrentUser returns the signed-in (or, when degraded, last known) user.
func (m *Manager) CurrentUser() (domain.Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return domain.Profile{}, false
	}
	return *m.user, true
}

func (m *Manager) CurrentUserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// Session returns a copy of the live session, or nil.
func (m *Manager) Session() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	return &cp
}

// Authenticated reports whether a live session is held.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

func (m *Manager) State() status.State {
	return m.status.Current()
}

// Close removes the session listener and stops following profile changes.
func (m *Manager) Close() {
	m.mu.Lock()
	remove, unwatch := m.remove, m.unwatch
	m.remove, m.unwatch = nil, nil
	m.mu.Unlock()
	if remove != nil {
		remove()
	}
	if unwatch != nil {
		unwatch()
	}
}
