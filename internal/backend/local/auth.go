package local

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

const refreshPrefix = "local:"

// userNamespace scopes the name-based UUIDs issued for local identities.
var userNamespace = uuid.MustParse("6f1c7a4e-1d2b-4c8e-9a57-3b0f5e2d8c41")

// UserID maps a login identity to its stable local user id.
func UserID(identity string) string {
	return uuid.NewSHA1(userNamespace, []byte(strings.ToLower(strings.TrimSpace(identity)))).String()
}

// GetSession always reports no live session; restoration goes through RefreshSession.
func (b *Backend) GetSession(context.Context) (*domain.Session, error) {
	return nil, nil
}

// SignIn accepts any non-empty identity. The secret is not checked.
func (b *Backend) SignIn(_ context.Context, identity, _ string) (*domain.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, apperr.Errorf(apperr.Auth, "sign in", "identity is required")
	}
	return b.adopt(b.issue(UserID(identity), identity)), nil
}

// SignUp has nothing to register locally; the profile is created on first login.
func (b *Backend) SignUp(_ context.Context, identity, _ string, _ domain.ProfileHints) error {
	if strings.TrimSpace(identity) == "" {
		return apperr.Errorf(apperr.Auth, "sign up", "identity is required")
	}
	return nil
}

func (b *Backend) SignOut(context.Context) error {
	b.mu.Lock()
	b.session = nil
	b.mu.Unlock()
	b.notifySession(nil)
	return nil
}

// RefreshSession accepts any refresh credential this backend issued.
func (b *Backend) RefreshSession(_ context.Context, refreshToken string) (*domain.Session, error) {
	userID, ok := strings.CutPrefix(refreshToken, refreshPrefix)
	if !ok || userID == "" {
		return nil, apperr.Errorf(apperr.Auth, "refresh session", "credential was not issued locally")
	}
	return b.adopt(b.issue(userID, "")), nil
}

func (b *Backend) OnSessionChange(fn backend.SessionListener) func() {
	b.mu.Lock()
	id := b.nextListener
	b.nextListener++
	b.sessionListeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.sessionListeners, id)
		b.mu.Unlock()
	}
}

func (b *Backend) issue(userID, identity string) *domain.Session {
	return &domain.Session{
		UserID:       userID,
		AccessToken:  "local-" + uuid.NewString(),
		RefreshToken: refreshPrefix + userID,
		Identity:     identity,
	}
}

func (b *Backend) adopt(s *domain.Session) *domain.Session {
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()
	b.notifySession(s)
	cp := *s
	return &cp
}

func (b *Backend) notifySession(s *domain.Session) {
	b.mu.Lock()
	fns := make([]backend.SessionListener, 0, len(b.sessionListeners))
	for _, fn := range b.sessionListeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		if s == nil {
			fn(nil)
			continue
		}
		cp := *s
		fn(&cp)
	}
}
