package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) toSession(tr tokenResponse, identity string) *domain.Session {
	s := &domain.Session{
		UserID:       tr.User.ID,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Identity:     firstNonEmpty(tr.User.Email, identity),
	}
	if tr.ExpiresIn > 0 {
		s.Expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return s
}

// GetSession returns the in-memory session, renewing it first when it has expired.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, nil
	}
	if !s.Expired(c.now()) {
		cp := *s
		return &cp, nil
	}
	if !s.Renewable() {
		c.clear()
		return nil, nil
	}
	return c.RefreshSession(ctx, s.RefreshToken)
}

func (c *Client) SignIn(ctx context.Context, identity, secret string) (*domain.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || secret == "" {
		return nil, apperr.Errorf(apperr.Auth, "sign in", "identity and secret are required")
	}
	var tr tokenResponse
	err := c.do(ctx, request{
		op:           "sign in",
		method:       http.MethodPost,
		path:         "/auth/v1/token",
		query:        url.Values{"grant_type": {"password"}},
		body:         map[string]string{"email": identity, "password": secret},
		authEndpoint: true,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, apperr.Errorf(apperr.Auth, "sign in", "token response without session")
	}
	return c.adopt(c.toSession(tr, identity)), nil
}

func (c *Client) SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) error {
	identity = strings.TrimSpace(identity)
	if identity == "" || secret == "" {
		return apperr.Errorf(apperr.Auth, "sign up", "identity and secret are required")
	}
	data := map[string]string{}
	if hints.Username != "" {
		data["username"] = hints.Username
	}
	if hints.AvatarRef != "" {
		data["avatar_url"] = hints.AvatarRef
	}
	return c.do(ctx, request{
		op:           "sign up",
		method:       http.MethodPost,
		path:         "/auth/v1/signup",
		body:         map[string]any{"email": identity, "password": secret, "data": data},
		authEndpoint: true,
	}, nil)
}

// SignOut revokes the session remotely. The local session is cleared even when the call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	err := c.do(ctx, request{
		op:           "sign out",
		method:       http.MethodPost,
		path:         "/auth/v1/logout",
		authEndpoint: true,
		token:        s.AccessToken,
	}, nil)
	c.clear()
	if err != nil {
		c.logger.Warn("remote sign out failed", zap.Error(err))
	}
	return err
}

func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperr.New(apperr.Auth, "refresh session", errNoSession)
	}
	var tr tokenResponse
	err := c.do(ctx, request{
		op:           "refresh session",
		method:       http.MethodPost,
		path:         "/auth/v1/token",
		query:        url.Values{"grant_type": {"refresh_token"}},
		body:         map[string]string{"refresh_token": refreshToken},
		authEndpoint: true,
		token:        c.apiKey,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, apperr.Errorf(apperr.Auth, "refresh session", "token response without session")
	}
	return c.adopt(c.toSession(tr, "")), nil
}

func (c *Client) OnSessionChange(fn backend.SessionListener) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) adopt(s *domain.Session) *domain.Session {
	c.mu.Lock()
	if prev := c.session; prev != nil && s.Identity == "" && prev.UserID == s.UserID {
		s.Identity = prev.Identity
	}
	c.session = s
	c.mu.Unlock()
	c.notify(s)
	cp := *s
	return &cp
}

func (c *Client) clear() {
	c.mu.Lock()
	had := c.session != nil
	c.session = nil
	c.mu.Unlock()
	if had {
		c.notify(nil)
	}
}

func (c *Client) notify(s *domain.Session) {
	c.mu.Lock()
	fns := make([]backend.SessionListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		if s == nil {
			fn(nil)
			continue
		}
		cp := *s
		fn(&cp)
	}
}
