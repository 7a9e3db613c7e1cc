package local

import (
	"context"
	"sort"
	"strings"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/domain"
)

func (b *Backend) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[userID]
	if !ok {
		return domain.Profile{}, apperr.Errorf(apperr.NotFound, "get profile", "no profile for %s", userID)
	}
	return p, nil
}

func (b *Backend) CreateProfile(_ context.Context, userID string, hints domain.ProfileHints) (domain.Profile, error) {
	name := strings.TrimSpace(hints.Username)
	if name == "" {
		name = "user"
	}
	avatar := hints.AvatarRef
	if avatar == "" {
		avatar = domain.DefaultAvatar(name)
	}

	b.mu.Lock()
	if existing, ok := b.profiles[userID]; ok {
		b.mu.Unlock()
		return existing, nil
	}
	p := domain.Profile{
		ID:        userID,
		Username:  name,
		AvatarRef: avatar,
		Status:    domain.StatusOffline,
		UpdatedAt: b.now(),
	}
	b.profiles[userID] = p
	b.mu.Unlock()

	b.notifyProfile(domain.ProfileEvent{Kind: domain.ProfileInserted, Profile: p})
	return p, nil
}

func (b *Backend) UpdateProfile(_ context.Context, userID string, upd domain.ProfileUpdate) error {
	b.mu.Lock()
	p, ok := b.profiles[userID]
	if !ok {
		b.mu.Unlock()
		return apperr.Errorf(apperr.NotFound, "update profile", "no profile for %s", userID)
	}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	p.UpdatedAt = b.now()
	b.profiles[userID] = p
	b.mu.Unlock()

	b.notifyProfile(domain.ProfileEvent{Kind: domain.ProfileUpdated, Profile: p})
	return nil
}

func (b *Backend) ListProfiles(_ context.Context, excluding string) ([]domain.Profile, error) {
	b.mu.Lock()
	out := make([]domain.Profile, 0, len(b.profiles))
	for id, p := range b.profiles {
		if excluding != "" && id == excluding {
			continue
		}
		out = append(out, p)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *Backend) OnProfileChange(_ context.Context, fn func(domain.ProfileEvent)) (backend.Subscription, error) {
	b.mu.Lock()
	id := b.nextListener
	b.nextListener++
	b.profileListeners[id] = fn
	b.mu.Unlock()
	return backend.SubscriptionFunc(func() error {
		b.mu.Lock()
		delete(b.profileListeners, id)
		b.mu.Unlock()
		return nil
	}), nil
}

func (b *Backend) notifyProfile(evt domain.ProfileEvent) {
	b.mu.Lock()
	fns := make([]func(domain.ProfileEvent), 0, len(b.profileListeners))
	for _, fn := range b.profileListeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}
