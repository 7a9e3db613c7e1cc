// Package profiles caches the user directory and keeps it current from push events.
package profiles

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/fixture"
)

// Store is the in-memory directory keyed by user id.
type Store struct {
	dir          backend.Directory
	bus          *bus.Bus
	logger       *zap.Logger
	fetchTimeout time.Duration

	mu       sync.RWMutex
	profiles map[string]domain.Profile
	sub      backend.Subscription
	// opening is set while a subscribe call is in flight; gen invalidates it on Unsubscribe.
	opening bool
	gen     int
}

func New(dir backend.Directory, b *bus.Bus, logger *zap.Logger, fetchTimeout time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Store{
		dir:          dir,
		bus:          b,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		profiles:     make(map[string]domain.Profile),
	}
}

// FetchAll lists the directory without the user excluding. Any backend failure falls
// back to the seed directory. Results are merged into the cache.
func (s *Store) FetchAll(ctx context.Context, excluding string) []domain.Profile {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	list, err := s.dir.ListProfiles(ctx, excluding)
	if err != nil {
		s.logger.Warn("profile directory unavailable, using seed directory", zap.Error(err))
		list = list[:0]
		for _, p := range fixture.Profiles() {
			if p.ID != excluding {
				list = append(list, p)
			}
		}
	}
	for _, p := range list {
		s.Upsert(p)
	}
	return list
}

// SubscribeToChanges opens the directory push channel. It is a no-op while a
// subscription is active or being opened.
func (s *Store) SubscribeToChanges(ctx context.Context) error {
	s.mu.Lock()
	if s.sub != nil || s.opening {
		s.mu.Unlock()
		return nil
	}
	s.opening = true
	gen := s.gen
	s.mu.Unlock()

	sub, err := s.dir.OnProfileChange(ctx, func(evt domain.ProfileEvent) { s.Apply(evt) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.opening = false
	}
	if err != nil {
		s.logger.Warn("profile channel failed", zap.Error(err))
		return err
	}
	if gen != s.gen {
		// Unsubscribed while opening.
		_ = sub.Close()
		return nil
	}
	s.sub = sub
	return nil
}

// Unsubscribe closes the directory push channel. Safe without one.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.opening = false
	s.gen++
	s.mu.Unlock()
	if sub != nil {
		if err := sub.Close(); err != nil {
			s.logger.Debug("close profile channel", zap.Error(err))
		}
	}
}

// Subscribed reports whether the directory channel is open.
func (s *Store) Subscribed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub != nil
}

// Apply merges a pushed change. Inserts and updates are last-write-wins on UpdatedAt;
// an event without a timestamp always applies. Returns whether the cache changed.
func (s *Store) Apply(evt domain.ProfileEvent) bool {
	p := evt.Profile
	if p.ID == "" {
		return false
	}
	s.mu.Lock()
	switch evt.Kind {
	case domain.ProfileDeleted:
		if _, ok := s.profiles[p.ID]; !ok {
			s.mu.Unlock()
			return false
		}
		delete(s.profiles, p.ID)
	case domain.ProfileInserted, domain.ProfileUpdated:
		if cur, ok := s.profiles[p.ID]; ok && !p.UpdatedAt.IsZero() && p.UpdatedAt.Before(cur.UpdatedAt) {
			s.mu.Unlock()
			return false
		}
		s.profiles[p.ID] = p
	default:
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.bus.Emit(bus.ProfileChanged, evt)
	return true
}

// Upsert caches p with the same ordering rule as a pushed update.
func (s *Store) Upsert(p domain.Profile) bool {
	return s.Apply(domain.ProfileEvent{Kind: domain.ProfileUpdated, Profile: p})
}

// Resolve looks a profile up by id. No I/O.
func (s *Store) Resolve(id string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

// ResolveByUsername looks a profile up by name, ignoring case. No I/O.
func (s *Store) ResolveByUsername(name string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Username, name) {
			return p, true
		}
	}
	return domain.Profile{}, false
}

// Lookup resolves from the cache, then from the backend.
func (s *Store) Lookup(ctx context.Context, id string) (domain.Profile, error) {
	if p, ok := s.Resolve(id); ok {
		return p, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	p, err := s.dir.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	s.Upsert(p)
	return p, nil
}

// DisplayName returns the cached username for id, or the unknown-sender placeholder.
func (s *Store) DisplayName(id string) string {
	if p, ok := s.Resolve(id); ok && p.Username != "" {
		return p.Username
	}
	return domain.UnknownSender
}

// All returns every cached profile ordered by username.
func (s *Store) All() []domain.Profile {
	s.mu.RLock()
	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].Username, out[j].Username) {
			return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
