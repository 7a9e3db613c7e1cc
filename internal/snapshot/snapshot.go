// Package snapshot gives typed access to the persisted slots that survive daemon restarts.
//
// Each slot is independent. An absent slot is normal and reads as nil; a slot that fails
// to decode is reported so the caller can discard it.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/store"
)

// Slot names.
const (
	SlotSession = "session"
	SlotProfile = "profile"
	SlotTheme   = "theme"
)

// Store reads and writes the session, profile and theme slots.
type Store struct {
	db *store.DB
}

func New(db *store.DB) *Store {
	return &Store{db: db}
}

// LoadSession returns the persisted session blob, or nil when absent.
func (s *Store) LoadSession() (*domain.Session, error) {
	var sess domain.Session
	ok, err := s.load(SlotSession, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveSession(sess *domain.Session) error {
	return s.save(SlotSession, sess)
}

// LoadProfile returns the persisted current-user profile, or nil when absent.
func (s *Store) LoadProfile() (*domain.Profile, error) {
	var p domain.Profile
	ok, err := s.load(SlotProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveProfile(p domain.Profile) error {
	return s.save(SlotProfile, p)
}

// Clear wipes the session and profile slots. The theme slot is a device preference and stays.
func (s *Store) Clear() error {
	return s.db.DeleteSlots(SlotSession, SlotProfile)
}

// LoadTheme returns the persisted theme name; ok is false when unset.
func (s *Store) LoadTheme() (theme string, ok bool, err error) {
	return s.db.GetSlot(SlotTheme)
}

func (s *Store) SaveTheme(theme string) error {
	return s.db.PutSlot(SlotTheme, theme)
}

func (s *Store) load(slot string, v any) (bool, error) {
	raw, ok, err := s.db.GetSlot(slot)
	if err != nil {
		return false, fmt.Errorf("read %s slot: %w", slot, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s slot: %w", slot, err)
	}
	return true, nil
}

func (s *Store) save(slot string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s slot: %w", slot, err)
	}
	if err := s.db.PutSlot(slot, string(raw)); err != nil {
		return fmt.Errorf("write %s slot: %w", slot, err)
	}
	return nil
}
