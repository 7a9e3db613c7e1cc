package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/store"
)

func testStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), db
}

func TestEmptySlots(t *testing.T) {
	s, _ := testStore(t)

	sess, err := s.LoadSession()
	if err != nil || sess != nil {
		t.Errorf("LoadSession() = %v, %v; want nil, nil", sess, err)
	}
	p, err := s.LoadProfile()
	if err != nil || p != nil {
		t.Errorf("LoadProfile() = %v, %v; want nil, nil", p, err)
	}
	if _, ok, err := s.LoadTheme(); err != nil || ok {
		t.Errorf("LoadTheme() ok = %v, err = %v", ok, err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	in := &domain.Session{UserID: "u1", AccessToken: "a", RefreshToken: "r", Expiry: exp, Identity: "ada@example.com"}
	if err := s.SaveSession(in); err != nil {
		t.Fatal(err)
	}
	out, err := s.LoadSession()
	if err != nil {
		t.Fatal(err)
	}
	if out.UserID != "u1" || out.RefreshToken != "r" || !out.Expiry.Equal(exp) || out.Identity != "ada@example.com" {
		t.Errorf("LoadSession() = %+v", out)
	}
}

func TestClearKeepsTheme(t *testing.T) {
	s, _ := testStore(t)

	_ = s.SaveSession(&domain.Session{UserID: "u1", RefreshToken: "r"})
	_ = s.SaveProfile(domain.Profile{ID: "u1", Username: "ada"})
	_ = s.SaveTheme("dark")

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if sess, _ := s.LoadSession(); sess != nil {
		t.Error("session slot survived Clear")
	}
	if p, _ := s.LoadProfile(); p != nil {
		t.Error("profile slot survived Clear")
	}
	if theme, ok, _ := s.LoadTheme(); !ok || theme != "dark" {
		t.Errorf("theme = %q, %v; want dark", theme, ok)
	}
}

func TestCorruptSlot(t *testing.T) {
	s, db := testStore(t)

	if err := db.PutSlot(SlotProfile, "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadProfile(); err == nil {
		t.Error("LoadProfile() expected decode error")
	}
}
