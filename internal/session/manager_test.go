package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/apperr"
	"github.com/matheus3301/chatsync/internal/backend"
	"github.com/matheus3301/chatsync/internal/backend/local"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chats"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/fixture"
	"github.com/matheus3301/chatsync/internal/profiles"
	"github.com/matheus3301/chatsync/internal/snapshot"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/subscription"
)

func testSnapshots(t *testing.T) *snapshot.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return snapshot.New(db)
}

type countingReleaser struct{ n int }

func (c *countingReleaser) Reset() { c.n++ }

func newManager(t *testing.T, b backend.Backend, snaps Snapshots, rel ChatReleaser, ev *bus.Bus) *Manager {
	t.Helper()
	m := New(Config{
		Auth:      b,
		Directory: b,
		Snapshots: snaps,
		Profiles:  profiles.New(b, ev, nil, time.Second),
		Chats:     rel,
		Bus:       ev,
		Timeout:   time.Second,
	})
	t.Cleanup(m.Close)
	return m
}

func TestInitializeWithoutSnapshot(t *testing.T) {
	m := newManager(t, local.New(), testSnapshots(t), nil, nil)
	m.Initialize(context.Background())

	if m.State() != status.SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT", m.State())
	}
	if m.Authenticated() {
		t.Error("Authenticated() = true")
	}
	if _, ok := m.CurrentUser(); ok {
		t.Error("CurrentUser() present without a session")
	}
}

func TestLoginBootstrapsProfileFromIdentity(t *testing.T) {
	ev := bus.New()
	events, unsub := ev.Subscribe(bus.SessionAuthenticated, 4)
	defer unsub()
	snaps := testSnapshots(t)
	m := newManager(t, local.New(), snaps, nil, ev)
	ctx := context.Background()
	m.Initialize(ctx)

	if err := m.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	p, ok := m.CurrentUser()
	if !ok {
		t.Fatal("no current user after login")
	}
	if p.Username != "ada" || p.Status != domain.StatusOnline {
		t.Errorf("profile = %+v", p)
	}
	if p.ID != local.UserID("ada@example.com") || m.CurrentUserID() != p.ID {
		t.Errorf("user id = %q", p.ID)
	}
	if m.State() != status.Ready {
		t.Errorf("state = %s, want READY", m.State())
	}

	sess, err := snaps.LoadSession()
	if err != nil || sess == nil || sess.UserID != p.ID {
		t.Errorf("persisted session = %+v, %v", sess, err)
	}
	stored, err := snaps.LoadProfile()
	if err != nil || stored == nil || stored.Status != domain.StatusOnline {
		t.Errorf("persisted profile = %+v, %v", stored, err)
	}

	select {
	case evt := <-events:
		if got := evt.Payload.(domain.Profile); got.ID != p.ID {
			t.Errorf("event profile = %+v", got)
		}
	case <-time.After(time.Second):
		t.Error("no session.authenticated event")
	}
	select {
	case evt := <-events:
		t.Errorf("second authenticated event: %+v", evt)
	default:
	}
}

func TestSignUpHintWins(t *testing.T) {
	m := newManager(t, local.New(), testSnapshots(t), nil, nil)
	ctx := context.Background()
	m.Initialize(ctx)

	if err := m.SignUp(ctx, "ada@example.com", "pw", domain.ProfileHints{Username: "Countess"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if p, _ := m.CurrentUser(); p.Username != "Countess" {
		t.Errorf("Username = %q, want Countess", p.Username)
	}
}

func TestBootstrapNamePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		snapshot *domain.Profile
		identity string
		want     string
	}{
		{"hint", "Hinted", &domain.Profile{ID: "u1", Username: "Snap"}, "id@x", "Hinted"},
		{"snapshot of same user", "", &domain.Profile{ID: "u1", Username: "Snap"}, "id@x", "Snap"},
		{"snapshot of other user", "", &domain.Profile{ID: "u2", Username: "Snap"}, "id@x", "id"},
		{"identity", "", nil, "grace@navy.mil", "grace"},
		{"default", "", nil, "", defaultUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snaps := testSnapshots(t)
			if tt.snapshot != nil {
				if err := snaps.SaveProfile(*tt.snapshot); err != nil {
					t.Fatal(err)
				}
			}
			m := newManager(t, local.New(), snaps, nil, nil)
			got := m.bootstrapName(&domain.Session{UserID: "u1", Identity: tt.identity}, tt.hint)
			if got != tt.want {
				t.Errorf("bootstrapName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSilentRestoration(t *testing.T) {
	snaps := testSnapshots(t)
	ctx := context.Background()

	first := newManager(t, local.New(), snaps, nil, nil)
	first.Initialize(ctx)
	if err := first.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := first.SetUsername(ctx, "Ada L"); err != nil {
		t.Fatal(err)
	}
	first.Close()

	// A new process: fresh backend state, same persisted slots.
	second := newManager(t, local.New(), snaps, nil, nil)
	second.Initialize(ctx)

	if !second.Authenticated() {
		t.Fatal("session not restored")
	}
	if second.State() != status.Ready {
		t.Errorf("state = %s, want READY", second.State())
	}
	p, _ := second.CurrentUser()
	if p.Username != "Ada L" || p.ID != local.UserID("ada@example.com") {
		t.Errorf("restored profile = %+v", p)
	}
	if got := second.Session().Identity; got != "ada@example.com" {
		t.Errorf("Identity = %q", got)
	}
}

func TestRestorationFailureDegrades(t *testing.T) {
	snaps := testSnapshots(t)
	ev := bus.New()
	events, unsub := ev.Subscribe(bus.SessionDegraded, 1)
	defer unsub()
	if err := snaps.SaveSession(&domain.Session{UserID: "u1", AccessToken: "a", RefreshToken: "issued-elsewhere"}); err != nil {
		t.Fatal(err)
	}
	if err := snaps.SaveProfile(domain.Profile{ID: "u1", Username: "Ada"}); err != nil {
		t.Fatal(err)
	}

	m := newManager(t, local.New(), snaps, nil, ev)
	m.Initialize(context.Background())

	if m.Authenticated() {
		t.Error("Authenticated() = true after failed restoration")
	}
	if m.State() != status.Degraded {
		t.Errorf("state = %s, want DEGRADED", m.State())
	}
	if p, ok := m.CurrentUser(); !ok || p.Username != "Ada" {
		t.Errorf("CurrentUser() = %+v, %v", p, ok)
	}
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Error("no session.degraded event")
	}
}

func TestRestorationMismatchedProfileSignsOut(t *testing.T) {
	snaps := testSnapshots(t)
	if err := snaps.SaveSession(&domain.Session{UserID: "u1", RefreshToken: "issued-elsewhere"}); err != nil {
		t.Fatal(err)
	}
	if err := snaps.SaveProfile(domain.Profile{ID: "u2", Username: "Other"}); err != nil {
		t.Fatal(err)
	}

	m := newManager(t, local.New(), snaps, nil, nil)
	m.Initialize(context.Background())
	if m.State() != status.SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT", m.State())
	}
	if _, ok := m.CurrentUser(); ok {
		t.Error("foreign profile shown")
	}
}

func TestLoginFailure(t *testing.T) {
	m := newManager(t, local.New(), testSnapshots(t), nil, nil)
	ctx := context.Background()
	m.Initialize(ctx)

	err := m.Login(ctx, "  ", "pw")
	if !apperr.IsAuth(err) {
		t.Errorf("Login() error = %v, want auth error", err)
	}
	if m.State() != status.SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT", m.State())
	}
}

func TestLogoutReleasesChats(t *testing.T) {
	b := local.New()
	ev := bus.New()
	signedOut, unsub := ev.Subscribe(bus.SessionSignedOut, 4)
	defer unsub()
	snaps := testSnapshots(t)

	ps := profiles.New(b, ev, nil, time.Second)
	subs := subscription.New(b, ps, nil)
	reg := chats.NewRegistry(b, ps, subs, nil, ev, nil, time.Second)
	subs.Bind(reg)

	m := newManager(t, b, snaps, reg, ev)
	ctx := context.Background()
	m.Initialize(ctx)
	if err := m.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	uid := m.CurrentUserID()
	reg.Initialize(ctx, uid)
	if b.ChannelCount(fixture.GroupChatID) != 1 {
		t.Fatal("chat not subscribed")
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if b.ChannelCount(fixture.GroupChatID) != 0 {
		t.Error("subscription survived logout")
	}
	if len(reg.ChatList()) != 0 {
		t.Error("chat cache survived logout")
	}
	if m.Authenticated() || m.State() != status.SignedOut {
		t.Errorf("after logout: authenticated=%v state=%s", m.Authenticated(), m.State())
	}
	if sess, _ := snaps.LoadSession(); sess != nil {
		t.Error("session slot not wiped")
	}
	if p, _ := snaps.LoadProfile(); p != nil {
		t.Error("profile slot not wiped")
	}
	if remote, _ := b.GetProfile(ctx, uid); remote.Status != domain.StatusOffline {
		t.Errorf("remote status = %s, want offline", remote.Status)
	}

	select {
	case <-signedOut:
	case <-time.After(time.Second):
		t.Error("no session.signed_out event")
	}
	select {
	case <-signedOut:
		t.Error("signed_out emitted twice")
	default:
	}
}

type failingSignOut struct {
	*local.Backend
}

func (f failingSignOut) SignOut(context.Context) error {
	return apperr.New(apperr.Transient, "sign out", errors.New("offline"))
}

func TestLogoutSurvivesRemoteFailure(t *testing.T) {
	b := failingSignOut{local.New()}
	rel := &countingReleaser{}
	snaps := testSnapshots(t)
	m := newManager(t, b, snaps, rel, nil)
	ctx := context.Background()
	m.Initialize(ctx)
	if err := m.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if rel.n != 1 {
		t.Errorf("chat resets = %d, want 1", rel.n)
	}
	if m.Authenticated() {
		t.Error("still authenticated")
	}
	if sess, _ := snaps.LoadSession(); sess != nil {
		t.Error("session slot not wiped")
	}
}

type failingUpdate struct {
	*local.Backend
}

func (f failingUpdate) UpdateProfile(context.Context, string, domain.ProfileUpdate) error {
	return apperr.New(apperr.Transient, "update profile", errors.New("offline"))
}

func TestSetUsernameKeepsOptimisticValue(t *testing.T) {
	snaps := testSnapshots(t)
	m := newManager(t, failingUpdate{local.New()}, snaps, nil, nil)
	ctx := context.Background()
	m.Initialize(ctx)
	if err := m.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	err := m.SetUsername(ctx, "Renamed")
	if !apperr.IsTransient(err) {
		t.Fatalf("SetUsername() error = %v, want transient", err)
	}
	if p, _ := m.CurrentUser(); p.Username != "Renamed" {
		t.Errorf("Username = %q, want optimistic value", p.Username)
	}
	if stored, _ := snaps.LoadProfile(); stored.Username == "Renamed" {
		t.Error("snapshot updated despite remote failure")
	}
}

func TestUpdatesRequireUser(t *testing.T) {
	m := newManager(t, local.New(), testSnapshots(t), nil, nil)
	if err := m.SetStatus(context.Background(), domain.StatusOnline); !apperr.IsAuth(err) {
		t.Errorf("SetStatus() error = %v, want auth error", err)
	}
	if err := m.SetStatus(context.Background(), "away"); err == nil {
		t.Error("SetStatus(away) accepted")
	}
	if err := m.SetUsername(context.Background(), " "); err == nil {
		t.Error("SetUsername(blank) accepted")
	}
}

// slowSignIn holds SignIn until its context ends.
type slowSignIn struct {
	*local.Backend
}

func (s slowSignIn) SignIn(ctx context.Context, _, _ string) (*domain.Session, error) {
	<-ctx.Done()
	return nil, apperr.New(apperr.Transient, "sign in", ctx.Err())
}

func TestLoginBoundedByTimeout(t *testing.T) {
	m := New(Config{
		Auth:      slowSignIn{local.New()},
		Directory: local.New(),
		Snapshots: testSnapshots(t),
		Timeout:   50 * time.Millisecond,
	})
	t.Cleanup(m.Close)
	m.Initialize(context.Background())

	start := time.Now()
	err := m.Login(context.Background(), "ada@example.com", "pw")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Login() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Login() took %s", elapsed)
	}
	if m.State() != status.SignedOut {
		t.Errorf("state = %s, want SIGNED_OUT", m.State())
	}
}

func waitForUser(t *testing.T, m *Manager, cond func(domain.Profile) bool) domain.Profile {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		p, ok := m.CurrentUser()
		if ok && cond(p) {
			return p
		}
		if time.Now().After(deadline) {
			t.Fatalf("CurrentUser() = %+v", p)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPushedProfileChangeUpdatesCurrentUser(t *testing.T) {
	ev := bus.New()
	snaps := testSnapshots(t)
	m := newManager(t, local.New(), snaps, nil, ev)
	ctx := context.Background()
	m.Initialize(ctx)
	if err := m.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	me, _ := m.CurrentUser()

	// Another user's change leaves the current user alone.
	ev.Emit(bus.ProfileChanged, domain.ProfileEvent{Kind: domain.ProfileUpdated, Profile: domain.Profile{ID: "someone-else", Username: "x"}})
	// An older version is ignored.
	stale := me
	stale.Username = "stale"
	stale.UpdatedAt = me.UpdatedAt.Add(-time.Hour)
	ev.Emit(bus.ProfileChanged, domain.ProfileEvent{Kind: domain.ProfileUpdated, Profile: stale})

	fresh := me
	fresh.Username = "ada-from-phone"
	fresh.UpdatedAt = me.UpdatedAt.Add(time.Minute)
	ev.Emit(bus.ProfileChanged, domain.ProfileEvent{Kind: domain.ProfileUpdated, Profile: fresh})

	got := waitForUser(t, m, func(p domain.Profile) bool { return p.Username != me.Username })
	if got.Username != "ada-from-phone" {
		t.Errorf("Username = %q, want ada-from-phone", got.Username)
	}
	if stored, _ := snaps.LoadProfile(); stored == nil || stored.Username != "ada-from-phone" {
		t.Errorf("snapshot = %+v, want pushed username", stored)
	}
}
