package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/fixture"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/workspace"
)

// shortHome points CHATSYNC_HOME at a directory under /tmp so socket paths stay
// under the Unix socket length limit.
func shortHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "chatsync-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(workspace.EnvHome, dir)
	return dir
}

func waitForState(t *testing.T, c *api.Client, want status.State) api.StatusInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		info, err := c.Status(context.Background())
		if err == nil && info.State == string(want) {
			return info
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %q (err %v), want %s", info.State, err, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	shortHome(t)
	if err := fx.ValidateApp(Module(Params{Workspace: "fxtest"})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestNewServerUsesSocketOverride(t *testing.T) {
	dir := shortHome(t)
	socketPath := filepath.Join(dir, "d.sock")

	srv, err := NewServer(Params{Workspace: "fxtest", SocketPath: socketPath}, nil, zap.NewNop(), api.NewService(api.Deps{}))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket mode = %v, want 0600", perm)
	}

	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	shortHome(t)
	p := Params{Workspace: "test", Config: config.Default()}

	app := fxtest.New(t, Module(p), fx.NopLogger)
	app.RequireStart()

	c, err := api.Dial(workspace.SocketPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	info := waitForState(t, c, status.SignedOut)
	if info.Mode != "local" || info.Workspace != "test" {
		t.Errorf("info = %+v", info)
	}

	ctx := context.Background()
	if _, err := c.Login(ctx, "ada@example.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	info = waitForState(t, c, status.Ready)
	if info.Username != "ada" {
		t.Errorf("Username = %q, want ada", info.Username)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		list, err := c.Chats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) == 1 {
			if list[0].ID != fixture.GroupChatID {
				t.Errorf("chat = %q", list[0].ID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("chats = %d, want 1", len(list))
		}
		time.Sleep(20 * time.Millisecond)
	}

	_ = c.Close()
	app.RequireStop()

	if _, err := os.Stat(workspace.SocketPath("test")); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}

	// A restart in the same workspace restores the persisted session.
	app = fxtest.New(t, Module(p), fx.NopLogger)
	app.RequireStart()
	defer app.RequireStop()

	c, err = api.Dial(workspace.SocketPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	info = waitForState(t, c, status.Ready)
	if info.Username != "ada" || !info.Authenticated {
		t.Errorf("restored info = %+v", info)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	shortHome(t)
	p := Params{Workspace: "test", Config: config.Default()}

	first := fxtest.New(t, Module(p), fx.NopLogger)
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(Module(p), fx.NopLogger)
	var held *lock.LockHeldError
	if err := second.Err(); !errors.As(err, &held) {
		t.Fatalf("second daemon error = %v, want LockHeldError", err)
	}
	if held.PID != os.Getpid() {
		t.Errorf("holder PID = %d, want %d", held.PID, os.Getpid())
	}

	// The first daemon's socket survives.
	c, err := api.Dial(workspace.SocketPath("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()
	waitForState(t, c, status.SignedOut)
}
