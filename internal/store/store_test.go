package store

import (
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
	if result.Dirty {
		t.Error("schema is dirty")
	}
}

func TestMigrateFreshReportsChanged(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Error("first Migrate() should report Changed=true")
	}
}

func TestSlots(t *testing.T) {
	db := testDB(t)

	if _, ok, err := db.GetSlot("session"); err != nil || ok {
		t.Fatalf("GetSlot(empty) = ok %v, err %v; want absent", ok, err)
	}

	if err := db.PutSlot("session", `{"user_id":"u1"}`); err != nil {
		t.Fatal(err)
	}
	if err := db.PutSlot("session", `{"user_id":"u2"}`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.GetSlot("session")
	if err != nil || !ok {
		t.Fatalf("GetSlot() = ok %v, err %v", ok, err)
	}
	if v != `{"user_id":"u2"}` {
		t.Errorf("GetSlot() = %q, want overwritten value", v)
	}

	if err := db.PutSlot("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteSlots("session", "profile"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.GetSlot("session"); ok {
		t.Error("session slot survived DeleteSlots")
	}
	if v, ok, _ := db.GetSlot("theme"); !ok || v != "dark" {
		t.Errorf("theme slot = %q, %v; want untouched", v, ok)
	}
}

func TestOutbox(t *testing.T) {
	db := testDB(t)

	if err := db.QueueOutbox("client1", "chat1", `{"text":"hi"}`); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueOutbox("client1", "chat1", `{"text":"hi"}`); err != nil {
		t.Fatalf("duplicate QueueOutbox() error = %v", err)
	}

	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending, want 1", len(pending))
	}
	if pending[0].ClientMsgID != "client1" || pending[0].ChatID != "chat1" {
		t.Errorf("entry = %+v", pending[0])
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxRetry("client1", "timeout"); err != nil {
		t.Fatal(err)
	}
	pending, _ = db.PendingOutbox()
	if len(pending) != 1 || pending[0].Attempts != 1 || pending[0].ErrorMessage != "timeout" {
		t.Fatalf("after retry pending = %+v", pending)
	}

	if err := db.MarkOutboxSending("client1"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkOutboxSent("client1", "server1"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after sent, want 0", len(pending))
	}
	if st, _ := db.OutboxStatus("client1"); st != OutboxSent {
		t.Errorf("status = %q, want sent", st)
	}
	if st, _ := db.OutboxStatus("missing"); st != "" {
		t.Errorf("status of missing entry = %q, want empty", st)
	}
}

func TestRequeueSending(t *testing.T) {
	db := testDB(t)

	_ = db.QueueOutbox("a", "chat1", "{}")
	_ = db.MarkOutboxSending("a")

	n, err := db.RequeueSending()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("RequeueSending() = %d, want 1", n)
	}
	if pending, _ := db.PendingOutbox(); len(pending) != 1 {
		t.Errorf("got %d pending, want 1", len(pending))
	}
}

func TestFailQueued(t *testing.T) {
	db := testDB(t)

	_ = db.QueueOutbox("a", "chat1", "{}")
	_ = db.QueueOutbox("b", "chat1", "{}")
	_ = db.MarkOutboxSending("b")

	n, err := db.FailQueued("signed out")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("FailQueued() = %d, want 2", n)
	}
	if st, _ := db.OutboxStatus("a"); st != OutboxFailed {
		t.Errorf("status = %q, want failed", st)
	}
}

func TestOpenKeepsStateFilePrivate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "workspace")
	path := filepath.Join(dir, "state.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	_ = db.Close()

	// A file left world-readable is narrowed on the next open.
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}
	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != stateFileMode {
		t.Errorf("state file mode = %o, want %o", perm, stateFileMode)
	}
	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
