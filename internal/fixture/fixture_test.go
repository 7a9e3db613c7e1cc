package fixture

import (
	"testing"
	"time"
)

func TestGroupHistoryAscending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := GroupHistory("me", "Ada", now)

	if len(msgs) == 0 {
		t.Fatal("empty history")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Fatalf("message %s is older than %s", msgs[i].ID, msgs[i-1].ID)
		}
	}
	var mine int
	for _, m := range msgs {
		if m.ChatID != GroupChatID {
			t.Errorf("message %s chat = %q", m.ID, m.ChatID)
		}
		if m.SenderID == "me" {
			mine++
			if m.SenderName != "Ada" {
				t.Errorf("own message %s name = %q", m.ID, m.SenderName)
			}
		}
	}
	if mine == 0 {
		t.Error("history has no messages from the current user")
	}
}

func TestProfilesIsCopy(t *testing.T) {
	p := Profiles()
	p[0].Username = "changed"
	if Profiles()[0].Username == "changed" {
		t.Error("Profiles() exposes the seed slice")
	}
	if len(p) != 4 {
		t.Errorf("len = %d, want 4", len(p))
	}
}
