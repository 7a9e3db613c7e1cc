package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandleEventPrefersViewBinding(t *testing.T) {
	r := NewRegistry()
	var hit string
	r.AddGlobal("filter", &Action{Key: tcell.KeyRune, Rune: '/', Handler: func() { hit = "global" }})
	r.AddView("chats", "filter", &Action{Key: tcell.KeyRune, Rune: '/', Handler: func() { hit = "view" }})

	if !r.HandleEvent("chats", runeKey('/')) {
		t.Fatal("expected a match")
	}
	if hit != "view" {
		t.Errorf("got %q, want view", hit)
	}

	if !r.HandleEvent("help", runeKey('/')) {
		t.Fatal("expected the global binding to match")
	}
	if hit != "global" {
		t.Errorf("got %q, want global", hit)
	}
}

func TestHandleEventNoMatch(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { t.Error("unexpected call") }})
	if r.HandleEvent("chats", runeKey('x')) {
		t.Error("expected no match")
	}
	if r.HandleEvent("chats", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) {
		t.Error("Enter must not match a rune binding")
	}
}

func TestSpecialKeyBinding(t *testing.T) {
	r := NewRegistry()
	called := false
	r.AddGlobal("back", &Action{Key: tcell.KeyEscape, Handler: func() { called = true }})
	if !r.HandleEvent("chats", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !called {
		t.Error("expected Escape binding to fire")
	}
}

func TestAddReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.AddView("chats", "people", &Action{Key: tcell.KeyRune, Rune: 'n', Description: "n:old", Visible: true})
	r.AddView("chats", "people", &Action{Key: tcell.KeyRune, Rune: 'p', Description: "p:new", Visible: true})

	if got := r.Hints("chats"); !slices.Equal(got, []string{"p:new"}) {
		t.Errorf("hints = %v", got)
	}
	if r.HandleEvent("chats", runeKey('n')) {
		t.Error("replaced binding still matches")
	}
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Description: "q:quit", Visible: true})
	r.AddGlobal("help", &Action{Description: "?:help", Visible: true})
	r.AddGlobal("hidden", &Action{Description: "x:hidden"})
	r.AddView("chats", "open", &Action{Description: "enter:open", Visible: true})
	r.AddView("chats", "jump", &Action{Description: "1-9"})

	want := []string{"enter:open", "q:quit", "?:help"}
	if got := r.Hints("chats"); !slices.Equal(got, want) {
		t.Errorf("hints = %v, want %v", got, want)
	}
}
