package views

import (
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

var (
	_ ui.Component = (*ConversationList)(nil)
	_ ui.Component = (*MessageThread)(nil)
	_ ui.Component = (*Directory)(nil)
	_ ui.Component = (*ConversationInfo)(nil)
	_ ui.Component = (*HelpView)(nil)
	_ ui.Component = (*AuthView)(nil)
	_ ui.Component = (*QRCard)(nil)
	_ ui.Focuser   = (*MessageThread)(nil)
	_ ui.Focuser   = (*AuthView)(nil)
)

func TestFocusTargets(t *testing.T) {
	mt := NewMessageThread(ui.LightTheme())
	if mt.FocusTarget() != mt.Messages() {
		t.Error("thread focus is not the history pane")
	}
	av := NewAuthView(ui.LightTheme())
	if av.FocusTarget() != av.Form() {
		t.Error("auth focus is not the form")
	}
}

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"skin tone", "\U0001F44B\U0001F3FD", "\U0001F44B"},
		{"zwj", "a\u200Db", "ab"},
		{"variation selector", "\u2764\uFE0F", "\u2764"},
		{"escape sequence", "a\x1b[31mred", "a[31mred"},
		{"keeps newline and tab", "a\nb\tc", "a\nb\tc"},
		{"drops carriage return", "a\rb", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDisplayEscapesTags(t *testing.T) {
	if got := display("[red]x"); got != "[red[]x" {
		t.Errorf("display = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"today", time.Date(2024, 3, 10, 9, 5, 0, 0, time.UTC), "09:05"},
		{"yesterday", time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC), "03/09"},
		{"last year same day", time.Date(2023, 3, 10, 9, 5, 0, 0, time.UTC), "03/10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTimestamp(tt.t, now); got != tt.want {
				t.Errorf("formatTimestamp = %q, want %q", got, tt.want)
			}
		})
	}
}

func sampleChats() []domain.ChatSummary {
	return []domain.ChatSummary{
		{Chat: domain.Chat{ID: "group", IsGroup: true, DisplayName: "Engineering"}, LastMessage: "deploy done", UnreadCount: 2},
		{Chat: domain.Chat{ID: "direct:ada:grace", DisplayName: "grace"}, LastMessage: "see you"},
		{Chat: domain.Chat{ID: "direct:ada:linus"}, LastMessage: "patch attached"},
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.LightTheme())
	cl.Update(sampleChats())

	if got := cl.ChatByIndex(3); got != "direct:ada:linus" {
		t.Errorf("ChatByIndex(3) = %q", got)
	}
	if got := cl.ChatByIndex(4); got != "" {
		t.Errorf("ChatByIndex(4) = %q, want empty", got)
	}

	cl.SetFilter("PATCH")
	if got := cl.ChatByIndex(1); got != "direct:ada:linus" {
		t.Errorf("filtered ChatByIndex(1) = %q", got)
	}
	if got := cl.ChatByIndex(2); got != "" {
		t.Errorf("filter matched too much: %q", got)
	}

	cl.SetFilter("eng")
	cl.Select(1, 0)
	if got := cl.SelectedChat(); got != "group" {
		t.Errorf("SelectedChat = %q, want group", got)
	}

	cl.ClearFilter()
	if got := cl.GetRowCount(); got != 4 {
		t.Errorf("rows = %d, want header plus 3", got)
	}
}

func TestConversationListUnreadCell(t *testing.T) {
	cl := NewConversationList(ui.DarkTheme())
	cl.Update(sampleChats())
	if got := cl.GetCell(1, 0).Text; !strings.Contains(got, "(2) Engineering") {
		t.Errorf("name cell = %q", got)
	}
	if got := cl.GetCell(3, 0).Text; !strings.Contains(got, "direct:ada:linus") {
		t.Errorf("unnamed chat cell = %q", got)
	}
}

func TestRenderMessages(t *testing.T) {
	mt := NewMessageThread(ui.LightTheme())
	mt.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	mt.SetSelf("u-ada")

	out := mt.renderMessages([]domain.Message{
		{ID: "1", SenderID: "u-grace", SenderName: "grace", Text: "hi [red]", Timestamp: time.Date(2024, 3, 10, 11, 30, 0, 0, time.UTC)},
		{ID: "2", SenderID: "u-ada", SenderName: "ada", Text: "hello"},
		{ID: "3", SenderID: "u-bob", Type: domain.MessageImage, ImageRef: "https://example.com/cat.png"},
	})

	for _, want := range []string{"grace", "11:30", "hi [red[]", "You", "[image[]", "https://example.com/cat.png", domain.UnknownSender} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "]ada[") {
		t.Error("own message rendered with username instead of You")
	}
}

func TestDirectorySelectedProfile(t *testing.T) {
	d := NewDirectory(ui.LightTheme())
	d.Update([]domain.Profile{
		{ID: "u-grace", Username: "grace", Status: domain.StatusOnline},
		{ID: "u-linus", Username: "linus", Status: domain.StatusOffline},
	})

	d.Select(2, 0)
	p, ok := d.SelectedProfile()
	if !ok || p.ID != "u-linus" {
		t.Errorf("SelectedProfile = %+v, %v", p, ok)
	}

	d.SetFilter("GRA")
	d.Select(1, 0)
	p, ok = d.SelectedProfile()
	if !ok || p.ID != "u-grace" {
		t.Errorf("filtered SelectedProfile = %+v, %v", p, ok)
	}

	d.Select(0, 0)
	if _, ok := d.SelectedProfile(); ok {
		t.Error("header row selected a profile")
	}
}

func TestRenderQR(t *testing.T) {
	out := renderQR("u-ada")
	if strings.Contains(out, "failed") {
		t.Fatalf("renderQR: %s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Errorf("QR too small: %d lines", len(lines))
	}
	if !strings.ContainsAny(out, "█▀▄") {
		t.Error("no block characters in QR output")
	}
}

func TestConversationInfoUpdate(t *testing.T) {
	ci := NewConversationInfo(ui.LightTheme())
	chats := sampleChats()
	ci.Update(&chats[0])
	text := ci.GetText(true)
	for _, want := range []string{"Engineering", "group", "2"} {
		if !strings.Contains(text, want) {
			t.Errorf("details missing %q:\n%s", want, text)
		}
	}
}
