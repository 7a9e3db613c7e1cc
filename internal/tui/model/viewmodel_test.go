package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/theme"
)

type fakeDaemon struct {
	status   api.StatusInfo
	chats    []domain.ChatSummary
	profiles []domain.Profile
	messages map[string][]domain.Message
	active   []string
	sent     []api.SendRequest
	sendResp api.SendResponse
	theme    theme.Theme

	profilesCalls int
	chatsErr      error
}

func (f *fakeDaemon) Status(context.Context) (api.StatusInfo, error) { return f.status, nil }

func (f *fakeDaemon) Login(_ context.Context, identity, _ string) (api.StatusInfo, error) {
	f.status = api.StatusInfo{Authenticated: true, Username: identity, State: "READY"}
	return f.status, nil
}

func (f *fakeDaemon) SignUp(_ context.Context, identity, _ string, hints domain.ProfileHints) (api.StatusInfo, error) {
	f.status = api.StatusInfo{Authenticated: true, Username: hints.Username, State: "READY"}
	return f.status, nil
}

func (f *fakeDaemon) Logout(context.Context) (api.StatusInfo, error) {
	f.status = api.StatusInfo{State: "SIGNED_OUT"}
	return f.status, nil
}

func (f *fakeDaemon) SetPresence(_ context.Context, st domain.Status) (api.StatusInfo, error) {
	f.status.Presence = string(st)
	return f.status, nil
}

func (f *fakeDaemon) SetUsername(_ context.Context, name string) (api.StatusInfo, error) {
	f.status.Username = name
	return f.status, nil
}

func (f *fakeDaemon) Profiles(context.Context) ([]domain.Profile, error) {
	f.profilesCalls++
	return f.profiles, nil
}

func (f *fakeDaemon) Chats(context.Context) ([]domain.ChatSummary, error) {
	return f.chats, f.chatsErr
}

func (f *fakeDaemon) OpenChat(_ context.Context, req api.OpenChatRequest) (string, error) {
	if req.Username == "" && req.UserID == "" {
		return "", errors.New("no user")
	}
	return "direct:me:" + req.Username + req.UserID, nil
}

func (f *fakeDaemon) SetActiveChat(_ context.Context, chatID string) error {
	f.active = append(f.active, chatID)
	return nil
}

func (f *fakeDaemon) Messages(_ context.Context, chatID string) ([]domain.Message, error) {
	return f.messages[chatID], nil
}

func (f *fakeDaemon) Send(_ context.Context, req api.SendRequest) (api.SendResponse, error) {
	f.sent = append(f.sent, req)
	return f.sendResp, nil
}

func (f *fakeDaemon) SetTheme(_ context.Context, t theme.Theme) error {
	f.theme = t
	return nil
}

func newFake() *fakeDaemon {
	return &fakeDaemon{
		chats: []domain.ChatSummary{
			{Chat: domain.Chat{ID: "group", DisplayName: "Team"}, UnreadCount: 2},
			{Chat: domain.Chat{ID: "direct:a:b"}, UnreadCount: 1},
		},
		messages: map[string][]domain.Message{
			"group": {{ID: "m1", ChatID: "group", Text: "hi"}},
		},
	}
}

func event(kind string, payload any) api.Event {
	raw, _ := json.Marshal(payload)
	return api.Event{Kind: kind, Payload: raw}
}

func TestOpenAndCloseChat(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	if err := vm.OpenChat(ctx, "group"); err != nil {
		t.Fatal(err)
	}
	if vm.ActiveChatID() != "group" {
		t.Errorf("active = %q", vm.ActiveChatID())
	}
	if got := len(vm.Messages()); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
	if vm.Unread() != 3 {
		t.Errorf("unread = %d, want 3", vm.Unread())
	}

	if err := vm.CloseChat(ctx); err != nil {
		t.Fatal(err)
	}
	if vm.ActiveChatID() != "" || vm.Messages() != nil {
		t.Error("close did not clear the active chat")
	}
	want := []string{"group", ""}
	if len(f.active) != 2 || f.active[0] != want[0] || f.active[1] != want[1] {
		t.Errorf("SetActiveChat calls = %q, want %q", f.active, want)
	}
}

func TestStartChat(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)

	id, err := vm.StartChat(context.Background(), api.OpenChatRequest{Username: "grace"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "direct:me:grace" || vm.ActiveChatID() != id {
		t.Errorf("id = %q, active = %q", id, vm.ActiveChatID())
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("no active chat", func(t *testing.T) {
		vm := NewViewModel(newFake())
		if _, err := vm.Send(ctx, "hi"); !errors.Is(err, ErrNoActiveChat) {
			t.Errorf("err = %v, want ErrNoActiveChat", err)
		}
	})

	tests := []struct {
		name       string
		text       string
		resp       api.SendResponse
		wantNotice string
		wantReq    api.SendRequest
	}{
		{
			name:    "text",
			text:    "hello",
			resp:    api.SendResponse{Message: &domain.Message{ID: "m2"}},
			wantReq: api.SendRequest{ChatID: "group", Text: "hello"},
		},
		{
			name:    "image",
			text:    "/image  https://example.com/cat.png ",
			resp:    api.SendResponse{Message: &domain.Message{ID: "m3"}},
			wantReq: api.SendRequest{ChatID: "group", Type: domain.MessageImage, ImageRef: "https://example.com/cat.png"},
		},
		{
			name:    "queued",
			text:    "later",
			resp:    api.SendResponse{Queued: true},
			wantReq: api.SendRequest{ChatID: "group", Text: "later"},
		},
		{
			name:       "dropped",
			text:       "gone",
			resp:       api.SendResponse{Dropped: true},
			wantNotice: "Chat is gone: message dropped",
			wantReq:    api.SendRequest{ChatID: "group", Text: "gone"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			f.sendResp = tt.resp
			vm := NewViewModel(f)
			if err := vm.OpenChat(ctx, "group"); err != nil {
				t.Fatal(err)
			}
			notice, err := vm.Send(ctx, tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if notice != tt.wantNotice {
				t.Errorf("notice = %q, want %q", notice, tt.wantNotice)
			}
			if len(f.sent) != 1 || f.sent[0] != tt.wantReq {
				t.Errorf("sent = %+v, want %+v", f.sent, tt.wantReq)
			}
		})
	}
}

func TestLogoutClearsCache(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	if err := vm.Login(ctx, "ada", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := vm.Reload(ctx, RefreshChats|RefreshProfiles); err != nil {
		t.Fatal(err)
	}
	if err := vm.OpenChat(ctx, "group"); err != nil {
		t.Fatal(err)
	}
	if err := vm.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if vm.Chats() != nil || vm.Profiles() != nil || vm.Messages() != nil || vm.ActiveChatID() != "" {
		t.Error("logout left cached data")
	}
	if vm.Status().Authenticated {
		t.Error("still authenticated")
	}
}

func TestReloadSkipsProfilesWhenSignedOut(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	if err := vm.Reload(ctx, RefreshStatus|RefreshProfiles); err != nil {
		t.Fatal(err)
	}
	if f.profilesCalls != 0 {
		t.Errorf("profiles fetched %d times while signed out", f.profilesCalls)
	}

	f.status.Authenticated = true
	if err := vm.Reload(ctx, RefreshStatus|RefreshProfiles); err != nil {
		t.Fatal(err)
	}
	if f.profilesCalls != 1 {
		t.Errorf("profiles fetched %d times, want 1", f.profilesCalls)
	}
}

func TestReloadReturnsError(t *testing.T) {
	f := newFake()
	f.chatsErr = errors.New("boom")
	vm := NewViewModel(f)
	if err := vm.Reload(context.Background(), RefreshStatus|RefreshChats); err == nil {
		t.Error("expected the chats error")
	}
}

func TestApply(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	if err := vm.OpenChat(context.Background(), "group"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		evt  api.Event
		want Refresh
	}{
		{"active chat message", event(bus.ChatMessageAppended, map[string]string{"chat_id": "group"}), RefreshChats | RefreshStatus | RefreshMessages},
		{"other chat message", event(bus.ChatMessageAppended, map[string]string{"chat_id": "direct:a:b"}), RefreshChats | RefreshStatus},
		{"chat event without id", event(bus.ChatRead, nil), RefreshChats | RefreshStatus | RefreshMessages},
		{"profile", event(bus.ProfileChanged, nil), RefreshProfiles | RefreshChats},
		{"session", event(bus.SessionAuthenticated, nil), RefreshStatus | RefreshChats | RefreshProfiles},
		{"unknown", event("other.thing", nil), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vm.Apply(tt.evt); got != tt.want {
				t.Errorf("Apply(%s) = %b, want %b", tt.evt.Kind, got, tt.want)
			}
		})
	}
}

func TestDelivery(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	if err := vm.LoadChats(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		evt    api.Event
		want   Delivery
		wantOK bool
	}{
		{
			name:   "queued",
			evt:    event(bus.ChatMessageQueued, map[string]string{"chat_id": "group", "client_id": "c1"}),
			want:   Delivery{ChatID: "group", ChatName: "Team"},
			wantOK: true,
		},
		{
			name:   "failed",
			evt:    event(bus.ChatMessageFailed, map[string]string{"chat_id": "group", "client_id": "c1", "error": "unauthorized"}),
			want:   Delivery{ChatID: "group", ChatName: "Team", Failed: true, Reason: "unauthorized"},
			wantOK: true,
		},
		{
			name:   "unknown chat keeps its id",
			evt:    event(bus.ChatMessageQueued, map[string]string{"chat_id": "gone"}),
			want:   Delivery{ChatID: "gone", ChatName: "gone"},
			wantOK: true,
		},
		{
			name: "not an outbox event",
			evt:  event(bus.ChatMessageAppended, map[string]string{"chat_id": "group"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := vm.Delivery(tt.evt)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Delivery() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestApplyThemeAndReset(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	if vm.Theme() != theme.Light {
		t.Errorf("default theme = %s, want light", vm.Theme())
	}
	if r := vm.Apply(event(bus.ThemeChanged, theme.Dark)); r != RefreshTheme {
		t.Errorf("theme refresh = %b", r)
	}
	if vm.Theme() != theme.Dark {
		t.Errorf("theme = %s, want dark", vm.Theme())
	}

	if err := vm.Reload(ctx, RefreshChats); err != nil {
		t.Fatal(err)
	}
	if err := vm.OpenChat(ctx, "group"); err != nil {
		t.Fatal(err)
	}
	r := vm.Apply(event(bus.ChatReset, nil))
	if !r.Has(RefreshChats) || !r.Has(RefreshMessages) {
		t.Errorf("reset refresh = %b", r)
	}
	if vm.Chats() != nil || vm.ActiveChatID() != "" {
		t.Error("reset left chat state")
	}
}

func TestToggleTheme(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	next, err := vm.ToggleTheme(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next != theme.Dark || f.theme != theme.Dark || vm.Theme() != theme.Dark {
		t.Errorf("toggle from light gave %s (daemon %s)", next, f.theme)
	}
	if next, _ = vm.ToggleTheme(ctx); next != theme.Light {
		t.Errorf("second toggle gave %s", next)
	}
}

func TestMarkActiveRead(t *testing.T) {
	f := newFake()
	vm := NewViewModel(f)
	ctx := context.Background()

	if err := vm.MarkActiveRead(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.active) != 0 {
		t.Error("marked read without an open chat")
	}
	_ = vm.OpenChat(ctx, "group")
	_ = vm.MarkActiveRead(ctx)
	if got := f.active[len(f.active)-1]; got != "group" {
		t.Errorf("last SetActiveChat = %q", got)
	}
}
