package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/theme"
)

// Daemon is the slice of the daemon client the TUI uses. *api.Client implements it.
type Daemon interface {
	Status(ctx context.Context) (api.StatusInfo, error)
	Login(ctx context.Context, identity, secret string) (api.StatusInfo, error)
	SignUp(ctx context.Context, identity, secret string, hints domain.ProfileHints) (api.StatusInfo, error)
	Logout(ctx context.Context) (api.StatusInfo, error)
	SetPresence(ctx context.Context, st domain.Status) (api.StatusInfo, error)
	SetUsername(ctx context.Context, name string) (api.StatusInfo, error)
	Profiles(ctx context.Context) ([]domain.Profile, error)
	Chats(ctx context.Context) ([]domain.ChatSummary, error)
	OpenChat(ctx context.Context, req api.OpenChatRequest) (string, error)
	SetActiveChat(ctx context.Context, chatID string) error
	Messages(ctx context.Context, chatID string) ([]domain.Message, error)
	Send(ctx context.Context, req api.SendRequest) (api.SendResponse, error)
	SetTheme(ctx context.Context, t theme.Theme) error
}

var _ Daemon = (*api.Client)(nil)

// ErrNoActiveChat is returned when sending without an open chat.
var ErrNoActiveChat = errors.New("no chat open")

// Refresh says which parts of the UI an event invalidated.
type Refresh uint8

const (
	RefreshStatus Refresh = 1 << iota
	RefreshChats
	RefreshMessages
	RefreshProfiles
	RefreshTheme
)

// Has reports whether r includes part.
func (r Refresh) Has(part Refresh) bool { return r&part != 0 }

// ViewModel caches daemon state for the views.
type ViewModel struct {
	mu sync.RWMutex

	client       Daemon
	status       api.StatusInfo
	chats        []domain.ChatSummary
	profiles     []domain.Profile
	messages     []domain.Message
	activeChatID string
}

// NewViewModel creates a new view model connected to the daemon client.
func NewViewModel(c Daemon) *ViewModel {
	return &ViewModel{client: c}
}

// LoadStatus fetches the daemon and session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	info, err := vm.client.Status(ctx)
	if err != nil {
		return err
	}
	vm.setStatus(info)
	return nil
}

func (vm *ViewModel) setStatus(info api.StatusInfo) {
	vm.mu.Lock()
	vm.status = info
	vm.mu.Unlock()
}

// LoadChats fetches the chat list.
func (vm *ViewModel) LoadChats(ctx context.Context) error {
	list, err := vm.client.Chats(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.chats = list
	vm.mu.Unlock()
	return nil
}

// LoadProfiles fetches the directory without the current user.
func (vm *ViewModel) LoadProfiles(ctx context.Context) error {
	list, err := vm.client.Profiles(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.profiles = list
	vm.mu.Unlock()
	return nil
}

// LoadMessages refetches the open chat's history. No-op without one.
func (vm *ViewModel) LoadMessages(ctx context.Context) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return nil
	}
	msgs, err := vm.client.Messages(ctx, chatID)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activeChatID == chatID {
		vm.messages = msgs
	}
	vm.mu.Unlock()
	return nil
}

// OpenChat makes chatID the active chat, which marks its messages read, and loads its history.
func (vm *ViewModel) OpenChat(ctx context.Context, chatID string) error {
	if err := vm.client.SetActiveChat(ctx, chatID); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.activeChatID = chatID
	vm.messages = nil
	vm.mu.Unlock()
	if err := vm.LoadMessages(ctx); err != nil {
		return err
	}
	return vm.LoadChats(ctx)
}

// MarkActiveRead marks the open chat's messages read. No-op without one.
func (vm *ViewModel) MarkActiveRead(ctx context.Context) error {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return nil
	}
	return vm.client.SetActiveChat(ctx, chatID)
}

// CloseChat clears the active chat.
func (vm *ViewModel) CloseChat(ctx context.Context) error {
	vm.mu.Lock()
	vm.activeChatID = ""
	vm.messages = nil
	vm.mu.Unlock()
	return vm.client.SetActiveChat(ctx, "")
}

// StartChat opens the direct chat with a user, by id or by username.
func (vm *ViewModel) StartChat(ctx context.Context, req api.OpenChatRequest) (string, error) {
	chatID, err := vm.client.OpenChat(ctx, req)
	if err != nil {
		return "", err
	}
	if err := vm.OpenChat(ctx, chatID); err != nil {
		return "", err
	}
	return chatID, nil
}

// Send posts text to the active chat and returns a notice for the flash bar. The thread
// is refreshed by the resulting chat event; a queued send is reported by its
// chat.message_queued event instead (see Delivery).
func (vm *ViewModel) Send(ctx context.Context, text string) (string, error) {
	chatID := vm.ActiveChatID()
	if chatID == "" {
		return "", ErrNoActiveChat
	}
	req := api.SendRequest{ChatID: chatID, Text: text}
	if ref, ok := strings.CutPrefix(text, "/image "); ok {
		req = api.SendRequest{ChatID: chatID, Type: domain.MessageImage, ImageRef: strings.TrimSpace(ref)}
	}
	resp, err := vm.client.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Dropped {
		return "Chat is gone: message dropped", nil
	}
	return "", nil
}

// Login signs in and refreshes the status.
func (vm *ViewModel) Login(ctx context.Context, identity, secret string) error {
	info, err := vm.client.Login(ctx, identity, secret)
	if err != nil {
		return err
	}
	vm.setStatus(info)
	return nil
}

// SignUp registers and signs in. username is an optional profile hint.
func (vm *ViewModel) SignUp(ctx context.Context, identity, secret, username string) error {
	info, err := vm.client.SignUp(ctx, identity, secret, domain.ProfileHints{Username: username})
	if err != nil {
		return err
	}
	vm.setStatus(info)
	return nil
}

// Logout signs out and drops everything cached for the user.
func (vm *ViewModel) Logout(ctx context.Context) error {
	info, err := vm.client.Logout(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = info
	vm.chats = nil
	vm.profiles = nil
	vm.messages = nil
	vm.activeChatID = ""
	vm.mu.Unlock()
	return nil
}

// SetPresence publishes the user's presence.
func (vm *ViewModel) SetPresence(ctx context.Context, st domain.Status) error {
	info, err := vm.client.SetPresence(ctx, st)
	if err != nil {
		return err
	}
	vm.setStatus(info)
	return nil
}

// Rename changes the user's username.
func (vm *ViewModel) Rename(ctx context.Context, name string) error {
	info, err := vm.client.SetUsername(ctx, name)
	if err != nil {
		return err
	}
	vm.setStatus(info)
	return nil
}

// SetTheme switches the theme preference.
func (vm *ViewModel) SetTheme(ctx context.Context, t theme.Theme) error {
	if err := vm.client.SetTheme(ctx, t); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status.Theme = string(t)
	vm.mu.Unlock()
	return nil
}

// ToggleTheme flips between light and dark.
func (vm *ViewModel) ToggleTheme(ctx context.Context) (theme.Theme, error) {
	next := theme.Dark
	if vm.Theme() == theme.Dark {
		next = theme.Light
	}
	return next, vm.SetTheme(ctx, next)
}

// Apply maps a daemon event to the parts of the UI it invalidates.
func (vm *ViewModel) Apply(evt api.Event) Refresh {
	switch {
	case evt.Kind == bus.ThemeChanged:
		var t theme.Theme
		if err := json.Unmarshal(evt.Payload, &t); err == nil {
			vm.mu.Lock()
			vm.status.Theme = string(t)
			vm.mu.Unlock()
		}
		return RefreshTheme
	case evt.Kind == bus.ChatReset:
		vm.mu.Lock()
		vm.chats = nil
		vm.messages = nil
		vm.activeChatID = ""
		vm.mu.Unlock()
		return RefreshChats | RefreshMessages | RefreshStatus
	case evt.Kind == bus.ProfileChanged:
		return RefreshProfiles | RefreshChats
	case strings.HasPrefix(evt.Kind, "session."):
		return RefreshStatus | RefreshChats | RefreshProfiles
	case strings.HasPrefix(evt.Kind, "chat."):
		r := RefreshChats | RefreshStatus
		var ref struct {
			ChatID string `json:"chat_id"`
		}
		_ = json.Unmarshal(evt.Payload, &ref)
		if active := vm.ActiveChatID(); active != "" && (ref.ChatID == "" || ref.ChatID == active) {
			r |= RefreshMessages
		}
		return r
	default:
		return 0
	}
}

// Delivery describes an outbox transition of a message the user sent.
type Delivery struct {
	ChatID   string
	ChatName string
	Failed   bool
	Reason   string
}

// Delivery reports whether evt is an outbox transition and describes it, naming the
// chat as the chat list does.
func (vm *ViewModel) Delivery(evt api.Event) (Delivery, bool) {
	if evt.Kind != bus.ChatMessageQueued && evt.Kind != bus.ChatMessageFailed {
		return Delivery{}, false
	}
	var p struct {
		ChatID string `json:"chat_id"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(evt.Payload, &p)
	d := Delivery{
		ChatID:   p.ChatID,
		ChatName: p.ChatID,
		Failed:   evt.Kind == bus.ChatMessageFailed,
		Reason:   p.Error,
	}
	if c, ok := vm.Chat(p.ChatID); ok && c.DisplayName != "" {
		d.ChatName = c.DisplayName
	}
	return d, true
}

// Reload refetches what r names. The first error is returned; the rest still load.
func (vm *ViewModel) Reload(ctx context.Context, r Refresh) error {
	var errs []error
	if r.Has(RefreshStatus) {
		errs = append(errs, vm.LoadStatus(ctx))
	}
	if r.Has(RefreshChats) {
		errs = append(errs, vm.LoadChats(ctx))
	}
	if r.Has(RefreshProfiles) && vm.Status().Authenticated {
		errs = append(errs, vm.LoadProfiles(ctx))
	}
	if r.Has(RefreshMessages) {
		errs = append(errs, vm.LoadMessages(ctx))
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Status returns a snapshot of the session status.
func (vm *ViewModel) Status() api.StatusInfo {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Theme returns the current theme preference.
func (vm *ViewModel) Theme() theme.Theme {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if t, err := theme.Parse(vm.status.Theme); err == nil {
		return t
	}
	return theme.Light
}

// Chats returns a snapshot of the chat list.
func (vm *ViewModel) Chats() []domain.ChatSummary {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.chats
}

// Chat returns the summary of one chat.
func (vm *ViewModel) Chat(chatID string) (domain.ChatSummary, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.chats {
		if c.ID == chatID {
			return c, true
		}
	}
	return domain.ChatSummary{}, false
}

// Unread totals unread messages across chats.
func (vm *ViewModel) Unread() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	n := 0
	for _, c := range vm.chats {
		n += c.UnreadCount
	}
	return n
}

// Profiles returns a snapshot of the directory.
func (vm *ViewModel) Profiles() []domain.Profile {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.profiles
}

// Messages returns a snapshot of the open chat's messages.
func (vm *ViewModel) Messages() []domain.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// ActiveChatID returns the open chat, if any.
func (vm *ViewModel) ActiveChatID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeChatID
}
