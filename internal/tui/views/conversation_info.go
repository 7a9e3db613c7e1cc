package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
	now   func() time.Time
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetTitle(" Conversation Details ")

	ci := &ConversationInfo{TextView: tv, now: time.Now}
	ci.ApplyTheme(theme)
	return ci
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// ApplyTheme restyles the view.
func (ci *ConversationInfo) ApplyTheme(t *ui.Theme) {
	ci.theme = t
	ci.SetBorderColor(t.BorderColor)
	ci.SetBackgroundColor(t.BgColor)
	ci.SetTextColor(t.FgColor)
	ci.SetTitleColor(t.TitleColor)
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(chat *domain.ChatSummary) {
	ci.Clear()
	if chat == nil {
		return
	}

	fg := colorName(ci.theme.FgColor)
	ct := colorName(ci.theme.CounterColor)

	chatType := "Direct Message"
	if chat.IsGroup {
		chatType = "Group"
	}

	lastActive := formatTimestamp(chat.LastMessageAt, ci.now())
	if lastActive == "" {
		lastActive = "-"
	}
	with := chat.ParticipantUserID
	if with == "" {
		with = "-"
	}

	name := chatName(*chat)
	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]ID:[-:-:-]           [%s]%s[-]\n"+
			" [%s::b]Type:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]With:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]Avatar:[-:-:-]       [%s]%s[-]\n"+
			" [%s::b]Unread:[-:-:-]       [%s]%d[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]",
		fg, ct, display(name),
		fg, ct, display(chat.ID),
		fg, ct, chatType,
		fg, ct, display(with),
		fg, ct, display(chat.AvatarRef),
		fg, ct, chat.UnreadCount,
		fg, ct, lastActive,
		fg, ct, display(chat.LastMessage),
	)

	_, _ = fmt.Fprint(ci, text)
	ci.SetTitle(fmt.Sprintf(" %s Details ", display(name)))
}
