package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// MessageThread displays messages and a composer for a single chat.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	chatName string
	chatID   string
	selfID   string
	onSend   func(text string)
	now      func() time.Time
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetTitle(" Messages ")

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetTitle(" Compose (i to focus, /image <url> for a picture) ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	mt.ApplyTheme(theme)
	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.chatName != "" {
		return mt.chatName
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// ApplyTheme restyles the thread and composer.
func (mt *MessageThread) ApplyTheme(t *ui.Theme) {
	mt.theme = t
	mt.messages.SetBorderColor(t.BorderColor)
	mt.messages.SetBackgroundColor(t.BgColor)
	mt.messages.SetTextColor(t.FgColor)
	mt.messages.SetTitleColor(t.TitleColor)
	mt.composer.SetBorderColor(t.BorderColor)
	mt.composer.SetBackgroundColor(t.BgColor)
	mt.composer.SetFieldBackgroundColor(t.BgColor)
	mt.composer.SetFieldTextColor(t.FgColor)
	mt.composer.SetLabelColor(t.MenuKeyColor)
	mt.composer.SetTitleColor(t.TitleColor)
	mt.SetBackgroundColor(t.BgColor)
}

// SetChat stores the open chat and its title.
func (mt *MessageThread) SetChat(chatID, name string) {
	mt.chatID = chatID
	mt.chatName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", display(name)))
}

// ChatID returns the open chat.
func (mt *MessageThread) ChatID() string {
	return mt.chatID
}

// SetSelf marks whose messages render as "You".
func (mt *MessageThread) SetSelf(userID string) {
	mt.selfID = userID
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update refreshes the message view. msgs are in chronological order.
func (mt *MessageThread) Update(msgs []domain.Message) {
	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, mt.renderMessages(msgs))
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) renderMessages(msgs []domain.Message) string {
	now := mt.now()
	var out strings.Builder
	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = domain.UnknownSender
		}
		color := mt.theme.TitleColor
		if m.SenderID != "" && m.SenderID == mt.selfID {
			sender = "You"
			color = mt.theme.SelfColor
		}

		body := display(m.Text)
		if m.Type == domain.MessageImage {
			body = "[::i]" + tview.Escape("[image]") + "[::-] " + display(m.ImageRef)
			if m.Text != "" {
				body += "\n" + display(m.Text)
			}
		}

		fmt.Fprintf(&out, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			colorName(color), display(sender), formatTimestamp(m.Timestamp, now), body)
	}
	return out.String()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// FocusTarget implements ui.Focuser: the history pane takes focus when the page shows.
func (mt *MessageThread) FocusTarget() tview.Primitive {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
