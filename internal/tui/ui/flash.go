package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

const (
	infoTTL = 5 * time.Second
	warnTTL = 8 * time.Second
	errTTL  = 10 * time.Second
)

// FlashMessage is a flash notification with a level and expiry.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
	// Count is how many notices were folded into this one.
	Count int

	key string
}

// FlashModel holds the flash bar's notice. Outbox notices coalesce per chat: a second
// queued send to the same chat raises the count of the live notice instead of
// replacing it.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	watchCh chan FlashMessage
	now     func() time.Time
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{
		watchCh: make(chan FlashMessage, 8),
		now:     time.Now,
	}
}

// Info sets an info-level flash message.
func (f *FlashModel) Info(msg string) {
	f.set(FlashMessage{Text: msg, Level: FlashInfo}, infoTTL)
}

// Warn sets a warn-level flash message.
func (f *FlashModel) Warn(msg string) {
	f.set(FlashMessage{Text: msg, Level: FlashWarn}, warnTTL)
}

// Err sets an error-level flash message.
func (f *FlashModel) Err(err error) {
	f.set(FlashMessage{Text: err.Error(), Level: FlashErr}, errTTL)
}

// Queued reports a send to chat that went to the outbox.
func (f *FlashModel) Queued(chat string) {
	key := "queued:" + chat
	f.mu.RLock()
	n := 1
	if f.current.key == key && f.now().Before(f.current.Expires) {
		n = f.current.Count + 1
	}
	f.mu.RUnlock()

	text := fmt.Sprintf("Offline: message to %s queued, will retry", chat)
	if n > 1 {
		text = fmt.Sprintf("Offline: %d messages to %s queued, will retry", n, chat)
	}
	f.set(FlashMessage{Text: text, Level: FlashWarn, Count: n, key: key}, warnTTL)
}

// Failed reports a queued send to chat that was given up on.
func (f *FlashModel) Failed(chat, reason string) {
	text := fmt.Sprintf("Message to %s not delivered", chat)
	if reason != "" {
		text += ": " + reason
	}
	f.set(FlashMessage{Text: text, Level: FlashErr, key: "failed:" + chat}, errTTL)
}

func (f *FlashModel) set(fm FlashMessage, ttl time.Duration) {
	if fm.Count == 0 {
		fm.Count = 1
	}
	f.mu.Lock()
	fm.Expires = f.now().Add(ttl)
	f.current = fm
	f.mu.Unlock()
	select {
	case f.watchCh <- fm:
	default:
	}
}

// GetMessage returns the current flash message, or nil if expired.
func (f *FlashModel) GetMessage() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives flash messages.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
	msg   *FlashMessage
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &FlashBar{TextView: tv, theme: theme}
}

// ApplyTheme restyles the bar and redraws the notice in the new level colors.
func (fb *FlashBar) ApplyTheme(t *Theme) {
	fb.theme = t
	fb.SetBackgroundColor(t.BgColor)
	fb.Update(fb.msg)
}

// Update renders a flash message on the bar; nil clears it.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.msg = msg
	fb.SetText(formatFlash(msg, fb.theme))
}

func formatFlash(msg *FlashMessage, t *Theme) string {
	if msg == nil {
		return ""
	}
	color, mark := colorName(t.FlashInfoColor), ""
	switch msg.Level {
	case FlashWarn:
		color, mark = colorName(t.FlashWarnColor), "! "
	case FlashErr:
		color, mark = colorName(t.FlashErrColor), "✗ "
	}
	return fmt.Sprintf(" [%s]%s%s[-]", color, mark, tview.Escape(msg.Text))
}
