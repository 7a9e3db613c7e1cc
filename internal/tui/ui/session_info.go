package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds the daemon's session summary for display.
type SessionData struct {
	Workspace string
	Mode      string
	Username  string
	Presence  string
	State     string
	Chats     int
	Unread    int
	Uptime    time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
	data  *SessionData
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorderPadding(0, 0, 1, 1)

	si := &SessionInfo{TextView: tv}
	si.ApplyTheme(theme)
	return si
}

// ApplyTheme restyles and redraws the panel.
func (si *SessionInfo) ApplyTheme(t *Theme) {
	si.theme = t
	si.SetBackgroundColor(t.BgColor)
	si.Update(si.data)
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.data = data
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)

	user := data.Username
	if user == "" {
		user = "-"
	} else if data.Presence != "" {
		user += " (" + data.Presence + ")"
	}

	text := fmt.Sprintf(
		"[%s::b]Workspace:[-:-:-] [%s]%s[-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]      [%s]%s[-]\n"+
			"[%s::b]State:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]     [%s]%d[-] [%s](%d unread)[-]\n"+
			"[%s::b]Uptime:[-:-:-]    [%s]%s[-]",
		fgColor, counterColor, tview.Escape(data.Workspace), fgColor, data.Mode,
		fgColor, counterColor, tview.Escape(user),
		fgColor, counterColor, data.State,
		fgColor, counterColor, data.Chats, fgColor, data.Unread,
		fgColor, counterColor, FormatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(si, text)
}

// FormatDuration renders an uptime as "1h2m" or "3m".
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
