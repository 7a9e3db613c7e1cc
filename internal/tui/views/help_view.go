package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetTitle(" Help ")

	hv := &HelpView{TextView: tv}
	hv.ApplyTheme(theme)
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ApplyTheme restyles and redraws the help text.
func (hv *HelpView) ApplyTheme(t *ui.Theme) {
	hv.theme = t
	hv.SetBorderColor(t.BorderColor)
	hv.SetBackgroundColor(t.BgColor)
	hv.SetTextColor(t.FgColor)
	hv.SetTitleColor(t.TitleColor)
	hv.render()
}

type helpSection struct {
	title string
	rows  [][2]string
}

var helpSections = []helpSection{
	{"Global Keys", [][2]string{
		{":", "Command mode"},
		{"/", "Filter mode"},
		{"Esc", "Cancel / Go back"},
		{"?", "Help"},
		{"t", "Toggle light/dark theme"},
		{"q", "Quit"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Conversation List", [][2]string{
		{"Enter", "Open conversation"},
		{"1-9", "Jump to Nth chat"},
		{"n", "People (start a chat)"},
		{"m", "Show my id as a QR code"},
		{"j/k", "Move down / up"},
	}},
	{"Message Thread", [][2]string{
		{"i", "Focus composer"},
		{"d", "Conversation details"},
		{"Enter", "Send message (in composer)"},
	}},
	{"Commands (: mode)", [][2]string{
		{":chat <username>", "Open a direct chat"},
		{":people", "Browse the directory"},
		{":online / :offline", "Set presence"},
		{":rename <name>", "Change username"},
		{":theme [light|dark]", "Switch theme"},
		{":id", "Show my id as a QR code"},
		{":logout", "Sign out"},
		{":help / :h", "Show this help"},
		{":quit / :q", "Quit application"},
	}},
}

func (hv *HelpView) render() {
	hv.Clear()
	kc := colorName(hv.theme.MenuKeyColor)

	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, r := range s.rows {
			fmt.Fprintf(&b, "  [%s]%-22s[-:-:-] %s\n", kc, tview.Escape(r[0]), r[1])
		}
	}
	_, _ = fmt.Fprint(hv, b.String())
}
