package ui

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in one column of the header.
const menuRows = 5

// Menu lists the current page's key hints in the header, in columns of menuRows.
type Menu struct {
	*tview.TextView
	theme *Theme
	hints []MenuHint
}

// NewMenu creates an empty menu.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// ApplyTheme restyles the menu and redraws its hints in the new key colors.
func (m *Menu) ApplyTheme(t *Theme) {
	m.theme = t
	m.SetBackgroundColor(t.BgColor)
	m.render()
}

// Update replaces the hints.
func (m *Menu) Update(hints []MenuHint) {
	m.hints = slices.Clone(hints)
	m.render()
}

func (m *Menu) render() {
	m.SetText(formatMenu(m.hints, m.theme))
}

// formatMenu lays hints out column by column. Columns are padded to their widest cell
// so keys line up across rows.
func formatMenu(hints []MenuHint, t *Theme) string {
	if len(hints) == 0 {
		return ""
	}
	keyColor := colorName(t.MenuKeyColor)
	numColor := colorName(t.NumericKeyColor)

	rows := min(len(hints), menuRows)
	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		widths[i/menuRows] = max(widths[i/menuRows], hintWidth(h))
	}

	lines := make([]strings.Builder, rows)
	for i, h := range hints {
		col, row := i/menuRows, i%menuRows
		kc := keyColor
		if h.Numeric {
			kc = numColor
		}
		line := &lines[row]
		fmt.Fprintf(line, "[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), tview.Escape(h.Description))
		if col < cols-1 {
			line.WriteString(strings.Repeat(" ", widths[col]-hintWidth(h)+2))
		}
	}

	out := make([]string, rows)
	for i := range lines {
		out[i] = strings.TrimRight(lines[i].String(), " ")
	}
	return strings.Join(out, "\n")
}

// hintWidth is the on-screen width of "<key> description".
func hintWidth(h MenuHint) int {
	return utf8.RuneCountInString(h.Key) + utf8.RuneCountInString(h.Description) + 3
}
