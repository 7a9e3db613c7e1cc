package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rivo/tview"
)

// maxCrumb is the widest a single crumb gets; chat names beyond it are clipped.
const maxCrumb = 24

// Crumbs shows the page trail under the pages, e.g. "Conversations > Ada > Details".
type Crumbs struct {
	*tview.TextView
	theme *Theme
	trail []string
}

// NewCrumbs creates an empty crumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// ApplyTheme restyles the bar and redraws the current trail.
func (c *Crumbs) ApplyTheme(t *Theme) {
	c.theme = t
	c.SetBackgroundColor(t.BgColor)
	c.render()
}

// Update shows trail, the active page last.
func (c *Crumbs) Update(trail []string) {
	c.trail = slices.Clone(trail)
	c.render()
}

func (c *Crumbs) render() {
	c.SetText(formatTrail(c.trail, c.theme))
}

// formatTrail renders crumbs with the last one highlighted. Labels come from chat and
// user names, so they are escaped before they reach the color tag parser.
func formatTrail(trail []string, t *Theme) string {
	parts := make([]string, 0, len(trail))
	for i, name := range trail {
		label := tview.Escape(shorten(name, maxCrumb))
		if i == len(trail)-1 {
			parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]",
				colorName(t.CrumbActiveFg), colorName(t.CrumbActiveBg), label))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:] %s [-:-:-]",
			colorName(t.CrumbInactiveFg), colorName(t.CrumbInactiveBg), label))
	}
	return strings.Join(parts, " > ")
}

// shorten clips s to n runes, the last one an ellipsis.
func shorten(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
