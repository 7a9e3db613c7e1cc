package views

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// sanitizeForTerminal removes codepoints that break tcell rendering or could smuggle
// terminal escapes in from remote text:
// - skin tone modifiers (U+1F3FB..U+1F3FF)
// - the zero width joiner (U+200D)
// - variation selectors (U+FE00..U+FE0F, U+E0100..U+E01EF)
// - control characters other than newline and tab
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	default:
		return false
	}
}

// display escapes and sanitizes s for a dynamic-color tview primitive.
func display(s string) string {
	return tview.Escape(sanitizeForTerminal(s))
}

// formatTimestamp shows the time for today and the date otherwise.
func formatTimestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// colorName returns a tview color tag value for c.
func colorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
