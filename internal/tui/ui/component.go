package ui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // digit shortcuts, drawn in NumericKeyColor
}

// Component is one page of the client: something the page stack can show and restyle,
// and describe in the crumbs and the menu.
type Component interface {
	tview.Primitive
	Themed
	// Name is the crumb label. The thread reports the open chat's name.
	Name() string
	Hints() []MenuHint
}

// Focuser is implemented by components whose focus belongs to a child, such as the
// thread's history pane or the sign-in form.
type Focuser interface {
	FocusTarget() tview.Primitive
}

// HintsFromBindings turns key registry descriptions ("q:quit", ":command") into menu
// hints.
func HintsFromBindings(descs []string) []MenuHint {
	out := make([]MenuHint, 0, len(descs))
	for _, d := range descs {
		if d == "" {
			continue
		}
		// The key is everything before the first ':' past the first rune, so ":command"
		// keeps ':' as its key.
		_, size := utf8.DecodeRuneInString(d)
		key, desc := d[:size], d[size:]
		if i := strings.IndexByte(d[size:], ':'); i >= 0 {
			key, desc = d[:size+i], d[size+i+1:]
		}
		out = append(out, MenuHint{
			Key:         key,
			Description: capitalize(strings.TrimSpace(desc)),
			Numeric:     len(key) == 1 && key[0] >= '0' && key[0] <= '9',
		})
	}
	return out
}

// MergeHints returns base followed by the extra hints whose key base does not show yet.
func MergeHints(base []MenuHint, extra ...MenuHint) []MenuHint {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]MenuHint, 0, len(base)+len(extra))
	for _, h := range append(base[:len(base):len(base)], extra...) {
		if _, dup := seen[h.Key]; dup {
			continue
		}
		seen[h.Key] = struct{}{}
		out = append(out, h)
	}
	return out
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
