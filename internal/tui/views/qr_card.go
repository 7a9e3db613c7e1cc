package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// QRCard shows the signed-in user's id as a QR code so another client can start a chat.
type QRCard struct {
	*tview.TextView
	theme *ui.Theme
}

// NewQRCard creates the card.
func NewQRCard(theme *ui.Theme) *QRCard {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetTitle(" My ID ")

	c := &QRCard{TextView: tv}
	c.ApplyTheme(theme)
	return c
}

// Name implements Component.
func (c *QRCard) Name() string { return "My ID" }

// Hints implements Component.
func (c *QRCard) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// ApplyTheme restyles the card.
func (c *QRCard) ApplyTheme(t *ui.Theme) {
	c.theme = t
	c.SetBorderColor(t.BorderColor)
	c.SetBackgroundColor(t.BgColor)
	c.SetTextColor(t.FgColor)
	c.SetTitleColor(t.TitleColor)
}

// Show renders the QR code for userID.
func (c *QRCard) Show(username, userID string) {
	c.Clear()
	_, _ = fmt.Fprintf(c, "\n[::b]%s[-:-:-]\n\n%s\n[::d]%s[-:-:-]",
		display(username), renderQR(userID), display(userID))
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters. Two bitmap rows become one terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}
	qr.DisableBorder = false

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█') // █
			case top && !bot:
				sb.WriteRune('▀') // ▀
			case !top && bot:
				sb.WriteRune('▄') // ▄
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
