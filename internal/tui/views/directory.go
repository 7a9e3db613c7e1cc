package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// Directory lists the other users; selecting one opens the direct chat with them.
type Directory struct {
	*tview.Table
	theme    *ui.Theme
	profiles []domain.Profile
	filter   string
}

// NewDirectory creates the directory table.
func NewDirectory(theme *ui.Theme) *Directory {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetTitle(" People ")

	d := &Directory{Table: table}
	d.ApplyTheme(theme)
	return d
}

// Name implements Component.
func (d *Directory) Name() string { return "People" }

// Hints implements Component.
func (d *Directory) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "/", Description: "Filter"},
		{Key: "Esc", Description: "Back"},
	}
}

// ApplyTheme restyles the table.
func (d *Directory) ApplyTheme(t *ui.Theme) {
	d.theme = t
	d.SetBorderColor(t.BorderColor)
	d.SetBackgroundColor(t.BgColor)
	d.SetTitleColor(t.TitleColor)
	d.SetSelectedStyle(tcell.StyleDefault.
		Foreground(t.TableCursorFg).
		Background(t.TableCursorBg))
	d.render()
}

// Update refreshes the directory.
func (d *Directory) Update(profiles []domain.Profile) {
	d.profiles = profiles
	d.render()
}

// SetFilter narrows the list to usernames containing filter.
func (d *Directory) SetFilter(filter string) {
	d.filter = filter
	d.render()
}

func (d *Directory) visible() []domain.Profile {
	out := make([]domain.Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		if d.filter == "" || containsFold(p.Username, d.filter) {
			out = append(out, p)
		}
	}
	return out
}

func (d *Directory) render() {
	d.Clear()
	for col, h := range []string{" USERNAME", " STATUS", " ID"} {
		d.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(d.theme.TableHeaderFg).
			SetBackgroundColor(d.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(1))
	}

	rows := d.visible()
	for i, p := range rows {
		statusColor := d.theme.FgColor
		if p.Status == domain.StatusOnline {
			statusColor = d.theme.UnreadColor
		}
		d.SetCell(i+1, 0, tview.NewTableCell(" "+display(p.Username)).SetExpansion(1).SetTextColor(d.theme.FgColor))
		d.SetCell(i+1, 1, tview.NewTableCell(" "+string(p.Status)).SetExpansion(1).SetTextColor(statusColor))
		d.SetCell(i+1, 2, tview.NewTableCell(" "+display(p.ID)).SetExpansion(1).SetTextColor(d.theme.FgColor))
	}
	d.SetTitle(fmt.Sprintf(" People (%d) ", len(rows)))
}

// SelectedProfile returns the highlighted profile.
func (d *Directory) SelectedProfile() (domain.Profile, bool) {
	row, _ := d.GetSelection()
	rows := d.visible()
	if row < 1 || row > len(rows) {
		return domain.Profile{}, false
	}
	return rows[row-1], true
}
