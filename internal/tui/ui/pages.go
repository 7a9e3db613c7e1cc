package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Page names a screen of the client.
type Page string

const (
	PageChats   Page = "chats"
	PageThread  Page = "chat"
	PagePeople  Page = "people"
	PageDetails Page = "details"
	PageHelp    Page = "help"
	PageAuth    Page = "auth"
	PageID      Page = "id"
)

// Pages is the page stack over tview.Pages. Every page is backed by a registered
// Component; after each change the stack reports the top component and the crumb trail.
type Pages struct {
	*tview.Pages
	views    map[Page]Component
	order    []Page
	stack    []Page
	onChange func(top Component, trail []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
		views: make(map[Page]Component),
	}
}

// Register makes c the component behind page. Registering a page again replaces it.
func (p *Pages) Register(page Page, c Component) {
	if _, ok := p.views[page]; !ok {
		p.order = append(p.order, page)
	}
	p.views[page] = c
	p.AddPage(string(page), c, true, false)
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(top Component, trail []string)) {
	p.onChange = fn
}

// Push shows page on top. Pushing the current page does nothing, and pushing a page
// already lower in the stack unwinds back to it, so the trail never repeats a page.
// It reports whether the stack changed.
func (p *Pages) Push(page Page) bool {
	if _, ok := p.views[page]; !ok || p.Current() == page {
		return false
	}
	if i := slices.Index(p.stack, page); i >= 0 {
		for _, above := range p.stack[i+1:] {
			p.HidePage(string(above))
		}
		p.stack = p.stack[:i+1]
	} else {
		if top := p.Current(); top != "" {
			p.HidePage(string(top))
		}
		p.stack = append(p.stack, page)
	}
	p.show(page)
	p.notify()
	return true
}

// Pop removes the top page and shows the one below. The root page stays; Pop returns ""
// when there is nothing above it.
func (p *Pages) Pop() Page {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(string(top))
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.stack[len(p.stack)-1])
	p.notify()
	return top
}

// Reset clears the stack and shows only page.
func (p *Pages) Reset(page Page) {
	if _, ok := p.views[page]; !ok {
		return
	}
	for _, n := range p.stack {
		p.HidePage(string(n))
	}
	p.stack = []Page{page}
	p.show(page)
	p.notify()
}

// Current returns the top page, or "" before the first Reset.
func (p *Pages) Current() Page {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the component of the top page, or nil.
func (p *Pages) Top() Component {
	return p.views[p.Current()]
}

// FocusTarget returns the primitive that should hold focus for the top page.
func (p *Pages) FocusTarget() tview.Primitive {
	c := p.Top()
	if c == nil {
		return nil
	}
	if f, ok := c.(Focuser); ok {
		return f.FocusTarget()
	}
	return c
}

// Stack returns a copy of the page stack, root first.
func (p *Pages) Stack() []Page {
	return slices.Clone(p.stack)
}

// Trail returns the crumb labels of the stack, root first.
func (p *Pages) Trail() []string {
	out := make([]string, 0, len(p.stack))
	for _, page := range p.stack {
		out = append(out, p.views[page].Name())
	}
	return out
}

func (p *Pages) Depth() int {
	return len(p.stack)
}

// ApplyTheme restyles every registered component, in registration order.
func (p *Pages) ApplyTheme(t *Theme) {
	for _, page := range p.order {
		p.views[page].ApplyTheme(t)
	}
	p.notify()
}

func (p *Pages) show(page Page) {
	p.ShowPage(string(page))
	p.SendToFront(string(page))
}

func (p *Pages) notify() {
	if p.onChange != nil && len(p.stack) > 0 {
		p.onChange(p.Top(), p.Trail())
	}
}
