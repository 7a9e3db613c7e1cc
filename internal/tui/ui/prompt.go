package ui

import (
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates the type of prompt (command or filter).
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

// maxHistory bounds the command history.
const maxHistory = 50

// Prompt is the ':' command and '/' filter bar. Command mode recalls earlier commands
// with Up/Down and completes command names on Tab. Filter mode reports every edit so
// lists narrow while the user types; Esc clears the filter again.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	commands []string
	history  []string
	// recall indexes history while browsing with Up/Down; len(history) is the blank line.
	recall   int
	onSubmit func(mode PromptMode, text string)
	onFilter func(text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	p := &Prompt{InputField: tview.NewInputField()}
	p.SetBorder(true)
	p.ApplyTheme(theme)

	p.SetChangedFunc(p.edited)
	p.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return event
		}
		switch event.Key() {
		case tcell.KeyUp:
			p.SetText(p.step(-1))
			return nil
		case tcell.KeyDown:
			p.SetText(p.step(1))
			return nil
		case tcell.KeyTab:
			p.SetText(p.complete(p.GetText()))
			return nil
		}
		return event
	})
	p.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			p.submit(p.GetText())
		case tcell.KeyEscape:
			p.cancel()
		}
	})
	return p
}

// ApplyTheme restyles the input.
func (p *Prompt) ApplyTheme(t *Theme) {
	p.theme = t
	p.SetBorderColor(t.PromptBorderColor)
	p.SetBackgroundColor(t.BgColor)
	p.SetFieldBackgroundColor(t.BgColor)
	p.SetFieldTextColor(t.FgColor)
	p.SetLabelColor(t.MenuKeyColor)
}

// SetCommands sets the command names Tab completes.
func (p *Prompt) SetCommands(names []string) {
	p.commands = slices.Sorted(slices.Values(names))
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnFilter sets the callback for each edit in filter mode.
func (p *Prompt) SetOnFilter(fn func(text string)) {
	p.onFilter = fn
}

// SetOnCancel sets the callback when the prompt is cancelled.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate shows the prompt in the specified mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.recall = len(p.history)
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// History returns the submitted commands, oldest first.
func (p *Prompt) History() []string {
	return slices.Clone(p.history)
}

func (p *Prompt) edited(text string) {
	if p.mode == PromptFilter && p.onFilter != nil {
		p.onFilter(text)
	}
}

func (p *Prompt) submit(text string) {
	text = strings.TrimSpace(text)
	if p.mode == PromptCommand && text != "" {
		if n := len(p.history); n == 0 || p.history[n-1] != text {
			p.history = append(p.history, text)
			if len(p.history) > maxHistory {
				p.history = p.history[len(p.history)-maxHistory:]
			}
		}
	}
	p.recall = len(p.history)
	mode := p.mode
	// Leave command mode first so clearing the field is not reported as a filter edit.
	p.mode = PromptCommand
	p.SetText("")
	if p.onSubmit != nil && text != "" {
		p.onSubmit(mode, text)
	}
}

func (p *Prompt) cancel() {
	if p.mode == PromptFilter && p.onFilter != nil {
		p.onFilter("")
	}
	p.mode = PromptCommand
	p.SetText("")
	if p.onCancel != nil {
		p.onCancel()
	}
}

// step moves through the history by delta and returns the line to show. Past the newest
// entry the line is blank.
func (p *Prompt) step(delta int) string {
	p.recall = max(0, min(len(p.history), p.recall+delta))
	if p.recall == len(p.history) {
		return ""
	}
	return p.history[p.recall]
}

// complete extends the command name being typed to the longest prefix shared by every
// matching command, adding a space once the match is unique. Text with arguments is left
// alone.
func (p *Prompt) complete(text string) string {
	if strings.ContainsRune(strings.TrimLeft(text, " "), ' ') {
		return text
	}
	typed := strings.ToLower(strings.TrimSpace(text))
	var matches []string
	for _, c := range p.commands {
		if strings.HasPrefix(c, typed) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return text
	case 1:
		return matches[0] + " "
	}
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if len(prefix) < len(typed) {
		return text
	}
	return prefix
}
