package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/tui/ui"
)

// AuthView is the sign-in and sign-up form shown while no user is signed in.
type AuthView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	onLogin  func(identity, secret string)
	onSignUp func(identity, secret, username string)
}

const (
	fieldIdentity = "Identity"
	fieldSecret   = "Password"
	fieldUsername = "Username (sign-up)"
)

// NewAuthView creates the auth form.
func NewAuthView(theme *ui.Theme) *AuthView {
	form := tview.NewForm().
		AddInputField(fieldIdentity, "", 40, nil, nil).
		AddPasswordField(fieldSecret, "", 40, '*', nil).
		AddInputField(fieldUsername, "", 40, nil, nil)
	form.SetBorder(true)
	form.SetTitle(" Sign in ")

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	av := &AuthView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(form, 11, 0, true).
			AddItem(message, 0, 1, false),
		form:    form,
		message: message,
	}

	form.AddButton("Log in", func() {
		identity, secret, _ := av.values()
		if av.onLogin != nil {
			av.onLogin(identity, secret)
		}
	})
	form.AddButton("Sign up", func() {
		identity, secret, username := av.values()
		if av.onSignUp != nil {
			av.onSignUp(identity, secret, username)
		}
	})

	av.ApplyTheme(theme)
	return av
}

// Name implements Component.
func (av *AuthView) Name() string { return "Sign in" }

// Hints implements Component.
func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// ApplyTheme restyles the form.
func (av *AuthView) ApplyTheme(t *ui.Theme) {
	av.theme = t
	av.SetBackgroundColor(t.BgColor)
	av.form.SetBackgroundColor(t.BgColor)
	av.form.SetBorderColor(t.BorderColor)
	av.form.SetTitleColor(t.TitleColor)
	av.form.SetLabelColor(t.MenuKeyColor)
	av.form.SetFieldBackgroundColor(t.BgColor)
	av.form.SetFieldTextColor(t.FgColor)
	av.form.SetButtonBackgroundColor(t.TableCursorBg)
	av.form.SetButtonTextColor(t.TableCursorFg)
	av.message.SetBackgroundColor(t.BgColor)
	av.message.SetTextColor(t.FgColor)
}

// SetOnLogin sets the callback for the log-in button.
func (av *AuthView) SetOnLogin(fn func(identity, secret string)) {
	av.onLogin = fn
}

// SetOnSignUp sets the callback for the sign-up button.
func (av *AuthView) SetOnSignUp(fn func(identity, secret, username string)) {
	av.onSignUp = fn
}

// ShowMessage displays a status line under the form.
func (av *AuthView) ShowMessage(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "\n%s", display(msg))
}

// Reset clears the password and the status line.
func (av *AuthView) Reset() {
	if f, ok := av.form.GetFormItemByLabel(fieldSecret).(*tview.InputField); ok {
		f.SetText("")
	}
	av.message.Clear()
}

// Form returns the form (for focus management).
func (av *AuthView) Form() *tview.Form {
	return av.form
}

// FocusTarget implements ui.Focuser.
func (av *AuthView) FocusTarget() tview.Primitive {
	return av.form
}

func (av *AuthView) values() (identity, secret, username string) {
	get := func(label string) string {
		if f, ok := av.form.GetFormItemByLabel(label).(*tview.InputField); ok {
			return strings.TrimSpace(f.GetText())
		}
		return ""
	}
	return get(fieldIdentity), get(fieldSecret), get(fieldUsername)
}
