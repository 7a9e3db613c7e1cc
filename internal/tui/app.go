// Package tui is the terminal front end. It renders the daemon's chat cache and follows
// its event stream.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/domain"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/theme"
	"github.com/matheus3301/chatsync/internal/tui/keys"
	"github.com/matheus3301/chatsync/internal/tui/model"
	"github.com/matheus3301/chatsync/internal/tui/ui"
	"github.com/matheus3301/chatsync/internal/tui/views"
)

// Client is the daemon connection the TUI needs. *api.Client implements it.
type Client interface {
	model.Daemon
	WatchEvents(ctx context.Context, namespace string) (<-chan api.Event, error)
}

var _ Client = (*api.Client)(nil)

const reloadAll = model.RefreshStatus | model.RefreshChats | model.RefreshProfiles | model.RefreshMessages | model.RefreshTheme

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	client    Client
	vm        *model.ViewModel
	registry  *keys.Registry
	theme     *ui.Theme
	flash     *ui.FlashModel
	workspace string

	root     *tview.Flex
	header   *tview.Flex
	pages    *ui.Pages
	info     *ui.SessionInfo
	menu     *ui.Menu
	logo     *ui.Logo
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	chatList *views.ConversationList
	thread   *views.MessageThread
	people   *views.Directory
	details  *views.ConversationInfo
	help     *views.HelpView
	auth     *views.AuthView
	qr       *views.QRCard

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c Client, workspace string, initial theme.Theme) *App {
	ctx, cancel := context.WithCancel(context.Background())
	th := ui.Palette(initial)

	a := &App{
		app:       tview.NewApplication(),
		client:    c,
		vm:        model.NewViewModel(c),
		registry:  keys.NewRegistry(),
		theme:     th,
		flash:     ui.NewFlashModel(),
		workspace: workspace,
		pages:     ui.NewPages(),
		info:      ui.NewSessionInfo(th),
		menu:      ui.NewMenu(th),
		logo:      ui.NewLogo(th),
		crumbs:    ui.NewCrumbs(th),
		flashBar:  ui.NewFlashBar(th),
		prompt:    ui.NewPrompt(th),
		chatList:  views.NewConversationList(th),
		thread:    views.NewMessageThread(th),
		people:    views.NewDirectory(th),
		details:   views.NewConversationInfo(th),
		help:      views.NewHelpView(th),
		auth:      views.NewAuthView(th),
		qr:        views.NewQRCard(th),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.pages.Register(ui.PageChats, a.chatList)
	a.pages.Register(ui.PageThread, a.thread)
	a.pages.Register(ui.PagePeople, a.people)
	a.pages.Register(ui.PageDetails, a.details)
	a.pages.Register(ui.PageHelp, a.help)
	a.pages.Register(ui.PageAuth, a.auth)
	a.pages.Register(ui.PageID, a.qr)
	a.prompt.SetCommands(commands)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.push(ui.PageHelp) },
	})
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: ":command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("theme", &keys.Action{
		Rune: 't', Key: tcell.KeyRune,
		Description: "t:theme",
		Handler: func() { a.runCommand(Command{Name: "theme"}) },
	})

	a.registry.AddView(string(ui.PageChats), "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(string(ui.PageChats), "people", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new chat", Visible: true,
		Handler: func() { a.showPeople() },
	})
	a.registry.AddView(string(ui.PageChats), "id", &keys.Action{
		Rune: 'm', Key: tcell.KeyRune,
		Description: "m:my id",
		Handler: func() { a.showID() },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(string(ui.PageChats), fmt.Sprintf("jump%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Handler: func() {
				if id := a.chatList.ChatByIndex(n); id != "" {
					a.openChat(id)
				}
			},
		})
	}

	a.registry.AddView(string(ui.PageThread), "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "d:details", Visible: true,
		Handler: func() { a.showDetails() },
	})
	a.registry.AddView(string(ui.PageThread), "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})

	a.registry.AddView(string(ui.PagePeople), "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if id := a.chatList.SelectedChat(); id != "" {
			a.openChat(id)
		}
	})

	a.people.SetSelectedFunc(func(row, col int) {
		if p, ok := a.people.SelectedProfile(); ok {
			a.startChat(api.OpenChatRequest{UserID: p.ID})
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			notice, err := a.vm.Send(a.ctx, text)
			switch {
			case err != nil:
				a.flash.Err(fmt.Errorf("send failed: %w", err))
			case notice != "":
				a.flash.Warn(notice)
			}
		}()
	})

	a.auth.SetOnLogin(func(identity, secret string) {
		a.auth.ShowMessage("Signing in...")
		go a.authenticate(func() error { return a.vm.Login(a.ctx, identity, secret) })
	})
	a.auth.SetOnSignUp(func(identity, secret, username string) {
		a.auth.ShowMessage("Creating account...")
		go a.authenticate(func() error { return a.vm.SignUp(a.ctx, identity, secret, username) })
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.applyFilter(text)
		}
	})
	a.prompt.SetOnFilter(a.applyFilter)
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(top ui.Component, trail []string) {
		a.crumbs.Update(trail)
		a.menu.Update(a.hints(top))
	})
}

// hints are the page's own hints plus any visible binding they do not mention.
func (a *App) hints(top ui.Component) []ui.MenuHint {
	bound := ui.HintsFromBindings(a.registry.Hints(string(a.pages.Current())))
	return ui.MergeHints(top.Hints(), bound...)
}

func (a *App) applyFilter(text string) {
	if a.pages.Current() == ui.PagePeople {
		a.people.SetFilter(text)
		return
	}
	a.chatList.SetFilter(text)
}

func (a *App) setupLayout() {
	a.header = tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(a.logo, 16, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)
	a.header.SetBackgroundColor(a.theme.BgColor)

	a.pages.Reset(ui.PageChats)
	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	current := a.pages.Current()

	// Text inputs and the auth form handle their own keys.
	switch focus := a.app.GetFocus().(type) {
	case *ui.Prompt:
		return event
	case *tview.InputField:
		if event.Key() == tcell.KeyEscape && focus == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		return event
	}
	if current == ui.PageAuth {
		return event
	}

	if event.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if a.registry.HandleEvent(string(current), event) {
		return nil
	}
	return event
}

func (a *App) push(page ui.Page) {
	if a.pages.Push(page) {
		a.focusCurrent()
	}
}

// back pops one page. On the root page it clears the filters instead.
func (a *App) back() {
	switch a.pages.Pop() {
	case "":
		a.chatList.ClearFilter()
		a.people.SetFilter("")
		return
	case ui.PageThread:
		go func() {
			if err := a.vm.CloseChat(a.ctx); err != nil {
				a.flash.Err(err)
			}
		}()
	}
	a.focusCurrent()
}

func (a *App) focusCurrent() {
	if f := a.pages.FocusTarget(); f != nil {
		a.app.SetFocus(f)
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusCurrent()
}

// openChat activates a chat and shows its thread.
func (a *App) openChat(chatID string) {
	go func() {
		if err := a.vm.OpenChat(a.ctx, chatID); err != nil {
			a.flash.Err(fmt.Errorf("open chat: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() { a.showThread(chatID) })
	}()
}

// startChat opens the direct chat with a user, creating it when needed.
func (a *App) startChat(req api.OpenChatRequest) {
	go func() {
		chatID, err := a.vm.StartChat(a.ctx, req)
		if err != nil {
			a.flash.Err(fmt.Errorf("start chat: %w", err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			if a.pages.Current() == ui.PagePeople {
				a.pages.Pop()
			}
			a.showThread(chatID)
		})
	}()
}

func (a *App) showThread(chatID string) {
	name := chatID
	if c, ok := a.vm.Chat(chatID); ok && c.DisplayName != "" {
		name = c.DisplayName
	}
	a.thread.SetChat(chatID, name)
	a.thread.SetSelf(a.vm.Status().UserID)
	a.thread.Update(a.vm.Messages())
	a.chatList.Update(a.vm.Chats())
	a.push(ui.PageThread)
}

func (a *App) showPeople() {
	a.people.Update(a.vm.Profiles())
	a.push(ui.PagePeople)
	go a.reload(model.RefreshProfiles)
}

func (a *App) showDetails() {
	c, ok := a.vm.Chat(a.thread.ChatID())
	if !ok {
		return
	}
	a.details.Update(&c)
	a.push(ui.PageDetails)
}

func (a *App) showID() {
	st := a.vm.Status()
	if st.UserID == "" {
		a.flash.Warn("not signed in")
		return
	}
	a.qr.Show(st.Username, st.UserID)
	a.push(ui.PageID)
}

func (a *App) authenticate(fn func() error) {
	if err := fn(); err != nil {
		a.app.QueueUpdateDraw(func() { a.auth.ShowMessage("Sign-in failed: " + err.Error()) })
		return
	}
	a.reload(reloadAll)
}

// runCommand executes a ':' command.
func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.app.Stop()
	case "help":
		a.push(ui.PageHelp)
	case "people":
		a.showPeople()
	case "id":
		a.showID()
	case "chat":
		if cmd.Args == "" {
			a.flash.Warn("usage: :chat <username>")
			return
		}
		a.startChat(api.OpenChatRequest{Username: cmd.Args})
	case "online", "offline":
		a.async("presence", func() error { return a.vm.SetPresence(a.ctx, domain.Status(cmd.Name)) }, model.RefreshStatus)
	case "rename":
		if cmd.Args == "" {
			a.flash.Warn("usage: :rename <name>")
			return
		}
		a.async("rename", func() error { return a.vm.Rename(a.ctx, cmd.Args) }, model.RefreshStatus)
	case "theme":
		a.async("theme", func() error {
			if cmd.Args == "" || strings.EqualFold(cmd.Args, "toggle") {
				_, err := a.vm.ToggleTheme(a.ctx)
				return err
			}
			t, err := theme.Parse(cmd.Args)
			if err != nil {
				return err
			}
			return a.vm.SetTheme(a.ctx, t)
		}, model.RefreshTheme)
	case "logout":
		a.async("logout", func() error { return a.vm.Logout(a.ctx) }, reloadAll)
	case "":
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
}

// async runs fn off the UI goroutine and redraws what r names on success.
func (a *App) async(op string, fn func() error, r model.Refresh) {
	go func() {
		if err := fn(); err != nil {
			a.flash.Err(fmt.Errorf("%s: %w", op, err))
			return
		}
		a.app.QueueUpdateDraw(func() { a.render(r) })
	}()
}

// reload refetches what r names and redraws. Runs off the UI goroutine.
func (a *App) reload(r model.Refresh) {
	if r == 0 {
		return
	}
	if err := a.vm.Reload(a.ctx, r); err != nil && a.ctx.Err() == nil {
		a.flash.Warn(err.Error())
	}
	a.app.QueueUpdateDraw(func() { a.render(r) })
}

// render pushes view-model state into the views. UI goroutine only.
func (a *App) render(r model.Refresh) {
	if r.Has(model.RefreshTheme) {
		a.applyTheme(a.vm.Theme())
	}
	if r.Has(model.RefreshChats) {
		a.chatList.Update(a.vm.Chats())
		if a.pages.Current() == ui.PageDetails {
			if c, ok := a.vm.Chat(a.thread.ChatID()); ok {
				a.details.Update(&c)
			}
		}
	}
	if r.Has(model.RefreshMessages) {
		a.thread.Update(a.vm.Messages())
	}
	if r.Has(model.RefreshProfiles) {
		a.people.Update(a.vm.Profiles())
	}
	if r.Has(model.RefreshStatus) {
		a.renderStatus()
	}
}

func (a *App) renderStatus() {
	st := a.vm.Status()
	a.info.Update(&ui.SessionData{
		Workspace: a.workspace,
		Mode:      st.Mode,
		Username:  st.Username,
		Presence:  st.Presence,
		State:     st.State,
		Chats:     len(a.vm.Chats()),
		Unread:    a.vm.Unread(),
		Uptime:    time.Duration(st.UptimeMs) * time.Millisecond,
	})
	a.thread.SetSelf(st.UserID)
	a.route(st)
}

// route shows the auth form while nobody is signed in and leaves it once someone is.
func (a *App) route(st api.StatusInfo) {
	signedOut := !st.Authenticated && (st.State == string(status.SignedOut) || st.State == string(status.Degraded))
	switch {
	case signedOut && a.pages.Current() != ui.PageAuth:
		a.pages.Reset(ui.PageAuth)
		a.auth.Reset()
		if st.State == string(status.Degraded) {
			a.auth.ShowMessage("Session could not be renewed. Sign in again.")
		}
		a.focusCurrent()
	case st.Authenticated && a.pages.Current() == ui.PageAuth:
		a.auth.Reset()
		a.pages.Reset(ui.PageChats)
		a.focusCurrent()
	}
}

func (a *App) applyTheme(t theme.Theme) {
	if a.theme.Name == t {
		return
	}
	a.theme = ui.Palette(t)
	for _, c := range []ui.Themed{a.info, a.menu, a.logo, a.crumbs, a.flashBar, a.prompt, a.pages} {
		c.ApplyTheme(a.theme)
	}
	a.root.SetBackgroundColor(a.theme.BgColor)
	a.header.SetBackgroundColor(a.theme.BgColor)
	a.thread.Update(a.vm.Messages())
}

// watchEvents follows the daemon's event stream, reconnecting when it drops.
func (a *App) watchEvents() {
	backoff := 500 * time.Millisecond
	for {
		events, err := a.client.WatchEvents(a.ctx, "")
		if err == nil {
			backoff = 500 * time.Millisecond
			// Catch up on anything missed while disconnected.
			a.reload(reloadAll)
			for evt := range events {
				r := a.vm.Apply(evt)
				if d, ok := a.vm.Delivery(evt); ok {
					if d.Failed {
						a.flash.Failed(d.ChatName, d.Reason)
					} else {
						a.flash.Queued(d.ChatName)
					}
				}
				if evt.Kind == bus.ChatMessageAppended && r.Has(model.RefreshMessages) {
					if err := a.vm.MarkActiveRead(a.ctx); err != nil {
						a.flash.Warn(err.Error())
					}
				}
				a.reload(r)
			}
		}
		if a.ctx.Err() == nil {
			a.flash.Warn("lost connection to daemon, retrying")
		}
		select {
		case <-a.ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (a *App) watchFlash() {
	for {
		select {
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-a.ctx.Done():
			return
		}
	}
}

// startRefreshLoop keeps the uptime and flash expiry current.
func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				a.app.QueueUpdateDraw(func() {
					a.renderStatus()
					a.flashBar.Update(a.flash.GetMessage())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.watchFlash()
	go func() {
		a.reload(reloadAll)
		go a.watchEvents()
		a.startRefreshLoop()
	}()
	defer a.cancel()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
