// Package tui implements the terminal front end. All state lives in the
// core packages; the TUI renders bus-driven snapshots and forwards input.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/bus"
	"github.com/Nexta12/propertify-client-sub000/internal/identity"
	"github.com/Nexta12/propertify-client-sub000/internal/notify"
	"github.com/Nexta12/propertify-client-sub000/internal/outbox"
	"github.com/Nexta12/propertify-client-sub000/internal/room"
	"github.com/Nexta12/propertify-client-sub000/internal/roster"
	"github.com/Nexta12/propertify-client-sub000/internal/thread"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/model"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/ui"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/views"
	"github.com/Nexta12/propertify-client-sub000/internal/typing"
)

// Deps are the core collaborators the TUI renders.
type Deps struct {
	SessionName string
	Identity    *identity.Identity
	Bus         *bus.Bus
	Client      *api.Client
	Room        *room.Controller
	Thread      *thread.Thread
	Sender      *outbox.Sender
	Tracker     *typing.Tracker
	Notifier    *typing.Notifier
	Notify      *notify.Store
	Roster      *roster.Roster
}

// App is the main TUI application shell.
type App struct {
	app   *tview.Application
	pages *tview.Pages
	flash *model.Flash
	deps  Deps

	threadView *views.MessageThread
	convList   *views.ConversationList
	noticeList *views.NotificationList
	startForm  *views.StartForm
	statusBar  *views.StatusBar

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		flash:      &model.Flash{},
		deps:       deps,
		threadView: views.NewMessageThread(theme),
		convList:   views.NewConversationList(theme),
		noticeList: views.NewNotificationList(theme),
		startForm:  views.NewStartForm(theme),
		statusBar:  views.NewStatusBar(),
		ctx:        ctx,
		cancel:     cancel,
	}

	a.statusBar.SetSession(deps.SessionName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) isAdmin() bool {
	return a.deps.Identity != nil && a.deps.Identity.Role == identity.RoleAdmin
}

func (a *App) setupCallbacks() {
	a.startForm.SetOnStart(func(first, last string) {
		go func() {
			sess, err := a.deps.Client.StartChat(a.ctx, api.Sender{FirstName: first, LastName: last})
			if err != nil {
				a.setFlash(api.Notice(err))
				return
			}
			a.deps.Room.SetChat(sess.ID)
			if a.deps.Notifier != nil {
				a.deps.Notifier.SetChat(sess.ID)
			}
			a.app.QueueUpdateDraw(func() {
				a.pages.SwitchToPage("chat")
				a.app.SetFocus(a.threadView.Composer())
			})
		}()
	})

	a.threadView.SetOnKeystroke(func() {
		if a.deps.Notifier != nil {
			a.deps.Notifier.Keystroke()
		}
	})

	a.threadView.SetOnSend(func(text string) {
		chatID := a.deps.Room.ChatID()
		if chatID == "" {
			return
		}
		if _, err := a.deps.Sender.Queue(chatID, text); err != nil {
			a.setFlash("Send failed: " + err.Error())
		}
	})

	a.convList.SetOnSearch(func(query string) {
		a.deps.Roster.Search(a.ctx, query)
	})

	a.convList.SetOnSelect(func(chatID string) {
		a.deps.Room.SetChat(chatID)
		if a.deps.Notifier != nil {
			a.deps.Notifier.SetChat(chatID)
		}
		a.pages.SwitchToPage("chat")
		a.app.SetFocus(a.threadView.Composer())
	})

	a.convList.SetOnDelete(func(chatID string) {
		go func() {
			if err := a.deps.Roster.Delete(a.ctx, chatID); err != nil {
				a.setFlash(api.Notice(err))
			}
		}()
	})

	a.noticeList.SetOnSeen(func(id string) {
		go func() {
			if err := a.deps.Notify.MarkSeen(a.ctx, id); err != nil {
				a.setFlash(api.Notice(err))
			}
		}()
	})

	a.noticeList.SetOnDelete(func(id string) {
		go func() {
			if err := a.deps.Notify.Delete(a.ctx, id); err != nil {
				a.setFlash(api.Notice(err))
			}
		}()
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage("start", center(a.startForm, 50, 11), true, false)
	a.pages.AddPage("chat", a.threadView, true, false)
	a.pages.AddPage("conversations", a.convList, true, false)
	a.pages.AddPage("notifications", a.noticeList, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat":
				if a.isAdmin() {
					a.pages.SwitchToPage("conversations")
					a.app.SetFocus(a.convList.Table())
					return nil
				}
			case "notifications":
				a.showHome()
				return nil
			}
		}

		// Let text inputs handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if _, ok := focused.(*tview.Form); ok {
			return event
		}

		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case 'n':
			a.pages.SwitchToPage("notifications")
			a.app.SetFocus(a.noticeList)
			return nil
		case 'i':
			if currentPage == "chat" {
				a.app.SetFocus(a.threadView.Composer())
				return nil
			}
		case '/':
			if currentPage == "conversations" {
				a.app.SetFocus(a.convList.Search())
				return nil
			}
		case 'e':
			if currentPage == "chat" && !a.isAdmin() {
				a.deps.Room.EndChat()
				return nil
			}
		case 'r':
			if currentPage == "chat" {
				a.retryFailed()
				return nil
			}
		}

		return event
	})
}

// retryFailed re-queues the most recent failed message, if any.
func (a *App) retryFailed() {
	msgs := a.deps.Thread.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == api.StatusFailed {
			if err := a.deps.Sender.Retry(msgs[i].ID); err != nil {
				a.setFlash("Retry failed: " + err.Error())
			}
			return
		}
	}
}

// showHome switches to the role's landing page.
func (a *App) showHome() {
	if a.isAdmin() {
		a.pages.SwitchToPage("conversations")
		a.app.SetFocus(a.convList.Table())
		return
	}
	if a.deps.Room.ChatID() != "" {
		a.pages.SwitchToPage("chat")
		a.app.SetFocus(a.threadView.Composer())
		return
	}
	a.pages.SwitchToPage("start")
	a.app.SetFocus(a.startForm)
}

// setFlash is safe to call from any goroutine, including tview's own event
// loop: the redraw is queued from a fresh goroutine because QueueUpdateDraw
// blocks when called from the loop itself.
func (a *App) setFlash(msg string) {
	a.flash.Set(msg, 5*time.Second)
	go a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(a.flash.Get())
	})
}

// Run starts the TUI application and its bus-driven redraw loop.
func (a *App) Run() error {
	go a.eventLoop()

	go func() {
		a.deps.Notify.Load(a.ctx) // errors surface on the bus as flashes
		if a.isAdmin() {
			a.deps.Roster.Load(a.ctx)
		}
		a.app.QueueUpdateDraw(func() {
			a.noticeList.Update(a.deps.Notify.Records())
			a.statusBar.SetUnread(a.deps.Notify.TotalUnread())
		})
	}()

	go a.refreshLoop()
	a.showHome()

	return a.app.Run()
}

// refreshLoop keeps the clock current and lets flash messages expire.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) eventLoop() {
	ch, unsub := a.deps.Bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			a.handleEvent(evt)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.ThreadUpdated, bus.ThreadReset:
		a.app.QueueUpdateDraw(func() {
			myID := ""
			if a.deps.Identity != nil {
				myID = a.deps.Identity.ID
			}
			a.threadView.Update(a.deps.Thread.Messages(), myID)
		})

	case bus.TypingChanged:
		a.app.QueueUpdateDraw(func() {
			a.threadView.SetTyping(a.deps.Tracker.Actor())
			a.renderHeader()
		})

	case bus.RoomAdmin:
		a.app.QueueUpdateDraw(a.renderHeader)

	case bus.RoomEnded:
		a.app.QueueUpdateDraw(func() {
			a.threadView.SetHeader("", false)
			a.threadView.SetTyping(nil)
			a.showHome()
		})

	case bus.NotifyUpdated:
		a.app.QueueUpdateDraw(func() {
			a.noticeList.Update(a.deps.Notify.Records())
			a.statusBar.SetUnread(a.deps.Notify.TotalUnread())
		})

	case bus.RosterUpdated:
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.deps.Roster.Conversations())
		})

	case bus.TransportConnected:
		a.app.QueueUpdateDraw(func() { a.statusBar.SetStatus("online") })

	case bus.TransportDisconnected:
		a.app.QueueUpdateDraw(func() { a.statusBar.SetStatus("reconnecting") })

	case bus.FlashError:
		if msg, ok := evt.Payload.(string); ok {
			a.setFlash(msg)
		}
	}
}

func (a *App) renderHeader() {
	name := ""
	if admin := a.deps.Room.Admin(); admin != nil {
		name = admin.FullName
	}
	a.threadView.SetHeader(name, a.deps.Tracker.Online())
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// center wraps a primitive in a fixed-size centered frame.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}
