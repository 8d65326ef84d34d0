package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/ui"
)

// MessageThread displays the active conversation with a typing indicator
// and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *tview.InputField

	onSend      func(text string)
	onKeystroke func()
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Chat ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
	}

	composer.SetChangedFunc(func(text string) {
		if text != "" && mt.onKeystroke != nil {
			mt.onKeystroke()
		}
	})

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnKeystroke sets the callback fired on each composer edit.
func (mt *MessageThread) SetOnKeystroke(fn func()) {
	mt.onKeystroke = fn
}

// SetHeader updates the title with the joined agent and their presence.
func (mt *MessageThread) SetHeader(agentName string, online bool) {
	if agentName == "" {
		mt.messages.SetTitle(" Chat ")
		return
	}
	dot := "[gray]●[-]"
	if online {
		dot = "[green]●[-]"
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s %s ", tview.Escape(sanitizeForTerminal(agentName)), dot))
}

// SetTyping renders or clears the "is typing" line.
func (mt *MessageThread) SetTyping(actor *api.Sender) {
	mt.typing.Clear()
	if actor == nil {
		return
	}
	name := actor.FullName()
	if name == "" {
		name = "Someone"
	}
	_, _ = fmt.Fprintf(mt.typing, " [::d]%s is typing...[-:-:-]", tview.Escape(sanitizeForTerminal(name)))
}

// Update refreshes the thread. myID marks own messages; messages without a
// timestamp (the generated greeting) render without one.
func (mt *MessageThread) Update(msgs []api.ChatMessage, myID string) {
	mt.messages.Clear()

	for _, m := range msgs {
		sender := m.Sender.FullName()
		if sender == "" {
			sender = string(m.SenderType)
		}
		if myID != "" && m.Sender.ID == myID {
			sender = "You"
		}

		header := fmt.Sprintf("[::b]%s[-:-:-]", tview.Escape(sanitizeForTerminal(sender)))
		if m.CreatedAt != 0 {
			header += fmt.Sprintf(" [::d]%s[-:-:-]", formatTimestamp(m.CreatedAt))
		}
		switch m.Status {
		case api.StatusSending:
			header += " [::d]…[-:-:-]"
		case api.StatusFailed:
			header += " [orangered]failed — press r to retry[-]"
		}

		_, _ = fmt.Fprintf(mt.messages, "%s\n%s\n\n",
			header, tview.Escape(sanitizeForTerminal(m.Message)))
	}

	mt.messages.ScrollToEnd()
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

func formatTimestamp(unixMs int64) string {
	t := time.UnixMilli(unixMs)
	if t.YearDay() == time.Now().YearDay() && t.Year() == time.Now().Year() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}
