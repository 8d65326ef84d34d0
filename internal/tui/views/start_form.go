package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/Nexta12/propertify-client-sub000/internal/tui/ui"
)

// StartForm is the visitor's entry point: a name form that initiates a new
// chat session. Shown when no chat id is stored.
type StartForm struct {
	*tview.Form
	onStart func(firstName, lastName string)
}

// NewStartForm creates the start-chat form.
func NewStartForm(theme *ui.Theme) *StartForm {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetTitle(" Start a conversation ")
	form.SetTitleColor(theme.TitleColor)

	sf := &StartForm{Form: form}

	form.AddInputField("First name", "", 30, nil, nil)
	form.AddInputField("Last name", "", 30, nil, nil)
	form.AddButton("Start chat", func() {
		if sf.onStart == nil {
			return
		}
		first := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		last := strings.TrimSpace(form.GetFormItem(1).(*tview.InputField).GetText())
		sf.onStart(first, last)
	})

	return sf
}

// SetOnStart sets the chat initiation callback. Empty names are allowed;
// the visitor stays anonymous.
func (sf *StartForm) SetOnStart(fn func(firstName, lastName string)) {
	sf.onStart = fn
}
