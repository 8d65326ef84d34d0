package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/ui"
)

// ConversationList is the admin's roster of visitor sessions, with a search
// input on top of the table.
type ConversationList struct {
	*tview.Flex
	table  *tview.Table
	search *tview.InputField
	convs  []api.Conversation

	onSearch func(query string)
	onSelect func(chatID string)
	onDelete func(chatID string)
}

// NewConversationList creates the roster view.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	search := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	search.SetBackgroundColor(theme.BgColor)
	search.SetFieldBackgroundColor(theme.BgColor)
	search.SetFieldTextColor(theme.FgColor)
	search.SetLabelColor(theme.MenuKeyColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(search, 1, 0, false).
		AddItem(table, 0, 1, true)

	cl := &ConversationList{Flex: flex, table: table, search: search}

	// Every edit re-queries; the roster cancels superseded fetches itself.
	search.SetChangedFunc(func(text string) {
		if cl.onSearch != nil {
			cl.onSearch(text)
		}
	})

	table.SetSelectedFunc(func(row, col int) {
		if id := cl.selectedID(); id != "" && cl.onSelect != nil {
			cl.onSelect(id)
		}
	})

	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && event.Rune() == 'x' {
			if id := cl.selectedID(); id != "" && cl.onDelete != nil {
				cl.onDelete(id)
			}
			return nil
		}
		return event
	})

	return cl
}

// SetOnSearch sets the search query callback.
func (cl *ConversationList) SetOnSearch(fn func(query string)) { cl.onSearch = fn }

// SetOnSelect sets the conversation open callback.
func (cl *ConversationList) SetOnSelect(fn func(chatID string)) { cl.onSelect = fn }

// SetOnDelete sets the conversation delete callback.
func (cl *ConversationList) SetOnDelete(fn func(chatID string)) { cl.onDelete = fn }

// Search returns the search input field (for focus management).
func (cl *ConversationList) Search() *tview.InputField { return cl.search }

// Table returns the roster table (for focus management).
func (cl *ConversationList) Table() *tview.Table { return cl.table }

func (cl *ConversationList) selectedID() string {
	row, _ := cl.table.GetSelection()
	idx := row - 1 // header row
	if idx < 0 || idx >= len(cl.convs) {
		return ""
	}
	return cl.convs[idx].ID
}

// Update refreshes the table from the roster snapshot.
func (cl *ConversationList) Update(convs []api.Conversation) {
	cl.convs = convs
	cl.table.Clear()

	headers := []string{"VISITOR", "LAST MESSAGE", "UNREAD"}
	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorWhite).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		cl.table.SetCell(0, col, cell)
	}

	for i, c := range convs {
		name := c.Visitor.FullName()
		if name == "" {
			name = "Anonymous"
		}
		unread := ""
		if c.Unread > 0 {
			unread = fmt.Sprintf("[orange]%d[-]", c.Unread)
		}
		cl.table.SetCell(i+1, 0, tview.NewTableCell(tview.Escape(sanitizeForTerminal(name))))
		cl.table.SetCell(i+1, 1, tview.NewTableCell(tview.Escape(sanitizeForTerminal(truncate(c.LastMessage, 60)))))
		cl.table.SetCell(i+1, 2, tview.NewTableCell(unread))
	}

	if len(convs) > 0 {
		cl.table.Select(1, 0)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
