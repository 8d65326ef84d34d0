package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Nexta12/propertify-client-sub000/internal/api"
	"github.com/Nexta12/propertify-client-sub000/internal/tui/ui"
)

// NotificationList is the dropdown-equivalent: the full notification feed,
// newest first, with per-item mark-seen and delete.
type NotificationList struct {
	*tview.Table
	recs []api.NotificationRecord

	onSeen   func(id string)
	onDelete func(id string)
}

// NewNotificationList creates the notification feed view.
func NewNotificationList(theme *ui.Theme) *NotificationList {
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
	table.SetTitle(" Notifications ")
	table.SetTitleColor(theme.TitleColor)

	nl := &NotificationList{Table: table}

	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyRune {
			return event
		}
		switch event.Rune() {
		case 'm':
			if id := nl.selectedID(); id != "" && nl.onSeen != nil {
				nl.onSeen(id)
			}
			return nil
		case 'x':
			if id := nl.selectedID(); id != "" && nl.onDelete != nil {
				nl.onDelete(id)
			}
			return nil
		}
		return event
	})

	return nl
}

// SetOnSeen sets the mark-seen callback.
func (nl *NotificationList) SetOnSeen(fn func(id string)) { nl.onSeen = fn }

// SetOnDelete sets the delete callback.
func (nl *NotificationList) SetOnDelete(fn func(id string)) { nl.onDelete = fn }

func (nl *NotificationList) selectedID() string {
	row, _ := nl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(nl.recs) {
		return ""
	}
	return nl.recs[idx].ID
}

// Update refreshes the feed.
func (nl *NotificationList) Update(recs []api.NotificationRecord) {
	nl.recs = recs
	nl.Clear()

	headers := []string{"", "TYPE", "MESSAGE"}
	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorWhite).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		nl.SetCell(0, col, cell)
	}

	for i, r := range recs {
		mark := "[orange]●[-]"
		if r.IsSeen {
			mark = " "
		}
		nl.SetCell(i+1, 0, tview.NewTableCell(mark))
		nl.SetCell(i+1, 1, tview.NewTableCell(r.Type))
		nl.SetCell(i+1, 2, tview.NewTableCell(tview.Escape(sanitizeForTerminal(truncate(r.Message, 80)))))
	}

	if len(recs) > 0 {
		nl.Select(1, 0)
	}
}
