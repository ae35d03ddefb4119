package ticketlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/theme"
)

// TicketItem wraps a model.Ticket so it can be used in a bubbles/list.
type TicketItem struct {
	Ticket model.Ticket
}

// FilterValue returns the string used for fuzzy filtering.
func (i TicketItem) FilterValue() string { return i.Ticket.Title }

// Title returns the ticket title for the list.
func (i TicketItem) Title() string { return i.Ticket.Title }

// Description returns a short summary line for the list.
func (i TicketItem) Description() string {
	parts := []string{
		model.StatusLabel(i.Ticket.Status),
		i.Ticket.OwnerName,
		relativeTime(i.Ticket.UpdatedAt),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering ticket rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single ticket line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TicketItem)
	if !ok {
		return
	}
	t := ti.Ticket

	statusBadge := theme.StatusStyle(t.Status).Render(model.StatusLabel(t.Status))

	assignee := "unassigned"
	if t.AssigneeName != "" {
		assignee = t.AssigneeName
	}

	line := fmt.Sprintf("%s %s  %s · %s · %s",
		statusBadge,
		t.Title,
		t.OwnerName,
		assignee,
		relativeTime(t.UpdatedAt),
	)

	if index == m.Index() {
		fmt.Fprint(w, theme.SelectedItemStyle.Render(line))
		return
	}
	fmt.Fprint(w, theme.ListItemStyle.Render(line))
}

// relativeTime formats a timestamp as a compact age like "5m" or "2d".
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
