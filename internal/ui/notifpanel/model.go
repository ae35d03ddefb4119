package notifpanel

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ticketwatch/internal/keys"
	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/notify"
	"github.com/nhle/ticketwatch/internal/theme"
)

// BackMsg signals the parent to close the notification panel.
type BackMsg struct{}

// MarkReadMsg asks the parent to mark one record as read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks the parent to mark every record as read.
type MarkAllReadMsg struct{}

// ClearAllMsg asks the parent to clear the log.
type ClearAllMsg struct{}

// OpenTicketMsg asks the parent to open the ticket a record points at,
// marking the record read on the way.
type OpenTicketMsg struct {
	RecordID string
	TicketID string
}

// kindMarkers are the single-character markers rendered per kind.
var kindMarkers = map[model.Kind]string{
	model.KindNewTicket:     "+",
	model.KindAdminAssigned: "@",
	model.KindStatusChanged: "~",
	model.KindNewComment:    "#",
}

// Model is the notification panel component.
type Model struct {
	snapshot notify.Snapshot
	keys     *keys.KeyMap
	cursor   int
	width    int
	height   int
}

// New creates a new notification panel.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetSnapshot replaces the rendered log state.
func (m *Model) SetSnapshot(s notify.Snapshot) {
	m.snapshot = s
	if m.cursor >= len(s.Records) {
		m.cursor = len(s.Records) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Unread returns the unread count of the current snapshot.
func (m Model) Unread() int {
	return m.snapshot.Unread
}

// Init returns the initial command for the panel.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the notification panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back), key.Matches(keyMsg, m.keys.Notifications):
		return m, func() tea.Msg {
			return BackMsg{}
		}

	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.snapshot.Records)-1 {
			m.cursor++
		}

	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(keyMsg, m.keys.Select):
		if m.cursor < len(m.snapshot.Records) {
			record := m.snapshot.Records[m.cursor]
			return m, func() tea.Msg {
				if record.TicketRef != "" {
					return OpenTicketMsg{
						RecordID: record.ID,
						TicketID: record.TicketRef,
					}
				}
				return MarkReadMsg{ID: record.ID}
			}
		}

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		if len(m.snapshot.Records) > 0 {
			return m, func() tea.Msg {
				return MarkAllReadMsg{}
			}
		}

	case key.Matches(keyMsg, m.keys.ClearAll):
		if len(m.snapshot.Records) > 0 {
			return m, func() tea.Msg {
				return ClearAllMsg{}
			}
		}
	}

	return m, nil
}

// View renders the notification panel.
func (m Model) View() string {
	var sections []string

	header := theme.HeaderStyle.Render("Notifications")
	if m.snapshot.Unread > 0 {
		header = lipgloss.JoinHorizontal(
			lipgloss.Top,
			header,
			" ",
			theme.UnreadBadgeStyle.Render(fmt.Sprintf("%d new", m.snapshot.Unread)),
		)
	}
	sections = append(sections, header, "")

	if len(m.snapshot.Records) == 0 {
		sections = append(sections, theme.HelpStyle.Render("No notifications"))
	}

	for i, r := range m.snapshot.Records {
		sections = append(sections, m.renderRecord(i, r))
	}

	sections = append(sections, "",
		theme.HelpStyle.Render("enter open · m mark all read · x clear · esc close"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderRecord draws one notification line.
func (m Model) renderRecord(index int, r model.NotificationRecord) string {
	marker, ok := kindMarkers[r.Kind]
	if !ok {
		marker = "·"
	}

	line := fmt.Sprintf("%s %s  %s",
		theme.KindStyle(string(r.Kind)).Render(marker),
		r.Message,
		theme.HelpStyle.Render(relativeTime(r.CreatedAt)),
	)

	style := theme.ReadItemStyle
	if !r.Read {
		style = theme.UnreadItemStyle
	}
	line = style.Render(line)

	if index == m.cursor {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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
