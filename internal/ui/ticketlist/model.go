package ticketlist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ticketwatch/internal/keys"
	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/store"
	"github.com/nhle/ticketwatch/internal/theme"
)

// TicketsLoadedMsg is sent when tickets have been loaded from the cache.
type TicketsLoadedMsg struct {
	Tickets []model.Ticket
}

// SelectedTicketMsg is sent when a user selects a ticket to view.
type SelectedTicketMsg struct {
	TicketID string
}

// statusFilters are the filter states cycled by Tab; empty means all.
var statusFilters = []string{
	"",
	model.StatusOpen,
	model.StatusInProgress,
	model.StatusResolved,
}

// Model is the main ticket list view component.
type Model struct {
	list        list.Model
	store       store.Store
	keys        *keys.KeyMap
	filterIndex int
	counts      map[string]int
	width       int
	height      int
}

// New creates a new ticket list model.
func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Tickets"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		counts: make(map[string]int),
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the initial set of tickets.
func (m Model) Init() tea.Cmd {
	return m.LoadTickets()
}

// Update handles messages for the ticket list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TicketsLoadedMsg:
		m.counts = countByStatus(msg.Tickets)
		items := make([]list.Item, 0, len(msg.Tickets))
		current := statusFilters[m.filterIndex]
		for _, t := range msg.Tickets {
			if current != "" && t.Status != current {
				continue
			}
			items = append(items, TicketItem{Ticket: t})
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		// Let the list's built-in fuzzy filter own the keyboard while
		// it is active.
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Select):
			if item, ok := m.list.SelectedItem().(TicketItem); ok {
				return m, func() tea.Msg {
					return SelectedTicketMsg{TicketID: item.Ticket.ID}
				}
			}

		case key.Matches(msg, m.keys.CycleFilter):
			m.filterIndex = (m.filterIndex + 1) % len(statusFilters)
			return m, m.LoadTickets()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the ticket list with the per-status totals header.
func (m Model) View() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderCounts(),
		m.list.View(),
	)
}

// Filtering reports whether the list's fuzzy filter owns the keyboard.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// LoadTickets returns a command that reads tickets from the local cache.
func (m Model) LoadTickets() tea.Cmd {
	return func() tea.Msg {
		tickets, err := m.store.GetTickets(
			context.Background(), store.TicketFilter{},
		)
		if err != nil {
			return TicketsLoadedMsg{}
		}
		return TicketsLoadedMsg{Tickets: tickets}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// renderCounts draws the dashboard line: totals per status plus the
// active filter.
func (m Model) renderCounts() string {
	total := m.counts[model.StatusOpen] +
		m.counts[model.StatusInProgress] +
		m.counts[model.StatusResolved]

	line := fmt.Sprintf("%d tickets  %s %d  %s %d  %s %d",
		total,
		theme.StatusStyle(model.StatusOpen).Render("Open"),
		m.counts[model.StatusOpen],
		theme.StatusStyle(model.StatusInProgress).Render("In progress"),
		m.counts[model.StatusInProgress],
		theme.StatusStyle(model.StatusResolved).Render("Resolved"),
		m.counts[model.StatusResolved],
	)

	if current := statusFilters[m.filterIndex]; current != "" {
		line += theme.HelpStyle.Render(
			fmt.Sprintf("  (showing %s)", model.StatusLabel(current)),
		)
	}

	return line
}

// countByStatus tallies tickets per status for the dashboard line.
func countByStatus(tickets []model.Ticket) map[string]int {
	counts := make(map[string]int)
	for _, t := range tickets {
		counts[t.Status]++
	}
	return counts
}
