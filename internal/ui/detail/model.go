package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ticketwatch/internal/keys"
	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DetailLoadedMsg carries a ticket and its discussion thread.
type DetailLoadedMsg struct {
	Ticket   *model.Ticket
	Comments []model.Comment
}

// CommentSubmittedMsg asks the parent to post a comment on a ticket.
type CommentSubmittedMsg struct {
	TicketID string
	Content  string
}

// StatusChangeMsg asks the parent to transition a ticket's status.
type StatusChangeMsg struct {
	TicketID string
	Status   string
}

// statusOrder is the cycle used by the admin status-change action.
var statusOrder = []string{
	model.StatusOpen,
	model.StatusInProgress,
	model.StatusResolved,
}

// Model is the ticket detail view component.
type Model struct {
	ticket   *model.Ticket
	comments []model.Comment
	viewer   model.Viewer
	viewport viewport.Model
	keys     *keys.KeyMap

	commentMode  bool
	commentInput textinput.Model

	width   int
	height  int
	loading bool
}

// New creates a new detail view model.
func New(viewer model.Viewer, k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	ci := textinput.New()
	ci.Placeholder = "Write a comment, enter to post, esc to cancel"
	ci.Prompt = "> "
	ci.CharLimit = 2000

	return Model{
		viewer:       viewer,
		viewport:     vp,
		keys:         k,
		commentInput: ci,
		width:        width,
		height:       height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		m.ticket = msg.Ticket
		m.comments = msg.Comments
		m.loading = false
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if m.commentMode {
			return m.updateCommentInput(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Comment):
			if m.ticket != nil {
				m.commentMode = true
				m.commentInput.Reset()
				return m, m.commentInput.Focus()
			}

		case key.Matches(msg, m.keys.Transition):
			if m.ticket != nil && m.viewer.IsAdmin() {
				ticketID := m.ticket.ID
				next := nextStatus(m.ticket.Status)
				return m, func() tea.Msg {
					return StatusChangeMsg{TicketID: ticketID, Status: next}
				}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateCommentInput handles keys while the comment composer is open.
func (m Model) updateCommentInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.commentMode = false
		m.commentInput.Blur()

		content := strings.TrimSpace(m.commentInput.Value())
		if content == "" || m.ticket == nil {
			return m, nil
		}
		ticketID := m.ticket.ID
		return m, func() tea.Msg {
			return CommentSubmittedMsg{TicketID: ticketID, Content: content}
		}

	case "esc":
		m.commentMode = false
		m.commentInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.commentInput, cmd = m.commentInput.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.loading {
		loadingStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return loadingStyle.Render("Loading ticket...")
	}

	if m.ticket == nil {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No ticket selected")
	}

	if m.commentMode {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.viewport.View(),
			m.commentInput.View(),
		)
	}

	hint := "c comment"
	if m.viewer.IsAdmin() {
		hint += " · s change status"
	}
	hint += " · esc back"

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		theme.HelpStyle.Render(hint),
	)
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.ticket == nil {
		return ""
	}

	t := m.ticket
	var sections []string

	// Title
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(t.Title))

	// Status badge line
	statusBadge := theme.StatusStyle(t.Status).Render(model.StatusLabel(t.Status))
	sections = append(sections, statusBadge)
	sections = append(sections, "")

	// Metadata table
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("Filed by:"),
		valStyle.Render(t.OwnerName),
	))

	assignee := "unassigned"
	if t.AssigneeName != "" {
		assignee = t.AssigneeName
	}
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render("Assignee:"),
		valStyle.Render(assignee),
	))

	if !t.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s   %s",
			metaStyle.Render("Created:"),
			valStyle.Render(t.CreatedAt.Format("2006-01-02 15:04")),
		))
	}
	if !t.UpdatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf(
			"%s   %s",
			metaStyle.Render("Updated:"),
			valStyle.Render(t.UpdatedAt.Format("2006-01-02 15:04")),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	// Description
	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections = append(sections, descHeaderStyle.Render("Description"))

	body := t.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	// Comments section
	sections = append(sections, "")
	sections = append(sections, separator)
	sections = append(sections, "")

	commentHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite)

	sections = append(sections, commentHeaderStyle.Render(
		fmt.Sprintf("Comments (%d)", len(m.comments)),
	))
	sections = append(sections, "")

	if len(m.comments) == 0 {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No comments yet"))
	}

	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	for _, c := range m.comments {
		header := fmt.Sprintf(
			"%s %s",
			theme.RoleStyle(string(c.AuthorRole)).Render(c.AuthorName),
			timeStyle.Render(c.CreatedAt.Format("2006-01-02 15:04")),
		)
		sections = append(sections, header)
		sections = append(sections, c.Content)
		sections = append(sections, "")
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetLoading sets the loading state and drops any displayed ticket.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.ticket = nil
		m.comments = nil
	}
}

// Ticket returns the currently displayed ticket, nil when none is loaded.
func (m Model) Ticket() *model.Ticket {
	return m.ticket
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.commentInput.Width = width - 4
	if m.ticket != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// nextStatus returns the status following the current one in the cycle.
func nextStatus(current string) string {
	for i, s := range statusOrder {
		if s == current {
			return statusOrder[(i+1)%len(statusOrder)]
		}
	}
	return model.StatusOpen
}
