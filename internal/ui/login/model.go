package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/ticketwatch/internal/theme"
)

// SubmitMsg is dispatched when the user submits their credentials.
type SubmitMsg struct {
	Email    string
	Password string
}

// CancelMsg is dispatched when the user aborts the login form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

// Model is the Bubble Tea model for the login form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	errText string
	width   int
	height  int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form for a fresh sign-in attempt.
func (m *Model) Start() tea.Cmd {
	m.fb.email = ""
	m.fb.password = ""
	m.errText = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a sign-in failure and reopens the form.
func (m *Model) SetError(message string) tea.Cmd {
	m.errText = message
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		email := strings.TrimSpace(m.fb.email)
		password := m.fb.password
		return m, func() tea.Msg {
			return SubmitMsg{Email: email, Password: password}
		}
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Sign in") + "\n"
	if m.errText != "" {
		content += lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			Render(m.errText) + "\n\n"
	}
	content += m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 8 {
		h = 8
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("Email is required")
	}
	if !strings.Contains(s, "@") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
