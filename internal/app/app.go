// Package app wires the views, the backend session, and the live
// notification pipeline into the root Bubble Tea model.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/nhle/ticketwatch/internal/backend"
	"github.com/nhle/ticketwatch/internal/credential"
	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/notify"
	"github.com/nhle/ticketwatch/internal/store"
	"github.com/nhle/ticketwatch/internal/stream"
	"github.com/nhle/ticketwatch/internal/ui"
	"github.com/nhle/ticketwatch/internal/ui/detail"
	helpview "github.com/nhle/ticketwatch/internal/ui/help"
	"github.com/nhle/ticketwatch/internal/ui/login"
	"github.com/nhle/ticketwatch/internal/ui/notifpanel"
	"github.com/nhle/ticketwatch/internal/ui/ticketform"
	"github.com/nhle/ticketwatch/internal/ui/ticketlist"
)

// tokenKey is the keyring entry holding the session token.
const tokenKey = "session-token"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewNotifications
	ViewTicketCreate
	ViewHelp
	ViewPermission
)

// sessionMsg carries the outcome of a login or token-resume attempt.
type sessionMsg struct {
	session    *backend.Session
	err        error
	fromStored bool
}

// streamOpenedMsg carries the outcome of opening the live subscription.
type streamOpenedMsg struct {
	sub *stream.Subscription
	err error
}

// ticketsRefreshedMsg reports a backend fetch into the local cache.
type ticketsRefreshedMsg struct {
	err error
}

// commentPostedMsg reports a posted comment.
type commentPostedMsg struct {
	ticketID string
	err      error
}

// statusChangedMsg reports a ticket status transition.
type statusChangedMsg struct {
	ticket *model.Ticket
	err    error
}

// ticketCreatedMsg reports a filed ticket.
type ticketCreatedMsg struct {
	ticket *model.Ticket
	err    error
}

// permissionPromptMsg is delivered when the gate wants to ask the user.
type permissionPromptMsg struct{}

// permissionResolvedMsg carries the gate's final answer.
type permissionResolvedMsg struct {
	granted bool
}

// Deps are the long-lived collaborators constructed in main.
type Deps struct {
	Config   *model.AppConfig
	Store    *store.SQLiteStore
	API      *backend.API
	Streams  *stream.Manager
	Notifier notify.Notifier
	Player   notify.Player
	Logger   *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing, the
// session lifecycle, and the notification pipeline.
type Model struct {
	deps Deps
	keys *KeyMap

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	ready        bool

	session  *backend.Session
	pipeline *notify.Pipeline
	gate     *notify.Gate
	sub      *stream.Subscription

	promptReq chan struct{}
	promptAns chan bool

	loginView  login.Model
	listView   ticketlist.Model
	detailView detail.Model
	notifView  notifpanel.Model
	formView   ticketform.Model
	helpView   helpview.Model

	unread     int
	statusText string
}

// New creates the root application model.
func New(deps Deps) Model {
	keys := DefaultKeyMap()

	return Model{
		deps:        deps,
		keys:        keys,
		currentView: ViewLogin,
		promptReq:   make(chan struct{}),
		promptAns:   make(chan bool, 1),
		loginView:   login.New(80, 24),
		listView:    ticketlist.New(deps.Store, keys, 80, 24),
		detailView:  detail.New(model.Viewer{}, keys, 80, 24),
		notifView:   notifpanel.New(keys, 80, 24),
		formView:    ticketform.New(80, 24),
		helpView:    helpview.New(keys, 80, 24),
	}
}

// Init tries to resume a stored session before falling back to the
// login form.
func (m Model) Init() tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		token, err := credential.Get(tokenKey)
		if err != nil || token == "" {
			return sessionMsg{err: fmt.Errorf("no stored session"), fromStored: true}
		}
		session, err := api.Resume(context.Background(), token)
		return sessionMsg{session: session, err: err, fromStored: true}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.listView.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.notifView.SetSize(w, h)
		m.formView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionMsg:
		return m.handleSession(msg)

	case streamOpenedMsg:
		if msg.err != nil {
			m.deps.Logger.Warn("opening live subscription",
				slog.String("error", msg.err.Error()))
			m.statusText = "live updates unavailable"
			return m, nil
		}
		m.sub = msg.sub
		m.statusText = ""
		go m.pipeline.Run(context.Background(), msg.sub)
		return m, nil

	case notify.UpdateMsg:
		m.unread = msg.Snapshot.Unread
		m.notifView.SetSnapshot(msg.Snapshot)
		// A log change means backend data changed too; refresh the cache.
		return m, tea.Batch(
			m.pipeline.WaitForUpdate(),
			m.refreshTickets(),
		)

	case ticketsRefreshedMsg:
		if msg.err != nil {
			return m.handleBackendError(msg.err)
		}
		return m, m.listView.LoadTickets()

	case login.SubmitMsg:
		return m, m.attemptLogin(msg.Email, msg.Password)

	case login.CancelMsg:
		return m, tea.Quit

	case ticketlist.SelectedTicketMsg:
		return m.openTicket(msg.TicketID)

	case detail.BackMsg:
		m.currentView = ViewList
		return m, m.listView.LoadTickets()

	case detail.CommentSubmittedMsg:
		return m, m.postComment(msg.TicketID, msg.Content)

	case detail.StatusChangeMsg:
		return m, m.changeStatus(msg.TicketID, msg.Status)

	case commentPostedMsg:
		if msg.err != nil {
			return m.handleBackendError(msg.err)
		}
		return m, m.loadDetail(msg.ticketID)

	case statusChangedMsg:
		if msg.err != nil {
			return m.handleBackendError(msg.err)
		}
		return m, tea.Batch(
			m.upsertAndReload(msg.ticket),
			m.loadDetail(msg.ticket.ID),
		)

	case ticketform.SubmitMsg:
		m.currentView = ViewList
		return m, m.createTicket(msg.Title, msg.Description)

	case ticketform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case ticketCreatedMsg:
		if msg.err != nil {
			return m.handleBackendError(msg.err)
		}
		m.statusText = "ticket filed"
		return m, m.upsertAndReload(msg.ticket)

	case notifpanel.BackMsg:
		m.currentView = m.previousView
		return m, nil

	case notifpanel.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notifpanel.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifpanel.ClearAllMsg:
		return m, m.clearNotifications()

	case notifpanel.OpenTicketMsg:
		mdl, cmd := m.openTicket(msg.TicketID)
		return mdl, tea.Batch(cmd, m.markRead(msg.RecordID))

	case permissionPromptMsg:
		m.previousView = m.currentView
		m.currentView = ViewPermission
		return m, nil

	case permissionResolvedMsg:
		if msg.granted {
			m.statusText = "desktop alerts enabled"
		} else {
			m.statusText = "desktop alerts disabled"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveView(msg)
}

// handleSession applies the outcome of a login or resume attempt.
func (m Model) handleSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if msg.fromStored {
			// A stale or missing token falls back to the login form.
			m.deps.Logger.Info("no resumable session, showing login")
			m.currentView = ViewLogin
			return m, m.loginView.Start()
		}
		m.currentView = ViewLogin
		return m, m.loginView.SetError("Sign-in failed, check your credentials")
	}

	m.session = msg.session
	viewer := msg.session.Viewer
	logger := m.deps.Logger

	if err := credential.Set(tokenKey, msg.session.Token); err != nil {
		logger.Warn("storing session token", slog.String("error", err.Error()))
	}

	ctx := context.Background()
	log := notify.NewLog(viewer.ID, m.deps.Store, logger)
	log.Load(ctx)

	m.gate = notify.NewGate(ctx, viewer.ID, m.deps.Store, m.promptFunc(), logger)
	m.pipeline = notify.NewPipeline(
		viewer,
		notify.NewClassifier(m.deps.API, logger),
		log,
		notify.NewSynth(m.deps.Player, logger),
		notify.NewDispatcher(m.gate, m.deps.Notifier, logger),
		m.deps.Config.Alerts.Sound,
		m.deps.Config.Alerts.Desktop,
		logger,
	)

	snapshot := log.State()
	m.unread = snapshot.Unread
	m.notifView.SetSnapshot(snapshot)

	w, h := 80, 24
	if m.ready {
		w, h = m.layout.ContentWidth(), m.layout.ContentHeight()
	}
	m.detailView = detail.New(viewer, m.keys, w, h)

	m.currentView = ViewList
	logger.Info("session established",
		slog.String("viewer", viewer.ID),
		slog.String("role", string(viewer.Role)),
	)

	return m, tea.Batch(
		m.openStream(viewer),
		m.refreshTickets(),
		m.pipeline.WaitForUpdate(),
		m.waitForPermissionPrompt(),
	)
}

// handleKey processes global keys before delegating to the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The permission prompt owns the keyboard entirely while visible.
	if m.currentView == ViewPermission {
		switch msg.String() {
		case "y", "Y":
			return m.answerPrompt(true)
		case "n", "N", "esc":
			return m.answerPrompt(false)
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		m.shutdown()
		return m, tea.Quit

	case "q":
		if m.currentView == ViewList {
			m.shutdown()
			return m, tea.Quit
		}

	case "?":
		if m.currentView == ViewLogin || m.currentView == ViewTicketCreate {
			break
		}
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil
	}

	if m.currentView == ViewList && !m.listView.Filtering() {
		switch msg.String() {
		case "n":
			m.previousView = m.currentView
			m.currentView = ViewNotifications
			m.notifView.SetSnapshot(m.pipeline.Log().State())
			return m, nil

		case "t":
			m.previousView = m.currentView
			m.currentView = ViewTicketCreate
			return m, m.formView.Start()

		case "r":
			m.statusText = "refreshing..."
			return m, m.refreshTickets()

		case "p":
			return m, m.requestPermission()

		case "d":
			m.statusText = "sample notifications sent"
			return m, m.emitSamples()
		}
	}

	return m.updateActiveView(msg)
}

// answerPrompt delivers the user's permission decision back to the gate.
func (m Model) answerPrompt(granted bool) (tea.Model, tea.Cmd) {
	m.currentView = m.previousView
	ans := m.promptAns
	return m, tea.Batch(
		func() tea.Msg {
			ans <- granted
			return nil
		},
		m.waitForPermissionPrompt(),
	)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.listView, cmd = m.listView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewNotifications:
		m.notifView, cmd = m.notifView.Update(msg)
	case ViewTicketCreate:
		m.formView, cmd = m.formView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.connectionStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewList:
		return m.listView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewNotifications:
		return m.notifView.View()
	case ViewTicketCreate:
		return m.formView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewPermission:
		return "\n  Show desktop alerts for ticket activity?\n\n  y yes · n no\n"
	default:
		return ""
	}
}

// headerTitle renders the application title, viewer, and unread badge.
func (m Model) headerTitle() string {
	title := "ticketwatch"
	if m.session != nil {
		title += " · " + m.session.Viewer.DisplayName
	}
	if m.unread > 0 {
		title += fmt.Sprintf(" [%d new]", m.unread)
	}
	return title
}

// connectionStatus describes the live subscription state.
func (m Model) connectionStatus() string {
	if m.statusText != "" {
		return m.statusText
	}
	if m.session == nil {
		return "signed out"
	}
	if m.sub != nil && !m.sub.Closed() {
		return "live"
	}
	return "offline"
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter submit | esc quit"
	case ViewDetail:
		return "c comment | s change status | j/k scroll | esc back"
	case ViewNotifications:
		return "enter open | m mark all read | x clear | esc close"
	case ViewTicketCreate:
		return "enter submit | esc cancel"
	case ViewHelp:
		return "? close help"
	case ViewPermission:
		return "y allow | n deny"
	default:
		return "q quit | ? help | n notifications | t new ticket | r refresh | tab filter"
	}
}

// shutdown tears down the live subscription before the program exits.
func (m Model) shutdown() {
	m.deps.Streams.Close()
}

// openStream opens the viewer's live subscription.
func (m Model) openStream(viewer model.Viewer) tea.Cmd {
	streams := m.deps.Streams
	return func() tea.Msg {
		sub, err := streams.Open(context.Background(), viewer)
		return streamOpenedMsg{sub: sub, err: err}
	}
}

// attemptLogin authenticates with the submitted credentials.
func (m Model) attemptLogin(email, password string) tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		session, err := api.Login(context.Background(), email, password)
		return sessionMsg{session: session, err: err}
	}
}

// refreshTickets fetches the viewer's tickets into the local cache.
func (m Model) refreshTickets() tea.Cmd {
	api, st := m.deps.API, m.deps.Store
	return func() tea.Msg {
		ctx := context.Background()
		tickets, err := api.Tickets(ctx)
		if err != nil {
			return ticketsRefreshedMsg{err: err}
		}
		if err := st.UpsertTickets(ctx, tickets); err != nil {
			return ticketsRefreshedMsg{err: err}
		}
		return ticketsRefreshedMsg{}
	}
}

// openTicket switches to the detail view and loads the ticket.
func (m Model) openTicket(ticketID string) (tea.Model, tea.Cmd) {
	m.previousView = ViewList
	m.currentView = ViewDetail
	m.detailView.SetLoading(true)
	return m, m.loadDetail(ticketID)
}

// loadDetail fetches a ticket and its thread from the backend.
func (m Model) loadDetail(ticketID string) tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		ctx := context.Background()
		ticket, err := api.Ticket(ctx, ticketID)
		if err != nil {
			return detail.DetailLoadedMsg{}
		}
		comments, err := api.Comments(ctx, ticketID)
		if err != nil {
			comments = nil
		}
		return detail.DetailLoadedMsg{Ticket: ticket, Comments: comments}
	}
}

// postComment appends a comment to a ticket's thread.
func (m Model) postComment(ticketID, content string) tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		_, err := api.AddComment(context.Background(), ticketID, content)
		return commentPostedMsg{ticketID: ticketID, err: err}
	}
}

// changeStatus transitions a ticket, administrator only.
func (m Model) changeStatus(ticketID, status string) tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		ticket, err := api.SetStatus(context.Background(), ticketID, status)
		return statusChangedMsg{ticket: ticket, err: err}
	}
}

// createTicket files a new ticket for the viewer.
func (m Model) createTicket(title, description string) tea.Cmd {
	api := m.deps.API
	return func() tea.Msg {
		ticket, err := api.CreateTicket(context.Background(), title, description)
		return ticketCreatedMsg{ticket: ticket, err: err}
	}
}

// upsertAndReload caches one ticket and reloads the list.
func (m Model) upsertAndReload(ticket *model.Ticket) tea.Cmd {
	st := m.deps.Store
	loadCmd := m.listView.LoadTickets()
	return func() tea.Msg {
		ctx := context.Background()
		if err := st.UpsertTickets(ctx, []model.Ticket{*ticket}); err != nil {
			return ticketsRefreshedMsg{err: err}
		}
		return loadCmd()
	}
}

// markRead marks one notification read and republishes the log state.
func (m Model) markRead(id string) tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		p.Log().MarkRead(context.Background(), id)
		p.Publish()
		return nil
	}
}

// markAllRead marks every notification read.
func (m Model) markAllRead() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		p.Log().MarkAllRead(context.Background())
		p.Publish()
		return nil
	}
}

// clearNotifications empties the notification log.
func (m Model) clearNotifications() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		p.Log().Clear(context.Background())
		p.Publish()
		return nil
	}
}

// requestPermission resolves the desktop-alert permission, prompting the
// user if needed. The gate call blocks until the prompt is answered, so
// it runs on its own goroutine.
func (m Model) requestPermission() tea.Cmd {
	gate := m.gate
	return func() tea.Msg {
		granted := gate.RequestPermission(context.Background())
		return permissionResolvedMsg{granted: granted}
	}
}

// promptFunc bridges the gate's blocking prompt into the UI loop.
func (m Model) promptFunc() notify.PromptFunc {
	req, ans := m.promptReq, m.promptAns
	return func(ctx context.Context) (bool, error) {
		select {
		case req <- struct{}{}:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		select {
		case granted := <-ans:
			return granted, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// waitForPermissionPrompt blocks for the next prompt request from the
// gate and surfaces it as a message. Re-issued after every answer.
func (m Model) waitForPermissionPrompt() tea.Cmd {
	req := m.promptReq
	return func() tea.Msg {
		<-req
		return permissionPromptMsg{}
	}
}

// emitSamples delivers one sample notification of each kind through the
// pipeline so users can preview the alert tones and popups.
func (m Model) emitSamples() tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		samples := []model.NotificationRecord{
			{Kind: model.KindNewTicket, Message: "New ticket from Sample User: Monitor flickers"},
			{Kind: model.KindAdminAssigned, Message: "Sample Admin is now handling your ticket \"Monitor flickers\""},
			{Kind: model.KindStatusChanged, Message: "Your ticket \"Monitor flickers\" is now: In progress"},
			{Kind: model.KindNewComment, Message: "Sample Admin commented on \"Monitor flickers\": Looking into it"},
		}
		ctx := context.Background()
		for i := range samples {
			samples[i].ID = uuid.New().String()
			samples[i].TicketRef = "sample-" + uuid.New().String()
			samples[i].CreatedAt = time.Now()
			p.Deliver(ctx, samples[i])
			// Space the samples out so the tone patterns don't overlap.
			time.Sleep(500 * time.Millisecond)
		}
		return nil
	}
}

// handleBackendError routes API failures: authentication errors force a
// fresh sign-in, everything else surfaces in the status bar.
func (m Model) handleBackendError(err error) (tea.Model, tea.Cmd) {
	if backend.IsAuthError(err) {
		m.deps.Logger.Warn("session expired", slog.String("error", err.Error()))
		if derr := credential.Delete(tokenKey); derr != nil {
			m.deps.Logger.Warn("clearing stored token",
				slog.String("error", derr.Error()))
		}
		m.deps.Streams.Close()
		m.sub = nil
		m.session = nil
		m.currentView = ViewLogin
		return m, m.loginView.SetError("Session expired, sign in again")
	}

	m.deps.Logger.Warn("backend request failed", slog.String("error", err.Error()))
	m.statusText = "backend unreachable"
	return m, nil
}
