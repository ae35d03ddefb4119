package notify

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/ticketwatch/internal/model"
)

// appTitle heads every desktop alert.
const appTitle = "IT Ticket Tracker"

// alertStyle fixes the desktop presentation of one notification kind.
type alertStyle struct {
	title       string
	tag         string
	autoDismiss time.Duration
}

var alertStyles = map[model.Kind]alertStyle{
	model.KindNewTicket:     {"New ticket", "new-ticket", 8 * time.Second},
	model.KindAdminAssigned: {"Ticket taken over", "admin-assigned", 8 * time.Second},
	model.KindStatusChanged: {"Ticket updated", "ticket-status", 6 * time.Second},
	model.KindNewComment:    {"New comment", "new-comment", 7 * time.Second},
}

var defaultAlertStyle = alertStyle{appTitle, "ticket-notification", 5 * time.Second}

// UpdateMsg is a tea.Msg carrying the log state after a pipeline
// mutation, so the UI can refresh its badge and panel.
type UpdateMsg struct {
	Snapshot Snapshot
}

// Source is the event feed a pipeline consumes, satisfied by
// *stream.Subscription. Closed is consulted before appending the result
// of an in-flight classification whose subscription has gone away.
type Source interface {
	Events() <-chan model.RawChangeEvent
	Closed() bool
}

// Pipeline connects a live subscription to the classifier, the log, and
// the two alert channels. One pipeline serves one viewer session.
type Pipeline struct {
	viewer     model.Viewer
	classifier *Classifier
	log        *Log
	synth      *Synth
	dispatcher *Dispatcher
	logger     *slog.Logger

	soundEnabled   bool
	desktopEnabled bool

	updates chan Snapshot
}

// NewPipeline assembles a pipeline for the given viewer. The sound and
// desktop flags come from user configuration and disable the respective
// alert channel entirely.
func NewPipeline(
	viewer model.Viewer,
	classifier *Classifier,
	log *Log,
	synth *Synth,
	dispatcher *Dispatcher,
	soundEnabled bool,
	desktopEnabled bool,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		viewer:         viewer,
		classifier:     classifier,
		log:            log,
		synth:          synth,
		dispatcher:     dispatcher,
		soundEnabled:   soundEnabled,
		desktopEnabled: desktopEnabled,
		logger:         logger,
		updates:        make(chan Snapshot, 16),
	}
}

// Log exposes the pipeline's notification log for UI mutations.
func (p *Pipeline) Log() *Log {
	return p.log
}

// Run consumes the source until its event channel closes. Each event is
// classified on its own goroutine so one slow lookup suspends only that
// event, and the log re-sorts by classification time to keep the list
// ordered. Run blocks; callers start it on a goroutine.
func (p *Pipeline) Run(ctx context.Context, src Source) {
	for ev := range src.Events() {
		go p.handle(ctx, src, ev)
	}
}

// handle classifies one event and applies the result.
func (p *Pipeline) handle(ctx context.Context, src Source, ev model.RawChangeEvent) {
	record, err := p.classifier.Classify(ctx, ev, p.viewer)
	if err != nil {
		// Lookup failures drop the event; the stream itself is fine.
		p.logger.Warn("dropping change event",
			slog.String("table", ev.Table),
			slog.String("op", string(ev.Operation)),
			slog.String("error", err.Error()),
		)
		return
	}
	if record == nil {
		return
	}

	// The lookup may have outlived the subscription; discard late
	// results rather than notify a logged-out viewer.
	if src.Closed() {
		return
	}

	p.Deliver(ctx, *record)
}

// Deliver appends a record and, when it is genuinely new, fires the
// alert channels and notifies the UI. It is also the entry point for
// sample notifications emitted by the demo keybinding.
func (p *Pipeline) Deliver(ctx context.Context, record model.NotificationRecord) {
	_, added := p.log.Append(ctx, record)
	if !added {
		return
	}

	if p.soundEnabled {
		p.synth.Play(record.Kind)
	}
	if p.desktopEnabled {
		style, ok := alertStyles[record.Kind]
		if !ok {
			style = defaultAlertStyle
		}
		p.dispatcher.Show(Alert{
			Title:       style.title,
			Body:        record.Message,
			Icon:        "ticket",
			Tag:         style.tag,
			AutoDismiss: style.autoDismiss,
		})
	}

	p.publish()
}

// Publish pushes the current log state to the UI. The log's own
// mutation methods don't know about the UI loop, so the app calls this
// after mark-read/clear actions too.
func (p *Pipeline) Publish() {
	p.publish()
}

func (p *Pipeline) publish() {
	select {
	case p.updates <- p.log.State():
	default:
		// UI is behind; it will pick up the state on its next read.
	}
}

// WaitForUpdate returns a tea.Cmd that blocks for the next log change
// and hands it to the Bubble Tea runtime. Re-issue it after each
// UpdateMsg to keep listening.
func (p *Pipeline) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return UpdateMsg{Snapshot: <-p.updates}
	}
}
