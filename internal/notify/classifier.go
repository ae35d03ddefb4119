// Package notify implements the notification pipeline: classifying
// backend change events into notification records, keeping the bounded
// per-user log, and driving the audible and desktop alert channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/ticketwatch/internal/model"
)

// commentPreviewLen bounds the comment excerpt in rendered messages.
const commentPreviewLen = 60

// Directory resolves the backend data a classification may need before
// its message can be rendered. Lookups can fail independently of the
// event stream; a failed lookup drops the event.
type Directory interface {
	Profile(ctx context.Context, id string) (*model.Profile, error)
	Ticket(ctx context.Context, id string) (*model.Ticket, error)
}

// Classifier turns raw change events into notification records according
// to the viewer's role and ownership. It never mutates the events.
type Classifier struct {
	dir    Directory
	logger *slog.Logger
}

// NewClassifier creates a classifier backed by the given directory.
func NewClassifier(dir Directory, logger *slog.Logger) *Classifier {
	return &Classifier{dir: dir, logger: logger}
}

// Classify evaluates the routing rules in order, first match wins, and
// returns the resulting record or nil when the event is not relevant to
// the viewer. A nil record with a nil error is the normal outcome for
// events addressed to someone else; an error means a required lookup
// failed and the event must be dropped.
func (c *Classifier) Classify(
	ctx context.Context,
	ev model.RawChangeEvent,
	viewer model.Viewer,
) (*model.NotificationRecord, error) {
	switch ev.Table {
	case model.TableTickets:
		return c.classifyTicket(ctx, ev, viewer)
	case model.TableComments:
		return c.classifyComment(ctx, ev, viewer)
	default:
		return nil, nil
	}
}

func (c *Classifier) classifyTicket(
	ctx context.Context,
	ev model.RawChangeEvent,
	viewer model.Viewer,
) (*model.NotificationRecord, error) {
	// New ticket: administrators are notified about every insert.
	if ev.Operation == model.OpInsert && viewer.IsAdmin() {
		creator, err := c.dir.Profile(ctx, ev.After.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("resolving ticket creator: %w", err)
		}
		return c.newRecord(
			model.KindNewTicket,
			ev.After.ID,
			fmt.Sprintf("New ticket from %s: %s",
				creator.DisplayName, ev.After.Title),
		), nil
	}

	if ev.Operation != model.OpUpdate || viewer.IsAdmin() {
		return nil, nil
	}
	if ev.After.OwnerID != viewer.ID || ev.Before == nil {
		return nil, nil
	}

	// Admin assigned: the ticket gained an assignee.
	if ev.After.AssigneeID != "" && ev.Before.AssigneeID == "" {
		assignee, err := c.dir.Profile(ctx, ev.After.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("resolving assignee: %w", err)
		}
		return c.newRecord(
			model.KindAdminAssigned,
			ev.After.ID,
			fmt.Sprintf("%s is now handling your ticket %q",
				assignee.DisplayName, ev.After.Title),
		), nil
	}

	// Status changed.
	if ev.After.Status != ev.Before.Status {
		return c.newRecord(
			model.KindStatusChanged,
			ev.After.ID,
			fmt.Sprintf("Your ticket %q is now: %s",
				ev.After.Title, model.StatusLabel(ev.After.Status)),
		), nil
	}

	return nil, nil
}

// classifyComment notifies the ticket owner (ordinary viewer) or the
// assigned administrator about comments written by someone else. The
// event only carries the comment row, so the ticket is looked up to
// decide relevance and render the title.
func (c *Classifier) classifyComment(
	ctx context.Context,
	ev model.RawChangeEvent,
	viewer model.Viewer,
) (*model.NotificationRecord, error) {
	if ev.Operation != model.OpInsert || ev.After.AuthorID == viewer.ID {
		return nil, nil
	}

	ticket, err := c.dir.Ticket(ctx, ev.After.TicketID)
	if err != nil {
		return nil, fmt.Errorf("resolving commented ticket: %w", err)
	}

	relevant := (!viewer.IsAdmin() && ticket.OwnerID == viewer.ID) ||
		(viewer.IsAdmin() && ticket.AssigneeID == viewer.ID)
	if !relevant {
		return nil, nil
	}

	author, err := c.dir.Profile(ctx, ev.After.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("resolving comment author: %w", err)
	}

	return c.newRecord(
		model.KindNewComment,
		ticket.ID,
		fmt.Sprintf("%s commented on %q: %s",
			author.DisplayName, ticket.Title,
			preview(ev.After.Content)),
	), nil
}

// newRecord builds an unread record with a fresh ID and the
// classification-time timestamp.
func (c *Classifier) newRecord(
	kind model.Kind,
	ticketRef string,
	message string,
) *model.NotificationRecord {
	return &model.NotificationRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		TicketRef: ticketRef,
		Read:      false,
		CreatedAt: time.Now(),
	}
}

// preview truncates comment content for message rendering.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= commentPreviewLen {
		return content
	}
	return string(runes[:commentPreviewLen]) + "..."
}
