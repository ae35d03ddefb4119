package model

import "time"

// Kind is the notification category. It selects the message template,
// tone pattern, and desktop alert appearance.
type Kind string

const (
	KindNewTicket     Kind = "new_ticket"
	KindAdminAssigned Kind = "admin_assigned"
	KindStatusChanged Kind = "status_changed"
	KindNewComment    Kind = "comment"
)

// NotificationRecord represents an alert surfaced to the viewer about
// activity on a ticket. The message is fully rendered at classification
// time and never re-derived.
type NotificationRecord struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// Kind is the notification category.
	Kind Kind `json:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// TicketRef links this notification to the originating ticket.
	TicketRef string `json:"ticket_ref"`

	// Read indicates whether the viewer has seen this notification.
	// It only ever transitions from false to true.
	Read bool `json:"read"`

	// CreatedAt is when this notification was classified, assigned on
	// the client.
	CreatedAt time.Time `json:"created_at"`
}
