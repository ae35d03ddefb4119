package model

// Operation identifies the kind of row change a backend event describes.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
)

// Table names carried in change events.
const (
	TableTickets  = "tickets"
	TableComments = "comments"
)

// RowSnapshot is a flat field snapshot of the affected row. Events for
// the tickets table populate the ticket fields; events for the comments
// table populate the comment fields. Unused fields stay empty.
type RowSnapshot struct {
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	TicketID   string `json:"ticket_id,omitempty"`
	AuthorID   string `json:"author_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// RawChangeEvent is a change notification published by the backend on
// its live channel. Delivery is at-least-once: the same event may be
// seen again after a reconnect. The client treats events as read-only.
type RawChangeEvent struct {
	// Operation is OpInsert or OpUpdate.
	Operation Operation `json:"operation"`

	// Table is the logical entity name the row belongs to.
	Table string `json:"table"`

	// Before holds the prior row state; nil for inserts.
	Before *RowSnapshot `json:"before,omitempty"`

	// After holds the row state after the change.
	After RowSnapshot `json:"after"`
}
