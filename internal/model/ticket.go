package model

import "time"

// Role identifies the access level of an authenticated user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Ticket status constants as stored by the backend.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

// statusLabels maps backend status values to their display labels.
var statusLabels = map[string]string{
	StatusOpen:       "Open",
	StatusInProgress: "In progress",
	StatusResolved:   "Resolved",
}

// StatusLabel returns the display label for a ticket status.
// Unknown statuses render as their raw value.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// Viewer is the authenticated user the client is running for.
type Viewer struct {
	// ID is the user's backend identifier.
	ID string `json:"id"`

	// DisplayName is the user's full name for rendering.
	DisplayName string `json:"display_name"`

	// Role is either RoleAdmin or RoleUser.
	Role Role `json:"role"`
}

// IsAdmin reports whether the viewer has administrator access.
func (v Viewer) IsAdmin() bool {
	return v.Role == RoleAdmin
}

// Profile holds the subset of another user's identity the client
// borrows for message rendering.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Ticket is a support request tracked by the backend.
type Ticket struct {
	// ID is the ticket's backend identifier.
	ID string `json:"id"`

	// Title is the short summary of the issue.
	Title string `json:"title"`

	// Description is the full problem report.
	Description string `json:"description"`

	// Status is one of the Status* constants.
	Status string `json:"status"`

	// OwnerID identifies the user who filed the ticket.
	OwnerID string `json:"owner_id"`

	// OwnerName is the filing user's display name.
	OwnerName string `json:"owner_name"`

	// AssigneeID identifies the administrator handling the ticket,
	// empty while unassigned.
	AssigneeID string `json:"assignee_id"`

	// AssigneeName is the handling administrator's display name.
	AssigneeName string `json:"assignee_name"`

	// CreatedAt is when the ticket was filed.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the ticket was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is a single entry in a ticket's discussion thread.
type Comment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole Role      `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
