package backend

import (
	"time"

	"github.com/nhle/ticketwatch/internal/model"
)

// errorResponse is the backend's standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// loginRequest is the payload for POST /api/v1/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the backend's reply to a successful login.
type loginResponse struct {
	Token   string     `json:"token"`
	Profile profileDTO `json:"profile"`
}

// profileDTO mirrors the backend's profile representation.
type profileDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func (p profileDTO) toModel() *model.Profile {
	return &model.Profile{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Role:        model.Role(p.Role),
	}
}

// ticketDTO mirrors the backend's ticket representation.
type ticketDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	OwnerID      string    `json:"owner_id"`
	OwnerName    string    `json:"owner_name"`
	AssigneeID   string    `json:"assignee_id"`
	AssigneeName string    `json:"assignee_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t ticketDTO) toModel() model.Ticket {
	return model.Ticket(t)
}

// commentDTO mirrors the backend's comment representation.
type commentDTO struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c commentDTO) toModel() model.Comment {
	return model.Comment{
		ID:         c.ID,
		TicketID:   c.TicketID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		AuthorRole: model.Role(c.AuthorRole),
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

// createTicketRequest is the payload for POST /api/v1/tickets.
type createTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateTicketRequest is the payload for PATCH /api/v1/tickets/{id}.
type updateTicketRequest struct {
	Status string `json:"status"`
}

// createCommentRequest is the payload for POST /api/v1/tickets/{id}/comments.
type createCommentRequest struct {
	Content string `json:"content"`
}
