package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/ticketwatch/internal/model"
)

// Session is the result of a successful login: the Bearer token and the
// authenticated user's profile.
type Session struct {
	Token  string
	Viewer model.Viewer
}

// API exposes the ticket backend operations the client consumes.
// All identity data (tickets, users) is owned by the backend; the
// client only ever reads it.
type API struct {
	client *Client
}

// NewAPI wraps an HTTP client in the backend API surface.
func NewAPI(client *Client) *API {
	return &API{client: client}
}

// Login authenticates with email and password. On success the returned
// session token is also set on the underlying client for later calls.
func (a *API) Login(
	ctx context.Context,
	email string,
	password string,
) (*Session, error) {
	var resp loginResponse
	err := a.client.Post(ctx, "/api/v1/auth/login", loginRequest{
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", email, err)
	}

	a.client.SetToken(resp.Token)

	return &Session{
		Token: resp.Token,
		Viewer: model.Viewer{
			ID:          resp.Profile.ID,
			DisplayName: resp.Profile.DisplayName,
			Role:        model.Role(resp.Profile.Role),
		},
	}, nil
}

// Resume validates a previously stored token and returns the viewer it
// belongs to.
func (a *API) Resume(ctx context.Context, token string) (*Session, error) {
	a.client.SetToken(token)

	var resp profileDTO
	if err := a.client.Get(ctx, "/api/v1/auth/me", &resp); err != nil {
		return nil, fmt.Errorf("resuming session: %w", err)
	}

	return &Session{
		Token: token,
		Viewer: model.Viewer{
			ID:          resp.ID,
			DisplayName: resp.DisplayName,
			Role:        model.Role(resp.Role),
		},
	}, nil
}

// Profile looks up a user's display profile by identifier.
func (a *API) Profile(
	ctx context.Context,
	id string,
) (*model.Profile, error) {
	var resp profileDTO
	path := "/api/v1/profiles/" + url.PathEscape(id)
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("looking up profile %s: %w", id, err)
	}
	return resp.toModel(), nil
}

// Ticket retrieves a single ticket by identifier.
func (a *API) Ticket(
	ctx context.Context,
	id string,
) (*model.Ticket, error) {
	var resp ticketDTO
	path := "/api/v1/tickets/" + url.PathEscape(id)
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("getting ticket %s: %w", id, err)
	}
	t := resp.toModel()
	return &t, nil
}

// Tickets lists the tickets visible to the authenticated user: all
// tickets for administrators, the user's own tickets otherwise. The
// filtering is applied server-side from the session token.
func (a *API) Tickets(ctx context.Context) ([]model.Ticket, error) {
	var resp []ticketDTO
	if err := a.client.Get(ctx, "/api/v1/tickets", &resp); err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}

	tickets := make([]model.Ticket, 0, len(resp))
	for _, dto := range resp {
		tickets = append(tickets, dto.toModel())
	}
	return tickets, nil
}

// CreateTicket files a new ticket owned by the authenticated user.
func (a *API) CreateTicket(
	ctx context.Context,
	title string,
	description string,
) (*model.Ticket, error) {
	var resp ticketDTO
	err := a.client.Post(ctx, "/api/v1/tickets", createTicketRequest{
		Title:       title,
		Description: description,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}
	t := resp.toModel()
	return &t, nil
}

// SetStatus transitions a ticket to the given status. Administrator
// only; moving a ticket out of "open" assigns the acting administrator
// server-side.
func (a *API) SetStatus(
	ctx context.Context,
	id string,
	status string,
) (*model.Ticket, error) {
	var resp ticketDTO
	path := "/api/v1/tickets/" + url.PathEscape(id)
	err := a.client.Patch(ctx, path, updateTicketRequest{
		Status: status,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("setting ticket %s status to %s: %w", id, status, err)
	}
	t := resp.toModel()
	return &t, nil
}

// Comments lists the discussion thread of a ticket, oldest first.
func (a *API) Comments(
	ctx context.Context,
	ticketID string,
) ([]model.Comment, error) {
	var resp []commentDTO
	path := "/api/v1/tickets/" + url.PathEscape(ticketID) + "/comments"
	if err := a.client.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("listing comments for ticket %s: %w", ticketID, err)
	}

	comments := make([]model.Comment, 0, len(resp))
	for _, dto := range resp {
		comments = append(comments, dto.toModel())
	}
	return comments, nil
}

// AddComment appends a comment to a ticket's thread.
func (a *API) AddComment(
	ctx context.Context,
	ticketID string,
	content string,
) (*model.Comment, error) {
	var resp commentDTO
	path := "/api/v1/tickets/" + url.PathEscape(ticketID) + "/comments"
	err := a.client.Post(ctx, path, createCommentRequest{
		Content: content,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("adding comment to ticket %s: %w", ticketID, err)
	}
	c := resp.toModel()
	return &c, nil
}
