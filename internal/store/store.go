package store

import (
	"context"

	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/notify"
)

// TicketFilter controls filtering and sorting for cached ticket queries.
type TicketFilter struct {
	Status *string
	Query  *string
	Limit  int
}

// Store defines the local persistence interface: the per-user
// notification log, cached alert-permission decisions, and a ticket
// cache so the list renders before the first backend round trip.
type Store interface {
	// === Notification log (one collection per user identity) ===

	SaveNotifications(ctx context.Context, userID string, records []model.NotificationRecord) error
	LoadNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error)

	// === Alert permission cache ===

	Permission(ctx context.Context, userID string) (notify.Permission, error)
	SetPermission(ctx context.Context, userID string, p notify.Permission) error

	// === Ticket cache ===

	UpsertTickets(ctx context.Context, tickets []model.Ticket) error
	GetTickets(ctx context.Context, filter TicketFilter) ([]model.Ticket, error)
}
