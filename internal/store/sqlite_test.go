package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ticketwatch/internal/model"
	"github.com/nhle/ticketwatch/internal/notify"
	"github.com/nhle/ticketwatch/internal/store"
	"github.com/nhle/ticketwatch/tests/testutil"
)

func sampleRecords(base time.Time) []model.NotificationRecord {
	return []model.NotificationRecord{
		{
			ID: "n2", Kind: model.KindNewComment,
			Message: "Sam Admin commented on \"Printer issue\": ok",
			TicketRef: "t1", Read: false, CreatedAt: base.Add(time.Minute),
		},
		{
			ID: "n1", Kind: model.KindNewTicket,
			Message: "New ticket from Jean Dupont: Printer issue",
			TicketRef: "t1", Read: true, CreatedAt: base,
		},
	}
}

func TestNotificationsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.SaveNotifications(ctx, "u1", sampleRecords(base)))

	loaded, err := s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Most recent first, with kinds and read flags intact.
	assert.Equal(t, "n2", loaded[0].ID)
	assert.Equal(t, model.KindNewComment, loaded[0].Kind)
	assert.False(t, loaded[0].Read)
	assert.Equal(t, "n1", loaded[1].ID)
	assert.True(t, loaded[1].Read)
	assert.Equal(t, "t1", loaded[1].TicketRef)
}

func TestSaveNotificationsReplacesPreviousSet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.SaveNotifications(ctx, "u1", sampleRecords(base)))
	require.NoError(t, s.SaveNotifications(ctx, "u1", []model.NotificationRecord{
		{ID: "n3", Kind: model.KindStatusChanged, TicketRef: "t2", CreatedAt: base},
	}))

	loaded, err := s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "n3", loaded[0].ID)
}

func TestNotificationsAreScopedPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.SaveNotifications(ctx, "u1", sampleRecords(base)))

	other, err := s.LoadNotifications(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)

	// Clearing one user leaves the other untouched.
	require.NoError(t, s.SaveNotifications(ctx, "u2", sampleRecords(base)))
	require.NoError(t, s.SaveNotifications(ctx, "u1", nil))

	mine, err := s.LoadNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mine)

	theirs, err := s.LoadNotifications(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, theirs, 2)
}

func TestPermissionCacheRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	// No cached decision reads as unknown, not as an error.
	p, err := s.Permission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionUnknown, p)

	require.NoError(t, s.SetPermission(ctx, "u1", notify.PermissionGranted))
	p, err = s.Permission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionGranted, p)

	// Decisions can be overwritten.
	require.NoError(t, s.SetPermission(ctx, "u1", notify.PermissionDenied))
	p, err = s.Permission(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionDenied, p)

	// Decisions are per user.
	p, err = s.Permission(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, notify.PermissionUnknown, p)
}

func TestTicketCacheUpsertAndFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	tickets := []model.Ticket{
		{
			ID: "t1", Title: "Printer issue", Description: "Out of toner",
			Status: model.StatusOpen, OwnerID: "u1", OwnerName: "Jean Dupont",
			CreatedAt: base, UpdatedAt: base,
		},
		{
			ID: "t2", Title: "VPN broken", Description: "Cannot connect",
			Status: model.StatusInProgress, OwnerID: "u1", OwnerName: "Jean Dupont",
			AssigneeID: "a1", AssigneeName: "Sam Admin",
			CreatedAt: base, UpdatedAt: base.Add(time.Hour),
		},
	}
	require.NoError(t, s.UpsertTickets(ctx, tickets))

	all, err := s.GetTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Most recently updated first.
	assert.Equal(t, "t2", all[0].ID)
	assert.Equal(t, "Sam Admin", all[0].AssigneeName)

	status := model.StatusOpen
	open, err := s.GetTickets(ctx, store.TicketFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "t1", open[0].ID)

	query := "vpn"
	matched, err := s.GetTickets(ctx, store.TicketFilter{Query: &query})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "t2", matched[0].ID)

	// Re-upserting replaces the row.
	tickets[0].Status = model.StatusResolved
	require.NoError(t, s.UpsertTickets(ctx, tickets[:1]))
	resolved, err := s.GetTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	for _, tk := range resolved {
		if tk.ID == "t1" {
			assert.Equal(t, model.StatusResolved, tk.Status)
		}
	}
}

func TestTicketCacheLimit(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	var tickets []model.Ticket
	for i := 0; i < 5; i++ {
		tickets = append(tickets, model.Ticket{
			ID: string(rune('a' + i)), Title: "t", Status: model.StatusOpen,
			OwnerID: "u1", CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, s.UpsertTickets(ctx, tickets))

	limited, err := s.GetTickets(ctx, store.TicketFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
