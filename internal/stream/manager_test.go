package stream

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ticketwatch/internal/model"
)

func testManager() *Manager {
	return &Manager{
		prefix: "ticketwatch",
		logger: slog.New(slog.DiscardHandler),
	}
}

func TestChannelsForAdmin(t *testing.T) {
	admin := model.Viewer{ID: "a1", Role: model.RoleAdmin}

	channels := testManager().channelsFor(admin)
	assert.Equal(t, []string{
		"ticketwatch:tickets:insert",
		"ticketwatch:comments:insert",
	}, channels)
}

func TestChannelsForUser(t *testing.T) {
	user := model.Viewer{ID: "u1", Role: model.RoleUser}

	channels := testManager().channelsFor(user)
	assert.Equal(t, []string{
		"ticketwatch:tickets:update:u1",
		"ticketwatch:comments:owner:u1",
	}, channels)
}

func TestChangeEventEnvelopeDecodes(t *testing.T) {
	payload := `{
		"operation": "UPDATE",
		"table": "tickets",
		"before": {"id": "t1", "status": "open", "assignee_id": ""},
		"after": {"id": "t1", "title": "Printer issue", "status": "in_progress",
			"owner_id": "u1", "assignee_id": "a1"}
	}`

	var ev model.RawChangeEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))

	assert.Equal(t, model.OpUpdate, ev.Operation)
	assert.Equal(t, model.TableTickets, ev.Table)
	require.NotNil(t, ev.Before)
	assert.Equal(t, model.StatusOpen, ev.Before.Status)
	assert.Equal(t, "a1", ev.After.AssigneeID)
	assert.Equal(t, model.StatusInProgress, ev.After.Status)
}

func TestChangeEventInsertHasNoBefore(t *testing.T) {
	payload := `{
		"operation": "INSERT",
		"table": "comments",
		"after": {"id": "c1", "ticket_id": "t1", "author_id": "u1", "content": "hi"}
	}`

	var ev model.RawChangeEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))

	assert.Equal(t, model.OpInsert, ev.Operation)
	assert.Nil(t, ev.Before)
	assert.Equal(t, "t1", ev.After.TicketID)
}
