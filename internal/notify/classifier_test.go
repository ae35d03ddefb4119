package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ticketwatch/internal/model"
)

// fakeDirectory serves profiles and tickets from maps.
type fakeDirectory struct {
	profiles map[string]*model.Profile
	tickets  map[string]*model.Ticket
}

func (d *fakeDirectory) Profile(_ context.Context, id string) (*model.Profile, error) {
	p, ok := d.profiles[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return p, nil
}

func (d *fakeDirectory) Ticket(_ context.Context, id string) (*model.Ticket, error) {
	t, ok := d.tickets[id]
	if !ok {
		return nil, errors.New("ticket not found")
	}
	return t, nil
}

var (
	adminViewer = model.Viewer{ID: "admin-1", DisplayName: "Sam Admin", Role: model.RoleAdmin}
	userViewer  = model.Viewer{ID: "user-1", DisplayName: "Jean Dupont", Role: model.RoleUser}
)

func testDirectory() *fakeDirectory {
	return &fakeDirectory{
		profiles: map[string]*model.Profile{
			"admin-1": {ID: "admin-1", DisplayName: "Sam Admin", Role: model.RoleAdmin},
			"user-1":  {ID: "user-1", DisplayName: "Jean Dupont", Role: model.RoleUser},
			"user-2":  {ID: "user-2", DisplayName: "Maria Lopez", Role: model.RoleUser},
		},
		tickets: map[string]*model.Ticket{
			"t1": {
				ID: "t1", Title: "Printer issue",
				OwnerID: "user-1", AssigneeID: "admin-1",
			},
		},
	}
}

func classify(
	t *testing.T,
	ev model.RawChangeEvent,
	viewer model.Viewer,
) *model.NotificationRecord {
	t.Helper()
	c := NewClassifier(testDirectory(), testLogger())
	rec, err := c.Classify(context.Background(), ev, viewer)
	require.NoError(t, err)
	return rec
}

func TestClassifyTicketInsertNotifiesAdmin(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableTickets,
		After: model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1",
		},
	}

	rec := classify(t, ev, adminViewer)
	require.NotNil(t, rec)
	assert.Equal(t, model.KindNewTicket, rec.Kind)
	assert.Equal(t, "t1", rec.TicketRef)
	assert.Equal(t, "New ticket from Jean Dupont: Printer issue", rec.Message)
	assert.False(t, rec.Read)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	// Ordinary users never see the insert rule.
	assert.Nil(t, classify(t, ev, userViewer))
}

func TestClassifyTicketAssignedNotifiesOwner(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpUpdate,
		Table:     model.TableTickets,
		Before: &model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1", AssigneeID: "",
		},
		After: model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1", AssigneeID: "admin-1",
		},
	}

	rec := classify(t, ev, userViewer)
	require.NotNil(t, rec)
	assert.Equal(t, model.KindAdminAssigned, rec.Kind)
	assert.Equal(t, `Sam Admin is now handling your ticket "Printer issue"`, rec.Message)

	// Administrators are not notified about their own assignments.
	assert.Nil(t, classify(t, ev, adminViewer))

	// A viewer who does not own the ticket gets nothing.
	other := model.Viewer{ID: "user-2", Role: model.RoleUser}
	assert.Nil(t, classify(t, ev, other))
}

func TestClassifyTicketStatusChangeNotifiesOwner(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpUpdate,
		Table:     model.TableTickets,
		Before: &model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1",
			AssigneeID: "admin-1", Status: model.StatusOpen,
		},
		After: model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1",
			AssigneeID: "admin-1", Status: model.StatusInProgress,
		},
	}

	rec := classify(t, ev, userViewer)
	require.NotNil(t, rec)
	assert.Equal(t, model.KindStatusChanged, rec.Kind)
	assert.Equal(t, `Your ticket "Printer issue" is now: In progress`, rec.Message)
}

func TestClassifyTicketUpdateWithoutRelevantChangeIsSilent(t *testing.T) {
	// Same status, assignee already set: neither rule matches.
	ev := model.RawChangeEvent{
		Operation: model.OpUpdate,
		Table:     model.TableTickets,
		Before: &model.RowSnapshot{
			ID: "t1", Title: "Printer issue", OwnerID: "user-1",
			AssigneeID: "admin-1", Status: model.StatusOpen,
		},
		After: model.RowSnapshot{
			ID: "t1", Title: "Printer issue (edited)", OwnerID: "user-1",
			AssigneeID: "admin-1", Status: model.StatusOpen,
		},
	}
	assert.Nil(t, classify(t, ev, userViewer))

	// An update without a before image cannot be classified.
	ev.Before = nil
	assert.Nil(t, classify(t, ev, userViewer))
}

func TestClassifyCommentNotifiesOwnerAndAssignee(t *testing.T) {
	fromAdmin := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableComments,
		After: model.RowSnapshot{
			ID: "c1", TicketID: "t1", AuthorID: "admin-1",
			Content: "Have you tried turning it off and on again?",
		},
	}

	rec := classify(t, fromAdmin, userViewer)
	require.NotNil(t, rec)
	assert.Equal(t, model.KindNewComment, rec.Kind)
	assert.Equal(t, "t1", rec.TicketRef)
	assert.Equal(t,
		`Sam Admin commented on "Printer issue": Have you tried turning it off and on again?`,
		rec.Message)

	// The assigned administrator hears about the owner's replies.
	fromOwner := fromAdmin
	fromOwner.After.AuthorID = "user-1"
	rec = classify(t, fromOwner, adminViewer)
	require.NotNil(t, rec)
	assert.Equal(t, model.KindNewComment, rec.Kind)
}

func TestClassifyCommentSkipsOwnAndIrrelevant(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableComments,
		After: model.RowSnapshot{
			ID: "c1", TicketID: "t1", AuthorID: "user-1", Content: "ping",
		},
	}

	// Authors never hear about their own comments.
	assert.Nil(t, classify(t, ev, userViewer))

	// A user who does not own the ticket gets nothing.
	bystander := model.Viewer{ID: "user-2", Role: model.RoleUser}
	assert.Nil(t, classify(t, ev, bystander))

	// An admin not assigned to the ticket gets nothing either.
	otherAdmin := model.Viewer{ID: "admin-2", Role: model.RoleAdmin}
	assert.Nil(t, classify(t, ev, otherAdmin))
}

func TestClassifyCommentTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("a", commentPreviewLen+20)
	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableComments,
		After: model.RowSnapshot{
			ID: "c1", TicketID: "t1", AuthorID: "admin-1", Content: long,
		},
	}

	rec := classify(t, ev, userViewer)
	require.NotNil(t, rec)
	assert.Contains(t, rec.Message, strings.Repeat("a", commentPreviewLen)+"...")
	assert.NotContains(t, rec.Message, strings.Repeat("a", commentPreviewLen+1))
}

func TestClassifyLookupFailureDropsEvent(t *testing.T) {
	c := NewClassifier(&fakeDirectory{}, testLogger())

	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableTickets,
		After:     model.RowSnapshot{ID: "t1", Title: "x", OwnerID: "ghost"},
	}
	rec, err := c.Classify(context.Background(), ev, adminViewer)
	require.Error(t, err)
	assert.Nil(t, rec)
}

func TestClassifyUnknownTableIsSilent(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     "profiles",
		After:     model.RowSnapshot{ID: "p1"},
	}
	assert.Nil(t, classify(t, ev, adminViewer))
}

func TestClassifyRecordsGetFreshIDs(t *testing.T) {
	ev := model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableTickets,
		After:     model.RowSnapshot{ID: "t1", Title: "Printer issue", OwnerID: "user-1"},
	}

	first := classify(t, ev, adminViewer)
	second := classify(t, ev, adminViewer)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}
