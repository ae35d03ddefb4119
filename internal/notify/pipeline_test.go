package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ticketwatch/internal/model"
)

// fakeSource feeds events to a pipeline from a plain channel.
type fakeSource struct {
	events chan model.RawChangeEvent
	done   chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan model.RawChangeEvent, 8),
		done:   make(chan struct{}),
	}
}

func (s *fakeSource) Events() <-chan model.RawChangeEvent {
	return s.events
}

func (s *fakeSource) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *fakePlayer, *fakeNotifier) {
	t.Helper()

	player := &fakePlayer{}
	notifier := &fakeNotifier{}
	synth := NewSynth(player, testLogger())
	synth.sleep = func(time.Duration) {}

	log := NewLog("admin-1", newMemPersister(), testLogger())
	dispatcher := NewDispatcher(grantedGate(t), notifier, testLogger())
	classifier := NewClassifier(testDirectory(), testLogger())

	return NewPipeline(
		adminViewer, classifier, log, synth, dispatcher,
		true, true, testLogger(),
	), player, notifier
}

func TestPipelineDeliversClassifiedEvent(t *testing.T) {
	p, player, notifier := newTestPipeline(t)
	src := newFakeSource()
	go p.Run(context.Background(), src)

	src.events <- model.RawChangeEvent{
		Operation: model.OpInsert,
		Table:     model.TableTickets,
		After:     model.RowSnapshot{ID: "t9", Title: "Printer issue", OwnerID: "user-1"},
	}

	// The update reaches the UI channel once the record lands.
	msg := p.WaitForUpdate()()
	update, ok := msg.(UpdateMsg)
	require.True(t, ok)
	require.Len(t, update.Snapshot.Records, 1)
	assert.Equal(t, model.KindNewTicket, update.Snapshot.Records[0].Kind)
	assert.Equal(t, 1, update.Snapshot.Unread)

	// Both alert channels fired.
	require.Eventually(t, func() bool {
		return len(player.played()) > 0
	}, time.Second, 5*time.Millisecond)
	require.Len(t, notifier.shown, 1)
	assert.Equal(t, "New ticket", notifier.shown[0].Title)
	assert.Equal(t, "new-ticket", notifier.shown[0].Tag)
	assert.Equal(t, 8*time.Second, notifier.shown[0].AutoDismiss)

	close(src.events)
}

func TestPipelineIgnoresIrrelevantEvents(t *testing.T) {
	p, _, notifier := newTestPipeline(t)
	src := newFakeSource()
	go p.Run(context.Background(), src)

	// An update event means nothing to an administrator.
	src.events <- model.RawChangeEvent{
		Operation: model.OpUpdate,
		Table:     model.TableTickets,
		Before:    &model.RowSnapshot{ID: "t1", OwnerID: "user-1", Status: model.StatusOpen},
		After:     model.RowSnapshot{ID: "t1", OwnerID: "user-1", Status: model.StatusResolved},
	}
	close(src.events)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, p.Log().State().Records)
	assert.Empty(t, notifier.shown)
}

func TestPipelineSuppressedDuplicateFiresNoAlerts(t *testing.T) {
	p, player, notifier := newTestPipeline(t)

	rec := model.NotificationRecord{
		ID: "r1", Kind: model.KindNewTicket, TicketRef: "t1",
		Message: "New ticket", CreatedAt: time.Now(),
	}
	p.Deliver(context.Background(), rec)

	require.Eventually(t, func() bool {
		return len(player.played()) > 0
	}, time.Second, 5*time.Millisecond)
	tonesAfterFirst := len(player.played())
	require.Len(t, notifier.shown, 1)

	// The same ticket and kind moments later is a reconnect replay.
	dup := rec
	dup.ID = "r2"
	dup.CreatedAt = rec.CreatedAt.Add(5 * time.Second)
	p.Deliver(context.Background(), dup)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, p.Log().State().Records, 1)
	assert.Len(t, notifier.shown, 1)
	assert.Equal(t, tonesAfterFirst, len(player.played()))
}

func TestPipelinePublishPushesCurrentState(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	p.Log().Append(context.Background(), model.NotificationRecord{
		ID: "r1", Kind: model.KindNewComment, TicketRef: "t1",
		CreatedAt: time.Now(),
	})
	p.Publish()

	msg := p.WaitForUpdate()()
	update, ok := msg.(UpdateMsg)
	require.True(t, ok)
	assert.Equal(t, 1, update.Snapshot.Unread)
}
