package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/ticketwatch/internal/model"
)

// memPersister is an in-memory Persister for tests.
type memPersister struct {
	saved   map[string][]model.NotificationRecord
	failing bool
	saves   int
}

func newMemPersister() *memPersister {
	return &memPersister{saved: make(map[string][]model.NotificationRecord)}
}

func (p *memPersister) SaveNotifications(
	_ context.Context,
	userID string,
	records []model.NotificationRecord,
) error {
	p.saves++
	if p.failing {
		return errors.New("disk full")
	}
	cp := make([]model.NotificationRecord, len(records))
	copy(cp, records)
	p.saved[userID] = cp
	return nil
}

func (p *memPersister) LoadNotifications(
	_ context.Context,
	userID string,
) ([]model.NotificationRecord, error) {
	if p.failing {
		return nil, errors.New("disk gone")
	}
	return p.saved[userID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func record(kind model.Kind, ticketRef string, createdAt time.Time) model.NotificationRecord {
	return model.NotificationRecord{
		ID:        fmt.Sprintf("%s-%s-%d", kind, ticketRef, createdAt.UnixNano()),
		Kind:      kind,
		Message:   "message",
		TicketRef: ticketRef,
		CreatedAt: createdAt,
	}
}

func TestLogAppendOrdersMostRecentFirst(t *testing.T) {
	log := NewLog("u1", newMemPersister(), testLogger())
	base := time.Now()

	// Append out of order; the log must sort by CreatedAt.
	log.Append(context.Background(), record(model.KindNewTicket, "t1", base))
	log.Append(context.Background(), record(model.KindNewTicket, "t3", base.Add(2*time.Hour)))
	log.Append(context.Background(), record(model.KindNewTicket, "t2", base.Add(time.Hour)))

	state := log.State()
	require.Len(t, state.Records, 3)
	assert.Equal(t, "t3", state.Records[0].TicketRef)
	assert.Equal(t, "t2", state.Records[1].TicketRef)
	assert.Equal(t, "t1", state.Records[2].TicketRef)
	assert.Equal(t, 3, state.Unread)
}

func TestLogAppendEvictsBeyondCap(t *testing.T) {
	log := NewLog("u1", newMemPersister(), testLogger())
	base := time.Now()

	for i := 0; i < MaxRecords+5; i++ {
		r := record(model.KindNewTicket, fmt.Sprintf("t%d", i),
			base.Add(time.Duration(i)*time.Hour))
		_, added := log.Append(context.Background(), r)
		require.True(t, added)
	}

	state := log.State()
	require.Len(t, state.Records, MaxRecords)
	// The newest records survive, the oldest five are gone.
	assert.Equal(t, fmt.Sprintf("t%d", MaxRecords+4), state.Records[0].TicketRef)
	assert.Equal(t, "t5", state.Records[MaxRecords-1].TicketRef)
	assert.Equal(t, MaxRecords, state.Unread)
}

func TestLogAppendSuppressesReconnectDuplicates(t *testing.T) {
	log := NewLog("u1", newMemPersister(), testLogger())
	base := time.Now()

	_, added := log.Append(context.Background(), record(model.KindStatusChanged, "t1", base))
	require.True(t, added)

	// Same ticket and kind within the window is a duplicate.
	unread, added := log.Append(context.Background(),
		record(model.KindStatusChanged, "t1", base.Add(10*time.Second)))
	assert.False(t, added)
	assert.Equal(t, 1, unread)

	// A different kind on the same ticket is not.
	_, added = log.Append(context.Background(),
		record(model.KindNewComment, "t1", base.Add(10*time.Second)))
	assert.True(t, added)

	// The same kind outside the window is not either.
	_, added = log.Append(context.Background(),
		record(model.KindStatusChanged, "t1", base.Add(5*time.Minute)))
	assert.True(t, added)

	assert.Len(t, log.State().Records, 3)
}

func TestLogMarkReadIsIdempotent(t *testing.T) {
	persister := newMemPersister()
	log := NewLog("u1", persister, testLogger())
	r := record(model.KindNewTicket, "t1", time.Now())
	log.Append(context.Background(), r)

	log.MarkRead(context.Background(), r.ID)
	require.Equal(t, 0, log.State().Unread)
	savesAfterFirst := persister.saves

	// Marking again changes nothing and writes nothing.
	log.MarkRead(context.Background(), r.ID)
	assert.Equal(t, 0, log.State().Unread)
	assert.Equal(t, savesAfterFirst, persister.saves)

	// Unknown IDs are ignored.
	log.MarkRead(context.Background(), "no-such-id")
	assert.Equal(t, savesAfterFirst, persister.saves)
}

func TestLogMarkAllReadAndClear(t *testing.T) {
	persister := newMemPersister()
	log := NewLog("u1", persister, testLogger())
	base := time.Now()
	log.Append(context.Background(), record(model.KindNewTicket, "t1", base))
	log.Append(context.Background(), record(model.KindNewComment, "t2", base.Add(time.Minute)))

	log.MarkAllRead(context.Background())
	state := log.State()
	assert.Equal(t, 0, state.Unread)
	for _, r := range state.Records {
		assert.True(t, r.Read)
	}

	log.Clear(context.Background())
	state = log.State()
	assert.Empty(t, state.Records)
	assert.Equal(t, 0, state.Unread)
	assert.Empty(t, persister.saved["u1"])
}

func TestLogLoadRestoresPersistedRecords(t *testing.T) {
	persister := newMemPersister()
	base := time.Now()
	persister.saved["u1"] = []model.NotificationRecord{
		record(model.KindNewTicket, "t1", base),
		record(model.KindNewComment, "t2", base.Add(time.Minute)),
	}

	log := NewLog("u1", persister, testLogger())
	log.Load(context.Background())

	state := log.State()
	require.Len(t, state.Records, 2)
	assert.Equal(t, "t2", state.Records[0].TicketRef)
}

func TestLogPersistFailureIsSoft(t *testing.T) {
	persister := newMemPersister()
	persister.failing = true
	log := NewLog("u1", persister, testLogger())

	// The write fails but the in-memory log stays authoritative.
	unread, added := log.Append(context.Background(),
		record(model.KindNewTicket, "t1", time.Now()))
	assert.True(t, added)
	assert.Equal(t, 1, unread)
	assert.Len(t, log.State().Records, 1)

	// Load failure leaves the log empty rather than erroring out.
	fresh := NewLog("u2", persister, testLogger())
	fresh.Load(context.Background())
	assert.Empty(t, fresh.State().Records)
}

func TestLogStateReturnsACopy(t *testing.T) {
	log := NewLog("u1", newMemPersister(), testLogger())
	log.Append(context.Background(), record(model.KindNewTicket, "t1", time.Now()))

	state := log.State()
	state.Records[0].Read = true

	assert.Equal(t, 1, log.State().Unread)
}
