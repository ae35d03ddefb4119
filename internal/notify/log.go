package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nhle/ticketwatch/internal/model"
)

// MaxRecords caps the notification log. Appends beyond it evict the
// oldest records, read or not.
const MaxRecords = 20

// dedupWindow bounds how far apart two records for the same ticket and
// kind may be and still count as one delivery. Replays on reconnect are
// reclassified with a fresh timestamp, so the window is what suppresses
// them.
const dedupWindow = time.Minute

// Persister stores one record collection per user identity. Failures
// are soft: the in-memory log stays authoritative and the write is
// retried on the next mutation.
type Persister interface {
	SaveNotifications(ctx context.Context, userID string, records []model.NotificationRecord) error
	LoadNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error)
}

// Snapshot is the immutable view the UI renders from.
type Snapshot struct {
	Records []model.NotificationRecord
	Unread  int
}

// Log is the ordered, bounded notification collection for one user.
// It is the single source of truth for the notification UI; all
// mutations go through its explicit API.
type Log struct {
	mu        sync.Mutex
	userID    string
	persister Persister
	logger    *slog.Logger
	records   []model.NotificationRecord
}

// NewLog creates an empty log for the given user identity.
func NewLog(userID string, persister Persister, logger *slog.Logger) *Log {
	return &Log{
		userID:    userID,
		persister: persister,
		logger:    logger,
	}
}

// Load restores the persisted records for this user. A load failure is
// soft: the log starts empty and the session continues.
func (l *Log) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.persister.LoadNotifications(ctx, l.userID)
	if err != nil {
		l.logger.Warn("loading notification log",
			slog.String("user", l.userID),
			slog.String("error", err.Error()),
		)
		return
	}

	l.records = records
	l.sortAndBoundLocked()
}

// Append adds a record to the log, keeping it sorted most-recent-first
// by CreatedAt and bounded to MaxRecords. It returns the resulting
// unread count and whether the record was actually added; a false added
// means the record was suppressed as a reconnect duplicate and no alert
// side effects should fire.
func (l *Log) Append(
	ctx context.Context,
	record model.NotificationRecord,
) (unread int, added bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isDuplicateLocked(record) {
		l.logger.Debug("suppressing duplicate notification",
			slog.String("ticket", record.TicketRef),
			slog.String("kind", string(record.Kind)),
		)
		return l.unreadLocked(), false
	}

	l.records = append(l.records, record)
	l.sortAndBoundLocked()
	l.persistLocked(ctx)

	return l.unreadLocked(), true
}

// MarkRead marks a single record as read. Marking an already-read
// record changes nothing observable.
func (l *Log) MarkRead(ctx context.Context, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.records {
		if l.records[i].ID == id && !l.records[i].Read {
			l.records[i].Read = true
			changed = true
		}
	}
	if changed {
		l.persistLocked(ctx)
	}
}

// MarkAllRead marks every record as read.
func (l *Log) MarkAllRead(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for i := range l.records {
		if !l.records[i].Read {
			l.records[i].Read = true
			changed = true
		}
	}
	if changed {
		l.persistLocked(ctx)
	}
}

// Clear removes every record. Only explicit user action calls this.
func (l *Log) Clear(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	l.persistLocked(ctx)
}

// State returns a snapshot of the current records and unread count.
// The returned slice is a copy; callers may hold it across mutations.
func (l *Log) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]model.NotificationRecord, len(l.records))
	copy(records, l.records)

	return Snapshot{
		Records: records,
		Unread:  l.unreadLocked(),
	}
}

// isDuplicateLocked reports whether an equivalent record is already in
// the log: same ticket, same kind, created within dedupWindow.
func (l *Log) isDuplicateLocked(record model.NotificationRecord) bool {
	for i := range l.records {
		if l.records[i].TicketRef != record.TicketRef {
			continue
		}
		if l.records[i].Kind != record.Kind {
			continue
		}
		delta := record.CreatedAt.Sub(l.records[i].CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= dedupWindow {
			return true
		}
	}
	return false
}

// sortAndBoundLocked re-sorts most-recent-first and evicts beyond the
// cap. Classification lookups can finish out of delivery order, so the
// list is ordered by CreatedAt, never by arrival.
func (l *Log) sortAndBoundLocked() {
	sort.SliceStable(l.records, func(i, j int) bool {
		return l.records[i].CreatedAt.After(l.records[j].CreatedAt)
	})
	if len(l.records) > MaxRecords {
		l.records = l.records[:MaxRecords]
	}
}

func (l *Log) unreadLocked() int {
	count := 0
	for i := range l.records {
		if !l.records[i].Read {
			count++
		}
	}
	return count
}

// persistLocked writes the current records through the persister.
// Failures are logged and swallowed; the next mutation writes again.
func (l *Log) persistLocked(ctx context.Context) {
	err := l.persister.SaveNotifications(ctx, l.userID, l.records)
	if err != nil {
		l.logger.Warn("persisting notification log",
			slog.String("user", l.userID),
			slog.String("error", err.Error()),
		)
	}
}
