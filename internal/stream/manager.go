// Package stream maintains the live change-event channel to the ticket
// backend. The backend publishes RawChangeEvent JSON envelopes on Redis
// pub/sub channels; which channels a viewer listens on depends on their
// role, so the server-side filtering happens at subscription time.
//
// Delivery is at-least-once: go-redis reconnects dropped connections
// transparently and the backend may republish events it is not sure
// were delivered, so consumers must tolerate duplicates.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/ticketwatch/internal/model"
)

// eventBuffer is the capacity of a subscription's delivery channel.
// Events beyond it block the pump, never reorder.
const eventBuffer = 64

// Manager opens and tears down live subscriptions. It keeps at most one
// subscription active at a time: opening for a new viewer closes the
// previous viewer's channel first.
type Manager struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	current *Subscription
}

// NewManager creates a subscription manager on the given Redis client.
// The prefix namespaces the channels the backend publishes on.
func NewManager(rdb *redis.Client, prefix string, logger *slog.Logger) *Manager {
	return &Manager{
		rdb:    rdb,
		prefix: prefix,
		logger: logger,
	}
}

// Open establishes the live subscription for the given viewer, closing
// any previously open subscription first. The returned subscription
// delivers events in the order received from the backend.
func (m *Manager) Open(
	ctx context.Context,
	viewer model.Viewer,
) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Close()
		m.current = nil
	}

	channels := m.channelsFor(viewer)
	ps := m.rdb.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so a broken broker
	// surfaces here rather than as a silent dead channel.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %v: %w", channels, err)
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan model.RawChangeEvent, eventBuffer),
		done:   make(chan struct{}),
		logger: m.logger,
	}
	go sub.pump()

	m.current = sub
	m.logger.Info("subscription opened",
		slog.String("viewer", viewer.ID),
		slog.String("role", string(viewer.Role)),
		slog.Any("channels", channels),
	)
	return sub, nil
}

// Close tears down the active subscription, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}

// channelsFor returns the pub/sub channels implied by the viewer's role.
// Administrators see every ticket insert and every comment insert;
// ordinary users see updates and comments only for rows they own,
// published by the backend on per-owner channels.
func (m *Manager) channelsFor(viewer model.Viewer) []string {
	if viewer.IsAdmin() {
		return []string{
			m.prefix + ":tickets:insert",
			m.prefix + ":comments:insert",
		}
	}
	return []string{
		m.prefix + ":tickets:update:" + viewer.ID,
		m.prefix + ":comments:owner:" + viewer.ID,
	}
}

// Subscription is one open live channel. Events() yields decoded change
// events until Close is called or the broker connection is lost for good.
type Subscription struct {
	ps     *redis.PubSub
	events chan model.RawChangeEvent
	done   chan struct{}
	logger *slog.Logger
	once   sync.Once
}

// Events returns the ordered stream of change events.
func (s *Subscription) Events() <-chan model.RawChangeEvent {
	return s.events
}

// Done returns a channel closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the subscription has been closed. Classification
// results for in-flight events are checked against this before they are
// appended to the log.
func (s *Subscription) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close unsubscribes from the broker and stops delivery. Safe to call
// more than once and from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if err := s.ps.Close(); err != nil {
			s.logger.Warn("closing pubsub", slog.String("error", err.Error()))
		}
	})
}

// pump forwards broker messages to the events channel in arrival order.
// Undecodable payloads are logged and skipped, never fatal.
func (s *Subscription) pump() {
	defer close(s.events)

	for msg := range s.ps.Channel() {
		var ev model.RawChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.logger.Warn("dropping malformed change event",
				slog.String("channel", msg.Channel),
				slog.String("error", err.Error()),
			)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
