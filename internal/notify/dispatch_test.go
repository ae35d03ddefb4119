package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotifier records shown alerts and hands out fake handles.
type fakeNotifier struct {
	shown   []Alert
	handles []*fakeHandle
	err     error
}

func (n *fakeNotifier) Show(a Alert) (Handle, error) {
	if n.err != nil {
		return nil, n.err
	}
	n.shown = append(n.shown, a)
	h := &fakeHandle{}
	n.handles = append(n.handles, h)
	return h, nil
}

type fakeHandle struct {
	dismissed int
}

func (h *fakeHandle) Dismiss() {
	h.dismissed++
}

func grantedGate(t *testing.T) *Gate {
	t.Helper()
	store := newMemPermissionStore()
	store.decisions["u1"] = PermissionGranted
	return NewGate(context.Background(), "u1", store, nil, testLogger())
}

func deniedGate(t *testing.T) *Gate {
	t.Helper()
	store := newMemPermissionStore()
	store.decisions["u1"] = PermissionDenied
	return NewGate(context.Background(), "u1", store, nil, testLogger())
}

func TestDispatcherShowsWhenGranted(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(grantedGate(t), notifier, testLogger())

	shown := d.Show(Alert{Title: "New ticket", Body: "b", Tag: "new-ticket"})
	assert.True(t, shown)
	require.Len(t, notifier.shown, 1)
	assert.Equal(t, "new-ticket", notifier.shown[0].Tag)
}

func TestDispatcherSuppressesWithoutPermission(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(deniedGate(t), notifier, testLogger())

	assert.False(t, d.Show(Alert{Title: "New ticket"}))
	assert.Empty(t, notifier.shown)
}

func TestDispatcherPlatformFailureYieldsFalse(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("no notification daemon")}
	d := NewDispatcher(grantedGate(t), notifier, testLogger())

	assert.False(t, d.Show(Alert{Title: "New ticket"}))
}

func TestDispatcherAutoDismiss(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(grantedGate(t), notifier, testLogger())

	require.True(t, d.Show(Alert{
		Title:       "New comment",
		AutoDismiss: 10 * time.Millisecond,
	}))

	require.Eventually(t, func() bool {
		return notifier.handles[0].dismissed == 1
	}, time.Second, 5*time.Millisecond)
}

func TestDispatcherActivationRunsOnceAndDismisses(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(grantedGate(t), notifier, testLogger())

	activations := 0
	var sent Alert
	require.True(t, d.Show(Alert{
		Title: "New ticket",
		OnActivate: func() {
			activations++
		},
	}))

	// The dispatcher wrapped OnActivate before handing it down.
	sent = notifier.shown[0]
	require.NotNil(t, sent.OnActivate)

	sent.OnActivate()
	sent.OnActivate()

	assert.Equal(t, 1, activations)
	assert.Equal(t, 1, notifier.handles[0].dismissed)
}

func TestDispatcherActivationCancelsAutoDismiss(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(grantedGate(t), notifier, testLogger())

	require.True(t, d.Show(Alert{
		Title:       "New ticket",
		AutoDismiss: 50 * time.Millisecond,
	}))

	// Activating stops the timer; only the activation dismiss fires.
	notifier.shown[0].OnActivate()
	assert.Equal(t, 1, notifier.handles[0].dismissed)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, notifier.handles[0].dismissed)
}
