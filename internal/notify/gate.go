package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Permission is the desktop-alert authorization state.
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// PermissionStore caches the user's decision across sessions.
type PermissionStore interface {
	Permission(ctx context.Context, userID string) (Permission, error)
	SetPermission(ctx context.Context, userID string, p Permission) error
}

// PromptFunc asks the user whether desktop alerts may be shown. It may
// block until the user answers. A nil PromptFunc means the platform has
// no way to ask; the gate then stays closed.
type PromptFunc func(ctx context.Context) (bool, error)

// Gate answers "may I pop a desktop alert now?". The state machine is
// unknown -> granted | denied, transitioned only by RequestPermission;
// denied is terminal for the session with no automatic re-prompt.
type Gate struct {
	mu     sync.Mutex
	state  Permission
	userID string
	store  PermissionStore
	prompt PromptFunc
	logger *slog.Logger
}

// NewGate creates a gate for the given user, restoring any decision
// cached by a previous session. A failed restore leaves the state
// unknown.
func NewGate(
	ctx context.Context,
	userID string,
	store PermissionStore,
	prompt PromptFunc,
	logger *slog.Logger,
) *Gate {
	g := &Gate{
		state:  PermissionUnknown,
		userID: userID,
		store:  store,
		prompt: prompt,
		logger: logger,
	}

	cached, err := store.Permission(ctx, userID)
	if err != nil {
		logger.Warn("restoring alert permission",
			slog.String("error", err.Error()))
		return g
	}
	g.state = cached
	return g
}

// HasPermission reports whether desktop alerts are currently allowed.
func (g *Gate) HasPermission() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == PermissionGranted
}

// State returns the current permission state.
func (g *Gate) State() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// RequestPermission resolves the permission state, prompting the user
// if no decision has been made yet. It returns whether alerts are
// allowed and never returns an error: a failed prompt leaves the state
// unknown and answers false.
func (g *Gate) RequestPermission(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case PermissionGranted:
		return true
	case PermissionDenied:
		return false
	}

	if g.prompt == nil {
		// No way to ask on this platform; the gate stays closed.
		g.transitionLocked(ctx, PermissionDenied)
		return false
	}

	granted, err := g.prompt(ctx)
	if err != nil {
		g.logger.Warn("permission prompt failed",
			slog.String("error", err.Error()))
		return false
	}

	if granted {
		g.transitionLocked(ctx, PermissionGranted)
	} else {
		g.transitionLocked(ctx, PermissionDenied)
	}
	return granted
}

// transitionLocked records the decision and caches it for future
// sessions. A failed cache write is soft.
func (g *Gate) transitionLocked(ctx context.Context, p Permission) {
	g.state = p
	if err := g.store.SetPermission(ctx, g.userID, p); err != nil {
		g.logger.Warn("caching alert permission",
			slog.String("state", p.String()),
			slog.String("error", err.Error()),
		)
	}
}
