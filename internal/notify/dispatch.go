package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Alert describes one desktop popup.
type Alert struct {
	Title string
	Body  string
	Icon  string

	// Tag is the coalescing key: the platform replaces a visible alert
	// with a newer one carrying the same tag. The dispatcher does not
	// de-duplicate itself.
	Tag string

	// AutoDismiss closes the alert after this delay. Zero keeps the
	// alert up until the user dismisses or activates it.
	AutoDismiss time.Duration

	// OnActivate runs exactly once when the user activates the alert,
	// after which the alert is dismissed.
	OnActivate func()
}

// Handle controls one shown alert.
type Handle interface {
	Dismiss()
}

// Notifier is the platform side of desktop alerts. Implementations
// report activation by calling the OnActivate they were handed.
type Notifier interface {
	Show(a Alert) (Handle, error)
}

// Dispatcher is a thin, stateless pass-through from the pipeline to the
// platform notifier, plus the auto-dismiss timer. It owns no alert
// state beyond the timer of each in-flight popup.
type Dispatcher struct {
	gate     *Gate
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher gated by the given permission gate.
func NewDispatcher(gate *Gate, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gate:     gate,
		notifier: notifier,
		logger:   logger,
	}
}

// Show displays the alert if permission allows. It reports whether the
// alert was actually shown; a denied gate or platform failure yields
// false with no visible side effect.
func (d *Dispatcher) Show(a Alert) bool {
	if !d.gate.HasPermission() {
		return false
	}

	var (
		once   sync.Once
		timer  *time.Timer
		handle Handle
	)

	userActivate := a.OnActivate
	a.OnActivate = func() {
		once.Do(func() {
			if timer != nil {
				timer.Stop()
			}
			if userActivate != nil {
				userActivate()
			}
			if handle != nil {
				handle.Dismiss()
			}
		})
	}

	shown, err := d.notifier.Show(a)
	if err != nil {
		d.logger.Warn("showing desktop alert",
			slog.String("tag", a.Tag),
			slog.String("error", err.Error()),
		)
		return false
	}
	handle = shown

	if a.AutoDismiss > 0 {
		timer = time.AfterFunc(a.AutoDismiss, func() {
			shown.Dismiss()
		})
	}

	return true
}
