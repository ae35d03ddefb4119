// Package platform holds the terminal-backed implementations of the
// notification pipeline's platform interfaces. The pipeline itself
// never touches the terminal; tests substitute fakes.
package platform

import (
	"errors"
	"io"
	"time"

	"github.com/muesli/termenv"

	"github.com/nhle/ticketwatch/internal/notify"
)

// TermNotifier shows desktop alerts through the terminal emulator's
// OSC 777 notification escape. Terminals route these to the OS
// notification center; ones that don't support the sequence ignore it.
type TermNotifier struct {
	out *termenv.Output
}

// NewTermNotifier creates a notifier writing to the given stream, which
// should be a tty the emulator is attached to.
func NewTermNotifier(w io.Writer) *TermNotifier {
	return &TermNotifier{out: termenv.NewOutput(w)}
}

// Show emits the notification escape. The terminal owns rendering, so
// icon and tag coalescing are left to it, the returned handle cannot
// dismiss, and activation callbacks never fire.
func (n *TermNotifier) Show(a notify.Alert) (notify.Handle, error) {
	n.out.Notify(a.Title, a.Body)
	return noopHandle{}, nil
}

type noopHandle struct{}

func (noopHandle) Dismiss() {}

// BellPlayer renders tones as the terminal bell. Frequency and volume
// cannot be expressed over a tty, so every tone degrades to BEL with
// its timing preserved by the synthesizer.
type BellPlayer struct {
	w io.Writer
}

// NewBellPlayer creates a player ringing the bell on the given stream.
func NewBellPlayer(w io.Writer) *BellPlayer {
	return &BellPlayer{w: w}
}

// Tone rings the terminal bell once.
func (p *BellPlayer) Tone(_ float64, _ time.Duration, _ float64) error {
	if p.w == nil {
		return errors.New("no output stream for bell")
	}
	if _, err := p.w.Write([]byte("\a")); err != nil {
		return err
	}
	return nil
}
