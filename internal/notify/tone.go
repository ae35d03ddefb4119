package notify

import (
	"log/slog"
	"time"

	"github.com/nhle/ticketwatch/internal/model"
)

// Player emits a single tone. A call starts the tone and returns; the
// synthesizer paces the sequence. Implementations without audio
// capability return an error, which playback treats as best-effort.
type Player interface {
	Tone(freq float64, duration time.Duration, volume float64) error
}

// pattern is the declarative recipe for one notification kind: either a
// sequence of frequencies played once each, or one frequency repeated.
type pattern struct {
	freqs    []float64
	duration time.Duration
	gap      time.Duration
	repeat   int
	volume   float64
}

// tones expands the pattern into the flat tone sequence to play.
func (p pattern) tones() []float64 {
	if p.repeat > 1 {
		seq := make([]float64, p.repeat)
		for i := range seq {
			seq[i] = p.freqs[0]
		}
		return seq
	}
	return p.freqs
}

// patterns maps notification kinds to their alert tones.
var patterns = map[model.Kind]pattern{
	model.KindNewTicket: {
		freqs:    []float64{800, 1000},
		duration: 100 * time.Millisecond,
		gap:      150 * time.Millisecond,
		volume:   0.4,
	},
	model.KindAdminAssigned: {
		freqs:    []float64{600, 800, 1000},
		duration: 80 * time.Millisecond,
		gap:      100 * time.Millisecond,
		volume:   0.3,
	},
	model.KindStatusChanged: {
		freqs:    []float64{700, 900},
		duration: 120 * time.Millisecond,
		gap:      100 * time.Millisecond,
		volume:   0.3,
	},
	model.KindNewComment: {
		freqs:    []float64{600},
		duration: 50 * time.Millisecond,
		gap:      50 * time.Millisecond,
		repeat:   3,
		volume:   0.2,
	},
}

// defaultPattern is used for unrecognized kinds.
var defaultPattern = pattern{
	freqs:    []float64{800},
	duration: 100 * time.Millisecond,
	volume:   0.3,
}

// Synth plays short audio alert patterns. Playback is fire-and-forget:
// failures are logged and ignored, and a platform that has not granted
// audio rights simply stays silent.
type Synth struct {
	player Player
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewSynth creates a synthesizer on the given player.
func NewSynth(player Player, logger *slog.Logger) *Synth {
	return &Synth{
		player: player,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Play starts the tone pattern for the given kind and returns
// immediately.
func (s *Synth) Play(kind model.Kind) {
	p, ok := patterns[kind]
	if !ok {
		p = defaultPattern
	}
	go s.playPattern(kind, p)
}

// playPattern plays each tone in sequence, waiting one tone length plus
// the configured gap between starts.
func (s *Synth) playPattern(kind model.Kind, p pattern) {
	for i, freq := range p.tones() {
		if i > 0 {
			s.sleep(p.duration + p.gap)
		}
		if err := s.player.Tone(freq, p.duration, p.volume); err != nil {
			s.logger.Debug("tone playback failed",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}
