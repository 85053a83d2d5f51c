// Package dedup detects a streaming recognizer stuck repeating one phrase.
package dedup

import (
	"log/slog"
	"strings"

	"whisperdesk/internal/domain"
)

// DefaultThreshold is the repeat count that must be exceeded before a stop is requested.
const DefaultThreshold = 15

// Guard tracks consecutive identical segment texts for one run. It is not
// safe for concurrent use; a run's engine callbacks own it exclusively.
type Guard struct {
	threshold int
	log       *slog.Logger

	current     string
	repeats     []string
	repeatStart int64
	hasStart    bool
	tripped     bool
	forced      bool
	restart     int64
	lastRepeat  int64
}

// New creates a guard. A non-positive threshold selects DefaultThreshold.
func New(threshold int, logger *slog.Logger) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		threshold: threshold,
		log:       logger.With("component", "dedup.Guard"),
	}
}

// DisplayText concatenates the non-special token texts of seg. Segments
// without tokens fall back to their decoded text.
func DisplayText(seg domain.Segment) string {
	if len(seg.Tokens) == 0 {
		return seg.Text
	}
	var b strings.Builder
	for _, tok := range seg.Tokens {
		if tok.Special() {
			continue
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

// Observe feeds the newest segments in order and reports whether a stop
// should be requested. It returns true at most once per repeat run.
func (g *Guard) Observe(segments []domain.Segment) bool {
	stop := false
	for _, seg := range segments {
		text := DisplayText(seg)
		if text != g.current {
			g.repeats = g.repeats[:0]
			g.current = text
			g.hasStart = false
			g.repeatStart = 0
			g.tripped = false
			continue
		}

		if len(g.repeats) == 0 {
			g.repeatStart = seg.Start.FullSeconds()
			g.hasStart = true
		}
		g.repeats = append(g.repeats, text)
		g.lastRepeat = seg.Start.FullSeconds()
		g.log.Debug("repeated segment", "count", len(g.repeats), "text", text)

		if len(g.repeats) > g.threshold && !g.tripped {
			g.tripped = true
			g.forced = true
			g.restart = g.repeatStart
			g.log.Info("repeat threshold exceeded, requesting stop",
				"count", len(g.repeats),
				"repeat_start_second", g.repeatStart,
				"last_second", g.lastRepeat,
			)
			stop = true
		}
	}
	return stop
}

// Repeats returns the length of the current repeat run.
func (g *Guard) Repeats() int {
	return len(g.repeats)
}

// RepeatStart returns the whole second at which the current repeat run
// began, or false when no run is in progress.
func (g *Guard) RepeatStart() (int64, bool) {
	return g.repeatStart, g.hasStart
}

// Tripped reports whether a stop was requested during this run.
func (g *Guard) Tripped() bool {
	return g.forced
}

// SuggestedRestart returns the second a new run should start from after a
// forced stop, or false when the guard never tripped.
func (g *Guard) SuggestedRestart() (int64, bool) {
	if !g.forced {
		return 0, false
	}
	return g.restart, true
}
