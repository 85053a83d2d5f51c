package domain

import "time"

// Ticks is a timestamp or duration in 100-nanosecond units.
type Ticks int64

const (
	TicksPerMillisecond Ticks = 10_000
	TicksPerSecond            = 1000 * TicksPerMillisecond
	TicksPerMinute            = 60 * TicksPerSecond
	TicksPerHour              = 60 * TicksPerMinute
	TicksPerDay               = 24 * TicksPerHour
)

// TicksFromDuration converts a time.Duration to ticks.
func TicksFromDuration(d time.Duration) Ticks {
	return Ticks(d / 100)
}

// Duration converts ticks to a time.Duration.
func (t Ticks) Duration() time.Duration {
	return time.Duration(t) * 100
}

// FullSeconds returns the whole seconds contained in t.
func (t Ticks) FullSeconds() int64 {
	return int64(t / TicksPerSecond)
}

// TimeFields is the calendar breakdown of a tick count.
type TimeFields struct {
	Days         int64
	Hours        int64
	Minutes      int64
	Seconds      int64
	Milliseconds int64
}

// Fields splits t into days, hours, minutes, seconds and milliseconds.
func (t Ticks) Fields() TimeFields {
	if t < 0 {
		t = 0
	}
	return TimeFields{
		Days:         int64(t / TicksPerDay),
		Hours:        int64(t % TicksPerDay / TicksPerHour),
		Minutes:      int64(t % TicksPerHour / TicksPerMinute),
		Seconds:      int64(t % TicksPerMinute / TicksPerSecond),
		Milliseconds: int64(t % TicksPerSecond / TicksPerMillisecond),
	}
}

// TokenFlags carries per-token markers reported by the engine.
type TokenFlags uint32

const (
	// TokenSpecial marks non-lexical tokens excluded from displayed text.
	TokenSpecial TokenFlags = 1 << iota
)

// Token is one sub-unit of a segment's text.
type Token struct {
	Text  string     `json:"text"`
	Flags TokenFlags `json:"flags,omitempty"`
}

// Special reports whether the token is a non-lexical marker.
func (t Token) Special() bool {
	return t.Flags&TokenSpecial != 0
}

// Segment is a recognized span of speech.
type Segment struct {
	Start  Ticks   `json:"start"`
	End    Ticks   `json:"end"`
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens,omitempty"`
}
