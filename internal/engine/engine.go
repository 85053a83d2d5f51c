// Package engine defines the recognition engine contract used by the
// transcription controller, plus a deterministic stub and the native
// whisper.cpp backend.
package engine

import (
	"context"
	"errors"
	"time"

	"whisperdesk/internal/domain"
)

// SampleRate is the PCM rate every AudioSource delivers, in Hz.
const SampleRate = 16000

// ErrNativeEngineUnavailable indicates the whisper.cpp backend is not compiled in.
var ErrNativeEngineUnavailable = errors.New("engine: native backend unavailable")

// ErrNotRunning is returned when a session is told the controller has no active run.
var ErrNotRunning = errors.New("engine: no active run")

// Strategy selects the decoding search.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyBeamSearch
)

// Parameters configures one streamed run.
type Parameters struct {
	Strategy  Strategy
	Language  string
	Translate bool
	// Offset is the media position of the first decoded sample. Segment
	// timestamps are shifted by it.
	Offset time.Duration
	// Duration limits the processed audio. Zero means no limit.
	Duration time.Duration
	Threads  uint
}

// EncoderResponse answers the engine's encoder-begin callback.
type EncoderResponse int

const (
	EncoderContinue EncoderResponse = iota
	EncoderStop
	EncoderInvalid
)

// String returns a short name for logs.
func (r EncoderResponse) String() string {
	switch r {
	case EncoderContinue:
		return "continue"
	case EncoderStop:
		return "stop"
	default:
		return "invalid"
	}
}

// ProgressSink receives callbacks from a running session. All methods are
// invoked on the goroutine that called RunStreamed.
type ProgressSink interface {
	// OnProgress reports the processed fraction in [0, 1].
	OnProgress(fraction float64)
	// OnNewSegments reports that count segments were appended to the results.
	// A non-nil error aborts the run.
	OnNewSegments(count int) error
	// OnEncoderBegin is asked before every encoder pass.
	OnEncoderBegin() EncoderResponse
}

// ResultFlags selects what Results returns.
type ResultFlags uint32

const (
	ResultTokens ResultFlags = 1 << iota
	ResultTimestamps
)

// ResultSet is the list of segments produced so far.
type ResultSet struct {
	Segments []domain.Segment
}

// AudioSource is decoded mono PCM at SampleRate.
type AudioSource interface {
	Samples() []float32
	Duration() (domain.Ticks, error)
	Close() error
}

// AudioOpener decodes a media file starting at offset.
type AudioOpener interface {
	Open(ctx context.Context, path string, offset time.Duration) (AudioSource, error)
}

// Session is one recognition context. It is not safe for concurrent use.
type Session interface {
	DefaultParameters(strategy Strategy) Parameters
	// RunStreamed blocks until the audio is processed or the sink stops it.
	RunStreamed(ctx context.Context, params Parameters, sink ProgressSink, audio AudioSource) error
	Results(flags ResultFlags) (ResultSet, error)
	Close() error
}

// Engine is a loaded recognition model.
type Engine interface {
	NewSession() (Session, error)
	IsMultilingual() bool
	Close() error
}

// selectResults copies segments, dropping token lists unless requested.
func selectResults(segments []domain.Segment, flags ResultFlags) ResultSet {
	out := make([]domain.Segment, len(segments))
	copy(out, segments)
	if flags&ResultTokens == 0 {
		for i := range out {
			out[i].Tokens = nil
		}
	}
	return ResultSet{Segments: out}
}
