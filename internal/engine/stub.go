package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"whisperdesk/internal/domain"
)

// StubEngine produces deterministic fixed-window segments without a model.
type StubEngine struct {
	log *slog.Logger

	// Window is the audio span covered by each segment.
	Window time.Duration
	// TextFor returns the text of the segment at index.
	TextFor func(index int) string
	// Multilingual is reported by IsMultilingual.
	Multilingual bool
}

// NewStubEngine returns an engine that emits one placeholder segment per 5 s of audio.
func NewStubEngine(logger *slog.Logger) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEngine{
		log:          logger.With("component", "engine.stub"),
		Window:       5 * time.Second,
		Multilingual: true,
		TextFor: func(index int) string {
			return fmt.Sprintf(" [stub] segment %d", index+1)
		},
	}
}

// NewSession implements the Engine interface.
func (e *StubEngine) NewSession() (Session, error) {
	return &stubSession{engine: e}, nil
}

// IsMultilingual implements the Engine interface.
func (e *StubEngine) IsMultilingual() bool { return e.Multilingual }

// Close implements the Engine interface.
func (e *StubEngine) Close() error { return nil }

type stubSession struct {
	engine   *StubEngine
	segments []domain.Segment
}

func (s *stubSession) DefaultParameters(strategy Strategy) Parameters {
	return Parameters{Strategy: strategy, Language: "auto"}
}

func (s *stubSession) RunStreamed(ctx context.Context, params Parameters, sink ProgressSink, audio AudioSource) error {
	total := len(audio.Samples())
	if params.Duration > 0 {
		if limit := int(params.Duration.Seconds() * SampleRate); limit < total {
			total = limit
		}
	}

	window := s.engine.Window
	if window <= 0 {
		window = 5 * time.Second
	}
	perWindow := int(window.Seconds() * SampleRate)
	if perWindow <= 0 {
		perWindow = SampleRate
	}
	windows := (total + perWindow - 1) / perWindow

	s.engine.log.Debug("stub run",
		"samples", total,
		"windows", windows,
		"language", params.Language,
		"translate", params.Translate,
	)

	for i := 0; i < windows; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch resp := sink.OnEncoderBegin(); resp {
		case EncoderContinue:
		case EncoderStop:
			s.engine.log.Debug("stub run stopped", "window", i)
			return nil
		default:
			return ErrNotRunning
		}

		begin := i * perWindow
		end := begin + perWindow
		if end > total {
			end = total
		}
		text := s.engine.TextFor(i)
		s.segments = append(s.segments, domain.Segment{
			Start:  domain.TicksFromDuration(params.Offset + samplesToDuration(begin)),
			End:    domain.TicksFromDuration(params.Offset + samplesToDuration(end)),
			Text:   text,
			Tokens: []domain.Token{{Text: "[_BEG_]", Flags: domain.TokenSpecial}, {Text: text}},
		})
		if err := sink.OnNewSegments(1); err != nil {
			return err
		}
		sink.OnProgress(float64(end) / float64(total))
	}
	return nil
}

func (s *stubSession) Results(flags ResultFlags) (ResultSet, error) {
	return selectResults(s.segments, flags), nil
}

func (s *stubSession) Close() error { return nil }

func samplesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}
