//go:build whispercpp

// This file wires the whisper.cpp CGO bindings. libwhisper.a and whisper.h
// must be reachable through LIBRARY_PATH and C_INCLUDE_PATH at link time.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"whisperdesk/internal/domain"
)

// NativeAvailable reports whether the native whisper backend is compiled in.
func NativeAvailable() bool { return true }

// WhisperEngine holds a whisper.cpp model loaded once and shared by sessions.
type WhisperEngine struct {
	model   whisperlib.Model
	threads uint
	log     *slog.Logger
}

// NewNativeEngine loads the model at modelPath.
func NewNativeEngine(modelPath string, threads uint, logger *slog.Logger) (Engine, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("whisper: model path required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &WhisperEngine{
		model:   model,
		threads: threads,
		log:     logger.With("component", "engine.whisper", "model_path", modelPath),
	}, nil
}

// NewSession creates a fresh whisper context on the shared model.
func (e *WhisperEngine) NewSession() (Session, error) {
	wctx, err := e.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	return &whisperSession{engine: e, wctx: wctx}, nil
}

// IsMultilingual reports whether the model supports languages besides English.
func (e *WhisperEngine) IsMultilingual() bool { return e.model.IsMultilingual() }

// Close releases the model.
func (e *WhisperEngine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

type whisperSession struct {
	engine   *WhisperEngine
	wctx     whisperlib.Context
	segments []domain.Segment
}

func (s *whisperSession) DefaultParameters(strategy Strategy) Parameters {
	return Parameters{Strategy: strategy, Language: "auto", Threads: s.engine.threads}
}

func (s *whisperSession) RunStreamed(ctx context.Context, params Parameters, sink ProgressSink, audio AudioSource) error {
	lang := strings.TrimSpace(params.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := s.wctx.SetLanguage(lang); err != nil {
		return fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	s.wctx.SetTranslate(params.Translate)
	if params.Duration > 0 {
		s.wctx.SetDuration(params.Duration)
	}
	if params.Threads > 0 {
		s.wctx.SetThreads(params.Threads)
	}

	var (
		invalid bool
		sinkErr error
	)
	encoderBegin := func() bool {
		if ctx.Err() != nil || sinkErr != nil {
			return false
		}
		switch sink.OnEncoderBegin() {
		case EncoderContinue:
			return true
		case EncoderStop:
			return false
		default:
			invalid = true
			return false
		}
	}
	onSegment := func(seg whisperlib.Segment) {
		if sinkErr != nil {
			return
		}
		s.segments = append(s.segments, s.convert(seg, params))
		sinkErr = sink.OnNewSegments(1)
	}
	onProgress := func(percent int) {
		sink.OnProgress(float64(percent) / 100)
	}

	s.engine.log.Debug("whisper run starting",
		"samples", len(audio.Samples()),
		"language", lang,
		"translate", params.Translate,
	)
	if err := s.wctx.Process(audio.Samples(), encoderBegin, onSegment, onProgress); err != nil {
		return fmt.Errorf("whisper: process audio: %w", err)
	}

	switch {
	case sinkErr != nil:
		return sinkErr
	case invalid:
		return ErrNotRunning
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

func (s *whisperSession) convert(seg whisperlib.Segment, params Parameters) domain.Segment {
	out := domain.Segment{
		Start: domain.TicksFromDuration(params.Offset + seg.Start),
		End:   domain.TicksFromDuration(params.Offset + seg.End),
		Text:  seg.Text,
	}
	if len(seg.Tokens) > 0 {
		out.Tokens = make([]domain.Token, 0, len(seg.Tokens))
		for _, tok := range seg.Tokens {
			t := domain.Token{Text: tok.Text}
			if !s.wctx.IsText(tok) {
				t.Flags |= domain.TokenSpecial
			}
			out.Tokens = append(out.Tokens, t)
		}
	}
	return out
}

func (s *whisperSession) Results(flags ResultFlags) (ResultSet, error) {
	return selectResults(s.segments, flags), nil
}

func (s *whisperSession) Close() error { return nil }
