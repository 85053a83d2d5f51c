package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"whisperdesk/internal/domain"
	"whisperdesk/internal/engine"
	"whisperdesk/internal/history"
	"whisperdesk/internal/media"
)

// fakeAudio is an in-memory AudioSource.
type fakeAudio struct {
	samples []float32
}

func (a *fakeAudio) Samples() []float32 { return a.samples }

func (a *fakeAudio) Duration() (domain.Ticks, error) {
	return domain.Ticks(len(a.samples)) * domain.TicksPerSecond / engine.SampleRate, nil
}

func (a *fakeAudio) Close() error { return nil }

// fakeOpener returns seconds of silence and records the requested offset.
type fakeOpener struct {
	mu      sync.Mutex
	seconds int
	offsets []time.Duration
	open    func(path string) error
}

func (o *fakeOpener) Open(ctx context.Context, path string, offset time.Duration) (engine.AudioSource, error) {
	o.mu.Lock()
	o.offsets = append(o.offsets, offset)
	o.mu.Unlock()
	if o.open != nil {
		if err := o.open(path); err != nil {
			return nil, err
		}
	}
	return &fakeAudio{samples: make([]float32, o.seconds*engine.SampleRate)}, nil
}

func (o *fakeOpener) lastOffset() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offsets[len(o.offsets)-1]
}

// gatedEngine blocks each run until gate is closed, then asks the sink once.
type gatedEngine struct {
	gate         chan struct{}
	multilingual bool
	runErr       error
}

func (e *gatedEngine) NewSession() (engine.Session, error) { return &gatedSession{e: e}, nil }
func (e *gatedEngine) IsMultilingual() bool                { return e.multilingual }
func (e *gatedEngine) Close() error                        { return nil }

type gatedSession struct {
	e        *gatedEngine
	segments []domain.Segment
}

func (s *gatedSession) DefaultParameters(strategy engine.Strategy) engine.Parameters {
	return engine.Parameters{Strategy: strategy}
}

func (s *gatedSession) RunStreamed(ctx context.Context, p engine.Parameters, sink engine.ProgressSink, audio engine.AudioSource) error {
	<-s.e.gate
	if s.e.runErr != nil {
		return s.e.runErr
	}
	switch sink.OnEncoderBegin() {
	case engine.EncoderContinue:
		s.segments = append(s.segments, domain.Segment{End: domain.TicksPerSecond, Text: " done"})
		return sink.OnNewSegments(1)
	case engine.EncoderStop:
		return nil
	default:
		return engine.ErrNotRunning
	}
}

func (s *gatedSession) Results(flags engine.ResultFlags) (engine.ResultSet, error) {
	return engine.ResultSet{Segments: s.segments}, nil
}

func (s *gatedSession) Close() error { return nil }

// memStore keeps settings in memory.
type memStore struct {
	mu    sync.Mutex
	saved []domain.Settings
}

func (m *memStore) Load() (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return domain.Settings{ModelPath: "/models"}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memStore) Save(s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, s)
	return nil
}

// memRecorder keeps history entries in memory.
type memRecorder struct {
	entries []history.Entry
}

func (r *memRecorder) Record(ctx context.Context, e history.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func waitSummary(t *testing.T, c *Controller) Summary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return s
}

func assertNoWorker(t *testing.T, c *Controller) {
	t.Helper()
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	select {
	case out := <-c.Completions():
		t.Fatalf("unexpected outcome %+v", out)
	case <-time.After(20 * time.Millisecond):
	}
}

// TestStartRunRejectsMissingInput checks empty and missing media never start a worker.
func TestStartRunRejectsMissingInput(t *testing.T) {
	c := New(Options{Engine: engine.NewStubEngine(nil), Audio: &fakeOpener{seconds: 5}})

	for _, in := range []string{"", "   "} {
		if _, err := c.StartRun(context.Background(), Request{InputPath: in}); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("StartRun(%q) err = %v, want %v", in, err, ErrMissingInput)
		}
	}
	missing := filepath.Join(t.TempDir(), "nope.wav")
	if _, err := c.StartRun(context.Background(), Request{InputPath: missing}); !errors.Is(err, ErrInputNotFound) {
		t.Fatalf("StartRun(missing) err = %v, want %v", err, ErrInputNotFound)
	}
	assertNoWorker(t, c)
}

// TestStartRunRequiresOutputPath checks every file format needs an output path.
func TestStartRunRequiresOutputPath(t *testing.T) {
	c := New(Options{Engine: engine.NewStubEngine(nil), Audio: &fakeOpener{seconds: 5}})
	input := writeInput(t)

	for _, f := range []domain.OutputFormat{
		domain.OutputFormatText,
		domain.OutputFormatTextTimestamps,
		domain.OutputFormatSubRip,
		domain.OutputFormatWebVTT,
	} {
		_, err := c.StartRun(context.Background(), Request{InputPath: input, Format: f})
		if !errors.Is(err, ErrMissingOutput) {
			t.Fatalf("%s: err = %v, want %v", f, err, ErrMissingOutput)
		}
	}
	if _, err := c.StartRun(context.Background(), Request{InputPath: input, Format: domain.OutputFormat(9)}); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("unknown format err = %v, want %v", err, ErrInvalidFormat)
	}
	assertNoWorker(t, c)
}

// TestStartRunRejectsTranslate checks English sources and single-language models.
func TestStartRunRejectsTranslate(t *testing.T) {
	input := writeInput(t)
	stub := engine.NewStubEngine(nil)
	c := New(Options{Engine: stub, Audio: &fakeOpener{seconds: 5}})

	if _, err := c.StartRun(context.Background(), Request{InputPath: input, Language: "EN", Translate: true}); !errors.Is(err, ErrInvalidTranslate) {
		t.Fatalf("translate from en err = %v, want %v", err, ErrInvalidTranslate)
	}

	stub.Multilingual = false
	if _, err := c.StartRun(context.Background(), Request{InputPath: input, Language: "de", Translate: true}); !errors.Is(err, ErrInvalidTranslate) {
		t.Fatalf("single-language model err = %v, want %v", err, ErrInvalidTranslate)
	}
	assertNoWorker(t, c)
}

// TestStartRunOutputExistsPolicy checks the fail policy rejects existing files.
func TestStartRunOutputExistsPolicy(t *testing.T) {
	input := writeInput(t)
	out := filepath.Join(filepath.Dir(input), "talk.srt")
	if err := os.WriteFile(out, []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c := New(Options{Engine: engine.NewStubEngine(nil), Audio: &fakeOpener{seconds: 5}, OnExisting: "fail"})

	_, err := c.StartRun(context.Background(), Request{InputPath: input, OutputPath: out, Format: domain.OutputFormatSubRip})
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("err = %v, want %v", err, ErrOutputExists)
	}
	assertNoWorker(t, c)
}

// TestRunWritesSubtitlesAndPersists checks a full run with the stub engine.
func TestRunWritesSubtitlesAndPersists(t *testing.T) {
	input := writeInput(t)
	store := &memStore{}
	rec := &memRecorder{}
	opener := &fakeOpener{seconds: 12}

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(2 * time.Second)
		return clock
	}
	c := NewForTests(Options{
		Engine:   engine.NewStubEngine(nil),
		Audio:    opener,
		Settings: store,
		History:  rec,
	}, now, func() string { return "run-1" }, nil, nil)

	var progress []Progress
	id, err := c.StartRun(context.Background(), Request{
		InputPath:      input,
		Format:         domain.OutputFormatSubRip,
		UseInputFolder: true,
		Language:       "de",
		StartTime:      "2",
		OnProgress:     func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("id = %q, want run-1", id)
	}

	s := waitSummary(t, c)
	if s.Failed || s.Stopped {
		t.Fatalf("summary = %+v, want success", s)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}

	wantOut := strings.TrimSuffix(input, ".mp3") + ".srt"
	if s.OutputPath != wantOut {
		t.Fatalf("output = %q, want %q", s.OutputPath, wantOut)
	}
	data, err := os.ReadFile(wantOut)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "\xEF\xBB\xBF1\r\n00:00:02,000 --> 00:00:07,000\r\n") {
		t.Fatalf("output = %q", data)
	}
	if opener.lastOffset() != 2*time.Second {
		t.Fatalf("offset = %v, want 2s", opener.lastOffset())
	}

	if !strings.HasPrefix(s.Message, "Transcribed the audio\nMedia duration: 12.000 seconds\nProcessing time: 2.000 seconds") {
		t.Fatalf("message = %q", s.Message)
	}
	if s.Speed != 6 {
		t.Fatalf("speed = %v, want 6", s.Speed)
	}
	if last := progress[len(progress)-1]; last.Position != ProgressScale {
		t.Fatalf("last position = %d, want %d", last.Position, ProgressScale)
	}

	saved, _ := store.Load()
	if saved.SourceMedia != input || saved.ResultFormat != domain.OutputFormatSubRip || !saved.UseInputFolder || saved.Language != "de" {
		t.Fatalf("saved settings = %+v", saved)
	}
	if saved.ModelPath != "/models" {
		t.Fatalf("model path = %q, want preserved", saved.ModelPath)
	}
	if len(rec.entries) != 1 || rec.entries[0].RunID != "run-1" || rec.entries[0].Failed {
		t.Fatalf("history = %+v", rec.entries)
	}
}

// TestTimeFieldsIgnoredWithoutOutput checks no offset is applied for format None.
func TestTimeFieldsIgnoredWithoutOutput(t *testing.T) {
	opener := &fakeOpener{seconds: 5}
	c := New(Options{Engine: engine.NewStubEngine(nil), Audio: opener})
	if _, err := c.StartRun(context.Background(), Request{InputPath: writeInput(t), StartTime: "30"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := waitSummary(t, c)
	if s.Failed {
		t.Fatalf("summary = %+v", s)
	}
	if opener.lastOffset() != 0 {
		t.Fatalf("offset = %v, want 0", opener.lastOffset())
	}
}

// TestRequestStopStateMachine checks stop is a no-op unless running and reports early completion.
func TestRequestStopStateMachine(t *testing.T) {
	eng := &gatedEngine{gate: make(chan struct{}), multilingual: true}
	c := New(Options{Engine: eng, Audio: &fakeOpener{seconds: 5}})

	if c.RequestStop() {
		t.Fatal("stop while idle should be a no-op")
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}

	input := writeInput(t)
	if _, err := c.StartRun(context.Background(), Request{InputPath: input}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if c.State() != domain.RunStateRunning {
		t.Fatalf("state = %s, want running", c.State())
	}
	if _, err := c.StartRun(context.Background(), Request{InputPath: input}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second StartRun err = %v, want %v", err, ErrRunInProgress)
	}

	if !c.RequestStop() {
		t.Fatal("stop while running should transition")
	}
	if c.State() != domain.RunStateStopping {
		t.Fatalf("state = %s, want stopping", c.State())
	}
	if c.RequestStop() {
		t.Fatal("stop while stopping should be a no-op")
	}

	close(eng.gate)
	s := waitSummary(t, c)
	if !s.Stopped || s.Failed {
		t.Fatalf("summary = %+v, want stopped early", s)
	}
	if !strings.HasPrefix(s.Message, "Transcribed an initial portion of the audio") {
		t.Fatalf("message = %q", s.Message)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
}

// TestGuardStopsRepeatedOutput checks repeated segments end the run and trim SubRip output.
func TestGuardStopsRepeatedOutput(t *testing.T) {
	stub := engine.NewStubEngine(nil)
	stub.TextFor = func(int) string { return " same" }
	input := writeInput(t)
	out := filepath.Join(t.TempDir(), "out.srt")

	c := New(Options{Engine: stub, Audio: &fakeOpener{seconds: 60}, RepeatThreshold: 3})
	if _, err := c.StartRun(context.Background(), Request{InputPath: input, OutputPath: out, Format: domain.OutputFormatSubRip}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := waitSummary(t, c)
	if !s.Stopped || !s.ForcedStop {
		t.Fatalf("summary = %+v, want forced stop", s)
	}
	if s.Segments != 5 {
		t.Fatalf("segments = %d, want 5", s.Segments)
	}
	if s.SuggestedRestart != 5 {
		t.Fatalf("suggested restart = %d, want 5", s.SuggestedRestart)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := strings.Count(string(data), " --> "); got != 1 {
		t.Fatalf("cues = %d, want 1: %q", got, data)
	}
}

// TestEngineFailureReported checks failures return to idle with a diagnostic message.
func TestEngineFailureReported(t *testing.T) {
	eng := &gatedEngine{gate: make(chan struct{}), runErr: errors.New("model corrupt")}
	close(eng.gate)
	out := filepath.Join(t.TempDir(), "x.txt")
	c := New(Options{Engine: eng, Audio: &fakeOpener{seconds: 1}})

	if _, err := c.StartRun(context.Background(), Request{InputPath: writeInput(t), OutputPath: out, Format: domain.OutputFormatText}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := waitSummary(t, c)
	if !s.Failed {
		t.Fatalf("summary = %+v, want failure", s)
	}
	if !strings.HasPrefix(s.Message, "Transcribe failed\n") || !strings.Contains(s.Message, "model corrupt") {
		t.Fatalf("message = %q", s.Message)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("partial output should be removed, stat err = %v", err)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
}

// TestAudioFailureUsesDiagnostic checks ffmpeg stderr becomes the failure detail.
func TestAudioFailureUsesDiagnostic(t *testing.T) {
	opener := &fakeOpener{open: func(string) error {
		return &media.CommandError{Command: "ffmpeg", ExitCode: 1, Stderr: "Invalid data found\n", Err: errors.New("exit status 1")}
	}}
	c := New(Options{Engine: engine.NewStubEngine(nil), Audio: opener})

	if _, err := c.StartRun(context.Background(), Request{InputPath: writeInput(t)}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	s := waitSummary(t, c)
	if s.Message != "Transcribe failed\nInvalid data found" {
		t.Fatalf("message = %q", s.Message)
	}
}

// TestSummarizeSpeedWithoutElapsed checks a zero processing time yields zero speed.
func TestSummarizeSpeedWithoutElapsed(t *testing.T) {
	s := summarize(Outcome{MediaDuration: domain.TicksPerSecond}, false)
	if s.Speed != 0 {
		t.Fatalf("speed = %v, want 0", s.Speed)
	}
}

// TestRunErrorUnwrap checks stage errors expose their cause.
func TestRunErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newRunError(StageExport, "cannot write", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to match cause")
	}
	if err.Error() != "export: cannot write: boom" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
