// Package transcribe runs one streamed transcription at a time: it validates
// requests, drives the engine on a background worker, stops early on repeated
// output and renders the result file.
package transcribe

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"whisperdesk/internal/config"
	"whisperdesk/internal/dedup"
	"whisperdesk/internal/domain"
	"whisperdesk/internal/engine"
	"whisperdesk/internal/history"
	"whisperdesk/internal/jobs"
	"whisperdesk/internal/observe"
)

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Options wires a Controller. Only Engine and Audio are required.
type Options struct {
	Engine          engine.Engine
	Audio           engine.AudioOpener
	Settings        config.Store
	History         Recorder
	Metrics         *observe.Metrics
	Logger          *slog.Logger
	RepeatThreshold int
	OnExisting      config.OnExisting
}

// Controller owns the run state machine. StartRun, RequestStop and Complete
// may be called from any goroutine; at most one worker runs at a time.
type Controller struct {
	engine     engine.Engine
	audio      engine.AudioOpener
	settings   config.Store
	history    Recorder
	metrics    *observe.Metrics
	log        *slog.Logger
	threshold  int
	onExisting config.OnExisting

	jobs *jobs.Manager
	done chan Outcome

	stat   func(name string) (os.FileInfo, error)
	exists func(path string) bool
	create func(name string) (*os.File, error)
	remove func(name string) error
	now    func() time.Time
	newID  func() string
}

// New creates an idle controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.RepeatThreshold
	if threshold <= 0 {
		threshold = dedup.DefaultThreshold
	}
	policy := opts.OnExisting
	if !policy.IsValid() {
		policy = config.DefaultOnExisting
	}

	return &Controller{
		engine:     opts.Engine,
		audio:      opts.Audio,
		settings:   opts.Settings,
		history:    opts.History,
		metrics:    opts.Metrics,
		log:        logger.With("component", "transcribe.Controller"),
		threshold:  threshold,
		onExisting: policy,
		jobs:       jobs.NewManager(),
		done:       make(chan Outcome, 1),
		stat:       os.Stat,
		exists:     fileExists,
		create:     os.Create,
		remove:     os.Remove,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// StartRun validates req and, when accepted, moves Idle to Running, stores
// the options and schedules exactly one worker. The returned id names the run.
// Cancelling ctx does not stop the run; use RequestStop.
func (c *Controller) StartRun(ctx context.Context, req Request) (string, error) {
	if c.jobs.IsActive() {
		return "", ErrRunInProgress
	}
	if c.engine == nil || c.audio == nil {
		return "", ErrNoEngine
	}

	p, err := c.validate(req)
	if err != nil {
		c.log.Info("transcription rejected", "error", err, "input", req.InputPath)
		return "", err
	}

	p.runID = c.newID()
	if err := c.jobs.Start(p.runID); err != nil {
		return "", err
	}
	c.persist(p)

	c.log.Info("transcription started",
		"run_id", p.runID,
		"input", p.inputPath,
		"output", p.outputPath,
		"format", p.format.String(),
		"language", p.language,
		"translate", p.translate,
		"offset", p.offset,
		"duration", p.duration,
	)
	c.metrics.RecordRunStarted(ctx, p.format.String())

	go c.work(context.WithoutCancel(ctx), p)
	return p.runID, nil
}

// RequestStop asks the active run to stop at the next encoder pass. It only
// acts while Running and reports whether the state changed.
func (c *Controller) RequestStop() bool {
	if !c.jobs.RequestStop() {
		return false
	}
	c.log.Info("stop requested", "run_id", c.jobs.Current().ID)
	return true
}

// State returns the current lifecycle state.
func (c *Controller) State() domain.RunState {
	return c.jobs.State()
}

// Current returns the current run identity and state.
func (c *Controller) Current() domain.Run {
	return c.jobs.Current()
}

// Completions delivers one Outcome per accepted run. The receiver must pass
// it to Complete before the next run can start.
func (c *Controller) Completions() <-chan Outcome {
	return c.done
}

// Complete returns the controller to Idle and summarises outcome. A run that
// was Stopping when it finished is reported as stopped early.
func (c *Controller) Complete(ctx context.Context, outcome Outcome) Summary {
	last := c.jobs.Finish()
	stopped := last.State == domain.RunStateStopping

	s := summarize(outcome, stopped)
	metricOutcome := observe.OutcomeDone
	switch {
	case s.Failed:
		metricOutcome = observe.OutcomeFailed
		c.log.Error("transcription failed", "run_id", outcome.RunID, "error", outcome.Err)
	case s.Stopped:
		metricOutcome = observe.OutcomeStopped
		c.log.Info("transcription stopped early", "run_id", outcome.RunID, "segments", outcome.Segments)
	default:
		c.log.Info("transcription finished", "run_id", outcome.RunID, "segments", outcome.Segments, "speed", s.Speed)
	}
	c.metrics.RecordRunCompleted(ctx, metricOutcome, outcome.Elapsed.Duration().Seconds(), s.Speed)

	if c.history != nil {
		if err := c.history.Record(ctx, entryFor(outcome, s)); err != nil {
			c.log.Warn("record history failed", "run_id", outcome.RunID, "error", err)
		}
	}
	return s
}

// Wait blocks for the active run's outcome and completes it.
func (c *Controller) Wait(ctx context.Context) (Summary, error) {
	select {
	case out := <-c.done:
		return c.Complete(ctx, out), nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

func entryFor(o Outcome, s Summary) history.Entry {
	e := history.Entry{
		RunID:            o.RunID,
		InputPath:        o.InputPath,
		OutputPath:       o.OutputPath,
		Format:           o.Format,
		Language:         o.Language,
		Translate:        o.Translate,
		MediaDuration:    o.MediaDuration,
		ProcessingTime:   o.Elapsed,
		Stopped:          s.Stopped,
		Failed:           s.Failed,
		SuggestedRestart: o.SuggestedRestart,
		HasRestart:       o.ForcedStop,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return e
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewForTests builds a controller with injectable clock, ids and file access.
func NewForTests(
	opts Options,
	now func() time.Time,
	newID func() string,
	stat func(name string) (os.FileInfo, error),
	exists func(path string) bool,
) *Controller {
	c := New(opts)
	if now != nil {
		c.now = now
	}
	if newID != nil {
		c.newID = newID
	}
	if stat != nil {
		c.stat = stat
	}
	if exists != nil {
		c.exists = exists
	}
	return c
}
