package transcribe

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"whisperdesk/internal/dedup"
	"whisperdesk/internal/domain"
	"whisperdesk/internal/engine"
	"whisperdesk/internal/export"
	"whisperdesk/internal/observe"
)

// Outcome is posted by the worker when a run ends.
type Outcome struct {
	RunID      string
	InputPath  string
	OutputPath string
	Format     domain.OutputFormat
	Language   string
	Translate  bool

	MediaDuration domain.Ticks
	Elapsed       domain.Ticks
	Segments      int

	// ForcedStop is set when the duplicate-segment guard requested the stop.
	ForcedStop       bool
	SuggestedRestart int64

	Err error
}

// runContext receives engine callbacks for one run.
type runContext struct {
	ctx     context.Context
	c       *Controller
	session engine.Session
	guard   *dedup.Guard
	plan    plan
	log     *slog.Logger
}

var _ engine.ProgressSink = (*runContext)(nil)

func (r *runContext) OnProgress(fraction float64) {
	if r.plan.onProgress != nil {
		r.plan.onProgress(newProgress(fraction))
	}
}

func (r *runContext) OnNewSegments(count int) error {
	if count <= 0 {
		return nil
	}
	res, err := r.session.Results(engine.ResultTokens | engine.ResultTimestamps)
	if err != nil {
		return fmt.Errorf("read results: %w", err)
	}
	segs := res.Segments
	if count < len(segs) {
		segs = segs[len(segs)-count:]
	}
	r.c.metrics.RecordSegments(r.ctx, len(segs))

	if r.plan.onSegments != nil {
		r.plan.onSegments(segs)
	}
	if r.guard.Observe(segs) && r.c.jobs.RequestStop() {
		start, _ := r.guard.RepeatStart()
		r.log.Info("repeated segments, stopping early", "repeats", r.guard.Repeats(), "restart_second", start)
		r.c.metrics.RecordForcedStop(r.ctx)
	}
	return nil
}

func (r *runContext) OnEncoderBegin() engine.EncoderResponse {
	switch r.c.jobs.State() {
	case domain.RunStateRunning:
		return engine.EncoderContinue
	case domain.RunStateStopping:
		return engine.EncoderStop
	default:
		return engine.EncoderInvalid
	}
}

// work runs p on the calling goroutine and posts exactly one Outcome.
func (c *Controller) work(ctx context.Context, p plan) {
	ctx, span := observe.StartRunSpan(ctx, p.runID, p.format.String())
	log := observe.Logger(ctx, c.log).With("run_id", p.runID)
	started := c.now()

	out := Outcome{
		RunID:      p.runID,
		InputPath:  p.inputPath,
		OutputPath: p.outputPath,
		Format:     p.format,
		Language:   p.language,
		Translate:  p.translate,
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("transcription worker panic", "panic", rec, "stack", string(debug.Stack()))
				out.Err = newRunError(StageEngine, "worker panic", fmt.Errorf("%v", rec))
			}
		}()
		out.Err = c.execute(ctx, p, &out, log)
	}()

	out.Elapsed = domain.TicksFromDuration(c.now().Sub(started))
	observe.EndSpan(span, out.Err)
	c.post(out, log)
}

func (c *Controller) execute(ctx context.Context, p plan, out *Outcome, log *slog.Logger) (err error) {
	var file *os.File
	if p.format.RequiresFile() {
		f, createErr := c.create(p.outputPath)
		if createErr != nil {
			return newRunError(StageExport, "cannot create output file "+p.outputPath, createErr)
		}
		file = f
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = newRunError(StageExport, "cannot close output file", closeErr)
			}
			if err != nil {
				_ = c.remove(p.outputPath)
			}
		}()
	}

	session, sessErr := c.engine.NewSession()
	if sessErr != nil {
		return newRunError(StageEngine, "cannot create recognition session", sessErr)
	}
	defer session.Close()

	params := session.DefaultParameters(engine.StrategyGreedy)
	params.Language = p.language
	params.Translate = p.translate
	params.Offset = p.offset
	params.Duration = p.duration

	audio, openErr := c.audio.Open(ctx, p.inputPath, p.offset)
	if openErr != nil {
		return newRunError(StageAudio, "cannot decode input media", openErr)
	}
	defer audio.Close()

	guard := dedup.New(c.threshold, log)
	sink := &runContext{ctx: ctx, c: c, session: session, guard: guard, plan: p, log: log}
	if runErr := session.RunStreamed(ctx, params, sink, audio); runErr != nil {
		return newRunError(StageEngine, "recognition failed", runErr)
	}

	duration, durErr := audio.Duration()
	if durErr != nil {
		return newRunError(StageAudio, "cannot read media duration", durErr)
	}
	out.MediaDuration = duration
	out.ForcedStop = guard.Tripped()
	out.SuggestedRestart, _ = guard.SuggestedRestart()

	res, resErr := session.Results(engine.ResultTokens | engine.ResultTimestamps)
	if resErr != nil {
		return newRunError(StageEngine, "cannot read results", resErr)
	}
	out.Segments = len(res.Segments)

	if file == nil {
		return nil
	}
	w := bufio.NewWriter(file)
	if writeErr := export.Write(w, p.format, res.Segments, guard.Repeats()); writeErr != nil {
		return newRunError(StageExport, "cannot write "+p.outputPath, writeErr)
	}
	if flushErr := w.Flush(); flushErr != nil {
		return newRunError(StageExport, "cannot write "+p.outputPath, flushErr)
	}
	log.Debug("result written", "path", p.outputPath, "segments", len(res.Segments), "dup_lines", guard.Repeats())
	return nil
}

// post hands out to the completion channel without blocking.
func (c *Controller) post(out Outcome, log *slog.Logger) {
	select {
	case c.done <- out:
	default:
		log.Error("completion dropped; previous outcome not consumed")
	}
}
