package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"whisperdesk/internal/config"
	"whisperdesk/internal/diagnostics"
	"whisperdesk/internal/domain"
	"whisperdesk/internal/export"
	"whisperdesk/internal/history"
	"whisperdesk/internal/jobs"
	"whisperdesk/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrNoActiveRun is returned by StopTranscription when nothing is running.
var ErrNoActiveRun = errors.New("no transcription is running")

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.webm;*.wma;*.wmv",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// historyReader lists finished runs.
type historyReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// StartOptions is the form submitted by the UI.
type StartOptions struct {
	InputPath      string              `json:"inputPath"`
	OutputPath     string              `json:"outputPath"`
	Format         domain.OutputFormat `json:"format"`
	Language       string              `json:"language"`
	Translate      bool                `json:"translate"`
	UseInputFolder bool                `json:"useInputFolder"`
	StartTime      string              `json:"startTime"`
	EndTime        string              `json:"endTime"`
}

// Deps wires an App. Store and Controller are required.
type Deps struct {
	Store      config.Store
	Controller *transcribe.Controller
	Checker    *diagnostics.Checker
	Model      diagnostics.ModelReporter
	History    historyReader
	Logger     *slog.Logger
	Assets     fs.FS
}

// App binds the transcription controller to the Wails runtime.
type App struct {
	store      config.Store
	controller *transcribe.Controller
	checker    *diagnostics.Checker
	model      diagnostics.ModelReporter
	history    historyReader
	events     *jobs.EventBus
	log        *slog.Logger
	assets     fs.FS

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics diagnostics.Report
	lastSummary *transcribe.Summary
	runtimeCtx  context.Context

	confirmQuit func(ctx context.Context) bool
	notify      func(ctx context.Context, s transcribe.Summary)

	stop       chan struct{}
	stopOnce   sync.Once
	dispatched chan struct{}
}

// New loads persisted settings, runs startup diagnostics and starts the
// completion dispatcher.
func New(deps Deps) (*App, error) {
	if deps.Store == nil || deps.Controller == nil {
		return nil, errors.New("bootstrap: store and controller are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings, err := deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	a := &App{
		store:       deps.Store,
		controller:  deps.Controller,
		checker:     deps.Checker,
		model:       deps.Model,
		history:     deps.History,
		events:      jobs.NewEventBus(1000),
		log:         logger.With("component", "bootstrap.App"),
		assets:      deps.Assets,
		settings:    settings,
		confirmQuit: confirmQuitDialog,
		notify:      showSummaryDialog,
		stop:        make(chan struct{}),
		dispatched:  make(chan struct{}),
	}
	if a.checker != nil {
		a.diagnostics = a.checker.Run(settings, a.model)
	}

	go a.dispatch()
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:         "Whisper Desk",
		Width:         1024,
		Height:        720,
		AssetServer:   assetOptions,
		OnStartup:     a.Startup,
		OnBeforeClose: a.BeforeClose,
		OnShutdown:    a.Shutdown,
		Bind:          []interface{}{a},
	})
}

// Startup stores Wails runtime context for dialogs and push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// BeforeClose asks for confirmation while a run is active. It returns true to
// keep the window open.
func (a *App) BeforeClose(ctx context.Context) bool {
	if a.controller.State() == domain.RunStateIdle {
		return false
	}
	return !a.confirmQuit(ctx)
}

// Shutdown asks an active run to stop and releases the dispatcher.
func (a *App) Shutdown(ctx context.Context) {
	a.controller.RequestStop()

	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	a.Close()
}

// Close stops the completion dispatcher. It is safe to call more than once.
func (a *App) Close() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.dispatched
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() diagnostics.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (diagnostics.Report, error) {
	settings, err := a.store.Load()
	if err != nil {
		return diagnostics.Report{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	if a.checker != nil {
		a.diagnostics = a.checker.Run(settings, a.model)
	}
	return a.diagnostics, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = normalized
	if a.checker != nil {
		a.diagnostics = a.checker.Run(normalized, a.model)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputFile opens a save dialog filtered to the format's extension.
func (a *App) PickOutputFile(format domain.OutputFormat) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}
	if !format.RequiresFile() {
		return "", fmt.Errorf("%w: %s writes no file", transcribe.ErrInvalidFormat, format)
	}

	a.mu.Lock()
	suggested := export.OutputPathFor(a.settings.SourceMedia, format)
	a.mu.Unlock()

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:            "Save result as",
		DefaultDirectory: filepath.Dir(suggested),
		DefaultFilename:  filepath.Base(suggested),
		Filters:          outputDialogFilter(format),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// SuggestOutputPath returns the default result path next to inputPath.
func (a *App) SuggestOutputPath(inputPath string, format domain.OutputFormat) string {
	inputPath = strings.TrimSpace(inputPath)
	if inputPath == "" {
		return ""
	}
	return export.OutputPathFor(inputPath, format)
}

// OpenOutputFolder opens the given path (or the last result) in the file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		if a.lastSummary != nil {
			target = a.lastSummary.OutputPath
		}
		if target == "" {
			target = a.settings.ResultPath
		}
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// StartTranscription validates opts and starts a background run.
func (a *App) StartTranscription(opts StartOptions) (domain.Run, error) {
	lastPosition := -1
	req := transcribe.Request{
		InputPath:      opts.InputPath,
		OutputPath:     opts.OutputPath,
		Format:         opts.Format,
		Language:       opts.Language,
		Translate:      opts.Translate,
		UseInputFolder: opts.UseInputFolder,
		StartTime:      opts.StartTime,
		EndTime:        opts.EndTime,
		OnProgress: func(p transcribe.Progress) {
			if p.Position == lastPosition {
				return
			}
			lastPosition = p.Position
			a.publishEvent(jobs.Event{
				RunID:    a.controller.Current().ID,
				Type:     jobs.EventTypeProgress,
				Progress: p.Fraction,
				Position: p.Position,
			})
		},
		OnSegments: func(segs []domain.Segment) {
			runID := a.controller.Current().ID
			for i := range segs {
				seg := segs[i]
				a.publishEvent(jobs.Event{
					RunID:   runID,
					Type:    jobs.EventTypeSegment,
					Message: strings.TrimSpace(seg.Text),
					Segment: &seg,
				})
			}
		},
	}

	a.mu.Lock()
	previous := a.lastSummary
	a.lastSummary = nil
	a.mu.Unlock()

	runID, err := a.controller.StartRun(context.Background(), req)
	if err != nil {
		a.mu.Lock()
		if a.lastSummary == nil {
			a.lastSummary = previous
		}
		a.mu.Unlock()
		return domain.Run{}, err
	}

	a.publishState(runID, domain.RunStateRunning, "Transcription started")
	return a.controller.Current(), nil
}

// StopTranscription asks the running transcription to stop early.
func (a *App) StopTranscription() error {
	if !a.controller.RequestStop() {
		return ErrNoActiveRun
	}
	run := a.controller.Current()
	a.publishState(run.ID, domain.RunStateStopping, "Stop requested")
	return nil
}

// CurrentState returns the current run identity and state.
func (a *App) CurrentState() domain.Run {
	return a.controller.Current()
}

// LastSummary returns the most recent completion summary, or nil.
func (a *App) LastSummary() *transcribe.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSummary
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// RecentRuns returns up to limit finished runs, newest first.
func (a *App) RecentRuns(limit int) ([]history.Entry, error) {
	if a.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return a.history.Recent(context.Background(), limit)
}

// dispatch completes each outcome posted by the controller.
func (a *App) dispatch() {
	defer close(a.dispatched)
	for {
		select {
		case out := <-a.controller.Completions():
			a.finish(out)
		case <-a.stop:
			return
		}
	}
}

// finish returns the controller to Idle and reports the summary.
func (a *App) finish(out transcribe.Outcome) {
	summary := a.controller.Complete(context.Background(), out)

	a.mu.Lock()
	a.lastSummary = &summary
	ctx := a.runtimeCtx
	a.mu.Unlock()

	if summary.Failed {
		a.publishEvent(jobs.Event{
			RunID:   summary.RunID,
			Type:    jobs.EventTypeError,
			State:   domain.RunStateIdle,
			Message: summary.Message,
		})
	} else {
		a.publishEvent(jobs.Event{
			RunID:      summary.RunID,
			Type:       jobs.EventTypeResult,
			State:      domain.RunStateIdle,
			Message:    summary.Message,
			OutputPath: summary.OutputPath,
			Stopped:    summary.Stopped,
		})
	}
	a.publishState(summary.RunID, domain.RunStateIdle, "Ready")
	a.log.Debug("run dispatched", "run_id", summary.RunID, "failed", summary.Failed, "stopped", summary.Stopped)

	if ctx != nil {
		a.notify(ctx, summary)
	}
}

// publishState sends a normalized state event.
func (a *App) publishState(runID string, state domain.RunState, message string) {
	a.publishEvent(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeState,
		State:   state,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "run:event", published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func confirmQuitDialog(ctx context.Context) bool {
	choice, err := wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:          wailsruntime.QuestionDialog,
		Title:         "Whisper Desk",
		Message:       "Transcribe is in progress.\nDo you want to quit anyway?",
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		return false
	}
	return choice == "Yes"
}

func showSummaryDialog(ctx context.Context, s transcribe.Summary) {
	kind := wailsruntime.InfoDialog
	if s.Failed {
		kind = wailsruntime.ErrorDialog
	}
	_, _ = wailsruntime.MessageDialog(ctx, wailsruntime.MessageDialogOptions{
		Type:    kind,
		Title:   "Whisper Desk",
		Message: s.Message,
	})
}

func outputDialogFilter(format domain.OutputFormat) []wailsruntime.FileFilter {
	var name string
	switch format {
	case domain.OutputFormatSubRip:
		name = "SubRip subtitles"
	case domain.OutputFormatWebVTT:
		name = "WebVTT subtitles"
	default:
		name = "Text files"
	}
	return []wailsruntime.FileFilter{
		{DisplayName: name, Pattern: "*" + format.Extension()},
		{DisplayName: "All files", Pattern: "*"},
	}
}

// normalizeSettings trims user inputs and applies defaults for empty or
// unknown values.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.SourceMedia = strings.TrimSpace(settings.SourceMedia)
	settings.ResultPath = strings.TrimSpace(settings.ResultPath)
	settings.Language = strings.TrimSpace(settings.Language)
	if settings.Language == "" {
		settings.Language = "auto"
	}
	if !settings.ResultFormat.Valid() {
		settings.ResultFormat = domain.OutputFormatNone
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
