package transcribe

import (
	"fmt"
	"strings"
	"time"

	"whisperdesk/internal/config"
	"whisperdesk/internal/domain"
	"whisperdesk/internal/export"
	"whisperdesk/internal/timefmt"
)

// ProgressScale is the upper bound of Progress.Position.
const ProgressScale = 8192

// Request contains the options and callbacks for one run.
type Request struct {
	InputPath      string
	OutputPath     string
	Format         domain.OutputFormat
	Language       string
	Translate      bool
	UseInputFolder bool
	// StartTime and EndTime accept whole seconds or "H:M:S.fff". They are only
	// read when Format writes a file.
	StartTime string
	EndTime   string

	// OnProgress and OnSegments run on the worker goroutine.
	OnProgress func(Progress)
	OnSegments func([]domain.Segment)
}

// Progress is one progress report.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Position int     `json:"position"`
}

// newProgress clamps fraction to [0, 1] and scales it to ProgressScale.
func newProgress(fraction float64) Progress {
	switch {
	case fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return Progress{Fraction: fraction, Position: int(fraction * ProgressScale)}
}

// plan is a validated request.
type plan struct {
	runID      string
	inputPath  string
	outputPath string
	format     domain.OutputFormat
	language   string
	translate  bool
	useFolder  bool
	offset     time.Duration
	duration   time.Duration
	onProgress func(Progress)
	onSegments func([]domain.Segment)
}

// validate checks req and resolves the output path. It never starts a run.
func (c *Controller) validate(req Request) (plan, error) {
	p := plan{
		inputPath:  strings.TrimSpace(req.InputPath),
		outputPath: strings.TrimSpace(req.OutputPath),
		format:     req.Format,
		language:   normalizeLanguage(req.Language),
		translate:  req.Translate,
		useFolder:  req.UseInputFolder,
		onProgress: req.OnProgress,
		onSegments: req.OnSegments,
	}

	if p.inputPath == "" {
		return plan{}, ErrMissingInput
	}
	info, err := c.stat(p.inputPath)
	if err != nil || info.IsDir() {
		return plan{}, fmt.Errorf("%w: %s", ErrInputNotFound, p.inputPath)
	}

	if !p.format.Valid() {
		return plan{}, fmt.Errorf("%w: %d", ErrInvalidFormat, p.format)
	}
	if p.format.RequiresFile() {
		if p.useFolder {
			p.outputPath = export.OutputPathFor(p.inputPath, p.format)
		}
		if p.outputPath == "" {
			return plan{}, ErrMissingOutput
		}
	} else {
		p.outputPath = ""
	}

	if p.translate && !c.translateAllowed(p.language) {
		return plan{}, ErrInvalidTranslate
	}

	if p.format.RequiresFile() {
		resolved, err := export.ResolveExisting(p.outputPath, c.onExisting, c.exists)
		if err != nil {
			return plan{}, err
		}
		p.outputPath = resolved

		start := timefmt.ParseTimeField(req.StartTime)
		end := timefmt.ParseTimeField(req.EndTime)
		offset, duration := timefmt.Window(start, end)
		p.offset = time.Duration(offset) * time.Millisecond
		p.duration = time.Duration(duration) * time.Millisecond
	}
	return p, nil
}

// translateAllowed rejects translation for English sources and single-language models.
func (c *Controller) translateAllowed(language string) bool {
	if strings.EqualFold(language, "en") {
		return false
	}
	return c.engine != nil && c.engine.IsMultilingual()
}

// normalizeLanguage maps empty input to "auto".
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" {
		return "auto"
	}
	return lang
}

// persist stores the last-used options. Failures are logged only.
func (c *Controller) persist(p plan) {
	if c.settings == nil {
		return
	}
	s, err := c.settings.Load()
	if err != nil {
		c.log.Warn("load settings failed; saving over defaults", "error", err)
		s = config.DefaultSettings()
	}
	s.SourceMedia = p.inputPath
	s.ResultFormat = p.format
	s.Language = p.language
	s.Translate = p.translate
	s.UseInputFolder = p.useFolder
	if p.outputPath != "" && !p.useFolder {
		s.ResultPath = p.outputPath
	}
	if err := c.settings.Save(s); err != nil {
		c.log.Warn("save settings failed", "error", err)
	}
}
