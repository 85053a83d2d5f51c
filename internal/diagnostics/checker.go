package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"whisperdesk/internal/domain"
)

// ModelReporter reports properties of the loaded model.
type ModelReporter interface {
	IsMultilingual() bool
}

// Checker validates external tools and the paths a run depends on.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks for settings. When model is non-nil and the model
// file resolves, the report carries a one-line model description.
func (c *Checker) Run(settings domain.Settings, model ModelReporter) Report {
	modelItem, modelFile, modelSize := c.checkModelPath(settings.ModelPath)
	items := []Item{
		c.checkTool("ffmpeg"),
		modelItem,
		c.checkOutputDir(outputDirFor(settings)),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == StatusFail {
			hasFailures = true
			break
		}
	}

	report := Report{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
	if model != nil && modelFile != "" {
		report.ModelInfo = DescribeModel(modelFile, modelSize, model.IsMultilingual())
	}
	return report
}

// DescribeModel renders e.g. `Multilingual model "ggml-base.bin", 141.0 MB on disk`.
// Sizes of 1 GiB and above are shown in GB with two decimals.
func DescribeModel(path string, size int64, multilingual bool) string {
	kind := "Single-language"
	if multilingual {
		kind = "Multilingual"
	}

	const (
		mib = 1 << 20
		gib = 1 << 30
	)
	var amount string
	if size >= gib {
		amount = fmt.Sprintf("%.2f GB", float64(size)/gib)
	} else {
		amount = fmt.Sprintf("%.1f MB", float64(size)/mib)
	}
	return fmt.Sprintf("%s model %q, %s on disk", kind, filepath.Base(path), amount)
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name string) Item {
	path, err := c.lookPath(name)
	if err != nil {
		return Item{
			ID:      "tool_" + name,
			Name:    name,
			Status:  StatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install it and ensure the binary is available on PATH; it decodes the input media.",
		}
	}

	return Item{
		ID:      "tool_" + name,
		Name:    name,
		Status:  StatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelPath validates the model file or directory and returns the
// resolved file with its size.
func (c *Checker) checkModelPath(modelPath string) (Item, string, int64) {
	item := Item{
		ID:   "model_path",
		Name: "Model path",
	}

	modelPath = strings.TrimSpace(modelPath)
	if modelPath == "" {
		item.Status = StatusFail
		item.Message = "Model path is empty."
		item.Hint = "Set a whisper model file or a directory containing one."
		return item, "", 0
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = StatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		}
		item.Hint = "Download a whisper.cpp model and configure the path in settings."
		return item, "", 0
	}

	if !info.IsDir() {
		item.Status = StatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelPath)
		return item, modelPath, info.Size()
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		item.Hint = "Check permissions for the model directory."
		return item, "", 0
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("No model files found in directory: %s", modelPath)
		item.Hint = "Place a .bin or .gguf model file in this directory or point to a model file directly."
		return item, "", 0
	}

	sort.Strings(names)
	file := filepath.Join(modelPath, names[0])
	var size int64
	if fi, err := c.stat(file); err == nil {
		size = fi.Size()
	}
	item.Status = StatusPass
	item.Message = fmt.Sprintf("Using %s from %s", names[0], modelPath)
	return item, file, size
}

// outputDirFor returns the directory the result file will be written to, or
// "" when the format writes no file.
func outputDirFor(s domain.Settings) string {
	if !s.ResultFormat.RequiresFile() {
		return ""
	}
	if s.UseInputFolder {
		if strings.TrimSpace(s.SourceMedia) == "" {
			return ""
		}
		return filepath.Dir(s.SourceMedia)
	}
	if strings.TrimSpace(s.ResultPath) == "" {
		return ""
	}
	return filepath.Dir(s.ResultPath)
}

// checkOutputDir validates write access to the result directory.
func (c *Checker) checkOutputDir(outputDir string) Item {
	item := Item{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = StatusPass
		item.Message = "No output file configured yet."
		return item
	}

	info, err := c.stat(outputDir)
	if err != nil || !info.IsDir() {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Output directory does not exist: %s", outputDir)
		item.Hint = "Choose an existing folder for the result file."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for the result file."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
