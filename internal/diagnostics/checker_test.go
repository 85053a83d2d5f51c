package diagnostics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"whisperdesk/internal/domain"
)

type fakeModel struct{ multilingual bool }

func (m fakeModel) IsMultilingual() bool { return m.multilingual }

func foundTool(name string) (string, error) { return "/usr/local/bin/" + name, nil }

// TestCheckerRunAllPass validates happy-path diagnostics report.
func TestCheckerRunAllPass(t *testing.T) {
	root := t.TempDir()
	modelDir := filepath.Join(root, "models")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir models: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "ggml-base.bin"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	checker := NewCheckerForTests(foundTool, os.Stat, os.ReadDir, os.CreateTemp, os.Remove)
	report := checker.Run(domain.Settings{
		ModelPath:    modelDir,
		ResultFormat: domain.OutputFormatSubRip,
		ResultPath:   filepath.Join(root, "out.srt"),
	}, fakeModel{multilingual: true})

	if report.HasFailures {
		t.Fatalf("expected no failures, got %+v", report.Items)
	}
	if report.ModelInfo != `Multilingual model "ggml-base.bin", 0.0 MB on disk` {
		t.Fatalf("model info = %q", report.ModelInfo)
	}
}

// TestCheckerRunMissingToolsAndPaths validates failure reporting.
func TestCheckerRunMissingToolsAndPaths(t *testing.T) {
	checker := NewCheckerForTests(
		func(string) (string, error) { return "", errors.New("not found") },
		os.Stat,
		os.ReadDir,
		os.CreateTemp,
		os.Remove,
	)

	report := checker.Run(domain.Settings{
		ModelPath:    "/path/that/does/not/exist",
		ResultFormat: domain.OutputFormatText,
		ResultPath:   "/path/that/does/not/exist/out.txt",
	}, nil)

	if !report.HasFailures {
		t.Fatal("expected failures")
	}
	assertStatusByID(t, report, "tool_ffmpeg", StatusFail)
	assertStatusByID(t, report, "model_path", StatusFail)
	assertStatusByID(t, report, "output_dir", StatusFail)
	if report.ModelInfo != "" {
		t.Fatalf("model info = %q, want empty", report.ModelInfo)
	}
}

// TestCheckerRunModelDirectoryWithoutModelFilesFails validates model check.
func TestCheckerRunModelDirectoryWithoutModelFilesFails(t *testing.T) {
	modelDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelDir, "README.txt"), []byte("no model"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}

	checker := NewCheckerForTests(foundTool, os.Stat, os.ReadDir, os.CreateTemp, os.Remove)
	report := checker.Run(domain.Settings{ModelPath: modelDir}, fakeModel{})

	assertStatusByID(t, report, "model_path", StatusFail)
	assertStatusByID(t, report, "output_dir", StatusPass)
}

// TestCheckerOutputDirFromInputFolder checks the input folder is used when configured.
func TestCheckerOutputDirFromInputFolder(t *testing.T) {
	root := t.TempDir()
	s := domain.Settings{
		ResultFormat:   domain.OutputFormatWebVTT,
		UseInputFolder: true,
		SourceMedia:    filepath.Join(root, "talk.mp3"),
	}
	if got := outputDirFor(s); got != root {
		t.Fatalf("outputDirFor = %q, want %q", got, root)
	}
	s.ResultFormat = domain.OutputFormatNone
	if got := outputDirFor(s); got != "" {
		t.Fatalf("outputDirFor(None) = %q, want empty", got)
	}
}

// TestDescribeModel checks MB and GB rendering.
func TestDescribeModel(t *testing.T) {
	if got := DescribeModel("/m/ggml-base.en.bin", 147_951_465, false); got != `Single-language model "ggml-base.en.bin", 141.1 MB on disk` {
		t.Fatalf("DescribeModel = %q", got)
	}
	got := DescribeModel("ggml-large-v3.bin", 3_095_033_483, true)
	if !strings.HasPrefix(got, `Multilingual model "ggml-large-v3.bin", 2.88 GB`) {
		t.Fatalf("DescribeModel = %q", got)
	}
}

// assertStatusByID checks status for one diagnostic item by ID.
func assertStatusByID(t *testing.T, report Report, id string, want Status) {
	t.Helper()
	item, ok := report.Item(id)
	if !ok {
		t.Fatalf("diagnostic item not found: %s", id)
	}
	if item.Status != want {
		t.Fatalf("item %s: got %s, want %s", id, item.Status, want)
	}
}
