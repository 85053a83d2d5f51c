package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"whisperdesk/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Language != "auto" {
		t.Fatalf("language = %q, want auto", cfg.Language)
	}
	if cfg.ModelPath == "" {
		t.Fatal("expected non-empty model path")
	}
	if cfg.ResultFormat != domain.OutputFormatText {
		t.Fatalf("result format = %v, want text", cfg.ResultFormat)
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q, want auto", got.Language)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		ModelPath:      "/models/base.bin",
		SourceMedia:    "/in/talk.mp3",
		ResultFormat:   domain.OutputFormatSubRip,
		ResultPath:     "/out/talk.srt",
		UseInputFolder: true,
		Language:       "de",
		Translate:      true,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreUsesPersistedKeyNames checks the on-disk key names stay stable.
func TestJSONStoreUsesPersistedKeyNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)
	if err := store.Save(domain.Settings{SourceMedia: "a.wav", ResultFormat: domain.OutputFormatWebVTT}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, key := range []string{"sourceMedia", "resultFormat", "resultPath", "useInputFolder", "language", "translate"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Fatalf("settings file missing key %q: %s", key, data)
		}
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestJSONStoreLoadUnknownFormatFallsBackToNone checks out-of-range format indices.
func TestJSONStoreLoadUnknownFormatFallsBackToNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"resultFormat": 9}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ResultFormat != domain.OutputFormatNone {
		t.Fatalf("result format = %v, want none", got.ResultFormat)
	}
}
