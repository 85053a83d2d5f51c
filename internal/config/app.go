package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel        = "info"
	DefaultEngine          = "whisper"
	DefaultRepeatThreshold = 15
	DefaultOnExisting      = OnExistingSuffix
)

// OnExisting decides what happens when the output file is already present.
type OnExisting string

const (
	OnExistingSuffix    OnExisting = "suffix"
	OnExistingOverwrite OnExisting = "overwrite"
	OnExistingFail      OnExisting = "fail"
)

// IsValid reports whether p is a known policy.
func (p OnExisting) IsValid() bool {
	switch p {
	case OnExistingSuffix, OnExistingOverwrite, OnExistingFail:
		return true
	default:
		return false
	}
}

// AppConfig is the optional YAML application configuration.
type AppConfig struct {
	LogLevel     string       `yaml:"log_level"`
	SettingsPath string       `yaml:"settings_path"`
	HistoryPath  string       `yaml:"history_path"`
	MetricsAddr  string       `yaml:"metrics_addr"`
	Engine       EngineConfig `yaml:"engine"`
	Guard        GuardConfig  `yaml:"guard"`
	Output       OutputConfig `yaml:"output"`
}

// EngineConfig selects and tunes the recognition engine.
type EngineConfig struct {
	// Name is "whisper" (native whisper.cpp) or "stub".
	Name      string `yaml:"name"`
	ModelPath string `yaml:"model_path"`
	Threads   uint   `yaml:"threads"`
}

// GuardConfig tunes the duplicate-segment guard.
type GuardConfig struct {
	RepeatThreshold int `yaml:"repeat_threshold"`
}

// OutputConfig controls result file handling.
type OutputConfig struct {
	OnExisting OnExisting `yaml:"on_existing"`
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() AppConfig {
	dir := AppDir()
	return AppConfig{
		LogLevel:     DefaultLogLevel,
		SettingsPath: filepath.Join(dir, "settings.json"),
		HistoryPath:  filepath.Join(dir, "history.db"),
		Engine:       EngineConfig{Name: DefaultEngine},
		Guard:        GuardConfig{RepeatThreshold: DefaultRepeatThreshold},
		Output:       OutputConfig{OnExisting: DefaultOnExisting},
	}
}

// LoadAppConfig reads the YAML file at path. A missing file yields defaults.
func LoadAppConfig(path string) (AppConfig, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultAppConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("config file not found, using defaults", "path", path)
			return DefaultAppConfig(), nil
		}
		return AppConfig{}, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadAppConfigFromReader(f)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadAppConfigFromReader decodes YAML from r on top of defaults and validates it.
func LoadAppConfigFromReader(r io.Reader) (AppConfig, error) {
	cfg := DefaultAppConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return AppConfig{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate applies defaults for empty fields and returns all invalid values joined.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, ok := ParseLogLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", c.LogLevel))
	}

	c.Engine.Name = strings.ToLower(strings.TrimSpace(c.Engine.Name))
	switch c.Engine.Name {
	case "":
		c.Engine.Name = DefaultEngine
	case "whisper", "stub":
	default:
		errs = append(errs, fmt.Errorf("engine.name %q is invalid; valid values: whisper, stub", c.Engine.Name))
	}

	switch {
	case c.Guard.RepeatThreshold == 0:
		c.Guard.RepeatThreshold = DefaultRepeatThreshold
	case c.Guard.RepeatThreshold < 0:
		errs = append(errs, fmt.Errorf("guard.repeat_threshold must be > 0, got %d", c.Guard.RepeatThreshold))
	}

	if c.Output.OnExisting == "" {
		c.Output.OnExisting = DefaultOnExisting
	}
	if !c.Output.OnExisting.IsValid() {
		errs = append(errs, fmt.Errorf("output.on_existing %q is invalid; valid values: suffix, overwrite, fail", c.Output.OnExisting))
	}

	return errors.Join(errs...)
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
