package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"whisperdesk/internal/config"
	"whisperdesk/internal/engine"
	"whisperdesk/internal/history"
	"whisperdesk/internal/media"
	"whisperdesk/internal/observe"
	"whisperdesk/internal/transcribe"
)

// Services holds the long-lived components shared by the desktop app and the CLI.
type Services struct {
	Settings   *config.JSONStore
	History    *history.Store
	Engine     engine.Engine
	Controller *transcribe.Controller

	// EngineErr is set when the configured engine could not be loaded and the
	// stub is used instead.
	EngineErr error
}

// NewServices builds the engine, history store and controller described by cfg.
func NewServices(cfg config.AppConfig, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := config.NewJSONStore(cfg.SettingsPath)

	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	engineCfg := cfg.Engine
	if engineCfg.ModelPath == "" {
		settings, err := store.Load()
		if err != nil {
			_ = hist.Close()
			return nil, fmt.Errorf("load settings: %w", err)
		}
		engineCfg.ModelPath = settings.ModelPath
	}
	eng, engineErr := engine.New(engineCfg, logger)

	ctrl := transcribe.New(transcribe.Options{
		Engine:          eng,
		Audio:           media.NewFFmpegOpener(logger),
		Settings:        store,
		History:         hist,
		Metrics:         observe.DefaultMetrics(),
		Logger:          logger,
		RepeatThreshold: cfg.Guard.RepeatThreshold,
		OnExisting:      cfg.Output.OnExisting,
	})

	return &Services{
		Settings:   store,
		History:    hist,
		Engine:     eng,
		Controller: ctrl,
		EngineErr:  engineErr,
	}, nil
}

// Close releases the engine and the history database.
func (s *Services) Close() error {
	return errors.Join(s.Engine.Close(), s.History.Close())
}
