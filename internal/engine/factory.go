package engine

import (
	"log/slog"

	"whisperdesk/internal/config"
)

// New builds the engine selected by cfg. The returned engine is always
// usable: when the native backend is missing or fails to load, the stub is
// returned together with the error that caused the fallback.
func New(cfg config.EngineConfig, logger *slog.Logger) (Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Name == "stub" {
		logger.Warn("stub engine forced by configuration")
		return NewStubEngine(logger), nil
	}

	if !NativeAvailable() {
		logger.Warn("native backend disabled at build time; using stub engine")
		return NewStubEngine(logger), ErrNativeEngineUnavailable
	}

	modelPath, err := ResolveModelPath(cfg.ModelPath)
	if err != nil {
		logger.Warn("model path unusable; using stub engine", "error", err)
		return NewStubEngine(logger), err
	}

	native, err := NewNativeEngine(modelPath, cfg.Threads, logger)
	if err != nil {
		logger.Error("native engine initialisation failed; using stub", "error", err, "model_path", modelPath)
		return NewStubEngine(logger), err
	}
	logger.Info("native engine ready", "model_path", modelPath)
	return native, nil
}
