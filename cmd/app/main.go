// Command app runs the Whisper Desk desktop application.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"whisperdesk/internal/bootstrap"
	"whisperdesk/internal/config"
	"whisperdesk/internal/diagnostics"
	"whisperdesk/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", filepath.Join(config.AppDir(), "config.yaml"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whisperdesk: %v\n", err)
		return 1
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := bootstrap.EnsureToolDirOnPATH(filepath.Join(config.AppDir(), "bin")); err != nil {
		slog.Warn("prepare local tool path", "err", err)
	}

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	svc, err := bootstrap.NewServices(cfg, logger)
	if err != nil {
		slog.Error("failed to initialise services", "err", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("close services", "err", err)
		}
	}()
	if svc.EngineErr != nil {
		slog.Warn("recognition falls back to the stub engine", "err", svc.EngineErr)
	}

	app, err := bootstrap.New(bootstrap.Deps{
		Store:      svc.Settings,
		Controller: svc.Controller,
		Checker:    diagnostics.NewChecker(),
		Model:      svc.Engine,
		History:    svc.History,
		Logger:     logger,
	})
	if err != nil {
		slog.Error("bootstrap app", "err", err)
		return 1
	}

	slog.Info("whisperdesk starting", "config", *configPath, "engine", cfg.Engine.Name)
	if err := app.Run(); err != nil {
		slog.Error("run app", "err", err)
		return 1
	}
	return 0
}
