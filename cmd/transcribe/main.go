// Command transcribe runs one transcription from the command line.
//
// Ctrl+C requests an early stop; the partial result is still written.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"whisperdesk/internal/bootstrap"
	"whisperdesk/internal/config"
	"whisperdesk/internal/domain"
	"whisperdesk/internal/observe"
	"whisperdesk/internal/transcribe"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", filepath.Join(config.AppDir(), "config.yaml"), "path to the YAML configuration file")
		input       = flag.String("input", "", "media file to transcribe")
		output      = flag.String("output", "", "result file (ignored with -use-input-folder)")
		format      = flag.String("format", "text", "result format: none, text, timestamps, srt, vtt")
		language    = flag.String("language", "auto", "spoken language code or auto")
		translate   = flag.Bool("translate", false, "translate to English")
		start       = flag.String("start", "", "start time, seconds or H:M:S.fff")
		end         = flag.String("end", "", "end time, seconds or H:M:S.fff")
		inputFolder = flag.Bool("use-input-folder", false, "write the result next to the input")
		engineName  = flag.String("engine", "", "override engine.name (whisper or stub)")
		modelPath   = flag.String("model", "", "override engine.model_path")
	)
	flag.Parse()

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		return 1
	}
	if *engineName != "" {
		cfg.Engine.Name = *engineName
	}
	if *modelPath != "" {
		cfg.Engine.ModelPath = *modelPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		return 1
	}

	outFormat, ok := domain.ParseOutputFormat(*format)
	if !ok {
		fmt.Fprintf(os.Stderr, "transcribe: unknown format %q\n", *format)
		return 1
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	svc, err := bootstrap.NewServices(cfg, logger)
	if err != nil {
		slog.Error("failed to initialise services", "err", err)
		return 1
	}
	defer svc.Close()
	if svc.EngineErr != nil {
		slog.Warn("recognition falls back to the stub engine", "err", svc.EngineErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lastPosition := -1
	runID, err := svc.Controller.StartRun(ctx, transcribe.Request{
		InputPath:      *input,
		OutputPath:     *output,
		Format:         outFormat,
		Language:       *language,
		Translate:      *translate,
		UseInputFolder: *inputFolder,
		StartTime:      *start,
		EndTime:        *end,
		OnProgress: func(p transcribe.Progress) {
			pct := int(p.Fraction * 100)
			if pct == lastPosition {
				return
			}
			lastPosition = pct
			fmt.Fprintf(os.Stderr, "\rprogress %3d%%", pct)
		},
		OnSegments: func(segs []domain.Segment) {
			if outFormat != domain.OutputFormatNone {
				return
			}
			for _, seg := range segs {
				fmt.Println(seg.Text)
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "transcribe: %v\n", err)
		return 1
	}
	slog.Debug("run accepted", "run_id", runID)

	var summary transcribe.Summary
	g, gctx := errgroup.WithContext(context.Background())
	waitCtx, cancelWait := context.WithCancel(gctx)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: observe.MetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			slog.Warn("metrics listener unavailable", "addr", cfg.MetricsAddr, "err", err)
			srv = nil
		} else {
			g.Go(func() error {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			if svc.Controller.RequestStop() {
				fmt.Fprintln(os.Stderr, "\nstopping, writing partial result")
			}
		case <-waitCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		defer cancelWait()
		if srv != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
		s, err := svc.Controller.Wait(waitCtx)
		summary = s
		return err
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\ntranscribe: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, summary.Message)
	if summary.OutputPath != "" {
		fmt.Fprintf(os.Stderr, "Result: %s\n", summary.OutputPath)
	}
	if summary.Failed {
		return 1
	}
	return 0
}
