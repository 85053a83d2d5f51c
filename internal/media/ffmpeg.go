// Package media decodes input media to mono PCM with ffmpeg.
package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"time"

	"whisperdesk/internal/domain"
	"whisperdesk/internal/engine"
)

// CommandError describes a failed external command.
type CommandError struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stderr   string   `json:"stderr"`
	Err      error    `json:"-"`
}

// Error formats the failure with the command and exit code.
func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s failed (exit=%d): %v", e.Command, e.ExitCode, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Diagnostic returns the trimmed stderr of the command.
func (e *CommandError) Diagnostic() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Stderr)
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout, stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// FFmpegOpener implements engine.AudioOpener by piping ffmpeg's raw float output.
type FFmpegOpener struct {
	ffmpegPath string
	runner     commandRunner
	log        *slog.Logger
}

// NewFFmpegOpener uses the ffmpeg binary found on PATH.
func NewFFmpegOpener(logger *slog.Logger) *FFmpegOpener {
	return newFFmpegOpener("ffmpeg", &execRunner{}, logger)
}

func newFFmpegOpener(ffmpegPath string, runner commandRunner, logger *slog.Logger) *FFmpegOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegOpener{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		log:        logger.With("component", "media.FFmpegOpener"),
	}
}

// Open decodes path from offset to the end as 16 kHz mono float32.
func (o *FFmpegOpener) Open(ctx context.Context, path string, offset time.Duration) (engine.AudioSource, error) {
	args := buildFFmpegArgs(path, offset)
	o.log.Debug("decoding media", "path", path, "offset", offset)

	res, err := o.runner.Run(ctx, o.ffmpegPath, args...)
	if err != nil {
		return nil, &CommandError{
			Command:  o.ffmpegPath,
			Args:     args,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}

	samples, err := decodeFloat32LE(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("media: decode %q: %w", path, err)
	}
	o.log.Debug("media decoded", "path", path, "samples", len(samples))
	return &pcmSource{samples: samples}, nil
}

// buildFFmpegArgs builds args for mono 16 kHz f32le output on stdout.
func buildFFmpegArgs(inputPath string, offset time.Duration) []string {
	args := []string{"-hide_banner", "-nostdin"}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset.Seconds()))
	}
	return append(args,
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprint(engine.SampleRate),
		"-f", "f32le",
		"-",
	)
}

func decodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("truncated sample stream: %d bytes", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// pcmSource is decoded audio held in memory.
type pcmSource struct {
	samples []float32
}

func (s *pcmSource) Samples() []float32 { return s.samples }

func (s *pcmSource) Duration() (domain.Ticks, error) {
	return domain.Ticks(len(s.samples)) * domain.TicksPerSecond / engine.SampleRate, nil
}

func (s *pcmSource) Close() error {
	s.samples = nil
	return nil
}
