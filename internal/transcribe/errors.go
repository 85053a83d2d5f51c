package transcribe

import (
	"errors"
	"fmt"
	"strings"

	"whisperdesk/internal/export"
	"whisperdesk/internal/jobs"
)

// Validation errors returned synchronously by StartRun.
var (
	ErrMissingInput     = errors.New("input media path is required")
	ErrInputNotFound    = errors.New("input media file not found")
	ErrMissingOutput    = errors.New("output path is required for the selected format")
	ErrInvalidFormat    = errors.New("unknown output format")
	ErrInvalidTranslate = errors.New("translation needs a multilingual model and a non-English source language")
	ErrNoEngine         = errors.New("no recognition engine configured")
	ErrOutputExists     = export.ErrOutputExists
	ErrRunInProgress    = jobs.ErrRunInProgress
)

// Run stages reported by RunError.
const (
	StageAudio  = "audio"
	StageEngine = "engine"
	StageExport = "export"
)

// RunError is a stage-aware failure of a background run.
type RunError struct {
	Stage      string `json:"stage"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic,omitempty"`
	Err        error  `json:"-"`
}

// Error formats run failures for logs and UI.
func (e *RunError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *RunError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// diagnoser is implemented by errors that carry tool output, such as
// media.CommandError.
type diagnoser interface {
	Diagnostic() string
}

func newRunError(stage, message string, err error) *RunError {
	re := &RunError{Stage: stage, Message: message, Err: err}
	var d diagnoser
	if errors.As(err, &d) {
		re.Diagnostic = strings.TrimSpace(d.Diagnostic())
	}
	return re
}

// failureDetail returns the engine diagnostic when present, otherwise a
// generic description of err.
func failureDetail(err error) string {
	var re *RunError
	if errors.As(err, &re) {
		if re.Diagnostic != "" {
			return re.Diagnostic
		}
		if re.Err != nil {
			return re.Message + ": " + re.Err.Error()
		}
		return re.Message
	}
	return err.Error()
}
