package domain

import "strings"

// RunState tracks the controller lifecycle for a single transcription run.
type RunState string

const (
	RunStateIdle     RunState = "idle"
	RunStateRunning  RunState = "running"
	RunStateStopping RunState = "stopping"
)

// OutputFormat selects the result file layout. Values match the persisted integer index.
type OutputFormat int

const (
	OutputFormatNone OutputFormat = iota
	OutputFormatText
	OutputFormatTextTimestamps
	OutputFormatSubRip
	OutputFormatWebVTT
)

var outputFormatNames = map[OutputFormat]string{
	OutputFormatNone:           "none",
	OutputFormatText:           "text",
	OutputFormatTextTimestamps: "timestamps",
	OutputFormatSubRip:         "srt",
	OutputFormatWebVTT:         "vtt",
}

// String returns the short name used by the CLI and metrics.
func (f OutputFormat) String() string {
	if name, ok := outputFormatNames[f]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether f is one of the known formats.
func (f OutputFormat) Valid() bool {
	_, ok := outputFormatNames[f]
	return ok
}

// RequiresFile reports whether the format writes an output file.
func (f OutputFormat) RequiresFile() bool {
	return f != OutputFormatNone && f.Valid()
}

// Extension returns the canonical file extension, or "" for None.
func (f OutputFormat) Extension() string {
	switch f {
	case OutputFormatText, OutputFormatTextTimestamps:
		return ".txt"
	case OutputFormatSubRip:
		return ".srt"
	case OutputFormatWebVTT:
		return ".vtt"
	default:
		return ""
	}
}

// ParseOutputFormat maps a short name (or file extension) to a format.
func ParseOutputFormat(raw string) (OutputFormat, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	switch name {
	case "", "none":
		return OutputFormatNone, true
	case "txt":
		return OutputFormatText, true
	case "webvtt":
		return OutputFormatWebVTT, true
	case "subrip":
		return OutputFormatSubRip, true
	}
	for f, n := range outputFormatNames {
		if n == name {
			return f, true
		}
	}
	return OutputFormatNone, false
}

// Settings contains the last-used transcription options persisted between launches.
type Settings struct {
	ModelPath      string       `json:"modelPath"`
	SourceMedia    string       `json:"sourceMedia"`
	ResultFormat   OutputFormat `json:"resultFormat"`
	ResultPath     string       `json:"resultPath"`
	UseInputFolder bool         `json:"useInputFolder"`
	Language       string       `json:"language"`
	Translate      bool         `json:"translate"`
}

// Run stores the current run identity and lifecycle state.
type Run struct {
	ID    string   `json:"id"`
	State RunState `json:"state"`
}
