package transcribe

import (
	"fmt"
	"strings"

	"whisperdesk/internal/domain"
	"whisperdesk/internal/timefmt"
)

// Summary is the user-facing result of a completed run.
type Summary struct {
	RunID            string              `json:"runId"`
	OutputPath       string              `json:"outputPath,omitempty"`
	Format           domain.OutputFormat `json:"format"`
	Stopped          bool                `json:"stopped"`
	Failed           bool                `json:"failed"`
	ForcedStop       bool                `json:"forcedStop"`
	SuggestedRestart int64               `json:"suggestedRestart,omitempty"`
	MediaDuration    domain.Ticks        `json:"mediaDuration"`
	Elapsed          domain.Ticks        `json:"elapsed"`
	Speed            float64             `json:"speed"`
	Segments         int                 `json:"segments"`
	Message          string              `json:"message"`
}

// summarize builds the completion message. stopped reports whether the
// controller was Stopping when the run ended.
func summarize(o Outcome, stopped bool) Summary {
	s := Summary{
		RunID:         o.RunID,
		OutputPath:    o.OutputPath,
		Format:        o.Format,
		MediaDuration: o.MediaDuration,
		Elapsed:       o.Elapsed,
		Segments:      o.Segments,
	}

	if o.Err != nil {
		s.Failed = true
		s.OutputPath = ""
		s.Message = "Transcribe failed\n" + failureDetail(o.Err)
		return s
	}

	s.Stopped = stopped
	s.ForcedStop = o.ForcedStop
	if o.ForcedStop {
		s.SuggestedRestart = o.SuggestedRestart
	}
	if o.Elapsed > 0 {
		s.Speed = float64(o.MediaDuration) / float64(o.Elapsed)
	}

	var b strings.Builder
	if stopped {
		b.WriteString("Transcribed an initial portion of the audio")
	} else {
		b.WriteString("Transcribed the audio")
	}
	fmt.Fprintf(&b, "\nMedia duration: %s", timefmt.FormatDuration(o.MediaDuration))
	fmt.Fprintf(&b, "\nProcessing time: %s", timefmt.FormatDuration(o.Elapsed))
	fmt.Fprintf(&b, "\nRelative processing speed: %g", s.Speed)
	if o.ForcedStop {
		fmt.Fprintf(&b, "\nStopped on repeated output; restart from %s to continue",
			timefmt.FormatTimestamp(domain.Ticks(o.SuggestedRestart)*domain.TicksPerSecond, false))
	}
	s.Message = b.String()
	return s
}
