// Package export renders recognized segments as text, timestamped text,
// SubRip or WebVTT.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"whisperdesk/internal/domain"
	"whisperdesk/internal/timefmt"
)

const (
	byteOrderMark = "\xEF\xBB\xBF"
	lineEnd       = "\r\n"
)

// ErrUnsupportedFormat is returned for format values outside the known set.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Write renders segments to w in the given format. dupLines trailing
// segments are left out of SubRip output. None writes nothing.
func Write(w io.Writer, format domain.OutputFormat, segments []domain.Segment, dupLines int) error {
	switch format {
	case domain.OutputFormatNone:
		return nil
	case domain.OutputFormatText:
		return WriteText(w, segments, false)
	case domain.OutputFormatTextTimestamps:
		return WriteText(w, segments, true)
	case domain.OutputFormatSubRip:
		return WriteSubRip(w, segments, dupLines)
	case domain.OutputFormatWebVTT:
		return WriteWebVTT(w, segments)
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
}

// WriteText writes one line per segment, optionally prefixed with
// "[begin --> end]  ".
func WriteText(w io.Writer, segments []domain.Segment, timestamps bool) error {
	ew := &errWriter{w: w}
	ew.write(byteOrderMark)
	for _, seg := range segments {
		if timestamps {
			ew.write("[", timefmt.FormatTimestamp(seg.Start, false), " --> ", timefmt.FormatTimestamp(seg.End, false), "]  ")
		}
		ew.write(skipBlank(seg.Text), lineEnd)
	}
	return ew.err
}

// WriteSubRip writes numbered cues. Cue numbers follow segment positions, so
// segments containing '(' leave gaps. A nil slice writes nothing at all.
func WriteSubRip(w io.Writer, segments []domain.Segment, dupLines int) error {
	if segments == nil {
		return nil
	}
	ew := &errWriter{w: w}
	ew.write(byteOrderMark)

	n := len(segments) - dupLines
	for i := 0; i < n; i++ {
		seg := segments[i]
		if strings.Contains(seg.Text, "(") {
			continue
		}
		ew.write(
			fmt.Sprintf("%d", i+1), lineEnd,
			timefmt.FormatTimestamp(seg.Start, true), " --> ", timefmt.FormatTimestamp(seg.End, true), lineEnd,
			skipBlank(seg.Text), lineEnd,
			lineEnd,
		)
	}
	return ew.err
}

// WriteWebVTT writes a WEBVTT header and unnumbered cues.
func WriteWebVTT(w io.Writer, segments []domain.Segment) error {
	ew := &errWriter{w: w}
	ew.write(byteOrderMark, "WEBVTT", lineEnd, lineEnd)
	for _, seg := range segments {
		ew.write(
			timefmt.FormatTimestamp(seg.Start, false), " --> ", timefmt.FormatTimestamp(seg.End, false), lineEnd,
			skipBlank(seg.Text), lineEnd,
			lineEnd,
		)
	}
	return ew.err
}

// skipBlank drops leading spaces and tabs.
func skipBlank(s string) string {
	return strings.TrimLeft(s, " \t")
}

// errWriter keeps the first write error and ignores later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(parts ...string) {
	for _, p := range parts {
		if e.err != nil {
			return
		}
		if _, err := io.WriteString(e.w, p); err != nil {
			e.err = fmt.Errorf("export: write: %w", err)
		}
	}
}
