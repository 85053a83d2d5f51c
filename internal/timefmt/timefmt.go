// Package timefmt renders tick durations for summaries and subtitle cues and
// parses the start/end time fields of a transcription request.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"

	"whisperdesk/internal/domain"
)

// FormatDuration renders a duration with tiered precision:
// "D days, H hours" when at least a day, "HH:MM:SS" when hours or minutes
// are present, otherwise "S.SSS seconds".
func FormatDuration(t domain.Ticks) string {
	f := t.Fields()
	if f.Days != 0 {
		return fmt.Sprintf("%d days, %d hours", f.Days, f.Hours)
	}
	if f.Hours != 0 || f.Minutes != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", f.Hours, f.Minutes, f.Seconds)
	}
	return fmt.Sprintf("%.3f seconds", float64(t)/float64(domain.TicksPerSecond))
}

// FormatTimestamp renders an absolute "HH:MM:SS.mmm" timestamp. Days fold into
// hours. With comma set the millisecond separator is ',' as SubRip requires.
func FormatTimestamp(t domain.Ticks, comma bool) string {
	f := t.Fields()
	sep := '.'
	if comma {
		sep = ','
	}
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", f.Days*24+f.Hours, f.Minutes, f.Seconds, sep, f.Milliseconds)
}

var clockPattern = regexp.MustCompile(`^(\d+):(\d+):(\d+)\.(\d+)$`)

// ParseTimeField converts a start/end field to the request time unit.
//
// "H:M:S.F" yields (h*3600+m*60+s)*1000 + scaled(F)*100 where a 1, 2 or 3
// digit fraction scales by 100, 10 or 1 and any other length counts as zero.
// The trailing *100 is kept as-is; offsets computed from it are relied on
// downstream. Anything else is read as a leading integer of whole seconds,
// with non-numeric input yielding zero.
func ParseTimeField(raw string) int64 {
	if m := clockPattern.FindStringSubmatch(raw); m != nil {
		h := atoi(m[1])
		mins := atoi(m[2])
		s := atoi(m[3])

		var frac int64
		switch len(m[4]) {
		case 3:
			frac = atoi(m[4])
		case 2:
			frac = atoi(m[4]) * 10
		case 1:
			frac = atoi(m[4]) * 100
		}
		return h*60*60*1000 + mins*60*1000 + s*1000 + frac*100
	}
	return leadingInt(raw) * 1000
}

// Window derives the engine offset and duration from parsed start/end values.
// A zero duration means no explicit limit.
func Window(start, end int64) (offset, duration int64) {
	if end > start {
		return start, end - start
	}
	return start, 0
}

func atoi(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// leadingInt reads optional blanks and a sign, then digits up to the
// first non-digit.
func leadingInt(s string) int64 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var v int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		v = v*10 + int64(s[i]-'0')
	}
	if neg {
		return -v
	}
	return v
}
