// Package timing converts between display strings and whole-second finish times.
package timing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// durationPattern is the accepted shape of an entered time: [hh:]mm:ss.
// Bare second counts without a colon are rejected on purpose; numbers
// typed into the finish form without a colon are almost always mistakes.
var durationPattern = regexp.MustCompile(`^(\d+:)?\d+:\d+`)

// FormatError reports a time string that does not parse as [hh:]mm:ss.
type FormatError struct {
	Text string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%q does not match [hh:]mm:ss", e.Text)
}

// Parse converts an entered time string to whole seconds.
// An empty string means "no time recorded" and yields a nil result
// without an error. The leftmost component is unbounded.
func Parse(text string) (*int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !durationPattern.MatchString(text) {
		return nil, &FormatError{Text: text}
	}

	parts := strings.SplitN(text, ":", 3)
	vals := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &FormatError{Text: text}
		}
		vals[i] = n
	}

	var seconds int
	switch len(vals) {
	case 3:
		seconds = vals[0]*3600 + vals[1]*60 + vals[2]
	default:
		seconds = vals[0]*60 + vals[1]
	}
	return &seconds, nil
}

// Format renders whole seconds for display. A nil value renders as the
// empty string. Times under one hour render as mm:ss, everything else
// as hh:mm:ss with an unbounded hours component.
func Format(seconds *int) string {
	if seconds == nil {
		return ""
	}

	tmp := *seconds
	secs := tmp % 60
	tmp /= 60
	mins := tmp % 60
	hours := tmp / 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
