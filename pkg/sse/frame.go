// Package sse splits incrementally arriving event-stream text into frames.
//
// Two delimiter conventions are supported: blank-line separated frames as sent
// by event-stream endpoints, and newline separated frames as sent by
// OpenAI-compatible delta streams. Within a frame, an "event:" line sets the
// event label and every "data:" line is trimmed and appended to the payload.
// Any other line is ignored.
package sse

import "strings"

// Frame delimiters.
const (
	// BlankLine separates frames of a standard event stream.
	BlankLine = "\n\n"

	// Newline separates frames of a delta-list stream, one data line per frame.
	Newline = "\n"
)

// DefaultEvent is the label of a frame without an "event:" line.
const DefaultEvent = "message"

// Frame is one parsed protocol unit.
type Frame struct {
	Event string
	Data  string
}

// parseFrame parses the lines of one raw frame. Frames without any data
// produce ok == false.
func parseFrame(raw string) (Frame, bool) {
	f := Frame{Event: DefaultEvent}
	var data strings.Builder

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			f.Event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(line[len("data:"):]))
		}
	}

	f.Data = data.String()
	return f, f.Data != ""
}
