package sse

import (
	"bytes"
	"strings"
)

// Option configures a Parser.
type Option func(*Parser)

// WithTerminator makes a frame whose payload equals token end the sequence.
// The terminating frame itself is never returned.
func WithTerminator(token string) Option {
	return func(p *Parser) {
		p.terminator = token
	}
}

// Parser buffers decoded text and hands out complete frames. A trailing
// partial frame stays buffered until more input arrives; it is never returned
// on its own.
type Parser struct {
	delim      []byte
	terminator string
	buf        []byte
	// scanned is how far buf has been searched for delim without a match.
	scanned int
	// cr holds a trailing "\r" back until the next Feed shows whether it
	// starts a CRLF.
	cr   bool
	done bool
}

// NewParser creates a parser for the given frame delimiter.
func NewParser(delim string, opts ...Option) *Parser {
	p := &Parser{delim: []byte(delim)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed appends decoded text to the buffer. CRLF line endings are normalised
// to LF. Input fed after the terminator was seen is discarded.
func (p *Parser) Feed(text string) {
	if p.done || text == "" {
		return
	}
	if p.cr {
		text = "\r" + text
		p.cr = false
	}
	if strings.HasSuffix(text, "\r") {
		text = text[:len(text)-1]
		p.cr = true
	}
	p.buf = append(p.buf, strings.ReplaceAll(text, "\r\n", "\n")...)
}

// Next returns the next complete frame. It returns false when the buffer holds
// no complete frame or the terminator has been reached.
func (p *Parser) Next() (Frame, bool) {
	for !p.done {
		idx := bytes.Index(p.buf[p.scanned:], p.delim)
		if idx < 0 {
			// A delimiter may straddle the end of the buffer.
			p.scanned = max(0, len(p.buf)-len(p.delim)+1)
			return Frame{}, false
		}
		idx += p.scanned

		raw := string(p.buf[:idx])
		p.buf = p.buf[idx+len(p.delim):]
		p.scanned = 0

		frame, ok := parseFrame(raw)
		if !ok {
			continue
		}
		if p.terminator != "" && frame.Data == p.terminator {
			p.done = true
			p.buf = nil
			p.cr = false
			return Frame{}, false
		}
		return frame, true
	}
	return Frame{}, false
}

// Terminated reports whether the terminator frame has been seen.
func (p *Parser) Terminated() bool {
	return p.done
}

// Buffered returns the number of bytes held back as a partial frame.
func (p *Parser) Buffered() int {
	n := len(p.buf)
	if p.cr {
		n++
	}
	return n
}
