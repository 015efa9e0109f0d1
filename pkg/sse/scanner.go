package sse

import (
	"errors"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const readSize = 4 * 1024

// Scanner reads frames from a byte stream. Bytes are decoded as UTF-8 with a
// stateful decoder so multi-byte sequences split across reads survive; invalid
// sequences become U+FFFD.
//
// When the reader reports io.EOF any unterminated partial frame is dropped.
type Scanner struct {
	r     io.Reader
	p     *Parser
	buf   []byte
	frame Frame
	err   error
	eof   bool
}

// NewScanner creates a Scanner reading frames delimited by delim from r.
func NewScanner(r io.Reader, delim string, opts ...Option) *Scanner {
	return &Scanner{
		r:   transform.NewReader(r, unicode.UTF8.NewDecoder()),
		p:   NewParser(delim, opts...),
		buf: make([]byte, readSize),
	}
}

// Scan advances to the next frame. It returns false at end of input, after the
// terminator frame, or on a read error; Err distinguishes the last case.
func (s *Scanner) Scan() bool {
	for {
		if frame, ok := s.p.Next(); ok {
			s.frame = frame
			return true
		}
		if s.p.Terminated() || s.eof || s.err != nil {
			return false
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.p.Feed(string(s.buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.eof = true
			} else {
				s.err = err
			}
		}
	}
}

// Frame returns the frame produced by the last successful Scan.
func (s *Scanner) Frame() Frame {
	return s.frame
}

// Err returns the first non-EOF read error.
func (s *Scanner) Err() error {
	return s.err
}

// Terminated reports whether the stream ended on its terminator frame.
func (s *Scanner) Terminated() bool {
	return s.p.Terminated()
}

// Pending returns the number of bytes held back as an unterminated frame. Once
// Scan has returned false at end of input, those bytes were dropped.
func (s *Scanner) Pending() int {
	return s.p.Buffered()
}
