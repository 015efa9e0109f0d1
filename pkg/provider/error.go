package provider

import (
	"fmt"
	"strings"
)

// RemoteError is returned when an upstream provider answers with a non-2xx
// status or the transport fails. StatusCode is 0 for transport failures.
type RemoteError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("remote API error: %v", e.Err)
	}
	return strings.TrimSpace(fmt.Sprintf("remote API error: %d %s", e.StatusCode, e.Body))
}

// Unwrap returns the underlying transport error, if any.
func (e *RemoteError) Unwrap() error {
	return e.Err
}
