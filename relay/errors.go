package relay

import "errors"

var (
	// ErrMalformedRequest is reported when a request body is not valid JSON
	// of the expected shape.
	ErrMalformedRequest = errors.New("malformed request body")

	// ErrPayloadTooLarge is reported when a request body exceeds BodyLimit.
	ErrPayloadTooLarge = errors.New("request body too large")
)
