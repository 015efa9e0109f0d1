// Package llm provides the internal representations of conversations, sessions
// and relay API payloads shared by the provider adapters, storage drivers and
// the HTTP relay.
package llm

// ErrorResponse represents an error returned by the relay API.
type ErrorResponse struct {
	Error string `json:"error"`
}
