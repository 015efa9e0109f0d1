package relay

import (
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// DefaultHeartbeatInterval is how often an idle stream gets an SSE
// comment so a vanished client is noticed while the provider is silent.
const DefaultHeartbeatInterval = 15 * time.Second

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":5173")
	ListenAddr string

	// Options are the provider options requests use until SetOptions
	// replaces them.
	Options llm.Options

	// HeartbeatInterval between SSE keep-alive comments. Zero disables them.
	HeartbeatInterval time.Duration
}
