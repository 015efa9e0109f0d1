package llm

// Event names written on the relay's event stream.
const (
	EventStart = "start"
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// StartEvent opens a stream and names the session it is stored under.
type StartEvent struct {
	SessionID string `json:"sessionId"`
}

// ChunkEvent carries one text delta of the reply.
type ChunkEvent struct {
	Text string `json:"text"`
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	OK bool `json:"ok"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Message string `json:"message"`
}
