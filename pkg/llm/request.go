package llm

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages  []Message `json:"messages"`            // Conversation history, oldest first
	SessionID string    `json:"sessionId,omitempty"` // Session whose history is loaded and saved
}

// AbortRequest is the body of POST /api/chat/abort.
type AbortRequest struct {
	SessionID string `json:"sessionId"`
}
