package llm

import "encoding/json"

// Message roles understood by the relay.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// FallbackReply is stored and shown in place of an empty assistant reply.
const FallbackReply = "抱歉，我刚才没听清。"

// Message represents a single message in a conversation.
type Message struct {
	Role      string   `json:"role"`                // "system", "user", "assistant"
	Content   string   `json:"content"`             // The message content
	Images    []string `json:"images,omitempty"`    // Optional encoded image references
	ID        string   `json:"id,omitempty"`        // Optional client supplied identifier
	CreatedAt int64    `json:"createdAt,omitempty"` // Unix milliseconds
}

// HasText reports whether the message carries textual content and may take
// part in a provider request.
func (m Message) HasText() bool {
	return m.Content != ""
}

// UnmarshalJSON decodes a message leniently: a content field that is missing,
// null or not a string decodes to an empty Content instead of failing the whole
// conversation.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message(raw.plain)
	m.Content = ""
	if len(raw.Content) > 0 {
		var text string
		if err := json.Unmarshal(raw.Content, &text); err == nil {
			m.Content = text
		}
	}
	return nil
}
