package llm

import (
	"strings"
	"time"
)

// DefaultSessionTitle is used for sessions without a user message.
const DefaultSessionTitle = "新对话"

const titleMaxRunes = 30

// Session is a persisted, independently addressable conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model,omitempty"`
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionMeta summarises a session for listings.
type SessionMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// TitleFor derives a session title from the first user message.
func TitleFor(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		text := strings.TrimSpace(strings.ReplaceAll(m.Content, "\n", " "))
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + "…"
		}
		return text
	}
	return DefaultSessionTitle
}
