// Package storage defines how conversations are persisted per session.
package storage

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// DefaultSessionID addresses the conversation of requests without a session.
const DefaultSessionID = "chat"

// Store persists one conversation per session identifier. Identifiers are
// passed through SanitizeID by every implementation, so callers may hand in
// raw client input. Writes to the same identifier are last-writer-wins.
type Store interface {
	// Load returns the conversation of a session. An unknown session yields
	// an empty conversation and no error.
	Load(ctx context.Context, id string) ([]llm.Message, error)

	// Save replaces the conversation of session.ID.
	Save(ctx context.Context, session llm.Session) error

	// Delete removes a session. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns metadata for every session, most recently updated first.
	List(ctx context.Context) ([]llm.SessionMeta, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when a session doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "session not found"
	}

	return "session not found: " + e.ID
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeID strips every character outside [a-zA-Z0-9_-] so an identifier is
// safe to use as a file name or key. An identifier that sanitizes to nothing
// maps to DefaultSessionID.
func SanitizeID(id string) string {
	safe := unsafeIDChars.ReplaceAllString(id, "")
	if safe == "" {
		return DefaultSessionID
	}
	return safe
}

// Meta builds listing metadata for a stored conversation.
func Meta(id, model string, messages []llm.Message, updatedAt time.Time) llm.SessionMeta {
	return llm.SessionMeta{
		ID:           id,
		Title:        llm.TitleFor(messages),
		Model:        model,
		UpdatedAt:    updatedAt,
		MessageCount: len(messages),
	}
}

// AppendReply saves messages followed by an assistant turn holding reply, and
// returns the conversation as saved. An empty reply is stored as
// llm.FallbackReply. The caller's slice is never modified.
func AppendReply(ctx context.Context, store Store, id, model string, messages []llm.Message, reply string) ([]llm.Message, error) {
	if reply == "" {
		reply = llm.FallbackReply
	}

	conversation := make([]llm.Message, 0, len(messages)+1)
	conversation = append(conversation, messages...)
	conversation = append(conversation, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   reply,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UnixMilli(),
	})

	err := store.Save(ctx, llm.Session{
		ID:        id,
		Title:     llm.TitleFor(conversation),
		Model:     model,
		Messages:  conversation,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}
