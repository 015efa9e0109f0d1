// Package inmemory is a storage.Store kept in process memory.
package inmemory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

type record struct {
	model     string
	messages  []llm.Message
	updatedAt time.Time
}

// Driver stores sessions in a map. It is safe for concurrent use.
type Driver struct {
	mu       sync.RWMutex
	sessions map[string]record
}

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{sessions: make(map[string]record)}
}

// Load implements storage.Store.
func (d *Driver) Load(_ context.Context, id string) ([]llm.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.sessions[storage.SanitizeID(id)]
	if !ok {
		return []llm.Message{}, nil
	}
	return cloneMessages(rec.messages), nil
}

// Save implements storage.Store.
func (d *Driver) Save(_ context.Context, session llm.Session) error {
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions[storage.SanitizeID(session.ID)] = record{
		model:     session.Model,
		messages:  cloneMessages(session.Messages),
		updatedAt: updatedAt,
	}
	return nil
}

// Delete implements storage.Store.
func (d *Driver) Delete(_ context.Context, id string) error {
	safe := storage.SanitizeID(id)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[safe]; !ok {
		return storage.ErrNotFound{ID: safe}
	}
	delete(d.sessions, safe)
	return nil
}

// List implements storage.Store.
func (d *Driver) List(_ context.Context) ([]llm.SessionMeta, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metas := make([]llm.SessionMeta, 0, len(d.sessions))
	for id, rec := range d.sessions {
		metas = append(metas, storage.Meta(id, rec.model, rec.messages, rec.updatedAt))
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Close implements storage.Store.
func (d *Driver) Close() error {
	return nil
}

func cloneMessages(messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		m.Images = slices.Clone(m.Images)
		out[i] = m
	}
	return out
}
