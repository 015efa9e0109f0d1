// Package redis is a storage.Store backed by Redis.
//
// Each session is a JSON value under <prefix>session:<id>; a sorted set at
// <prefix>sessions indexes ids by update time for listings.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// DefaultPrefix namespaces every key written by the driver.
const DefaultPrefix = "chatrelay:"

type record struct {
	Model     string        `json:"model,omitempty"`
	Messages  []llm.Message `json:"messages"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Driver stores sessions in Redis.
type Driver struct {
	client *goredis.Client
	prefix string
}

// NewDriver connects to the Redis server at url (redis://...) and verifies the
// connection.
func NewDriver(ctx context.Context, url string) (*Driver, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := goredis.NewClient(opt)
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewDriverWithClient(client, DefaultPrefix), nil
}

// NewDriverWithClient wraps an existing client. The driver owns the client and
// closes it on Close.
func NewDriverWithClient(client *goredis.Client, prefix string) *Driver {
	return &Driver{client: client, prefix: prefix}
}

func (d *Driver) sessionKey(id string) string {
	return d.prefix + "session:" + id
}

func (d *Driver) indexKey() string {
	return d.prefix + "sessions"
}

// Load implements storage.Store.
func (d *Driver) Load(ctx context.Context, id string) ([]llm.Message, error) {
	rec, err := d.get(ctx, storage.SanitizeID(id))
	if errors.Is(err, goredis.Nil) {
		return []llm.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Messages, nil
}

func (d *Driver) get(ctx context.Context, safe string) (*record, error) {
	raw, err := d.client.Get(ctx, d.sessionKey(safe)).Bytes()
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", safe, err)
	}
	if rec.Messages == nil {
		rec.Messages = []llm.Message{}
	}
	return &rec, nil
}

// Save implements storage.Store.
func (d *Driver) Save(ctx context.Context, session llm.Session) error {
	safe := storage.SanitizeID(session.ID)
	rec := record{
		Model:     session.Model,
		Messages:  session.Messages,
		UpdatedAt: session.UpdatedAt,
	}
	if rec.Messages == nil {
		rec.Messages = []llm.Message{}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, d.sessionKey(safe), raw, 0)
		pipe.ZAdd(ctx, d.indexKey(), goredis.Z{Score: float64(rec.UpdatedAt.UnixMilli()), Member: safe})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete implements storage.Store.
func (d *Driver) Delete(ctx context.Context, id string) error {
	safe := storage.SanitizeID(id)

	var deleted *goredis.IntCmd
	_, err := d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, d.sessionKey(safe))
		pipe.ZRem(ctx, d.indexKey(), safe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted.Val() == 0 {
		return storage.ErrNotFound{ID: safe}
	}
	return nil
}

// List implements storage.Store.
func (d *Driver) List(ctx context.Context) ([]llm.SessionMeta, error) {
	ids, err := d.client.ZRevRange(ctx, d.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	metas := make([]llm.SessionMeta, 0, len(ids))
	for _, id := range ids {
		rec, err := d.get(ctx, id)
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		metas = append(metas, storage.Meta(id, rec.Model, rec.Messages, rec.UpdatedAt))
	}
	return metas, nil
}

// Close implements storage.Store.
func (d *Driver) Close() error {
	return d.client.Close()
}
