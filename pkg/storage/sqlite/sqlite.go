// Package sqlite is a storage.Store backed by a SQLite database.
package sqlite

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	sessionsTable = "sessions"

	columnID           = "id"
	columnTitle        = "title"
	columnModel        = "model"
	columnMessages     = "messages"
	columnMessageCount = "message_count"
	columnUpdatedAt    = "updated_at"
)

// Driver stores sessions in one table, one row per session. Statements are
// built with ent's SQLite dialect builder.
type Driver struct {
	drv *entsql.Driver
}

// NewDriver opens (and if needed creates) the database at path. Use ":memory:"
// for a throwaway database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	drv, err := entsql.Open(dialect.SQLite, path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	drv.DB().SetMaxOpenConns(1)

	d := &Driver{drv: drv}
	if err := d.migrate(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return d, nil
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (d *Driver) migrate(ctx context.Context) error {
	table, args := builder().CreateTable(sessionsTable).
		IfNotExists().
		Columns(
			entsql.Column(columnID).Type("TEXT").Attr("PRIMARY KEY"),
			entsql.Column(columnTitle).Type("TEXT").Attr("NOT NULL"),
			entsql.Column(columnModel).Type("TEXT").Attr("NOT NULL DEFAULT ''"),
			entsql.Column(columnMessages).Type("TEXT").Attr("NOT NULL"),
			entsql.Column(columnMessageCount).Type("INTEGER").Attr("NOT NULL DEFAULT 0"),
			entsql.Column(columnUpdatedAt).Type("INTEGER").Attr("NOT NULL"),
		).
		Query()
	if err := d.drv.Exec(ctx, table, args, nil); err != nil {
		return err
	}

	index, args := builder().CreateIndex("idx_sessions_updated_at").
		IfNotExists().
		Table(sessionsTable).
		Column(columnUpdatedAt).
		Query()
	return d.drv.Exec(ctx, index, args, nil)
}

// Load implements storage.Store.
func (d *Driver) Load(ctx context.Context, id string) ([]llm.Message, error) {
	query, args := builder().Select(columnMessages).
		From(entsql.Table(sessionsTable)).
		Where(entsql.EQ(columnID, storage.SanitizeID(id))).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query session: %w", err)
		}
		return []llm.Message{}, nil
	}

	var raw string
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	var messages []llm.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if messages == nil {
		messages = []llm.Message{}
	}
	return messages, nil
}

// Save implements storage.Store.
func (d *Driver) Save(ctx context.Context, session llm.Session) error {
	messages := session.Messages
	if messages == nil {
		messages = []llm.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args := builder().Insert(sessionsTable).
		Columns(columnID, columnTitle, columnModel, columnMessages, columnMessageCount, columnUpdatedAt).
		Values(
			storage.SanitizeID(session.ID),
			llm.TitleFor(messages),
			session.Model,
			string(raw),
			len(messages),
			updatedAt.UnixMilli(),
		).
		OnConflict(
			entsql.ConflictColumns(columnID),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := d.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete implements storage.Store.
func (d *Driver) Delete(ctx context.Context, id string) error {
	safe := storage.SanitizeID(id)
	query, args := builder().Delete(sessionsTable).
		Where(entsql.EQ(columnID, safe)).
		Query()

	var res stdsql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound{ID: safe}
	}
	return nil
}

// List implements storage.Store.
func (d *Driver) List(ctx context.Context) ([]llm.SessionMeta, error) {
	query, args := builder().Select(columnID, columnTitle, columnModel, columnMessageCount, columnUpdatedAt).
		From(entsql.Table(sessionsTable)).
		OrderBy(entsql.Desc(columnUpdatedAt), columnID).
		Query()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	metas := []llm.SessionMeta{}
	for rows.Next() {
		var (
			meta      llm.SessionMeta
			updatedAt int64
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Model, &meta.MessageCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		meta.UpdatedAt = time.UnixMilli(updatedAt)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Close implements storage.Store.
func (d *Driver) Close() error {
	return d.drv.Close()
}
