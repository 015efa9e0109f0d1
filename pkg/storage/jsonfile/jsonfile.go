// Package jsonfile is a storage.Store writing one JSON document per session.
//
// Each session lives in <dir>/<id>.json as a pretty-printed array of messages,
// so the files stay readable and editable by hand.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const ext = ".json"

// Driver stores sessions as files in a directory.
type Driver struct {
	dir    string
	logger *zap.Logger
}

// NewDriver creates a file store rooted at dir. The directory is created on
// first write.
func NewDriver(dir string, logger *zap.Logger) *Driver {
	return &Driver{dir: dir, logger: logger}
}

func (d *Driver) path(id string) string {
	return filepath.Join(d.dir, storage.SanitizeID(id)+ext)
}

// Load implements storage.Store. A file that cannot be parsed is an error.
func (d *Driver) Load(_ context.Context, id string) ([]llm.Message, error) {
	messages, err := readMessages(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return []llm.Message{}, nil
	}
	return messages, err
}

// Save implements storage.Store. The file is replaced atomically so readers
// never observe a partial document.
func (d *Driver) Save(_ context.Context, session llm.Session) error {
	messages := session.Messages
	if messages == nil {
		messages = []llm.Message{}
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	target := d.path(session.ID)
	tmp, err := os.CreateTemp(d.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	if !session.UpdatedAt.IsZero() {
		if err := os.Chtimes(target, session.UpdatedAt, session.UpdatedAt); err != nil {
			return fmt.Errorf("stamp session file: %w", err)
		}
	}
	return nil
}

// Delete implements storage.Store.
func (d *Driver) Delete(_ context.Context, id string) error {
	err := os.Remove(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound{ID: storage.SanitizeID(id)}
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List implements storage.Store. Unreadable files are skipped with a warning.
func (d *Driver) List(_ context.Context) ([]llm.SessionMeta, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []llm.SessionMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	metas := make([]llm.SessionMeta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(d.dir, name)
		messages, err := readMessages(path)
		if err != nil {
			d.logger.Warn("skipping unreadable session file", zap.String("path", path), zap.Error(err))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		metas = append(metas, storage.Meta(strings.TrimSuffix(name, ext), "", messages, info.ModTime()))
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

func readMessages(path string) ([]llm.Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var messages []llm.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if messages == nil {
		messages = []llm.Message{}
	}
	return messages, nil
}
