// Package chatstore persists conversations as one JSON file per chat.
// Saves replace the whole file atomically; a per-chat advisory lock
// serializes concurrent writers on the same conversation.
package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/procureflow/procureflow/internal/log"
	"github.com/procureflow/procureflow/internal/message"
)

// ErrNotFound is returned when no chat exists for the given id.
var ErrNotFound = errors.New("chat not found")

// ErrInvalidID is returned for ids that could escape the data
// directory or collide with lock files.
var ErrInvalidID = errors.New("invalid chat id")

// Store reads and writes chat files under a single directory.
type Store struct {
	dir    string
	logger log.Logger
	newID  func() string
}

// New builds a store rooted at dir, creating it if needed.
func New(dir string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chat dir: %w", err)
	}
	return &Store{dir: dir, logger: logger, newID: uuid.NewString}, nil
}

// Create allocates a new chat id and writes an empty conversation.
func (s *Store) Create(ctx context.Context) (string, error) {
	id := s.newID()
	if err := s.Save(ctx, id, nil); err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "chat created", "chat_id", id)
	return id, nil
}

// Load reads the full message history of a chat.
func (s *Store) Load(ctx context.Context, id string) ([]message.Message, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading chat %s: %w", id, err)
	}

	var msgs []message.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decoding chat %s: %w", id, err)
	}
	return msgs, nil
}

// Save overwrites the chat file with the full message list. There is
// no partial update: callers pass the complete history every time.
func (s *Store) Save(ctx context.Context, id string, msgs []message.Message) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []message.Message{}
	}

	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encoding chat %s: %w", id, err)
	}

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing chat %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing chat %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a chat file is present for the id.
func (s *Store) Exists(id string) bool {
	path, err := s.path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns all chat ids in the store, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Info is a chat summary for listings.
type Info struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListInfo returns chat summaries, most recently updated first.
func (s *Store) ListInfo(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{ID: strings.TrimSuffix(name, ".json"), UpdatedAt: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// path validates the id and returns the chat file path. Ids are
// restricted to a filename-safe alphabet so no id can traverse out
// of the data directory.
func (s *Store) path(id string) (string, error) {
	if id == "" || len(id) > 128 {
		return "", ErrInvalidID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", ErrInvalidID
		}
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// lock takes the per-chat advisory lock, honoring ctx cancellation.
func (s *Store) lock(ctx context.Context, id string) (func(), error) {
	fl := flock.New(filepath.Join(s.dir, id+".lock"))
	ok, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("locking chat %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("locking chat %s: lock unavailable", id)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("unlocking chat failed", "chat_id", id, "error", err)
		}
	}, nil
}
