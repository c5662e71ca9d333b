package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sagehq/sage/pkg/models"
)

// FileStore persists sessions to a directory per session under its root:
//
//	<root>/<session-id>/metadata.json
//	<root>/<session-id>/messages.jsonl
//
// messages.jsonl is append-only, one JSON-encoded message per line, fsynced
// after every append. metadata.json is replaced with a temp-file-then-rename
// so a crash mid-write never leaves a torn file behind.
type FileStore struct {
	mu   sync.Mutex
	root string
}

// NewFileStore creates a file-backed session store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("sessions: root directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessions: create root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FileStore) metadataPath(id string) string {
	return filepath.Join(s.sessionDir(id), "metadata.json")
}

func (s *FileStore) messagesPath(id string) string {
	return filepath.Join(s.sessionDir(id), "messages.jsonl")
}

func (s *FileStore) writeMetadata(session *models.Session) error {
	if err := os.MkdirAll(s.sessionDir(session.ID), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	path := s.metadataPath(session.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) readMetadata(id string) (*models.Session, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("sessions: decode metadata: %w", err)
	}
	return &session, nil
}

func (s *FileStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = session.CreatedAt
	if err := s.writeMetadata(session); err != nil {
		return err
	}
	// Touch messages.jsonl so GetHistory on a fresh session doesn't need a
	// special-case for "file absent".
	f, err := os.OpenFile(s.messagesPath(session.ID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMetadata(id)
}

func (s *FileStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readMetadata(session.ID)
	if err != nil {
		return err
	}
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = time.Now()
	return s.writeMetadata(session)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readMetadata(id); err != nil {
		return err
	}
	return os.RemoveAll(s.sessionDir(id))
}

func (s *FileStore) listIDsLocked() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (s *FileStore) List(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.listIDsLocked()
	if err != nil {
		return nil, err
	}

	var out []*models.Session
	for _, id := range ids {
		session, err := s.readMetadata(id)
		if err != nil {
			continue
		}
		out = append(out, session)
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start > len(out) {
		return []*models.Session{}, nil
	}
	return out[start:end], nil
}

func (s *FileStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readMetadata(sessionID); err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.messagesPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReplaceHistory atomically rewrites a session's message log, used by
// compaction to collapse old messages into a summary. Like metadata writes,
// it goes through a temp file and rename so a crash mid-write can't leave a
// torn messages.jsonl behind.
func (s *FileStore) ReplaceHistory(ctx context.Context, sessionID string, messages []*models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readMetadata(sessionID); err != nil {
		return err
	}

	path := s.messagesPath(sessionID)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		line, err := json.Marshal(msg)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.messagesPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Message{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var messages []*models.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg models.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, fmt.Errorf("sessions: decode message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}
