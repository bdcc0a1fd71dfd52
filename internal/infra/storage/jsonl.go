package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// JsonlStore implements domain.MessageStore as a single append-only JSONL
// file. The full set of stored IDs is loaded at open so duplicate appends
// can be skipped without rescanning the file.
type JsonlStore struct {
	path string

	mu    sync.RWMutex
	seen  map[string]struct{}
	count int
}

var _ domain.MessageStore = (*JsonlStore)(nil)

// NewJsonlStore creates a new JSONL message store
func NewJsonlStore(config JsonlConfig) (*JsonlStore, error) {
	path := config.Path
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create messages directory: %w", err)
	}

	store := &JsonlStore{
		path: path,
		seen: make(map[string]struct{}),
	}

	if err := store.loadIndex(); err != nil {
		return nil, err
	}

	return store, nil
}

// loadIndex reads the existing file and records which IDs are present
func (s *JsonlStore) loadIndex() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open messages file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec domain.StoredMessage
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if _, dup := s.seen[rec.ID]; !dup {
			s.seen[rec.ID] = struct{}{}
			s.count++
		}
	}

	return scanner.Err()
}

// AddMessage appends an inbound message unless its ID is already present
func (s *JsonlStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	return s.insert(ctx, domain.StoredFromInbound(msg))
}

// AddShareMessage appends a share payload with the same idempotency contract
func (s *JsonlStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	return s.insert(ctx, domain.StoredFromShare(msg))
}

func (s *JsonlStore) insert(_ context.Context, rec domain.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[rec.ID]; dup {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open messages file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append message %s: %w", rec.ID, err)
	}

	s.seen[rec.ID] = struct{}{}
	s.count++
	return nil
}

// GetMessage returns the stored record for id
func (s *JsonlStore) GetMessage(_ context.Context, id string) (*domain.StoredMessage, error) {
	s.mu.RLock()
	_, ok := s.seen[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrMessageNotFound
	}

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}

	return nil, domain.ErrMessageNotFound
}

// ListMessages returns up to limit records, newest first
func (s *JsonlStore) ListMessages(_ context.Context, limit int) ([]domain.StoredMessage, error) {
	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	// File order is append order; newest last.
	out := make([]domain.StoredMessage, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}

	return out, nil
}

// CountMessages returns the number of stored records
func (s *JsonlStore) CountMessages(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func (s *JsonlStore) readAll() ([]domain.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open messages file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var records []domain.StoredMessage
	dedup := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec domain.StoredMessage
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if _, dup := dedup[rec.ID]; dup {
			continue
		}
		dedup[rec.ID] = struct{}{}
		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	return records, nil
}

// Close is a no-op; the file is opened per append
func (s *JsonlStore) Close() error {
	return nil
}

// Health verifies the messages file location is writable
func (s *JsonlStore) Health(_ context.Context) error {
	dir := filepath.Dir(s.path)
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("messages directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
