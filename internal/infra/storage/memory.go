package storage

import (
	"context"
	"sync"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// MemoryStore implements domain.MessageStore without persistence.
// This keeps the coordinator usable when no storage backend is configured.
type MemoryStore struct {
	messages map[string]domain.StoredMessage
	order    []string
	mutex    sync.RWMutex
}

var _ domain.MessageStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory message store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string]domain.StoredMessage),
	}
}

// AddMessage stores an inbound message, skipping IDs already present
func (m *MemoryStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	return m.insert(domain.StoredFromInbound(msg))
}

// AddShareMessage stores a share payload with the same idempotency contract
func (m *MemoryStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	return m.insert(domain.StoredFromShare(msg))
}

func (m *MemoryStore) insert(rec domain.StoredMessage) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.messages[rec.ID]; exists {
		return nil
	}

	m.messages[rec.ID] = rec
	m.order = append(m.order, rec.ID)
	return nil
}

// GetMessage returns the stored record for id
func (m *MemoryStore) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rec, exists := m.messages[id]
	if !exists {
		return nil, domain.ErrMessageNotFound
	}

	return &rec, nil
}

// ListMessages returns up to limit records, newest first
func (m *MemoryStore) ListMessages(ctx context.Context, limit int) ([]domain.StoredMessage, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]domain.StoredMessage, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[m.order[i]])
	}

	return out, nil
}

// CountMessages returns the number of stored records
func (m *MemoryStore) CountMessages(ctx context.Context) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.order), nil
}

// Close is a no-op for in-memory storage
func (m *MemoryStore) Close() error {
	return nil
}

// Health always succeeds for in-memory storage
func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}
