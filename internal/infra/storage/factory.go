package storage

import (
	"fmt"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// NewMessageStore creates a message store backed by the configured backend
func NewMessageStore(config StorageConfig) (domain.MessageStore, error) {
	switch config.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(config.SQLite)
	case "postgres":
		return NewPostgresStore(config.Postgres)
	case "redis":
		return NewRedisStore(config.Redis)
	case "jsonl":
		return NewJsonlStore(config.Jsonl)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
