package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
	migrations "github.com/greenlight-dev/greenlight/internal/infra/storage/migrations"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.MessageStore using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ domain.MessageStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite message store
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", config.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=30000&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:   db,
		path: config.Path,
	}

	runner := migrations.NewMigrationRunner(db, "sqlite")
	if _, err := runner.ApplyMigrations(context.Background(), migrations.GetSQLiteMigrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return store, nil
}

// AddMessage appends an inbound message; a duplicate ID leaves the
// existing row untouched
func (s *SQLiteStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	return s.insert(ctx, domain.StoredFromInbound(msg))
}

// AddShareMessage appends a share payload with the same idempotency contract
func (s *SQLiteStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	return s.insert(ctx, domain.StoredFromShare(msg))
}

func (s *SQLiteStore) insert(ctx context.Context, rec domain.StoredMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, kind, title, body, tool_name, thread_id, thread_title, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind, rec.Title, rec.Body, rec.ToolName, rec.ThreadID, rec.ThreadTitle, rec.ReceivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store message %s: %w", rec.ID, err)
	}
	return nil
}

// GetMessage returns the stored record for id
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, title, body, tool_name, thread_id, thread_title, received_at
		FROM messages WHERE id = ?
	`, id)

	rec, err := scanStoredMessage(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	return rec, nil
}

// ListMessages returns up to limit records, newest first
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int) ([]domain.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, title, body, tool_name, thread_id, thread_title, received_at
		FROM messages
		ORDER BY received_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.StoredMessage
	for rows.Next() {
		rec, err := scanStoredMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// CountMessages returns the number of stored records
func (s *SQLiteStore) CountMessages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health checks if the database is reachable and functional
func (s *SQLiteStore) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStoredMessage(row rowScanner) (*domain.StoredMessage, error) {
	var rec domain.StoredMessage
	var toolName, threadID, threadTitle sql.NullString
	var receivedAt string

	err := row.Scan(&rec.ID, &rec.Kind, &rec.Title, &rec.Body, &toolName, &threadID, &threadTitle, &receivedAt)
	if err != nil {
		return nil, err
	}

	if toolName.Valid {
		rec.ToolName = &toolName.String
	}
	if threadID.Valid {
		rec.ThreadID = &threadID.String
	}
	if threadTitle.Valid {
		rec.ThreadTitle = &threadTitle.String
	}
	if ts, err := time.Parse(time.RFC3339Nano, receivedAt); err == nil {
		rec.ReceivedAt = ts
	}

	return &rec, nil
}
