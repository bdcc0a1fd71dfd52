package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
	migrations "github.com/greenlight-dev/greenlight/internal/infra/storage/migrations"
	_ "github.com/lib/pq"
)

// PostgresStore implements domain.MessageStore using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ domain.MessageStore = (*PostgresStore)(nil)

func postgresDSN(config PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)
}

// NewPostgresStore creates a new PostgreSQL message store
func NewPostgresStore(config PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresDSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL at %s:%d: %w", config.Host, config.Port, err)
	}

	store := &PostgresStore{db: db}

	runner := migrations.NewMigrationRunner(db, "postgres")
	if _, err := runner.ApplyMigrations(ctx, migrations.GetPostgresMigrations()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return store, nil
}

// AddMessage appends an inbound message; a duplicate ID leaves the
// existing row untouched
func (s *PostgresStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	return s.insert(ctx, domain.StoredFromInbound(msg))
}

// AddShareMessage appends a share payload with the same idempotency contract
func (s *PostgresStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	return s.insert(ctx, domain.StoredFromShare(msg))
}

func (s *PostgresStore) insert(ctx context.Context, rec domain.StoredMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, kind, title, body, tool_name, thread_id, thread_title, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Kind, rec.Title, rec.Body, rec.ToolName, rec.ThreadID, rec.ThreadTitle, rec.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store message %s: %w", rec.ID, err)
	}
	return nil
}

// GetMessage returns the stored record for id
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, title, body, tool_name, thread_id, thread_title, received_at
		FROM messages WHERE id = $1
	`, id)

	var rec domain.StoredMessage
	var toolName, threadID, threadTitle sql.NullString
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Title, &rec.Body, &toolName, &threadID, &threadTitle, &rec.ReceivedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
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

	return &rec, nil
}

// ListMessages returns up to limit records, newest first
func (s *PostgresStore) ListMessages(ctx context.Context, limit int) ([]domain.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, title, body, tool_name, thread_id, thread_title, received_at
		FROM messages
		ORDER BY received_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []domain.StoredMessage
	for rows.Next() {
		var rec domain.StoredMessage
		var toolName, threadID, threadTitle sql.NullString

		err := rows.Scan(&rec.ID, &rec.Kind, &rec.Title, &rec.Body, &toolName, &threadID, &threadTitle, &rec.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
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

		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountMessages returns the number of stored records
func (s *PostgresStore) CountMessages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health checks if the database is reachable and functional
func (s *PostgresStore) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
