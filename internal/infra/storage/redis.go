package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	domain "github.com/greenlight-dev/greenlight/internal/domain"
)

// RedisStore implements domain.MessageStore using Redis. Records live
// under message:<id> with a sorted-set index scored by receipt time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.MessageStore = (*RedisStore)(nil)

// NewRedisStore creates a new Redis message store
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		DB:       config.Database,
		Password: config.Password,
		Username: config.Username,
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	var ttl time.Duration
	if config.TTL > 0 {
		ttl = time.Duration(config.TTL) * time.Second
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) messageKey(id string) string {
	return fmt.Sprintf("message:%s", id)
}

func (s *RedisStore) indexKey() string {
	return "messages:index"
}

// AddMessage appends an inbound message. SetNX keeps the first record for
// an ID; redelivery of the same ID changes nothing.
func (s *RedisStore) AddMessage(ctx context.Context, msg domain.InboundMessage) error {
	return s.insert(ctx, domain.StoredFromInbound(msg))
}

// AddShareMessage appends a share payload with the same idempotency contract
func (s *RedisStore) AddShareMessage(ctx context.Context, msg domain.ShareMessage) error {
	return s.insert(ctx, domain.StoredFromShare(msg))
}

func (s *RedisStore) insert(ctx context.Context, rec domain.StoredMessage) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	stored, err := s.client.SetNX(ctx, s.messageKey(rec.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store message %s: %w", rec.ID, err)
	}
	if !stored {
		return nil
	}

	err = s.client.ZAddNX(ctx, s.indexKey(), &redis.Z{
		Score:  float64(rec.ReceivedAt.UnixNano()),
		Member: rec.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index message %s: %w", rec.ID, err)
	}

	return nil
}

// GetMessage returns the stored record for id
func (s *RedisStore) GetMessage(ctx context.Context, id string) (*domain.StoredMessage, error) {
	data, err := s.client.Get(ctx, s.messageKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
	}

	var rec domain.StoredMessage
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", id, err)
	}

	return &rec, nil
}

// ListMessages returns up to limit records, newest first
func (s *RedisStore) ListMessages(ctx context.Context, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read message index: %w", err)
	}

	records := make([]domain.StoredMessage, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetMessage(ctx, id)
		if err != nil {
			// An indexed record may have expired out from under the index.
			if err == domain.ErrMessageNotFound {
				continue
			}
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, nil
}

// CountMessages returns the number of indexed records
func (s *RedisStore) CountMessages(ctx context.Context) (int, error) {
	count, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Health checks if Redis is reachable
func (s *RedisStore) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
