package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
)

// HistoryStorage persists each user's notification history as a JSON array
// under notifications_{userId}, the same key shape the mobile client uses for
// its local storage. It implements history.Storage.
type HistoryStorage struct {
	client *Client
	logger *zap.Logger
}

// NewHistoryStorage creates a history storage backend.
func NewHistoryStorage(client *Client, logger *zap.Logger) *HistoryStorage {
	return &HistoryStorage{client: client, logger: logger}
}

func historyKey(userID string) string {
	return "notifications_" + userID
}

// Load reads the user's stored records. A user with no stored history yields
// (nil, nil).
func (s *HistoryStorage) Load(ctx context.Context, userID string) ([]history.Record, error) {
	val, err := s.client.rdb.Get(ctx, historyKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var records []history.Record
	if err := json.Unmarshal([]byte(val), &records); err != nil {
		return nil, fmt.Errorf("decoding stored history: %w", err)
	}
	return records, nil
}

// Save replaces the user's stored records. History has no expiry; it is
// bounded by the store's retention cap instead.
func (s *HistoryStorage) Save(ctx context.Context, userID string, records []history.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := s.client.rdb.Set(ctx, historyKey(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Clear deletes the user's stored records.
func (s *HistoryStorage) Clear(ctx context.Context, userID string) error {
	if err := s.client.rdb.Del(ctx, historyKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
