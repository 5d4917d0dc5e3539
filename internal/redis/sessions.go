package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long a session stays valid without a fresh login.
const DefaultSessionTTL = 24 * time.Hour

// ErrSessionNotFound indicates the session token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the identity stored at login time and resolved on every
// authenticated request.
type Session struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// SessionStore resolves session tokens from the session_token cookie into the
// owning user.
type SessionStore struct {
	client *Client
	logger *zap.Logger
}

// NewSessionStore creates a session store.
func NewSessionStore(client *Client, logger *zap.Logger) *SessionStore {
	return &SessionStore{client: client, logger: logger}
}

func sessionKey(token string) string {
	return "session:" + token
}

// Get resolves a session token. Unknown or expired tokens return
// ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, token string) (*Session, error) {
	val, err := s.client.rdb.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		s.logger.Error("failed to unmarshal session", zap.Error(err))
		return nil, fmt.Errorf("invalid stored session: %w", err)
	}
	return &sess, nil
}

// Put stores a session under the token for the given lifetime.
func (s *SessionStore) Put(ctx context.Context, token string, sess Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.client.rdb.Set(ctx, sessionKey(token), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete invalidates a session token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
