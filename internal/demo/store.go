package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession indicates the user has no active demo session.
var ErrNoSession = errors.New("no demo session")

// Store persists demo sessions in Redis with a TTL so abandoned runs
// clean themselves up.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Redis-backed demo session store.
func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client, prefix: "demo:"}, nil
}

// NewStoreWithClient creates a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "demo:"}
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

// Save writes the session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal demo session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save demo session: %w", err)
	}
	return nil
}

// Load reads the session for a user, or ErrNoSession.
func (s *Store) Load(ctx context.Context, userID string) (*session, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load demo session: %w", err)
	}

	var sess session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal demo session: %w", err)
	}
	return &sess, nil
}

// Delete removes the session for a user.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete demo session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
