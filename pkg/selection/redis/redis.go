package redis

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements selection.Store using one Redis set per user,
// stored under "selection:user:{user}".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new RedisStore.
func New(client redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, prefix: consts.RedisSelectionPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(user string) string {
	return s.prefix + user
}

// Replace swaps the user's set inside MULTI/EXEC.
func (s *RedisStore) Replace(ctx context.Context, user string, ids []string) error {
	key := s.key(user)
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace selection: %w", err)
	}
	s.logger.Debug("selection stored", zap.String("key", key), zap.Int("documents", len(ids)))
	return nil
}

// Load returns the members of the user's set.
func (s *RedisStore) Load(ctx context.Context, user string) ([]string, error) {
	return s.client.SMembers(ctx, s.key(user)).Result()
}

// Clear deletes the user's set.
func (s *RedisStore) Clear(ctx context.Context, user string) error {
	if err := s.client.Del(ctx, s.key(user)).Err(); err != nil {
		return err
	}
	s.logger.Debug("selection cleared", zap.String("key", s.key(user)))
	return nil
}

// Forget removes documentID from every selection set.
func (s *RedisStore) Forget(ctx context.Context, documentID string) error {
	var touched int64
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.SRem(ctx, iter.Val(), documentID).Result()
		if err != nil {
			return fmt.Errorf("failed to remove %s from %s: %w", documentID, iter.Val(), err)
		}
		touched += n
	}
	if err := iter.Err(); err != nil {
		return err
	}
	s.logger.Debug("document forgotten", zap.String("document_id", documentID), zap.Int64("selections", touched))
	return nil
}

// Close closes the client.
func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}
