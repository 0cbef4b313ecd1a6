package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists snapshots in Redis, one key per subject. Intended for
// multi-instance deployments where every instance should see the same last
// known snapshot.
type RedisStore struct {
	client *redis.Client
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedis(cfg RedisConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func key(subjectID string) string {
	return "snapshot:" + subjectID
}

func (s *RedisStore) Load(ctx context.Context, subjectID string) (*Row, error) {
	val, err := s.client.Get(ctx, key(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var row Row
	if err := json.Unmarshal(val, &row); err != nil {
		return nil, fmt.Errorf("decode snapshot row: %w", err)
	}
	return &row, nil
}

// Upsert is a plain SET with a read-before-write guard so a delayed writer
// cannot clobber a newer snapshot. Keys carry no Redis TTL: staleness is the
// coordinator's policy, and an expired row is still wanted for degradation.
func (s *RedisStore) Upsert(ctx context.Context, row Row) error {
	existing, err := s.Load(ctx, row.SubjectID)
	if err != nil {
		return err
	}
	if existing != nil && existing.FetchedAt.After(row.FetchedAt) {
		return nil
	}

	val, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode snapshot row: %w", err)
	}
	return s.client.Set(ctx, key(row.SubjectID), val, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
