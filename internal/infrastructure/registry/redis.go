package registry

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// NewRedisClient constructs a go-redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, log logging.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "redis unreachable")
	}

	log.Info("connected to redis", logging.String("addr", cfg.Addr))
	return client, nil
}

// RedisSnapshotStore shares whole entity snapshots between instances through
// Redis.  Values are JSON; TTLs carry ±10% jitter so a fleet of instances
// does not stampede the registry when a popular project expires.
type RedisSnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisSnapshotStore constructs a RedisSnapshotStore.
func NewRedisSnapshotStore(client *redis.Client, cfg config.RedisConfig, log logging.Logger) *RedisSnapshotStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RedisSnapshotStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.DefaultTTL,
		logger: log,
	}
}

func (s *RedisSnapshotStore) key(projectID string) string {
	return s.prefix + "snapshot:" + projectID
}

func (s *RedisSnapshotStore) jitterTTL() time.Duration {
	jitter := float64(s.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return s.ttl + time.Duration(jitter)
}

// GetSnapshot returns the cached entity list, with found=false on a miss.
func (s *RedisSnapshotStore) GetSnapshot(ctx context.Context, projectID string) ([]story.Entity, bool, error) {
	data, err := s.client.Get(ctx, s.key(projectID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "shared snapshot read failed")
	}

	var entities []story.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		// A corrupt value is treated as a miss and evicted.
		s.logger.Warn("evicting undecodable shared snapshot",
			logging.String("project_id", projectID), logging.Err(err))
		_ = s.client.Del(ctx, s.key(projectID)).Err()
		return nil, false, nil
	}
	return entities, true, nil
}

// SetSnapshot stores the entity list under the project key with jittered TTL.
func (s *RedisSnapshotStore) SetSnapshot(ctx context.Context, projectID string, entities []story.Entity) error {
	data, err := json.Marshal(entities)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to serialize snapshot")
	}
	if err := s.client.Set(ctx, s.key(projectID), data, s.jitterTTL()).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "shared snapshot write failed")
	}
	return nil
}

// DeleteSnapshot drops the project's shared snapshot.
func (s *RedisSnapshotStore) DeleteSnapshot(ctx context.Context, projectID string) error {
	if err := s.client.Del(ctx, s.key(projectID)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "shared snapshot delete failed")
	}
	return nil
}
