package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/concierge/internal/domain"
	"github.com/soyeahso/concierge/internal/logging"
)

// RedisSessionStore keeps one JSON document per user under
// prefix+"user:"+userID and a sorted-set index of user ids, scored by last
// update, under prefix+"index". The two live in separate namespaces so no
// user id can land on the index key.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logging.Logger
}

// RedisOptions configures NewRedisSessionStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // 0 keeps sessions forever
}

// NewRedisSessionStore connects to Redis and verifies the connection.
func NewRedisSessionStore(ctx context.Context, opts RedisOptions, log *logging.Logger) (*RedisSessionStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisSessionStoreFromClient(client, opts.Prefix, opts.TTL, log), nil
}

// NewRedisSessionStoreFromClient wraps an existing client.
func NewRedisSessionStoreFromClient(client *redis.Client, prefix string, ttl time.Duration, log *logging.Logger) *RedisSessionStore {
	if prefix == "" {
		prefix = "concierge:session:"
	}
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl, log: log.Sub("store")}
}

func (r *RedisSessionStore) key(userID string) string { return r.prefix + "user:" + userID }

func (r *RedisSessionStore) indexKey() string { return r.prefix + "index" }

// Load returns the stored session, or a fresh one if the key is missing or
// unreadable.
func (r *RedisSessionStore) Load(ctx context.Context, userID string) *domain.Session {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("userId", userID).Msg("failed to load session")
		}
		return domain.NewSession(userID)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		r.log.Warn().Err(err).Str("userId", userID).Msg("discarding unreadable session")
		return domain.NewSession(userID)
	}
	sess.UserID = userID
	return &sess
}

// Save overwrites the session document and refreshes its index entry.
func (r *RedisSessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(sess.UserID), data, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{
		Score:  float64(sess.LastUpdated.UnixMilli()),
		Member: sess.UserID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving session %s: %w", sess.UserID, err)
	}
	return nil
}

// List returns user ids most recent first. Ids whose document has expired
// are dropped from the index as they are found.
func (r *RedisSessionStore) List(ctx context.Context) []string {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to list sessions")
		return nil
	}
	if r.ttl == 0 || len(ids) == 0 {
		return ids
	}

	live := ids[:0]
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.key(id)).Result()
		if err == nil && n == 0 {
			r.client.ZRem(ctx, r.indexKey(), id)
			continue
		}
		live = append(live, id)
	}
	return live
}

// Close releases the Redis connection pool.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}
