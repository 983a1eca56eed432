package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Ledger entries are stored in Redis as JSON strings:
//
//	Key:   ledger:<actor_id>
//	Value: {"violations":[...],"suspension":{...}}
//	TTL:   refreshed on every write
const (
	// KeyPrefix is the Redis key prefix for ledger entries.
	KeyPrefix = "ledger:"

	// DefaultRedisTTL outlives the reset horizon plus a suspension, so an
	// idle actor's key disappears without an explicit prune.
	DefaultRedisTTL = 25 * time.Hour

	maxTxRetries = 8
)

// RedisStore shares ledger entries between API replicas. It implements
// Transactor with WATCH/MULTI so concurrent requests for the same actor
// cannot both read a pre-increment count.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedisStore creates a store using the provided Redis client. A
// non-positive ttl selects DefaultRedisTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, actorID string) (Entry, error) {
	data, err := s.client.Get(ctx, KeyPrefix+actorID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: redis get: %w", err)
	}
	return decodeEntry(data)
}

func (s *RedisStore) Set(ctx context.Context, actorID string, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, KeyPrefix+actorID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("ledger: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, actorID string) error {
	if err := s.client.Del(ctx, KeyPrefix+actorID).Err(); err != nil {
		return fmt.Errorf("ledger: redis del: %w", err)
	}
	return nil
}

// Update runs fn inside an optimistic transaction on the actor's key,
// retrying when another writer touched the key first. A corrupt value is
// logged and replaced.
func (s *RedisStore) Update(ctx context.Context, actorID string, fn func(*Entry) bool) error {
	key := KeyPrefix + actorID

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		entry, decodeErr := decodeEntry(data)
		if decodeErr != nil {
			s.logger.WithError(decodeErr).WithField("actor_id", actorID).
				Warn("ledger entry corrupt, starting from empty")
			entry = Entry{}
		}

		if !fn(&entry) && decodeErr == nil {
			return nil
		}

		var payload []byte
		if !entry.Empty() {
			if payload, err = encodeEntry(entry); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if payload == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, payload, s.ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("ledger: redis update: %w", err)
	}
	return fmt.Errorf("ledger: redis update %s: gave up after %d conflicting writes", actorID, maxTxRetries)
}
