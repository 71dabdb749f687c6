package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const redisKeyPrefix = "session:"

// txRetries bounds optimistic-lock retries when a WATCHed key changes under a
// field update.
const txRetries = 3

// RedisRepo stores sessions as JSON values with a TTL. Field-scoped updates
// run inside WATCH transactions so a concurrent refresh and repair on the same
// session never clobber each other's fields.
type RedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRepo verifies connectivity and returns a Redis-backed repository.
func NewRedisRepo(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisRepo, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("sessions: redis ping failed: %w", err)
	}
	return &RedisRepo{client: client, ttl: ttl}, nil
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.client.Get(ctx, redisKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessions: get %q: %w", sessionID, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("sessions: decode %q: %w", sessionID, err)
	}
	return &session, nil
}

func (r *RedisRepo) Upsert(ctx context.Context, sessionID string, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sessions: encode %q: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, redisKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("sessions: upsert %q: %w", sessionID, err)
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessions: delete %q: %w", sessionID, err)
	}
	return nil
}

func (r *RedisRepo) UpdateAccessToken(ctx context.Context, sessionID, accessToken string) error {
	return r.updateField(ctx, sessionID, func(session *Session) error {
		if session.Auth == nil {
			return ErrNotFound
		}
		session.Auth.AccessToken = accessToken
		return nil
	})
}

func (r *RedisRepo) UpdateScore(ctx context.Context, sessionID string, points, rank int) error {
	return r.updateField(ctx, sessionID, func(session *Session) error {
		if session.User == nil {
			return ErrNotFound
		}
		session.User.Points = &points
		session.User.Rank = &rank
		return nil
	})
}

func (r *RedisRepo) updateField(ctx context.Context, sessionID string, mutate func(*Session) error) error {
	key := redisKey(sessionID)

	apply := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			return err
		}
		if err := mutate(&session); err != nil {
			return err
		}

		payload, err := json.Marshal(&session)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = r.client.Watch(ctx, apply, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("sessions: update %q: %w", sessionID, err)
	}
	return err
}
