package sessioninfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

const redisKeyPrefix = "chat:"

// redisRecord is the stored value: session metadata plus full history in one
// key, so WATCH covers both.
type redisRecord struct {
	Session  session.Session   `json:"session"`
	Messages []session.Message `json:"messages"`
	NextID   int64             `json:"next_id"`
}

// RedisStore persists sessions in Redis. The compare-and-swap append uses
// WATCH/MULTI optimistic locking: a concurrent write to the key aborts the
// transaction, which is reported as a version conflict.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	logx.Info("Redis session store initialized")
	return &RedisStore{client: client}
}

func redisKey(id session.ChatID) string {
	return redisKeyPrefix + string(id)
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, id session.ChatID) (*redisRecord, error) {
	data, err := c.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound(id)
	}
	if err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}
	return &rec, nil
}

func (s *RedisStore) Create(ctx context.Context, sess *session.Session) error {
	rec := redisRecord{Session: *sess}
	data, err := json.Marshal(&rec)
	if err != nil {
		return session.ErrStoreUnavailable(err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(sess.ID), data, 0).Result()
	if err != nil {
		logx.WithError(err).Error("Failed to create session")
		return session.ErrStoreUnavailable(err)
	}
	if !ok {
		return session.ErrSessionExists(sess.ID)
	}

	logx.WithField("chat_id", sess.ID).Info("Session created")
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id session.ChatID) (*session.Session, error) {
	rec, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	sess := rec.Session
	return &sess, nil
}

func (s *RedisStore) GetWithMessages(ctx context.Context, id session.ChatID) (*session.SessionWithMessages, error) {
	rec, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	return &session.SessionWithMessages{
		Session:  rec.Session,
		Messages: rec.Messages,
	}, nil
}

func (s *RedisStore) Append(ctx context.Context, id session.ChatID, expectedVersion int64, msgs []session.Message) (*session.Session, error) {
	var updated session.Session

	txn := func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		if rec.Session.Version != expectedVersion {
			return session.ErrVersionConflict(id, expectedVersion)
		}

		floor := time.Time{}
		if n := len(rec.Messages); n > 0 {
			floor = rec.Messages[n-1].CreatedAt
		}

		var last time.Time
		for _, m := range msgs {
			if m.CreatedAt.Before(floor) {
				m.CreatedAt = floor
			}
			floor = m.CreatedAt
			last = m.CreatedAt

			rec.NextID++
			m.ID = rec.NextID
			m.ChatID = id
			rec.Messages = append(rec.Messages, m)
		}

		rec.Session.Version += int64(len(msgs))
		if last.After(rec.Session.UpdatedAt) {
			rec.Session.UpdatedAt = last
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return session.ErrStoreUnavailable(err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey(id), data, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = rec.Session
		return nil
	}

	err := s.client.Watch(ctx, txn, redisKey(id))
	if errors.Is(err, redis.TxFailedErr) {
		// Key changed between WATCH and EXEC: same meaning as a version
		// mismatch read inside the transaction.
		return nil, session.ErrVersionConflict(id, expectedVersion)
	}
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"chat_id":  id,
		"appended": len(msgs),
		"version":  updated.Version,
	}).Debug("Messages appended")

	return &updated, nil
}

func (s *RedisStore) QueryAsOf(ctx context.Context, id session.ChatID, bound time.Time) ([]session.Message, error) {
	rec, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}

	out := make([]session.Message, 0, len(rec.Messages))
	for _, m := range rec.Messages {
		if m.CreatedAt.After(bound) {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) CountMessages(ctx context.Context, id session.ChatID) (int, error) {
	rec, err := s.load(ctx, s.client, id)
	if err != nil {
		return 0, err
	}
	return len(rec.Messages), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
