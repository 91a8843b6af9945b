package sessioninfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

// Schema is the DDL the postgres store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
    id           TEXT PRIMARY KEY,
    instructions TEXT NOT NULL,
    version      BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id         BIGSERIAL PRIMARY KEY,
    chat_id    TEXT NOT NULL REFERENCES chat_sessions(id),
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_created
    ON chat_messages (chat_id, created_at, id);
`

// PostgresStore persists sessions in PostgreSQL. The compare-and-swap append
// is an UPDATE guarded by the version column inside a transaction.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a postgres-backed store.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	logx.Info("PostgreSQL session store initialized")
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, sess *session.Session) error {
	query := `
        INSERT INTO chat_sessions (id, instructions, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `

	logx.WithField("chat_id", sess.ID).Debug("Creating session")

	if _, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.Instructions,
		sess.Version,
		sess.CreatedAt,
		sess.UpdatedAt,
	); err != nil {
		// The primary key arbitrates duplicates, racing creates included.
		if isUniqueViolation(err) {
			return session.ErrSessionExists(sess.ID)
		}
		logx.WithError(err).Error("Failed to create session")
		return session.ErrStoreUnavailable(err)
	}

	logx.WithField("chat_id", sess.ID).Info("Session created")
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id session.ChatID) (*session.Session, error) {
	var sess session.Session
	err := sqlx.GetContext(ctx, s.db, &sess,
		`SELECT * FROM chat_sessions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, session.ErrSessionNotFound(id)
	}
	if err != nil {
		logx.WithError(err).Error("Failed to get session")
		return nil, session.ErrStoreUnavailable(err)
	}
	return &sess, nil
}

func (s *PostgresStore) GetWithMessages(ctx context.Context, id session.ChatID) (*session.SessionWithMessages, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var messages []session.Message
	err = sqlx.SelectContext(ctx, s.db, &messages,
		`SELECT * FROM chat_messages WHERE chat_id = $1 ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		logx.WithError(err).Error("Failed to get session messages")
		return nil, session.ErrStoreUnavailable(err)
	}

	return &session.SessionWithMessages{
		Session:  *sess,
		Messages: messages,
	}, nil
}

func (s *PostgresStore) Append(ctx context.Context, id session.ChatID, expectedVersion int64, msgs []session.Message) (*session.Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
        UPDATE chat_sessions
        SET version = version + $1, updated_at = $2
        WHERE id = $3 AND version = $4
    `, len(msgs), now, id, expectedVersion)
	if err != nil {
		logx.WithError(err).Error("Failed to bump session version")
		return nil, session.ErrStoreUnavailable(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}
	if affected == 0 {
		// Distinguish a missing session from a lost compare-and-swap.
		var exists bool
		if err := tx.QueryRowxContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM chat_sessions WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return nil, session.ErrStoreUnavailable(err)
		}
		if !exists {
			return nil, session.ErrSessionNotFound(id)
		}
		return nil, session.ErrVersionConflict(id, expectedVersion)
	}

	// Clamp timestamps against the last stored message.
	var floor sql.NullTime
	if err := tx.QueryRowxContext(ctx,
		`SELECT MAX(created_at) FROM chat_messages WHERE chat_id = $1`, id,
	).Scan(&floor); err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}

	prev := time.Time{}
	if floor.Valid {
		prev = floor.Time
	}

	for _, m := range msgs {
		at := m.CreatedAt
		if at.Before(prev) {
			at = prev
		}
		prev = at

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO chat_messages (chat_id, role, content, created_at)
            VALUES ($1, $2, $3, $4)
        `, id, m.Role, m.Content, at); err != nil {
			logx.WithError(err).Error("Failed to append message")
			return nil, session.ErrStoreUnavailable(err)
		}
	}

	var sess session.Session
	if err := sqlx.GetContext(ctx, tx, &sess,
		`SELECT * FROM chat_sessions WHERE id = $1`, id); err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, session.ErrStoreUnavailable(err)
	}

	logx.WithFields(logx.Fields{
		"chat_id":  id,
		"appended": len(msgs),
		"version":  sess.Version,
	}).Debug("Messages appended")

	return &sess, nil
}

func (s *PostgresStore) QueryAsOf(ctx context.Context, id session.ChatID, bound time.Time) ([]session.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	var messages []session.Message
	err := sqlx.SelectContext(ctx, s.db, &messages, `
        SELECT * FROM chat_messages
        WHERE chat_id = $1 AND created_at <= $2
        ORDER BY created_at ASC, id ASC
    `, id, bound)
	if err != nil {
		logx.WithError(err).Error("Failed to query messages")
		return nil, session.ErrStoreUnavailable(err)
	}
	return messages, nil
}

func (s *PostgresStore) CountMessages(ctx context.Context, id session.ChatID) (int, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE chat_id = $1`, id,
	).Scan(&count)
	if err != nil {
		return 0, session.ErrStoreUnavailable(err)
	}
	return count, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
