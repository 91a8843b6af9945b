package session

import (
	"context"
	"time"
)

// Store is the durable session storage contract. Append is the sole mutation
// path: it compare-and-swaps on the session version, so concurrent writers
// serialize there and lost updates surface as ErrVersionConflict.
type Store interface {
	// Create stores a new session. Fails with ErrSessionExists if the id is
	// already present.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves session metadata. Fails with ErrSessionNotFound.
	Get(ctx context.Context, id ChatID) (*Session, error)

	// GetWithMessages retrieves the session and its full ordered history.
	GetWithMessages(ctx context.Context, id ChatID) (*SessionWithMessages, error)

	// Append atomically appends messages and advances the version by the
	// number of appended messages (so the version always equals the history
	// length), but only if the stored version equals expectedVersion;
	// otherwise it fails
	// with ErrVersionConflict and stores nothing. Message timestamps are
	// clamped so they never precede the last stored message. Returns the
	// updated session.
	Append(ctx context.Context, id ChatID, expectedVersion int64, msgs []Message) (*Session, error)

	// QueryAsOf returns the prefix of history with CreatedAt <= bound.
	QueryAsOf(ctx context.Context, id ChatID, bound time.Time) ([]Message, error)

	// CountMessages returns the full history length.
	CountMessages(ctx context.Context, id ChatID) (int, error)

	// Ping reports backend health.
	Ping(ctx context.Context) error
}
