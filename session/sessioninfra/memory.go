package sessioninfra

import (
	"context"
	"sync"
	"time"

	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

// MemoryStore keeps sessions in process memory. It is the development and
// test backend; postgres and redis are the durable ones.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[session.ChatID]*memoryRecord
	nextID  int64
}

type memoryRecord struct {
	session  session.Session
	messages []session.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	logx.Info("In-memory session store initialized")
	return &MemoryStore{
		records: make(map[session.ChatID]*memoryRecord),
	}
}

func (s *MemoryStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[sess.ID]; ok {
		return session.ErrSessionExists(sess.ID)
	}

	s.records[sess.ID] = &memoryRecord{session: *sess}

	logx.WithField("chat_id", sess.ID).Debug("Session created")
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id session.ChatID) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrSessionNotFound(id)
	}

	sess := rec.session
	return &sess, nil
}

func (s *MemoryStore) GetWithMessages(ctx context.Context, id session.ChatID) (*session.SessionWithMessages, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrSessionNotFound(id)
	}

	msgs := make([]session.Message, len(rec.messages))
	copy(msgs, rec.messages)

	return &session.SessionWithMessages{
		Session:  rec.session,
		Messages: msgs,
	}, nil
}

func (s *MemoryStore) Append(ctx context.Context, id session.ChatID, expectedVersion int64, msgs []session.Message) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrSessionNotFound(id)
	}

	if rec.session.Version != expectedVersion {
		logx.WithFields(logx.Fields{
			"chat_id":          id,
			"expected_version": expectedVersion,
			"stored_version":   rec.session.Version,
		}).Debug("Append lost compare-and-swap")
		return nil, session.ErrVersionConflict(id, expectedVersion)
	}

	// Clamp timestamps so history order stays non-decreasing.
	floor := time.Time{}
	if n := len(rec.messages); n > 0 {
		floor = rec.messages[n-1].CreatedAt
	}

	var last time.Time
	for _, m := range msgs {
		if m.CreatedAt.Before(floor) {
			m.CreatedAt = floor
		}
		floor = m.CreatedAt
		last = m.CreatedAt

		s.nextID++
		m.ID = s.nextID
		m.ChatID = id
		rec.messages = append(rec.messages, m)
	}

	rec.session.Version += int64(len(msgs))
	if last.After(rec.session.UpdatedAt) {
		rec.session.UpdatedAt = last
	}

	sess := rec.session
	return &sess, nil
}

func (s *MemoryStore) QueryAsOf(ctx context.Context, id session.ChatID, bound time.Time) ([]session.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrSessionNotFound(id)
	}

	out := make([]session.Message, 0, len(rec.messages))
	for _, m := range rec.messages {
		if m.CreatedAt.After(bound) {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) CountMessages(ctx context.Context, id session.ChatID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return 0, session.ErrSessionNotFound(id)
	}
	return len(rec.messages), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
