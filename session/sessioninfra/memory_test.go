package sessioninfra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasqz/chatd/pkg/errx"
	"github.com/avelasqz/chatd/session"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := session.New("s1", "You are helpful.")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.ChatID("s1"), got.ID)
	assert.Equal(t, "You are helpful.", got.Instructions)
	assert.Equal(t, int64(0), got.Version)

	count, err := store.CountMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, session.New("s1", "a")))

	err := store.Create(ctx, session.New("s1", "b"))
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, session.ErrCodeSessionExists))
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, session.IsNotFound(err))
}

func TestMemoryStore_AppendCAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.New("s1", "a")))

	now := time.Now().UTC()
	pair := []session.Message{
		session.NewMessage("s1", session.RoleUser, "hello", now),
		session.NewMessage("s1", session.RoleAssistant, "hi there", now),
	}

	updated, err := store.Append(ctx, "s1", 0, pair)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	// A stale writer must lose.
	_, err = store.Append(ctx, "s1", 0, pair)
	require.Error(t, err)
	assert.True(t, session.IsVersionConflict(err))

	// The winning append is fully visible.
	state, err := store.GetWithMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, session.RoleUser, state.Messages[0].Role)
	assert.Equal(t, "hello", state.Messages[0].Content)
	assert.Equal(t, session.RoleAssistant, state.Messages[1].Role)
	assert.Equal(t, "hi there", state.Messages[1].Content)
}

func TestMemoryStore_AppendUnknown(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Append(context.Background(), "ghost", 0, []session.Message{
		session.NewMessage("ghost", session.RoleUser, "x", time.Now()),
	})
	require.Error(t, err)
	assert.True(t, session.IsNotFound(err))
}

func TestMemoryStore_QueryAsOf(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.New("s1", "a")))

	base := time.Now().UTC()
	_, err := store.Append(ctx, "s1", 0, []session.Message{
		session.NewMessage("s1", session.RoleUser, "one", base),
		session.NewMessage("s1", session.RoleAssistant, "two", base.Add(time.Second)),
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, "s1", 2, []session.Message{
		session.NewMessage("s1", session.RoleUser, "three", base.Add(2*time.Second)),
		session.NewMessage("s1", session.RoleAssistant, "four", base.Add(3*time.Second)),
	})
	require.NoError(t, err)

	// Bound is inclusive.
	msgs, err := store.QueryAsOf(ctx, "s1", base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "two", msgs[1].Content)

	// Earlier bounds return prefixes of later ones.
	earlier, err := store.QueryAsOf(ctx, "s1", base)
	require.NoError(t, err)
	later, err := store.QueryAsOf(ctx, "s1", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, later, 4)
	assert.Equal(t, later[:len(earlier)], earlier)
}

func TestMemoryStore_TimestampClamp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.New("s1", "a")))

	base := time.Now().UTC()
	_, err := store.Append(ctx, "s1", 0, []session.Message{
		session.NewMessage("s1", session.RoleUser, "one", base),
	})
	require.NoError(t, err)

	// An earlier stamp must not break history ordering.
	_, err = store.Append(ctx, "s1", 1, []session.Message{
		session.NewMessage("s1", session.RoleUser, "two", base.Add(-time.Minute)),
	})
	require.NoError(t, err)

	msgs, err := store.QueryAsOf(ctx, "s1", base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, session.New("s1", "a")))

	const writers = 16
	var wg sync.WaitGroup
	successes := make(chan int64, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sess, err := store.Get(ctx, "s1")
				if err != nil {
					return
				}
				now := time.Now().UTC()
				updated, err := store.Append(ctx, "s1", sess.Version, []session.Message{
					session.NewMessage("s1", session.RoleUser, "u", now),
					session.NewMessage("s1", session.RoleAssistant, "a", now),
				})
				if session.IsVersionConflict(err) {
					continue
				}
				if err != nil {
					return
				}
				successes <- updated.Version
				return
			}
		}()
	}

	wg.Wait()
	close(successes)

	seen := map[int64]bool{}
	for v := range successes {
		assert.False(t, seen[v], "version %d handed out twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, writers)

	count, err := store.CountMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2*writers, count)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2*writers), sess.Version)
}
