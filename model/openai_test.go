package model

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelasqz/chatd/pkg/errx"
	"github.com/avelasqz/chatd/session"
)

func completionJSON(content string) string {
	return fmt.Sprintf(`{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-test",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": %q},
			"finish_reason": "stop"
		}]
	}`, content)
}

func newServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

func TestInvokeSuccess(t *testing.T) {
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("the reply"))
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL, WithMaxRetries(0))

	reply, err := inv.Invoke(context.Background(), ChatRequest{
		Model:        "gpt-test",
		Instructions: "You are helpful.",
		History: []session.Message{
			{Role: session.RoleUser, Content: "earlier"},
			{Role: session.RoleAssistant, Content: "before"},
		},
		UserMessage: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "the reply", reply)
}

func TestInvokeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": {"message": "upstream hiccup", "type": "server_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("recovered"))
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL,
		WithMaxRetries(3),
		WithInitialBackoff(time.Millisecond),
	)

	reply, err := inv.Complete(context.Background(), "gpt-test", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("bad-key", srv.URL,
		WithMaxRetries(5),
		WithInitialBackoff(time.Millisecond),
	)

	_, err := inv.Complete(context.Background(), "gpt-test", "prompt")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrCodeInvocationFailed))
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvokeRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "rate_limit_error"}}`)
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL,
		WithMaxRetries(2),
		WithInitialBackoff(time.Millisecond),
	)

	_, err := inv.Complete(context.Background(), "gpt-test", "prompt")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrCodeInvocationFailed))
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeTimeout(t *testing.T) {
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("too late"))
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL,
		WithTimeout(50*time.Millisecond),
		WithMaxRetries(0),
	)

	_, err := inv.Complete(context.Background(), "gpt-test", "prompt")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestInvokeCallerDeadline(t *testing.T) {
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("too late"))
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL, WithMaxRetries(0))

	// The caller's deadline fires before the invoker's own; it is still a
	// timeout, not a model failure.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := inv.Complete(ctx, "gpt-test", "prompt")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestInvokeCallerCancellation(t *testing.T) {
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("too late"))
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL, WithMaxRetries(0))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	_, err := inv.Complete(ctx, "gpt-test", "prompt")
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.True(t, errx.IsCode(err, ErrCodeInvocationFailed))
}

func TestInvokeEmptyChoices(t *testing.T) {
	srv := newServer(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "chatcmpl-test", "object": "chat.completion", "choices": []}`)
	})
	defer srv.Close()

	inv := NewOpenAIInvoker("test-key", srv.URL, WithMaxRetries(0))

	reply, err := inv.Complete(context.Background(), "gpt-test", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "", reply)
}
