// Package model wraps calls to the external completion model. The invoker is
// stateless: it persists nothing and owns the timeout and retry policy for
// outbound calls.
package model

import (
	"context"

	"github.com/avelasqz/chatd/session"
)

// ChatRequest carries the full conversational context for one model call.
type ChatRequest struct {
	Model        string
	Instructions string
	History      []session.Message
	UserMessage  string
}

// Invoker is the model-invocation contract.
type Invoker interface {
	// Invoke sends the conversation to the model and returns its reply
	// text. Transient failures are retried with backoff; non-transient
	// failures and timeout surface immediately.
	Invoke(ctx context.Context, req ChatRequest) (string, error)

	// Complete runs a stateless one-shot completion of the given prompt.
	Complete(ctx context.Context, model, prompt string) (string, error)
}
