// Package engine orchestrates chat session operations: create, post and
// query. Posting reads the session, calls the model outside any lock, and
// persists the (user, assistant) pair with a compare-and-swap append; lost
// swaps are retried with fresh state up to a bound.
package engine

import (
	"context"
	"time"

	"github.com/avelasqz/chatd/model"
	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

// NoResponseText is returned when the model produced empty content.
const NoResponseText = "No response returned."

const defaultConflictRetries = 3

// Engine coordinates the session store and the model invoker.
type Engine struct {
	store           session.Store
	invoker         model.Invoker
	model           string
	conflictRetries int
}

// Config holds engine dependencies.
type Config struct {
	Store   session.Store
	Invoker model.Invoker
	// Model is the deployed model identifier passed to the invoker.
	Model string
	// ConflictRetries bounds re-reads after a lost compare-and-swap append.
	// Zero means the default.
	ConflictRetries int
}

// New creates an engine.
func New(cfg Config) *Engine {
	retries := cfg.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}

	return &Engine{
		store:           cfg.Store,
		invoker:         cfg.Invoker,
		model:           cfg.Model,
		conflictRetries: retries,
	}
}

// CreateSession creates a chat session with the given immutable
// instructions. A reused id fails with the session-exists error.
func (e *Engine) CreateSession(ctx context.Context, id session.ChatID, instructions string) (*session.Session, error) {
	if id == "" {
		return nil, NewInvalidRequestError("chat id is required")
	}
	if instructions == "" {
		return nil, NewInvalidRequestError(`Invalid request body. Make sure that you pass in {"instructions": value } as the request body.`)
	}

	sess := session.New(id, instructions)
	if err := e.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	logx.WithField("chat_id", id).Info("Chat session created")
	return sess, nil
}

// PostMessage appends a user message, invokes the model with the full
// conversational context, and appends the assistant reply atomically with
// the user message. Concurrent posts race on the version check; the loser
// re-reads and retries with fresh history.
func (e *Engine) PostMessage(ctx context.Context, id session.ChatID, userMessage string) (string, error) {
	if userMessage == "" {
		return "", NewInvalidRequestError("message is required")
	}

	var lastErr error
	for attempt := 0; attempt <= e.conflictRetries; attempt++ {
		state, err := e.store.GetWithMessages(ctx, id)
		if err != nil {
			return "", err
		}

		reply, err := e.invoker.Invoke(ctx, model.ChatRequest{
			Model:        e.model,
			Instructions: state.Session.Instructions,
			History:      state.Messages,
			UserMessage:  userMessage,
		})
		if err != nil {
			// Timeouts and model failures leave the session untouched.
			return "", err
		}

		now := time.Now().UTC()
		pair := []session.Message{
			session.NewMessage(id, session.RoleUser, userMessage, now),
			session.NewMessage(id, session.RoleAssistant, reply, now),
		}

		updated, err := e.store.Append(ctx, id, state.Session.Version, pair)
		if session.IsVersionConflict(err) {
			lastErr = err
			logx.WithFields(logx.Fields{
				"chat_id": id,
				"attempt": attempt + 1,
			}).Debug("Post lost version race, retrying with fresh state")
			continue
		}
		if err != nil {
			return "", err
		}

		logx.WithFields(logx.Fields{
			"chat_id": id,
			"version": updated.Version,
		}).Info("Message pair appended")

		if reply == "" {
			return NoResponseText, nil
		}
		return reply, nil
	}

	logx.WithFields(logx.Fields{
		"chat_id":  id,
		"attempts": e.conflictRetries + 1,
	}).WithError(lastErr).Warn("Post exhausted conflict retries")

	return "", NewConflictError(string(id), e.conflictRetries+1)
}

// QueryState returns a snapshot of the session with history up to the given
// bound (inclusive). It never mutates state. The snapshot comes from a single
// store read, so version, totals and messages always agree even while posts
// land concurrently; the bound is applied in memory.
func (e *Engine) QueryState(ctx context.Context, id session.ChatID, bound time.Time) (*StateSnapshot, error) {
	state, err := e.store.GetWithMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(state.Messages))
	for _, m := range state.Messages {
		if m.CreatedAt.After(bound) {
			continue
		}
		views = append(views, MessageView{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}

	return &StateSnapshot{
		ID:             string(state.Session.ID),
		Exists:         true,
		Instructions:   state.Session.Instructions,
		CreatedAt:      state.Session.CreatedAt,
		LastUpdatedAt:  state.Session.UpdatedAt,
		TotalMessages:  len(state.Messages),
		Version:        state.Session.Version,
		RecentMessages: views,
	}, nil
}

// Health reports store reachability.
func (e *Engine) Health(ctx context.Context) error {
	return e.store.Ping(ctx)
}
