package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 250 * time.Millisecond
)

// OpenAIInvoker calls the OpenAI chat completions API with a hard per-call
// timeout and bounded exponential-backoff retries for transient failures.
type OpenAIInvoker struct {
	client         openai.Client
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
}

// OpenAIOption configures the invoker.
type OpenAIOption func(*OpenAIInvoker)

// WithTimeout sets the overall deadline for one Invoke/Complete call,
// retries included.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(i *OpenAIInvoker) {
		i.timeout = d
	}
}

// WithMaxRetries bounds retries of transient failures.
func WithMaxRetries(n int) OpenAIOption {
	return func(i *OpenAIInvoker) {
		i.maxRetries = n
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) OpenAIOption {
	return func(i *OpenAIInvoker) {
		i.initialBackoff = d
	}
}

// NewOpenAIInvoker creates an invoker for the given API key. An empty
// baseURL uses the public endpoint. SDK-internal retries are disabled so the
// invoker's policy is the only one in effect.
func NewOpenAIInvoker(apiKey, baseURL string, opts ...OpenAIOption) *OpenAIInvoker {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}

	inv := &OpenAIInvoker{
		client:         openai.NewClient(clientOpts...),
		timeout:        defaultTimeout,
		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
	}

	for _, opt := range opts {
		opt(inv)
	}

	logx.WithFields(logx.Fields{
		"timeout":     inv.timeout,
		"max_retries": inv.maxRetries,
	}).Debug("OpenAI invoker initialized")

	return inv
}

func (i *OpenAIInvoker) Invoke(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)

	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, msg := range req.History {
		switch msg.Role {
		case session.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case session.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.UserMessage))

	return i.chat(ctx, req.Model, messages)
}

func (i *OpenAIInvoker) Complete(ctx context.Context, model, prompt string) (string, error) {
	return i.chat(ctx, model, []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})
}

func (i *OpenAIInvoker) chat(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	var content string
	attempt := 0

	operation := func() error {
		attempt++

		response, err := i.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			if !isTransient(err) {
				logx.WithError(err).Error("Model call failed permanently")
				return backoff.Permanent(err)
			}
			logx.WithFields(logx.Fields{
				"attempt": attempt,
				"model":   model,
			}).WithError(err).Warn("Transient model failure, will retry")
			return err
		}

		if len(response.Choices) > 0 {
			content = response.Choices[0].Message.Content
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = i.initialBackoff

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(i.maxRetries)), callCtx))
	if err != nil {
		// callCtx carries both the invoker deadline and any deadline the
		// caller brought; whichever fires, the call timed out. Cancellation
		// is not a timeout.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout(err)
		}
		return "", ErrInvocationFailed(err)
	}

	logx.WithFields(logx.Fields{
		"model":    model,
		"attempts": attempt,
	}).Debug("Model call completed")

	return content, nil
}

// isTransient reports whether a model-call error is worth retrying: network
// failures, rate limits and server-side errors. Auth and request-shape
// errors are permanent.
func isTransient(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429 || apierr.StatusCode >= 500
	}
	// Context errors end the retry loop via the backoff context anyway.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Anything else without an HTTP status is assumed to be a network blip.
	return true
}
