// Package gateway translates HTTP requests into engine calls and engine
// results into responses. It holds no state of its own.
package gateway

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/avelasqz/chatd/archive"
	"github.com/avelasqz/chatd/engine"
	"github.com/avelasqz/chatd/model"
	"github.com/avelasqz/chatd/pkg/errx"
	"github.com/avelasqz/chatd/pkg/logx"
	"github.com/avelasqz/chatd/session"
)

// Gateway wires the HTTP surface to the engine.
type Gateway struct {
	engine   *engine.Engine
	invoker  model.Invoker
	archiver *archive.Archiver
	model    string
	auth     *Auth
}

// Config holds gateway dependencies. Archiver may be nil when archiving is
// not configured.
type Config struct {
	Engine   *engine.Engine
	Invoker  model.Invoker
	Archiver *archive.Archiver
	Model    string
	Auth     *Auth
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	auth := cfg.Auth
	if auth == nil {
		auth = NewAuth("", "")
	}

	return &Gateway{
		engine:   cfg.Engine,
		invoker:  cfg.Invoker,
		archiver: cfg.Archiver,
		model:    cfg.Model,
		auth:     auth,
	}
}

// Register mounts all routes on the app. GET stays anonymous, mirroring the
// authorization split of the original function app.
func (g *Gateway) Register(app *fiber.App) {
	app.Get("/health", g.health)

	chats := app.Group("/chats")
	chats.Put("/:chatId", g.auth.Require(), g.createChat)
	chats.Post("/:chatId", g.auth.Require(), g.postMessage)
	chats.Get("/:chatId", g.getChatState)
	chats.Post("/:chatId/archive", g.auth.Require(), g.archiveChat)

	app.Post("/completions", g.auth.Require(), g.completions)
}

func (g *Gateway) health(c *fiber.Ctx) error {
	health := fiber.Map{"status": "healthy"}

	if err := g.engine.Health(c.Context()); err != nil {
		health["status"] = "degraded"
		health["error"] = err.Error()
	}

	return c.JSON(health)
}

func (g *Gateway) createChat(c *fiber.Ctx) error {
	chatID := session.ChatID(c.Params("chatId"))

	var body struct {
		Instructions string `json:"instructions"`
	}
	if err := c.BodyParser(&body); err != nil {
		return ErrInvalidBody()
	}

	sess, err := g.engine.CreateSession(c.Context(), chatID, body.Instructions)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"chatId": string(sess.ID),
	})
}

func (g *Gateway) postMessage(c *fiber.Ctx) error {
	chatID := session.ChatID(c.Params("chatId"))
	message := c.Query("message")

	reply, err := g.engine.PostMessage(c.Context(), chatID, message)
	if err != nil {
		return err
	}

	return c.SendString(reply)
}

func (g *Gateway) getChatState(c *fiber.Ctx) error {
	chatID := session.ChatID(c.Params("chatId"))

	bound := time.Now().UTC()
	if raw := c.Query("timestampUTC"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ErrInvalidTimestamp(raw)
		}
		bound = parsed.UTC()
	}

	snapshot, err := g.engine.QueryState(c.Context(), chatID, bound)
	if err != nil {
		return err
	}

	return c.JSON(snapshot)
}

func (g *Gateway) archiveChat(c *fiber.Ctx) error {
	if g.archiver == nil {
		return archive.ErrNotConfigured()
	}

	chatID := session.ChatID(c.Params("chatId"))

	snapshot, err := g.engine.QueryState(c.Context(), chatID, time.Now().UTC())
	if err != nil {
		return err
	}

	key, err := g.archiver.ArchiveSnapshot(c.Context(), snapshot)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"bucket": g.archiver.Bucket(),
		"key":    key,
	})
}

func (g *Gateway) completions(c *fiber.Ctx) error {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := c.BodyParser(&body); err != nil {
		return ErrInvalidBody()
	}
	if body.Prompt == "" {
		return ErrMissingPrompt()
	}

	text, err := g.invoker.Complete(c.Context(), g.model, body.Prompt)
	if err != nil {
		return err
	}

	return c.SendString(text)
}

// ErrorHandler maps errx errors to their HTTP status and everything else to
// a 500, logging the failure with request identifiers.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": c.Get("X-Request-ID"),
		}).Errorf("Request error: %v", err)

		var e *errx.Error
		if errors.As(err, &e) {
			return c.Status(e.HTTPStatus).JSON(fiber.Map{
				"error":  e.Message,
				"code":   e.Code,
				"status": e.HTTPStatus,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fe.Message,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}
}
