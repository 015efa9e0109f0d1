// Package relay serves the chat API: it streams replies as server-sent events
// and keeps each session's conversation in a storage.Store.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// BodyLimit is the largest accepted request body.
const BodyLimit = 1 << 20

// Replier produces reply streams. *chat.Orchestrator implements it.
type Replier interface {
	StreamReply(ctx context.Context, messages []llm.Message, opts llm.Options) <-chan chat.Delta
}

// Server is the chat relay. Requests are independent; the only state shared
// between them is the store, the abort registry and the provider options.
type Server struct {
	config    Config
	store     storage.Store
	replier   Replier
	logger    *zap.Logger
	server    *fiber.App
	options   atomic.Pointer[llm.Options]
	aborts    *aborts
	startTime time.Time

	// base parents every exchange; stop cancels it on shutdown.
	base context.Context
	stop context.CancelFunc
}

// New creates a Server. The server takes ownership of store.
func New(config Config, store storage.Store, replier Replier, logger *zap.Logger) *Server {
	s := &Server{
		config:    config,
		store:     store,
		replier:   replier,
		logger:    logger,
		aborts:    newAborts(),
		startTime: time.Now(),
	}
	s.base, s.stop = context.WithCancel(context.Background())
	s.SetOptions(config.Options)

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Post("/api/chat", s.handleChat)
	app.Post("/api/chat/abort", s.handleAbort)
	app.Get("/api/history", s.handleHistory)
	app.Delete("/api/session", s.handleDeleteSession)
	app.Get("/api/sessions", s.handleListSessions)
	app.Get("/api/health", s.handleHealth)

	s.server = app
	return s
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	opts := s.Options()
	s.logger.Info("starting chat relay",
		zap.String("listen", s.config.ListenAddr),
		zap.String("model", opts.ModelOrDefault()),
		zap.Bool("remote", opts.Remote()),
	)

	return s.server.Listen(s.config.ListenAddr)
}

// Shutdown cancels in-flight exchanges, stops accepting connections and waits
// for open requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	return s.server.ShutdownWithContext(ctx)
}

// Close releases the store.
func (s *Server) Close() error {
	return s.store.Close()
}

// Options returns the provider options new requests will use.
func (s *Server) Options() llm.Options {
	return *s.options.Load()
}

// SetOptions replaces the provider options. Requests already streaming keep
// the options they started with.
func (s *Server) SetOptions(opts llm.Options) {
	s.options.Store(&opts)
}

// handleError renders errors returned from handlers, and body limit
// violations raised before a handler runs, as JSON.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code == fiber.StatusRequestEntityTooLarge {
		message = ErrPayloadTooLarge.Error()
		c.Response().SetConnectionClose()
		s.logger.Warn("rejected oversized request", zap.String("path", c.Path()))
	}

	return c.Status(code).JSON(llm.ErrorResponse{Error: message})
}

// handleAbort cancels the in-flight exchange of a session.
func (s *Server) handleAbort(c *fiber.Ctx) error {
	var req llm.AbortRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrMalformedRequest.Error()})
	}

	session := storage.SanitizeID(req.SessionID)
	ok := s.aborts.abort(session)
	s.logger.Info("abort requested", zap.String("session", session), zap.Bool("aborted", ok))

	return c.JSON(llm.OKResponse{OK: ok})
}

// handleHistory returns the stored conversation of a session.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	session := storage.SanitizeID(c.Query("sessionId"))

	messages, err := s.store.Load(c.Context(), session)
	if err != nil {
		s.logger.Error("failed to load history", zap.String("session", session), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load history"})
	}
	if messages == nil {
		messages = []llm.Message{}
	}

	return c.JSON(llm.HistoryResponse{Messages: messages})
}

// handleDeleteSession removes a session.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	session := storage.SanitizeID(c.Query("id"))

	err := s.store.Delete(c.Context(), session)
	var notFound storage.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(llm.OKResponse{OK: false})
	case err != nil:
		s.logger.Error("failed to delete session", zap.String("session", session), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to delete session"})
	}

	s.logger.Info("session deleted", zap.String("session", session))
	return c.JSON(llm.OKResponse{OK: true})
}

// handleListSessions returns metadata for every stored session.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.store.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list sessions"})
	}
	if sessions == nil {
		sessions = []llm.SessionMeta{}
	}

	return c.JSON(llm.SessionsResponse{Sessions: sessions})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	opts := s.Options()
	return c.JSON(llm.HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.startTime).Seconds(),
		Model:     opts.ModelOrDefault(),
		HasAPIKey: opts.APIKey != "",
	})
}
