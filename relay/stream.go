package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const saveTimeout = 10 * time.Second

// outcome is the terminal state of one exchange.
type outcome int

const (
	completed outcome = iota
	failed
	cancelled
)

func (o outcome) String() string {
	switch o {
	case completed:
		return "completed"
	case failed:
		return "failed"
	default:
		return "cancelled"
	}
}

// eventWriter writes server-sent events. Every call flushes, so a failed write
// means the client is gone.
type eventWriter interface {
	WriteEvent(event string, payload any) error
	WriteComment(text string) error
}

type sseWriter struct {
	w *bufio.Writer
}

func (s sseWriter) WriteEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s sseWriter) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	return s.w.Flush()
}

// exchange is one chat request after dispatch.
type exchange struct {
	session  string
	messages []llm.Message
	opts     llm.Options
}

// handleChat validates and dispatches a chat request, then streams the reply.
// Everything the stream needs is copied out of c before the handler returns.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Warn("failed to parse chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrMalformedRequest.Error()})
	}

	ex := exchange{
		session:  storage.SanitizeID(req.SessionID),
		messages: req.Messages,
		opts:     s.Options(),
	}

	// An explicit conversation always wins over stored history.
	if len(ex.messages) == 0 {
		stored, err := s.store.Load(c.Context(), ex.session)
		if err != nil {
			s.logger.Warn("failed to load history, continuing without it",
				zap.String("session", ex.session),
				zap.Error(err),
			)
		}
		ex.messages = stored
	}

	s.logger.Debug("received chat request",
		zap.String("session", ex.session),
		zap.Int("message_count", len(ex.messages)),
		zap.Bool("remote", ex.opts.Remote()),
	)

	c.Set(fiber.HeaderContentType, "text/event-stream; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(s.base)
		defer cancel()

		release := s.aborts.register(ex.session, cancel)
		defer release()

		result := s.stream(ctx, cancel, sseWriter{w: w}, ex)
		s.logger.Info("chat exchange finished",
			zap.String("session", ex.session),
			zap.Stringer("outcome", result),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

// stream runs an exchange against w: a start event, one chunk event per
// delta, then done or a single error event. A failed write or an abort cancels
// ctx, after which nothing more is written or stored.
func (s *Server) stream(ctx context.Context, cancel context.CancelFunc, w eventWriter, ex exchange) outcome {
	if err := w.WriteEvent(llm.EventStart, llm.StartEvent{SessionID: ex.session}); err != nil {
		cancel()
		return cancelled
	}

	var heartbeat <-chan time.Time
	if s.config.HeartbeatInterval > 0 {
		ticker := time.NewTicker(s.config.HeartbeatInterval)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	var reply []byte
	deltas := s.replier.StreamReply(ctx, ex.messages, ex.opts)

	for {
		select {
		case <-heartbeat:
			if err := w.WriteComment("ping"); err != nil {
				cancel()
				return cancelled
			}
			continue

		case d, ok := <-deltas:
			if !ok {
				if ctx.Err() != nil {
					return cancelled
				}
				return s.complete(ctx, w, ex, string(reply))
			}

			if d.Err != nil {
				if ctx.Err() != nil || errors.Is(d.Err, context.Canceled) {
					return cancelled
				}
				s.logger.Error("reply stream failed",
					zap.String("session", ex.session),
					zap.Error(d.Err),
				)
				if err := w.WriteEvent(llm.EventError, llm.ErrorEvent{Message: d.Err.Error()}); err != nil {
					cancel()
					return cancelled
				}
				return failed
			}

			// The source may have handed over a delta just as ctx was
			// cancelled.
			if ctx.Err() != nil {
				return cancelled
			}
			reply = append(reply, d.Text...)
			if err := w.WriteEvent(llm.EventChunk, llm.ChunkEvent{Text: d.Text}); err != nil {
				cancel()
				return cancelled
			}
		}
	}
}

// complete stores the finished exchange and closes the stream with done.
func (s *Server) complete(ctx context.Context, w eventWriter, ex exchange, reply string) outcome {
	saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancelSave()

	messages, err := storage.AppendReply(saveCtx, s.store, ex.session, ex.opts.ModelOrDefault(), ex.messages, reply)
	if err != nil {
		s.logger.Error("failed to store conversation", zap.String("session", ex.session), zap.Error(err))
		_ = w.WriteEvent(llm.EventError, llm.ErrorEvent{Message: "failed to save conversation"})
		return failed
	}

	s.logger.Debug("conversation stored",
		zap.String("session", ex.session),
		zap.Int("message_count", len(messages)),
		zap.String("reply_preview", logger.Preview(messages[len(messages)-1].Content, 100)),
	)

	_ = w.WriteEvent(llm.EventDone, llm.DoneEvent{OK: true})
	return completed
}
