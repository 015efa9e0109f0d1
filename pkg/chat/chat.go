// Package chat is the single entry point for producing replies. It selects the
// mock or a remote provider for each call and exposes every source as the same
// ordered stream of text deltas.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/provider"
)

// Delta is one element of a reply stream. A Delta with a non-nil Err is always
// the last one received before the channel closes.
type Delta struct {
	Text string
	Err  error
}

// Orchestrator routes conversations to reply sources.
type Orchestrator struct {
	sources provider.Set
	logger  *zap.Logger
}

// New creates an Orchestrator over the given sources.
func New(sources provider.Set, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		logger:  logger,
	}
}

// NewDefault wires the mock and both remote protocols with a shared streaming
// HTTP client.
func NewDefault(mock *provider.Mock, logger *zap.Logger) *Orchestrator {
	client := provider.NewHTTPClient()
	return New(provider.Set{
		Mock:   mock,
		Native: provider.NewNative(client, logger),
		OpenAI: provider.NewOpenAI(client, logger),
	}, logger)
}

// StreamReply starts producing the reply for messages and returns its deltas.
// The channel is single use and is closed when the reply is complete, when the
// source fails (the final Delta carries the error), or when ctx is done.
// Callers that stop reading early must cancel ctx. Remote failures are never
// replaced by a mock reply.
func (o *Orchestrator) StreamReply(ctx context.Context, messages []llm.Message, opts llm.Options) <-chan Delta {
	out := make(chan Delta)

	go func() {
		defer close(out)

		kind := provider.Classify(opts)
		src := o.sources.For(kind)
		if src == nil {
			send(ctx, out, Delta{Err: fmt.Errorf("no %s reply source configured", kind)})
			return
		}

		startTime := time.Now()
		chunks := 0
		o.logger.Debug("streaming reply",
			zap.Stringer("source", src.Kind()),
			zap.Int("message_count", len(messages)),
		)

		err := src.Stream(ctx, messages, opts, func(text string) error {
			if !send(ctx, out, Delta{Text: text}) {
				return ctx.Err()
			}
			chunks++
			return nil
		})
		if err != nil {
			send(ctx, out, Delta{Err: err})
			return
		}

		o.logger.Debug("reply stream complete",
			zap.Stringer("source", src.Kind()),
			zap.Int("chunks", chunks),
			zap.Duration("duration", time.Since(startTime)),
		)
	}()

	return out
}

// GenerateReply drains StreamReply and returns the concatenated reply.
func (o *Orchestrator) GenerateReply(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reply, err := Collect(o.StreamReply(ctx, messages, opts))
	if err == nil {
		err = ctx.Err()
	}
	return reply, err
}

// Collect concatenates deltas until the channel closes or an error arrives.
// The text received before an error is returned alongside it.
func Collect(deltas <-chan Delta) (string, error) {
	var reply strings.Builder
	for d := range deltas {
		if d.Err != nil {
			return reply.String(), d.Err
		}
		reply.WriteString(d.Text)
	}
	return reply.String(), nil
}

// send delivers d unless ctx is done first.
func send(ctx context.Context, out chan<- Delta, d Delta) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		return false
	}
}
