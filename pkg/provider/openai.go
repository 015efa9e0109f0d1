package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// DoneMarker ends an OpenAI-compatible delta stream.
const DoneMarker = "[DONE]"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// OpenAI streams replies from an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *http.Client
	logger *zap.Logger
}

// NewOpenAI creates an OpenAI-compatible source.
func NewOpenAI(client *http.Client, logger *zap.Logger) *OpenAI {
	return &OpenAI{client: client, logger: logger}
}

// Kind implements Source.
func (o *OpenAI) Kind() Kind { return KindOpenAI }

// Stream implements Source.
func (o *OpenAI) Stream(ctx context.Context, messages []llm.Message, opts llm.Options, yield Yield) error {
	endpoint := ChatCompletionsURL(opts.APIBase)
	body := openAIRequest{
		Model:       opts.ModelOrDefault(),
		Messages:    buildOpenAIMessages(messages, opts.SystemPrompt),
		Stream:      true,
		Temperature: opts.TemperatureOrDefault(),
	}

	o.logger.Debug("streaming from openai-compatible provider",
		zap.String("endpoint", endpoint),
		zap.String("model", body.Model),
		zap.Int("messages", len(body.Messages)),
	)

	header := http.Header{
		"Authorization": {"Bearer " + opts.APIKey},
		"Accept":        {"text/event-stream"},
	}
	resp, err := postJSON(ctx, o.client, endpoint, header, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := sse.NewScanner(resp.Body, sse.Newline, sse.WithTerminator(DoneMarker))
	for scanner.Scan() {
		var chunk openAIChunk
		if err := json.Unmarshal([]byte(scanner.Frame().Data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := yield(chunk.Choices[0].Delta.Content); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return transportError(ctx, fmt.Errorf("read stream: %w", err))
	}
	if pending := scanner.Pending(); pending > 0 && !scanner.Terminated() {
		o.logger.Debug("dropped unterminated trailing frame", zap.Int("bytes", pending))
	}
	return ctx.Err()
}

// ChatCompletionsURL derives the chat completions endpoint from an API base.
// A base already naming the endpoint is kept; a base ending in /v1 gets
// /chat/completions; anything else gets /v1/chat/completions.
func ChatCompletionsURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	switch {
	case strings.HasSuffix(base, "/chat/completions"):
		return base
	case strings.HasSuffix(base, "/v1"):
		return base + "/chat/completions"
	default:
		return base + "/v1/chat/completions"
	}
}

func buildOpenAIMessages(messages []llm.Message, systemPrompt string) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openAIMessage{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		if !m.HasText() {
			continue
		}
		role := m.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		out = append(out, openAIMessage{Role: role, Content: m.Content})
	}
	return out
}
