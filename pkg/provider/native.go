package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// DefaultNativeBase is the native API root used when no endpoint is configured.
const DefaultNativeBase = "https://" + NativeHost + "/v1beta"

// greetingPlaceholder stands in for an empty conversation.
const greetingPlaceholder = "你好"

type nativePart struct {
	Text string `json:"text"`
}

type nativeContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []nativePart `json:"parts"`
}

type nativeGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type nativeRequest struct {
	Contents          []nativeContent        `json:"contents"`
	SystemInstruction *nativeContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  nativeGenerationConfig `json:"generationConfig"`
}

type nativeChunk struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Native streams replies from the vendor's streamGenerateContent endpoint.
type Native struct {
	client *http.Client
	logger *zap.Logger

	// BaseURL overrides the endpoint root when opts.APIBase is empty.
	BaseURL string
}

// NewNative creates a native protocol source.
func NewNative(client *http.Client, logger *zap.Logger) *Native {
	return &Native{
		client:  client,
		logger:  logger,
		BaseURL: DefaultNativeBase,
	}
}

// Kind implements Source.
func (n *Native) Kind() Kind { return KindNative }

// Stream implements Source.
func (n *Native) Stream(ctx context.Context, messages []llm.Message, opts llm.Options, yield Yield) error {
	base := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if base == "" {
		base = strings.TrimRight(n.BaseURL, "/")
	}
	model := opts.ModelOrDefault()
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		base, url.PathEscape(model), url.QueryEscape(opts.APIKey))

	body := nativeRequest{
		Contents:         buildContents(messages),
		GenerationConfig: nativeGenerationConfig{Temperature: opts.TemperatureOrDefault()},
	}
	if opts.SystemPrompt != "" {
		body.SystemInstruction = &nativeContent{Parts: []nativePart{{Text: opts.SystemPrompt}}}
	}

	n.logger.Debug("streaming from native provider",
		zap.String("base", base),
		zap.String("model", model),
		zap.Int("turns", len(body.Contents)),
	)

	resp, err := postJSON(ctx, n.client, endpoint, http.Header{"Accept": {"text/event-stream"}}, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := sse.NewScanner(resp.Body, sse.BlankLine)
	for scanner.Scan() {
		var chunk nativeChunk
		if err := json.Unmarshal([]byte(scanner.Frame().Data), &chunk); err != nil {
			continue
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			if err := yield(part.Text); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return transportError(ctx, fmt.Errorf("read stream: %w", err))
	}
	if pending := scanner.Pending(); pending > 0 && !scanner.Terminated() {
		n.logger.Debug("dropped unterminated trailing frame", zap.Int("bytes", pending))
	}
	return ctx.Err()
}

// buildContents maps the conversation onto native turns. Assistant turns
// become "model", everything else "user"; messages without text are dropped.
func buildContents(messages []llm.Message) []nativeContent {
	if len(messages) == 0 {
		messages = []llm.Message{{Role: llm.RoleUser, Content: greetingPlaceholder}}
	}

	contents := make([]nativeContent, 0, len(messages))
	for _, m := range messages {
		if !m.HasText() {
			continue
		}
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, nativeContent{
			Role:  role,
			Parts: []nativePart{{Text: m.Content}},
		})
	}
	return contents
}
