package askcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/cmdconfig"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const askLongDesc string = `Ask for a single reply and stream it to stdout.

Without --server the reply is produced in-process using the configured
provider (or the mock). With --session the conversation is continued
from, and saved back to, the session store. With --server the message is
sent to a running chatrelay server, which stores the exchange itself.

Examples:
  chatrelay ask "what should I build this weekend?"
  chatrelay ask --session ideas "any other project ideas?"
  chatrelay ask --server http://localhost:5173 --session ideas "hello"`

const askShortDesc string = "Stream a single reply"

const defaultRenderWidth = 80

type askCommander struct {
	session string
	server  string
	store   string
	render  bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&cmder.session, "session", "", "Session to continue and save to")
	cmd.Flags().StringVar(&cmder.server, "server", "", "URL of a running chatrelay server")
	cmd.Flags().BoolVar(&cmder.render, "render", true, "Render the reply as markdown when stdout is a terminal")
	cmdconfig.AddStoreFlag(cmd, &cmder.store)

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, prompt string) error {
	out := cmd.OutOrStdout()
	render := c.render && isTerminal(out)

	// A rendered reply can only be drawn once it is complete.
	var buf bytes.Buffer
	emit := func(text string) error {
		if render {
			buf.WriteString(text)
			return nil
		}
		_, err := io.WriteString(out, text)
		return err
	}

	var reply string
	var err error
	if c.server != "" {
		reply, err = c.askServer(ctx, prompt, emit)
	} else {
		reply, err = c.askLocal(ctx, cmd, prompt, emit)
	}
	if err != nil {
		return err
	}

	if render {
		rendered, err := renderMarkdown(reply, terminalWidth(out))
		if err != nil {
			_, err = io.WriteString(out, reply+"\n")
			return err
		}
		_, err = io.WriteString(out, rendered)
		return err
	}

	_, err = fmt.Fprintln(out)
	return err
}

// askLocal produces the reply in-process and saves the exchange when a
// session was named.
func (c *askCommander) askLocal(ctx context.Context, cmd *cobra.Command, prompt string, emit func(string) error) (string, error) {
	cfg, err := cmdconfig.Load(cmd)
	if err != nil {
		return "", err
	}
	log := logger.New(cmd.ErrOrStderr(), cfg.Debug)
	defer log.Sync()

	var store storage.Store
	var messages []llm.Message
	if c.session != "" {
		store, err = cmdconfig.OpenStore(ctx, cfg, c.store, log)
		if err != nil {
			return "", err
		}
		defer store.Close()

		messages, err = store.Load(ctx, c.session)
		if err != nil {
			return "", fmt.Errorf("could not load session %s: %w", c.session, err)
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := cfg.ProviderOptions()
	orchestrator := chat.NewDefault(cfg.NewMock(), log)

	var reply strings.Builder
	for d := range orchestrator.StreamReply(ctx, messages, opts) {
		if d.Err != nil {
			return "", d.Err
		}
		reply.WriteString(d.Text)
		if err := emit(d.Text); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if store == nil {
		return reply.String(), nil
	}

	messages, err = storage.AppendReply(ctx, store, c.session, opts.ModelOrDefault(), messages, reply.String())
	if err != nil {
		return "", fmt.Errorf("could not save session %s: %w", c.session, err)
	}
	log.Debug("session saved", zap.String("session", c.session), zap.Int("message_count", len(messages)))

	return reply.String(), nil
}

// askServer sends the prompt to a running relay and relays its chunk events.
// The server replies from its request body, so the stored history is fetched
// first to continue a session.
func (c *askCommander) askServer(ctx context.Context, prompt string, emit func(string) error) (string, error) {
	serverURL := strings.TrimRight(c.server, "/")

	var messages []llm.Message
	if c.session != "" {
		history, err := fetchHistory(ctx, serverURL, c.session)
		if err != nil {
			return "", err
		}
		messages = history
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	body, err := json.Marshal(llm.ChatRequest{Messages: messages, SessionID: c.session})
	if err != nil {
		return "", fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var reply strings.Builder
	scanner := sse.NewScanner(resp.Body, sse.BlankLine)
	for scanner.Scan() {
		frame := scanner.Frame()
		switch frame.Event {
		case llm.EventChunk:
			var chunk llm.ChunkEvent
			if err := json.Unmarshal([]byte(frame.Data), &chunk); err != nil {
				continue
			}
			reply.WriteString(chunk.Text)
			if err := emit(chunk.Text); err != nil {
				return "", err
			}
		case llm.EventError:
			var event llm.ErrorEvent
			if err := json.Unmarshal([]byte(frame.Data), &event); err != nil || event.Message == "" {
				event.Message = frame.Data
			}
			return "", fmt.Errorf("server reported: %s", event.Message)
		case llm.EventDone:
			return reply.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading reply stream: %w", err)
	}
	return "", fmt.Errorf("reply stream ended without completing")
}

func fetchHistory(ctx context.Context, serverURL, session string) ([]llm.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/api/history?sessionId="+url.QueryEscape(session), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var history llm.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("could not decode history: %w", err)
	}
	return history.Messages, nil
}

func renderMarkdown(text string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(text)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultRenderWidth
}
