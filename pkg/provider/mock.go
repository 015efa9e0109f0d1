package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Mock pacing defaults.
const (
	DefaultMockChunkSize = 12
	DefaultMockInterval  = 40 * time.Millisecond
)

// Canned mock replies.
const (
	MockGreeting   = "你好！随便说点什么，我就能回你。"
	MockSuggestion = "我可以帮你做一个轻量聊天机器人、AI日程助理或知识卡片问答。你更想做哪个？"
	mockEchoFormat = "收到：%s\n\n我现在是本地Mock模式（无需API Key）。如果你想接入真实模型，设置GOOGLE_API_KEY并把USE_REMOTE=1。"
)

var mockTopics = []string{"项目", "idea", "主意"}

// MockReply derives a deterministic reply from the latest user message.
func MockReply(messages []llm.Message) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			last = messages[i].Content
			break
		}
	}

	if last == "" {
		return MockGreeting
	}
	for _, topic := range mockTopics {
		if strings.Contains(last, topic) {
			return MockSuggestion
		}
	}
	return fmt.Sprintf(mockEchoFormat, last)
}

// Mock emits MockReply in fixed-size rune chunks separated by a pacing delay.
type Mock struct {
	ChunkSize int
	Interval  time.Duration
}

// NewMock creates a mock source with the default pacing.
func NewMock() *Mock {
	return &Mock{ChunkSize: DefaultMockChunkSize, Interval: DefaultMockInterval}
}

// Kind implements Source.
func (m *Mock) Kind() Kind { return KindMock }

// Stream implements Source. The pacing delay is abandoned as soon as ctx is
// done.
func (m *Mock) Stream(ctx context.Context, messages []llm.Message, _ llm.Options, yield Yield) error {
	size := m.ChunkSize
	if size <= 0 {
		size = DefaultMockChunkSize
	}

	runes := []rune(MockReply(messages))
	for start := 0; start < len(runes); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+size, len(runes))
		if err := yield(string(runes[start:end])); err != nil {
			return err
		}

		if m.Interval <= 0 {
			continue
		}
		timer := time.NewTimer(m.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
