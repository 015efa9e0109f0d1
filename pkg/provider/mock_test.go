package provider_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/provider"
)

func user(text string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: text}
}

func assistant(text string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: text}
}

var _ = Describe("MockReply", func() {
	It("greets when there is no user message", func() {
		Expect(provider.MockReply(nil)).To(Equal(provider.MockGreeting))
		Expect(provider.MockReply([]llm.Message{assistant("hi")})).To(Equal(provider.MockGreeting))
	})

	It("suggests projects for topic keywords", func() {
		for _, text := range []string{"有什么项目推荐", "give me an idea", "出个主意"} {
			Expect(provider.MockReply([]llm.Message{user(text)})).To(Equal(provider.MockSuggestion))
		}
	})

	It("echoes the latest user message", func() {
		reply := provider.MockReply([]llm.Message{user("first"), assistant("ok"), user("你好")})
		Expect(reply).To(HavePrefix("收到：你好\n\n"))
		Expect(reply).To(ContainSubstring("Mock"))
	})

	It("is deterministic for the same last user message", func() {
		a := provider.MockReply([]llm.Message{user("older"), user("same")})
		b := provider.MockReply([]llm.Message{assistant("different history"), user("same")})
		Expect(a).To(Equal(b))
	})
})

var _ = Describe("Mock", func() {
	collect := func(ctx context.Context, m *provider.Mock, messages []llm.Message) ([]string, error) {
		var chunks []string
		err := m.Stream(ctx, messages, llm.Options{}, func(text string) error {
			chunks = append(chunks, text)
			return nil
		})
		return chunks, err
	}

	It("emits the reply in twelve rune chunks", func() {
		m := &provider.Mock{ChunkSize: provider.DefaultMockChunkSize}
		messages := []llm.Message{user("你好")}

		chunks, err := collect(context.Background(), m, messages)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Join(chunks, "")).To(Equal(provider.MockReply(messages)))
		for _, c := range chunks[:len(chunks)-1] {
			Expect([]rune(c)).To(HaveLen(12))
		}
	})

	It("paces chunks with the configured interval", func() {
		m := &provider.Mock{ChunkSize: 4, Interval: 10 * time.Millisecond}
		start := time.Now()
		chunks, err := collect(context.Background(), m, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(time.Since(start)).To(BeNumerically(">=", time.Duration(len(chunks))*10*time.Millisecond))
	})

	It("stops within one interval when cancelled", func() {
		m := &provider.Mock{ChunkSize: 1, Interval: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())

		var chunks []string
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- m.Stream(ctx, nil, llm.Options{}, func(text string) error {
				chunks = append(chunks, text)
				return nil
			})
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
		Expect(chunks).To(HaveLen(1))
	})

	It("propagates errors returned by yield", func() {
		boom := errors.New("client gone")
		m := &provider.Mock{ChunkSize: 2}
		err := m.Stream(context.Background(), nil, llm.Options{}, func(string) error { return boom })
		Expect(err).To(MatchError(boom))
	})
})
