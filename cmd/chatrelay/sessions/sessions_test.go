package sessionscmder

import (
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage/jsonfile"
)

var _ = Describe("Sessions Command", func() {
	var (
		ctx   context.Context
		dir   string
		store *jsonfile.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		store = jsonfile.NewDriver(dir, zap.NewNop())
	})

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewSessionsCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append(args, "--store", "file:"+dir))
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	Describe("ls", func() {
		It("reports an empty store", func() {
			out, err := run("ls")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("No sessions stored."))
		})

		It("lists sessions most recent first", func() {
			Expect(store.Save(ctx, llm.Session{
				ID:        "older",
				Messages:  []llm.Message{{Role: llm.RoleUser, Content: "first question"}},
				UpdatedAt: time.Now().Add(-time.Hour),
			})).To(Succeed())
			Expect(store.Save(ctx, llm.Session{
				ID: "newer",
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: "second question"},
					{Role: llm.RoleAssistant, Content: "answer"},
				},
				UpdatedAt: time.Now(),
			})).To(Succeed())

			out, err := run("ls")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("TITLE"))
			Expect(out).To(ContainSubstring("first question"))
			Expect(out).To(ContainSubstring("second question"))
			Expect(bytes.Index([]byte(out), []byte("newer"))).To(BeNumerically("<", bytes.Index([]byte(out), []byte("older"))))
		})
	})

	Describe("rm", func() {
		It("removes sessions", func() {
			Expect(store.Save(ctx, llm.Session{
				ID:       "doomed",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "bye"}},
			})).To(Succeed())

			out, err := run("rm", "doomed")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("Removed session doomed"))

			messages, err := store.Load(ctx, "doomed")
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(BeEmpty())
		})

		It("fails for unknown sessions after removing the rest", func() {
			Expect(store.Save(ctx, llm.Session{
				ID:       "present",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})).To(Succeed())

			_, err := run("rm", "missing", "present")
			Expect(err).To(MatchError(ContainSubstring("session not found: missing")))

			messages, err := store.Load(ctx, "present")
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(BeEmpty())
		})
	})
})
