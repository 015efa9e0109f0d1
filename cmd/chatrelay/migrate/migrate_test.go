package migratecmder

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/jsonfile"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

var _ = Describe("Migrate Command", func() {
	var (
		ctx     context.Context
		tmpDir  string
		fileDir string
		dbPath  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		fileDir = filepath.Join(tmpDir, "data")
		dbPath = filepath.Join(tmpDir, "chat.db")
	})

	conversation := func(text string) []llm.Message {
		return []llm.Message{
			{Role: llm.RoleUser, Content: text},
			{Role: llm.RoleAssistant, Content: "reply to " + text},
		}
	}

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewMigrateCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	It("copies every session from the file store into sqlite", func() {
		src := jsonfile.NewDriver(fileDir, zap.NewNop())
		Expect(src.Save(ctx, llm.Session{ID: "alpha", Messages: conversation("alpha")})).To(Succeed())
		Expect(src.Save(ctx, llm.Session{ID: "beta", Messages: conversation("beta")})).To(Succeed())

		out, err := run("--from", "file:"+fileDir, "--to", "sqlite:"+dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Migrated 2 sessions"))

		dst, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()

		for _, id := range []string{"alpha", "beta"} {
			messages, err := dst.Load(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages).To(Equal(conversation(id)))
		}
	})

	It("carries titles, models and update times", func() {
		src, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		Expect(src.Save(ctx, llm.Session{
			ID:        "gamma",
			Title:     "custom title",
			Model:     "gemini-2.5-flash",
			Messages:  conversation("gamma"),
			UpdatedAt: updated,
		})).To(Succeed())
		Expect(src.Close()).To(Succeed())

		_, err = run("--from", "sqlite:"+dbPath, "--to", "sqlite:"+filepath.Join(tmpDir, "copy.db"))
		Expect(err).NotTo(HaveOccurred())

		dst, err := sqlite.NewDriver(ctx, filepath.Join(tmpDir, "copy.db"))
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()

		sessions, err := dst.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].Model).To(Equal("gemini-2.5-flash"))
		Expect(sessions[0].MessageCount).To(Equal(2))
		Expect(sessions[0].UpdatedAt.Equal(updated)).To(BeTrue())
	})

	It("skips sessions already in the target unless overwriting", func() {
		src := jsonfile.NewDriver(fileDir, zap.NewNop())
		Expect(src.Save(ctx, llm.Session{ID: "alpha", Messages: conversation("new")})).To(Succeed())

		dst, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(dst.Save(ctx, llm.Session{ID: "alpha", Messages: conversation("old")})).To(Succeed())
		Expect(dst.Close()).To(Succeed())

		out, err := run("--from", "file:"+fileDir, "--to", "sqlite:"+dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("already exists, skipped"))
		Expect(out).To(ContainSubstring("(1 skipped)"))

		_, err = run("--from", "file:"+fileDir, "--to", "sqlite:"+dbPath, "--overwrite")
		Expect(err).NotTo(HaveOccurred())

		dst, err = sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer dst.Close()
		messages, err := dst.Load(ctx, "alpha")
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(Equal(conversation("new")))
	})

	It("rejects migrating a store onto itself", func() {
		_, err := run("--from", "file:"+fileDir, "--to", "file:"+fileDir)
		Expect(err).To(MatchError(ContainSubstring("same store")))
	})

	It("rejects unknown drivers", func() {
		_, err := run("--from", "postgres:db", "--to", "file:"+fileDir)
		Expect(err).To(MatchError(ContainSubstring("invalid --from")))
	})

	It("requires both stores", func() {
		_, err := run("--from", "file:"+fileDir)
		Expect(err).To(HaveOccurred())
	})

	Describe("Migrate", func() {
		It("reports progress per session", func() {
			src := inmemory.NewDriver()
			dst := inmemory.NewDriver()
			Expect(src.Save(ctx, llm.Session{ID: "a", Messages: conversation("a")})).To(Succeed())
			Expect(src.Save(ctx, llm.Session{ID: "b", Messages: conversation("b")})).To(Succeed())

			var seen []string
			copied, skipped, err := Migrate(ctx, src, dst, false, func(meta llm.SessionMeta, copied bool) {
				Expect(copied).To(BeTrue())
				seen = append(seen, meta.ID)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(copied).To(Equal(2))
			Expect(skipped).To(BeZero())
			Expect(seen).To(ConsistOf("a", "b"))
		})
	})
})
