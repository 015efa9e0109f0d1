package sqlite_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeStore(func() storage.Store {
		d, err := sqlite.NewDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	It("creates a database file and keeps sessions across reopen", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "chat.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Save(ctx, llm.Session{ID: "s1", Model: "gemini-2.5-flash", Messages: storagetest.Conversation()})).To(Succeed())
		Expect(d.Close()).To(Succeed())

		_, err = os.Stat(dbPath)
		Expect(err).NotTo(HaveOccurred())

		d, err = sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		loaded, err := d.Load(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(storagetest.Conversation()))

		sessions, err := d.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].Model).To(Equal("gemini-2.5-flash"))
	})

	It("upserts a session in place", func() {
		ctx := context.Background()
		d, err := sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		Expect(d.Save(ctx, llm.Session{ID: "s1", Model: "first", Messages: storagetest.Conversation()[:1]})).To(Succeed())
		Expect(d.Save(ctx, llm.Session{ID: "s1", Model: "second", Messages: storagetest.Conversation()})).To(Succeed())

		sessions, err := d.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].Model).To(Equal("second"))
		Expect(sessions[0].MessageCount).To(Equal(len(storagetest.Conversation())))
	})
})
