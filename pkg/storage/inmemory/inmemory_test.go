package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DescribeStore(func() storage.Store {
		return inmemory.NewDriver()
	})

	It("does not share message slices with callers", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		messages := storagetest.Conversation()
		Expect(d.Save(ctx, llm.Session{ID: "s", Messages: messages})).To(Succeed())

		messages[0].Content = "changed"
		messages[2].Images[0] = "changed"

		loaded, err := d.Load(ctx, "s")
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(storagetest.Conversation()))
	})
})
