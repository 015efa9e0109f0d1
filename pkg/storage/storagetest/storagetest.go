// Package storagetest holds the behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Conversation returns a small conversation used across store specs.
func Conversation() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: "你好", ID: "m1", CreatedAt: 1700000000000},
		{Role: llm.RoleAssistant, Content: "你好，我在。", ID: "m2", CreatedAt: 1700000000500},
		{Role: llm.RoleUser, Content: "look", Images: []string{"data:image/png;base64,AAAA"}},
	}
}

// DescribeStore registers the shared Store specs. newStore is called before
// every test and the store is closed afterwards.
func DescribeStore(newStore func() storage.Store) {
	var (
		store storage.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
			store = nil
		}
	})

	Describe("Save and Load", func() {
		It("round trips a conversation", func() {
			messages := Conversation()
			Expect(store.Save(ctx, llm.Session{ID: "s1", Messages: messages})).To(Succeed())

			loaded, err := store.Load(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(messages))
		})

		It("returns an empty conversation for unknown sessions", func() {
			loaded, err := store.Load(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		})

		It("replaces the previous conversation", func() {
			Expect(store.Save(ctx, llm.Session{ID: "s1", Messages: Conversation()})).To(Succeed())
			shorter := Conversation()[:1]
			Expect(store.Save(ctx, llm.Session{ID: "s1", Messages: shorter})).To(Succeed())

			loaded, err := store.Load(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(shorter))
		})

		It("addresses sessions by sanitized identifier", func() {
			Expect(store.Save(ctx, llm.Session{ID: "../s/1", Messages: Conversation()})).To(Succeed())

			loaded, err := store.Load(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(3))
		})

		It("uses the default session for an empty identifier", func() {
			Expect(store.Save(ctx, llm.Session{Messages: Conversation()})).To(Succeed())

			loaded, err := store.Load(ctx, storage.DefaultSessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(3))
		})

		It("keeps sessions independent", func() {
			Expect(store.Save(ctx, llm.Session{ID: "a", Messages: Conversation()[:1]})).To(Succeed())
			Expect(store.Save(ctx, llm.Session{ID: "b", Messages: Conversation()[:2]})).To(Succeed())

			a, err := store.Load(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			b, err := store.Load(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(HaveLen(1))
			Expect(b).To(HaveLen(2))
		})
	})

	Describe("Delete", func() {
		It("removes the session", func() {
			Expect(store.Save(ctx, llm.Session{ID: "s1", Messages: Conversation()})).To(Succeed())
			Expect(store.Delete(ctx, "s1")).To(Succeed())

			loaded, err := store.Load(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeEmpty())
		})

		It("returns ErrNotFound for unknown sessions", func() {
			err := store.Delete(ctx, "missing")
			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.ID).To(Equal("missing"))
		})
	})

	Describe("List", func() {
		It("is empty for an empty store", func() {
			sessions, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})

		It("summarises every session", func() {
			Expect(store.Save(ctx, llm.Session{ID: "s1", Model: "m", Messages: Conversation()})).To(Succeed())
			Expect(store.Save(ctx, llm.Session{ID: "s2", Messages: nil})).To(Succeed())

			sessions, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))

			byID := map[string]llm.SessionMeta{}
			for _, s := range sessions {
				byID[s.ID] = s
			}
			Expect(byID["s1"].Title).To(Equal("你好"))
			Expect(byID["s1"].MessageCount).To(Equal(3))
			Expect(byID["s2"].Title).To(Equal(llm.DefaultSessionTitle))
			Expect(byID["s2"].MessageCount).To(Equal(0))
		})
	})
}
