package cmdconfig

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/jsonfile"
)

var _ = Describe("Command config", func() {
	It("reads persistent flags from the root command", func() {
		root := &cobra.Command{Use: "root"}
		AddPersistentFlags(root)

		var path string
		var debug bool
		child := &cobra.Command{
			Use: "child",
			RunE: func(cmd *cobra.Command, args []string) error {
				path = ConfigPath(cmd)
				debug, _ = cmd.Flags().GetBool(DebugFlag)
				return nil
			},
		}
		root.AddCommand(child)
		root.SetArgs([]string{"child", "--config", "relay.toml", "--debug"})

		Expect(root.Execute()).To(Succeed())
		Expect(path).To(Equal("relay.toml"))
		Expect(debug).To(BeTrue())
	})

	It("tolerates commands without the persistent flags", func() {
		Expect(ConfigPath(&cobra.Command{Use: "bare"})).To(BeEmpty())
	})

	Describe("OpenStore", func() {
		ctx := context.Background()

		It("opens the configured store", func() {
			cfg := config.Default()
			cfg.Storage.Dir = GinkgoT().TempDir()

			store, err := OpenStore(ctx, cfg, "", zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(store).To(BeAssignableToTypeOf(&jsonfile.Driver{}))
			Expect(store.Close()).To(Succeed())
		})

		It("prefers the override", func() {
			store, err := OpenStore(ctx, config.Default(), "memory", zap.NewNop())
			Expect(err).NotTo(HaveOccurred())
			Expect(store).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		})

		It("rejects a malformed override", func() {
			_, err := OpenStore(ctx, config.Default(), "nope:x", zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("unknown storage driver")))
		})
	})
})
