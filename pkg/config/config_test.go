package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/provider"
	"github.com/papercomputeco/chatrelay/pkg/storage/drivers"
)

var envKeys = []string{
	"PORT", "USE_REMOTE", "GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY",
	"OPENAI_API_BASE", "API_BASE", "OPENAI_MODEL", "MODEL", "DATA_DIR",
	"STORAGE_DRIVER", "REDIS_URL", "DEBUG",
}

// clearEnv unsets every recognised variable for the current test, restoring
// the previous values afterwards.
func clearEnv() {
	for _, key := range envKeys {
		if prev, ok := os.LookupEnv(key); ok {
			DeferCleanup(os.Setenv, key, prev)
		}
		Expect(os.Unsetenv(key)).To(Succeed())
	}
}

func writeFile(path, content string) {
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
}

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		clearEnv()
		dir = GinkgoT().TempDir()
		// Load reads .env from the working directory.
		wd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, wd)
	})

	Describe("Default", func() {
		It("matches the documented defaults", func() {
			cfg := config.Default()
			Expect(cfg.ListenAddr).To(Equal(":5173"))
			Expect(cfg.Provider.UseRemote).To(BeFalse())
			Expect(cfg.Provider.Model).To(Equal(llm.DefaultModel))
			Expect(cfg.Provider.Temperature).To(Equal(0.7))
			Expect(cfg.Storage.Driver).To(Equal(drivers.File))
			Expect(cfg.Storage.Dir).To(Equal("./data"))
			Expect(cfg.Mock.ChunkSize).To(Equal(12))
			Expect(cfg.Mock.Interval.Duration).To(Equal(40 * time.Millisecond))
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("Load", func() {
		It("uses defaults without a file", func() {
			cfg, err := config.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.Default()))
		})

		It("overlays the TOML file", func() {
			path := filepath.Join(dir, "chatrelay.toml")
			writeFile(path, `
listen = "127.0.0.1:9000"

[provider]
use_remote = true
api_key = "file-key"
api_base = "http://localhost:11434/v1"
model = "llama3"
temperature = 0.2

[storage]
driver = "sqlite"
db_path = "/tmp/chat.db"

[mock]
chunk_size = 4
interval = "5ms"
`)
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ListenAddr).To(Equal("127.0.0.1:9000"))
			Expect(cfg.Provider).To(Equal(config.ProviderConfig{
				UseRemote:   true,
				APIKey:      "file-key",
				APIBase:     "http://localhost:11434/v1",
				Model:       "llama3",
				Temperature: 0.2,
			}))
			Expect(cfg.StoreSpec()).To(Equal(drivers.Spec{Driver: drivers.SQLite, Target: "/tmp/chat.db"}))
			Expect(cfg.Mock.ChunkSize).To(Equal(4))
			Expect(cfg.Mock.Interval.Duration).To(Equal(5 * time.Millisecond))
		})

		It("lets the environment override the file", func() {
			path := filepath.Join(dir, "chatrelay.toml")
			writeFile(path, "[provider]\nmodel = \"from-file\"\n")
			GinkgoT().Setenv("PORT", "8080")
			GinkgoT().Setenv("USE_REMOTE", "1")
			GinkgoT().Setenv("GEMINI_API_KEY", "env-key")
			GinkgoT().Setenv("MODEL", "from-env")
			GinkgoT().Setenv("DATA_DIR", "/var/lib/chat")

			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ListenAddr).To(Equal(":8080"))
			Expect(cfg.Provider.UseRemote).To(BeTrue())
			Expect(cfg.Provider.APIKey).To(Equal("env-key"))
			Expect(cfg.Provider.Model).To(Equal("from-env"))
			Expect(cfg.StoreSpec()).To(Equal(drivers.Spec{Driver: drivers.File, Target: "/var/lib/chat"}))
		})

		It("reads .env from the working directory", func() {
			writeFile(filepath.Join(dir, ".env"), "OPENAI_API_KEY=dotenv-key\nOPENAI_API_BASE=https://api.openai.com/v1\n")
			// godotenv sets process variables; drop them afterwards.
			DeferCleanup(os.Unsetenv, "OPENAI_API_KEY")
			DeferCleanup(os.Unsetenv, "OPENAI_API_BASE")

			cfg, err := config.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider.APIKey).To(Equal("dotenv-key"))
			Expect(cfg.Provider.APIBase).To(Equal("https://api.openai.com/v1"))
		})

		It("ignores unparsable booleans", func() {
			GinkgoT().Setenv("USE_REMOTE", "maybe")
			cfg, err := config.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Provider.UseRemote).To(BeFalse())
		})

		It("fails on malformed TOML", func() {
			path := filepath.Join(dir, "bad.toml")
			writeFile(path, "listen = \n")
			_, err := config.Load(path)
			Expect(err).To(MatchError(ContainSubstring("parsing config file")))
		})

		It("fails on a missing file", func() {
			_, err := config.Load(filepath.Join(dir, "missing.toml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Validate", func() {
		It("rejects unknown drivers", func() {
			cfg := config.Default()
			cfg.Storage.Driver = "postgres"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("unknown driver")))
		})

		It("requires a redis url for the redis driver", func() {
			cfg := config.Default()
			cfg.Storage.Driver = drivers.Redis
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("redis_url")))
		})

		It("rejects bad mock pacing", func() {
			cfg := config.Default()
			cfg.Mock.ChunkSize = 0
			cfg.Mock.Interval = config.Duration{Duration: -time.Second}
			err := cfg.Validate()
			Expect(err).To(MatchError(ContainSubstring("mock.chunk_size")))
			Expect(err).To(MatchError(ContainSubstring("mock.interval")))
		})
	})

	Describe("ProviderOptions", func() {
		It("carries the provider settings", func() {
			cfg := config.Default()
			cfg.Provider.UseRemote = true
			cfg.Provider.APIKey = "k"
			cfg.Provider.SystemPrompt = "be brief"

			opts := cfg.ProviderOptions()
			Expect(opts.Remote()).To(BeTrue())
			Expect(opts.Model).To(Equal(llm.DefaultModel))
			Expect(opts.SystemPrompt).To(Equal("be brief"))
			Expect(provider.Classify(opts)).To(Equal(provider.KindNative))
		})
	})

	Describe("NewMock", func() {
		It("applies the mock pacing", func() {
			cfg := config.Default()
			cfg.Mock.ChunkSize = 3
			cfg.Mock.Interval = config.Duration{}
			mock := cfg.NewMock()
			Expect(mock.ChunkSize).To(Equal(3))
			Expect(mock.Interval).To(BeZero())
		})
	})

	Describe("Watch", func() {
		It("delivers reloaded configs and skips invalid ones", func() {
			path := filepath.Join(dir, "chatrelay.toml")
			writeFile(path, "[provider]\nmodel = \"first\"\n")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var latest atomic.Pointer[config.Config]
			done := make(chan error, 1)
			go func() {
				done <- config.Watch(ctx, path, zap.NewNop(), func(cfg *config.Config) {
					latest.Store(cfg)
				})
			}()

			// Give the watcher a moment to register before writing.
			time.Sleep(50 * time.Millisecond)
			writeFile(path, "[provider]\nmodel = \"second\"\n")
			Eventually(func() string {
				if cfg := latest.Load(); cfg != nil {
					return cfg.Provider.Model
				}
				return ""
			}, 2*time.Second, 20*time.Millisecond).Should(Equal("second"))

			writeFile(path, "[storage]\ndriver = \"nope\"\n")
			Consistently(func() string {
				return latest.Load().Provider.Model
			}, 300*time.Millisecond, 20*time.Millisecond).Should(Equal("second"))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
