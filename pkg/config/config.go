// Package config loads chatrelay configuration.
//
// Values are layered, later layers winning:
//   - built-in defaults
//   - an optional TOML file
//   - a .env file in the working directory
//   - process environment variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/provider"
	"github.com/papercomputeco/chatrelay/pkg/storage/drivers"
)

const (
	DefaultListenAddr = ":5173"
	DefaultDataDir    = "./data"
	DefaultEnvFile    = ".env"
)

// Config is the complete chatrelay configuration.
type Config struct {
	ListenAddr string         `toml:"listen"`
	Debug      bool           `toml:"debug"`
	Provider   ProviderConfig `toml:"provider"`
	Storage    StorageConfig  `toml:"storage"`
	Mock       MockConfig     `toml:"mock"`
}

// ProviderConfig selects and configures the upstream model provider.
type ProviderConfig struct {
	UseRemote    bool    `toml:"use_remote"`
	APIKey       string  `toml:"api_key"`
	APIBase      string  `toml:"api_base"`
	Model        string  `toml:"model"`
	Temperature  float64 `toml:"temperature"`
	SystemPrompt string  `toml:"system_prompt"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Driver is one of file, sqlite, redis, memory.
	Driver string `toml:"driver"`

	// Dir is the session directory for the file driver.
	Dir string `toml:"dir"`

	// DBPath is the database file for the sqlite driver.
	DBPath string `toml:"db_path"`

	// RedisURL is the connection URL for the redis driver.
	RedisURL string `toml:"redis_url"`
}

// MockConfig paces the network-free reply source.
type MockConfig struct {
	ChunkSize int      `toml:"chunk_size"`
	Interval  Duration `toml:"interval"`
}

// Duration decodes TOML strings such as "40ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		Provider: ProviderConfig{
			Model:       llm.DefaultModel,
			Temperature: llm.DefaultTemperature,
		},
		Storage: StorageConfig{
			Driver: drivers.File,
			Dir:    DefaultDataDir,
		},
		Mock: MockConfig{
			ChunkSize: provider.DefaultMockChunkSize,
			Interval:  Duration{provider.DefaultMockInterval},
		},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty), .env and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", DefaultEnvFile, err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes the file at path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides overlays the recognised environment variables.
func (c *Config) ApplyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if strings.Contains(port, ":") {
			c.ListenAddr = port
		} else {
			c.ListenAddr = ":" + port
		}
	}
	if v, ok := lookupBool("USE_REMOTE"); ok {
		c.Provider.UseRemote = v
	}
	if key := firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if base := firstEnv("OPENAI_API_BASE", "API_BASE"); base != "" {
		c.Provider.APIBase = base
	}
	if model := firstEnv("OPENAI_MODEL", "MODEL"); model != "" {
		c.Provider.Model = model
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		c.Storage.RedisURL = url
	}
	if v, ok := lookupBool("DEBUG"); ok {
		c.Debug = v
	}
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	var errs []error
	if !drivers.Supported(c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.Driver == drivers.Redis && c.Storage.RedisURL == "" {
		errs = append(errs, errors.New("storage.redis_url: required for the redis driver"))
	}
	if c.Mock.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("mock.chunk_size: must be positive, got %d", c.Mock.ChunkSize))
	}
	if c.Mock.Interval.Duration < 0 {
		errs = append(errs, fmt.Errorf("mock.interval: must not be negative, got %s", c.Mock.Interval))
	}
	if c.Provider.Temperature < 0 {
		errs = append(errs, fmt.Errorf("provider.temperature: must not be negative, got %g", c.Provider.Temperature))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ProviderOptions returns the per-request provider options.
func (c *Config) ProviderOptions() llm.Options {
	return llm.Options{
		UseRemote:    c.Provider.UseRemote,
		APIKey:       c.Provider.APIKey,
		APIBase:      c.Provider.APIBase,
		Model:        c.Provider.Model,
		Temperature:  c.Provider.Temperature,
		SystemPrompt: c.Provider.SystemPrompt,
	}
}

// StoreSpec returns the driver spec for the configured session store.
func (c *Config) StoreSpec() drivers.Spec {
	spec := drivers.Spec{Driver: c.Storage.Driver}
	switch c.Storage.Driver {
	case drivers.File:
		spec.Target = c.Storage.Dir
	case drivers.SQLite:
		spec.Target = c.Storage.DBPath
		if spec.Target == "" {
			spec.Target = c.Storage.Dir + "/chatrelay.db"
		}
	case drivers.Redis:
		spec.Target = c.Storage.RedisURL
	}
	return spec
}

// NewMock returns a mock reply source paced by the mock settings.
func (c *Config) NewMock() *provider.Mock {
	return &provider.Mock{
		ChunkSize: c.Mock.ChunkSize,
		Interval:  c.Mock.Interval.Duration,
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func lookupBool(key string) (bool, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
