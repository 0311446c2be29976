package appconfig

import (
	"errors"
	"fmt"
	"time"

	"github.com/SaiNageswarS/agent-memory/store"
	"github.com/SaiNageswarS/agent-memory/tokens"
	"github.com/SaiNageswarS/go-api-boot/config"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	RedisAddr          string `env:"REDIS-ADDR" ini:"redis_addr"`
	RedisPassword      string `env:"REDIS-PASSWORD" ini:"redis_password"`
	RedisDB            int    `ini:"redis_db"`
	RedisPoolSize      int    `ini:"redis_pool_size"`
	RedisPoolTimeoutMs int    `ini:"redis_pool_timeout_ms"`
	StoreMaxAttempts   int    `ini:"store_max_attempts"`
	StoreRetryBaseMs   int    `ini:"store_retry_base_ms"`

	SessionTTLSeconds       int     `ini:"session_ttl_seconds"`
	MaxHistoryLength        int     `ini:"max_history_length"`
	MaxContextTokens        int     `ini:"max_context_tokens"`
	CompressionReserveRatio float64 `ini:"compression_reserve_ratio"`
	// NoCompressionReserve forces a reserve ratio of 0, which
	// compression_reserve_ratio alone cannot express since 0 means unset.
	NoCompressionReserve bool `ini:"no_compression_reserve"`
	HardFloorMessages       int     `ini:"hard_floor_messages"`
	TokenizerEncoding       string  `ini:"tokenizer_encoding"`

	OllamaModel string `ini:"ollama_model"`
}

const (
	DefaultSessionTTLSeconds       = 7 * 24 * 60 * 60
	DefaultMaxHistoryLength        = 100
	DefaultMaxContextTokens        = 4000
	DefaultCompressionReserveRatio = 0.2
	DefaultHardFloorMessages       = 5
)

// Load reads path with go-api-boot's config loader and fills in defaults.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := config.LoadConfig(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

// ApplyDefaults sets every unset option to its default. A negative
// compression_reserve_ratio is left for Validate to reject.
func (c *AppConfig) ApplyDefaults() {
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.SessionTTLSeconds == 0 {
		c.SessionTTLSeconds = DefaultSessionTTLSeconds
	}
	if c.MaxHistoryLength == 0 {
		c.MaxHistoryLength = DefaultMaxHistoryLength
	}
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = DefaultMaxContextTokens
	}
	if c.NoCompressionReserve {
		c.CompressionReserveRatio = 0
	} else if c.CompressionReserveRatio == 0 {
		c.CompressionReserveRatio = DefaultCompressionReserveRatio
	}
	if c.HardFloorMessages == 0 {
		c.HardFloorMessages = DefaultHardFloorMessages
	}
	if c.TokenizerEncoding == "" {
		c.TokenizerEncoding = tokens.DefaultEncoding
	}
	if c.StoreMaxAttempts == 0 {
		c.StoreMaxAttempts = store.DefaultRetryPolicy().MaxAttempts
	}
	if c.StoreRetryBaseMs == 0 {
		c.StoreRetryBaseMs = int(store.DefaultRetryPolicy().BaseBackoff / time.Millisecond)
	}
}

func (c *AppConfig) Validate() error {
	var errs []error
	if c.SessionTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("session_ttl_seconds must be positive, got %d", c.SessionTTLSeconds))
	}
	if c.MaxHistoryLength <= 0 {
		errs = append(errs, fmt.Errorf("max_history_length must be positive, got %d", c.MaxHistoryLength))
	}
	if c.MaxContextTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_context_tokens must be positive, got %d", c.MaxContextTokens))
	}
	if c.CompressionReserveRatio < 0 || c.CompressionReserveRatio >= 1 {
		errs = append(errs, fmt.Errorf("compression_reserve_ratio must be in [0, 1), got %v", c.CompressionReserveRatio))
	}
	if c.HardFloorMessages <= 0 {
		errs = append(errs, fmt.Errorf("hard_floor_messages must be positive, got %d", c.HardFloorMessages))
	}
	if c.StoreMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("store_max_attempts must be positive, got %d", c.StoreMaxAttempts))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *AppConfig) StoreOptions() store.Options {
	retry := store.DefaultRetryPolicy()
	retry.MaxAttempts = c.StoreMaxAttempts
	retry.BaseBackoff = time.Duration(c.StoreRetryBaseMs) * time.Millisecond

	return store.Options{
		Addr:        c.RedisAddr,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		PoolSize:    c.RedisPoolSize,
		PoolTimeout: time.Duration(c.RedisPoolTimeoutMs) * time.Millisecond,
		Retry:       retry,
	}
}
