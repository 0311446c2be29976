package agentboot

import (
	"errors"
	"time"

	"github.com/SaiNageswarS/agent-memory/appconfig"
	"github.com/SaiNageswarS/agent-memory/compress"
	"github.com/SaiNageswarS/agent-memory/memory"
	"github.com/SaiNageswarS/agent-memory/session"
	"github.com/SaiNageswarS/agent-memory/store"
	"github.com/SaiNageswarS/agent-memory/tokens"
)

var ErrNoStore = errors.New("memory requires a store")

type MemoryBuilder struct {
	config       MemoryConfig
	storeOptions *store.Options
	encoding     string
	now          func() time.Time
}

func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{
		config: MemoryConfig{
			SessionTTL:              appconfig.DefaultSessionTTLSeconds * time.Second,
			MaxHistoryLength:        appconfig.DefaultMaxHistoryLength,
			MaxContextTokens:        appconfig.DefaultMaxContextTokens,
			CompressionReserveRatio: appconfig.DefaultCompressionReserveRatio,
			HardFloor:               compress.DefaultHardFloor,
		},
	}
}

func (b *MemoryBuilder) WithStore(st store.Store) *MemoryBuilder {
	b.config.Store = st
	return b
}

// WithStoreOptions makes Build dial a RedisStore when no store was given.
func (b *MemoryBuilder) WithStoreOptions(opts store.Options) *MemoryBuilder {
	b.storeOptions = &opts
	return b
}

func (b *MemoryBuilder) WithSessionTTL(ttl time.Duration) *MemoryBuilder {
	b.config.SessionTTL = ttl
	return b
}

func (b *MemoryBuilder) WithMaxHistoryLength(max int) *MemoryBuilder {
	b.config.MaxHistoryLength = max
	return b
}

func (b *MemoryBuilder) WithMaxContextTokens(max int) *MemoryBuilder {
	b.config.MaxContextTokens = max
	return b
}

func (b *MemoryBuilder) WithCompressionReserveRatio(ratio float64) *MemoryBuilder {
	b.config.CompressionReserveRatio = ratio
	return b
}

func (b *MemoryBuilder) WithHardFloor(messages int) *MemoryBuilder {
	b.config.HardFloor = messages
	return b
}

func (b *MemoryBuilder) WithEstimator(est *tokens.Estimator) *MemoryBuilder {
	b.config.Estimator = est
	return b
}

// WithTokenizer counts tokens precisely with tok.
func (b *MemoryBuilder) WithTokenizer(tok tokens.Tokenizer) *MemoryBuilder {
	b.config.Estimator = tokens.NewEstimator(tok)
	return b
}

func (b *MemoryBuilder) WithReporter(reporter TurnReporter) *MemoryBuilder {
	b.config.Reporter = reporter
	return b
}

// WithClock replaces the time source of the registry and the history log.
func (b *MemoryBuilder) WithClock(now func() time.Time) *MemoryBuilder {
	b.now = now
	return b
}

// WithConfig applies every memory option of cfg, including the Redis
// connection used when no store is given. The tokenizer encoding is loaded
// by Build unless an estimator is set afterwards.
func (b *MemoryBuilder) WithConfig(cfg *appconfig.AppConfig) *MemoryBuilder {
	cfg.ApplyDefaults()

	b.config.SessionTTL = cfg.SessionTTL()
	b.config.MaxHistoryLength = cfg.MaxHistoryLength
	b.config.MaxContextTokens = cfg.MaxContextTokens
	b.config.CompressionReserveRatio = cfg.CompressionReserveRatio
	b.config.HardFloor = cfg.HardFloorMessages
	b.config.Estimator = nil
	b.encoding = cfg.TokenizerEncoding
	return b.WithStoreOptions(cfg.StoreOptions())
}

func (b *MemoryBuilder) Build() (*Memory, error) {
	if b.config.Store == nil {
		if b.storeOptions == nil {
			return nil, ErrNoStore
		}
		b.config.Store = store.NewRedisStore(*b.storeOptions)
	}
	if b.config.Estimator == nil {
		b.config.Estimator = tokens.NewEstimatorForEncoding(b.encoding)
	}
	if b.config.Reporter == nil {
		b.config.Reporter = &NoOpTurnReporter{}
	}

	registry := session.NewRegistry(b.config.Store, b.config.SessionTTL)
	history := memory.NewHistoryLog(b.config.Store, registry, b.config.MaxHistoryLength, b.config.SessionTTL)
	if b.now != nil {
		registry.WithClock(b.now)
		history.WithClock(b.now)
	}

	return &Memory{
		config:     b.config,
		registry:   registry,
		history:    history,
		compressor: compress.NewCompressor(b.config.Estimator, b.config.HardFloor),
	}, nil
}
