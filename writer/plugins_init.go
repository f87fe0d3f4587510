package writer

import (
	"github.com/metrico/qryn-ai/writer/config"
	"github.com/metrico/qryn-ai/writer/plugins"
	"github.com/metrico/qryn-ai/writer/store"
)

func init() {
	plugins.RegisterMergeStorePlugin(config.StoreRedis, func(cfg *config.QrynAIConfig) (store.Store, error) {
		return store.NewRedisStore(store.RedisConfig{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			TxRetries:    cfg.Redis.TxRetries,
			TxRetryDelay: cfg.Redis.TxRetryDelay,
		})
	})
	plugins.RegisterMergeStorePlugin(config.StoreMemory, func(cfg *config.QrynAIConfig) (store.Store, error) {
		return store.NewMemoryStore(int(cfg.Memory.MaxBytes.Bytes())), nil
	})
}
