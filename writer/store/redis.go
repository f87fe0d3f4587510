package store

import (
	"context"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/metrico/qryn-ai/writer/utils/logger"
)

const expiredPattern = "__keyevent@*__:expired"

type RedisConfig struct {
	URL          string
	PoolSize     int
	TxRetries    uint
	TxRetryDelay time.Duration
}

// RedisStore shares the merge state between processes. Updates run as
// WATCH/MULTI transactions and are retried when a watched key changes.
type RedisStore struct {
	client  redis.UniversalClient
	retries uint
	delay   time.Duration
	pubsub  *redis.PubSub
	stopped chan struct{}
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis url")
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), cfg.TxRetries, cfg.TxRetryDelay), nil
}

func NewRedisStoreFromClient(client redis.UniversalClient, retries uint, delay time.Duration) *RedisStore {
	if retries == 0 {
		retries = 1
	}
	return &RedisStore{
		client:  client,
		retries: retries,
		delay:   delay,
	}
}

func (r *RedisStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	txf := func(rtx *redis.Tx) error {
		tx := newBufferedTx(keys, func(key string) ([]byte, bool, error) {
			val, err := rtx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return val, true, nil
		})
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.validate(); err != nil {
			return err
		}
		if len(tx.order) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			tx.each(func(key string, w write) {
				if w.del {
					pipe.Del(ctx, key)
					return
				}
				pipe.Set(ctx, key, w.value, w.ttl)
			})
			return nil
		})
		return err
	}
	return retry.Do(
		func() error {
			return r.client.Watch(ctx, txf, keys...)
		},
		retry.Attempts(r.retries),
		retry.Delay(r.delay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, redis.TxFailedErr)
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// WatchExpired subscribes to expiry notifications of keys starting with
// prefix. Enabling the notifications needs CONFIG SET, managed servers often
// refuse it; they then have to be enabled on the server side.
func (r *RedisStore) WatchExpired(ctx context.Context, prefix string, h ExpiredHandler) error {
	if err := r.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		logger.Info("unable to enable keyspace notifications: ", err)
	}
	pubsub := r.client.PSubscribe(ctx, expiredPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return errors.Wrap(err, "subscribe to expired keys")
	}
	r.pubsub = pubsub
	r.stopped = make(chan struct{})
	go func() {
		defer close(r.stopped)
		for msg := range pubsub.Channel() {
			if strings.HasPrefix(msg.Payload, prefix) {
				h(msg.Payload)
			}
		}
	}()
	return nil
}

func (r *RedisStore) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
		<-r.stopped
	}
	return r.client.Close()
}
