package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func redisStore(t *testing.T) *RedisStore {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set")
	}
	s, err := NewRedisStore(RedisConfig{URL: url, TxRetries: 100, TxRetryDelay: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(name string) string {
	return fmt.Sprintf("qryn_ai_test:%s:%d", name, time.Now().UnixNano())
}

func TestRedisStoreInvalidURL(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}

func TestRedisStoreSetGetDel(t *testing.T) {
	s := redisStore(t)
	ctx := context.Background()
	a, b := testKey("a"), testKey("b")
	require.NoError(t, s.Update(ctx, []string{a, b}, func(tx Tx) error {
		tx.SetEX(a, time.Minute, []byte("1"))
		val, ok, err := tx.Get(a)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), val)
		return nil
	}))
	val, ok := get(t, s, a)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), val)
	_, ok = get(t, s, b)
	assert.False(t, ok)

	require.NoError(t, s.Update(ctx, []string{a}, func(tx Tx) error {
		tx.Del(a)
		return nil
	}))
	_, ok = get(t, s, a)
	assert.False(t, ok)
}

func TestRedisStoreKeyNotLocked(t *testing.T) {
	s := redisStore(t)
	err := s.Update(context.Background(), []string{testKey("a")}, func(tx Tx) error {
		tx.SetEX("qryn_ai_test:other", time.Minute, []byte("x"))
		return nil
	})
	assert.ErrorIs(t, err, ErrKeyNotLocked)
}

func TestRedisStoreConcurrentIncrements(t *testing.T) {
	s := redisStore(t)
	key := testKey("n")
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			return s.Update(context.Background(), []string{key}, func(tx Tx) error {
				val, _, err := tx.Get(key)
				if err != nil {
					return err
				}
				tx.SetEX(key, time.Minute, append(val, 'x'))
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	val, _ := get(t, s, key)
	assert.Len(t, val, 20)
}

func TestRedisStoreExpiry(t *testing.T) {
	s := redisStore(t)
	key := testKey("ttl")
	require.NoError(t, s.Update(context.Background(), []string{key}, func(tx Tx) error {
		tx.SetEX(key, 100*time.Millisecond, []byte("v"))
		return nil
	}))
	assert.Eventually(t, func() bool {
		_, ok := get(t, s, key)
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}
