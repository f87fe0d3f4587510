package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotLocked = errors.New("key is not part of the transaction")
	ErrClosed       = errors.New("store is closed")
)

// Tx is the view of the store inside Update. Writes are buffered and become
// visible to other callers only when the transaction commits.
type Tx interface {
	Get(key string) ([]byte, bool, error)
	SetEX(key string, ttl time.Duration, value []byte)
	Del(keys ...string)
}

// Store is a TTL'd key-value store with atomic read-modify-write over a fixed
// key set. fn may be called more than once and must not have side effects
// outside of tx.
type Store interface {
	Update(ctx context.Context, keys []string, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// ExpiredHandler is told about keys that expired before anyone read them.
type ExpiredHandler func(key string)

// ExpiryWatcher is implemented by stores able to report expired keys.
type ExpiryWatcher interface {
	WatchExpired(ctx context.Context, prefix string, h ExpiredHandler) error
}

type write struct {
	value []byte
	ttl   time.Duration
	del   bool
}

type bufferedTx struct {
	keys   map[string]bool
	read   func(key string) ([]byte, bool, error)
	writes map[string]write
	order  []string
}

func newBufferedTx(keys []string, read func(key string) ([]byte, bool, error)) *bufferedTx {
	tx := &bufferedTx{
		keys:   make(map[string]bool, len(keys)),
		read:   read,
		writes: map[string]write{},
	}
	for _, k := range keys {
		tx.keys[k] = true
	}
	return tx
}

func (t *bufferedTx) Get(key string) ([]byte, bool, error) {
	if !t.keys[key] {
		return nil, false, errors.Wrap(ErrKeyNotLocked, key)
	}
	if w, ok := t.writes[key]; ok {
		if w.del {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	return t.read(key)
}

func (t *bufferedTx) SetEX(key string, ttl time.Duration, value []byte) {
	t.put(key, write{value: value, ttl: ttl})
}

func (t *bufferedTx) Del(keys ...string) {
	for _, k := range keys {
		t.put(k, write{del: true})
	}
}

func (t *bufferedTx) put(key string, w write) {
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = w
}

func (t *bufferedTx) validate() error {
	for _, k := range t.order {
		if !t.keys[k] {
			return errors.Wrap(ErrKeyNotLocked, k)
		}
	}
	return nil
}

func (t *bufferedTx) each(fn func(key string, w write)) {
	for _, k := range t.order {
		fn(k, t.writes[k])
	}
}
