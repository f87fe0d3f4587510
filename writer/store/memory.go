package store

import (
	"context"
	"encoding/binary"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/go-faster/city"
)

const memoryStripes = 256

// MemoryStore keeps the merge state in a process-local fastcache. It only
// coordinates requests served by this process. Entries are evicted when the
// cache is full, which is the same loss as a TTL expiry.
type MemoryStore struct {
	cache     *fastcache.Cache
	stripes   [memoryStripes]sync.Mutex
	now       func() time.Time
	onExpired ExpiredHandler
	closed    atomic.Bool
}

type MemoryOption func(s *MemoryStore)

// WithClock replaces time.Now, used to expire entries in tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithMemoryExpiredHandler(h ExpiredHandler) MemoryOption {
	return func(s *MemoryStore) { s.onExpired = h }
}

func NewMemoryStore(maxBytes int, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cache: fastcache.New(maxBytes),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WatchExpired reports lazily expired keys starting with prefix. It must be
// called before the store is shared.
func (s *MemoryStore) WatchExpired(ctx context.Context, prefix string, h ExpiredHandler) error {
	s.onExpired = func(key string) {
		if strings.HasPrefix(key, prefix) {
			h(key)
		}
	}
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, keys []string, fn func(tx Tx) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	idxs := s.lockOrder(keys)
	for _, i := range idxs {
		s.stripes[i].Lock()
	}
	var expired []string
	err := func() error {
		defer func() {
			for j := len(idxs) - 1; j >= 0; j-- {
				s.stripes[idxs[j]].Unlock()
			}
		}()
		tx := newBufferedTx(keys, func(key string) ([]byte, bool, error) {
			val, ok, exp := s.get(key)
			if exp {
				expired = append(expired, key)
			}
			return val, ok, nil
		})
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.validate(); err != nil {
			return err
		}
		tx.each(func(key string, w write) {
			if w.del {
				s.cache.Del([]byte(key))
				return
			}
			s.set(key, w.value, w.ttl)
		})
		return nil
	}()
	if s.onExpired != nil {
		for _, k := range expired {
			s.onExpired(k)
		}
	}
	return err
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.Reset()
	return nil
}

// get returns the live value of key. The third result is true when the entry
// was found expired and dropped.
func (s *MemoryStore) get(key string) ([]byte, bool, bool) {
	buf := s.cache.GetBig(nil, []byte(key))
	if len(buf) < 8 {
		return nil, false, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(buf[:8]))
	if s.now().UnixNano() >= expiresAt {
		s.cache.Del([]byte(key))
		return nil, false, true
	}
	return buf[8:], true, false
}

func (s *MemoryStore) set(key string, value []byte, ttl time.Duration) {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(s.now().Add(ttl).UnixNano()))
	copy(buf[8:], value)
	s.cache.SetBig([]byte(key), buf)
}

// lockOrder returns the sorted distinct stripes for keys so concurrent
// updates always lock in the same order.
func (s *MemoryStore) lockOrder(keys []string) []int {
	seen := map[int]bool{}
	res := make([]int, 0, len(keys))
	for _, k := range keys {
		i := int(city.CH64([]byte(k)) % memoryStripes)
		if !seen[i] {
			seen[i] = true
			res = append(res, i)
		}
	}
	sort.Ints(res)
	return res
}
