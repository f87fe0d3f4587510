package merger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/metrico/qryn-ai/writer/model"
	"github.com/metrico/qryn-ai/writer/store"
)

const (
	testTraceID = "0af7651916cd43dd8448eb211c80319c"
	testSpanID  = "b7ad6b7169203331"
)

func newTestMerger() (*Merger, store.Store) {
	s := store.NewMemoryStore(32 * 1024 * 1024)
	return New(s, time.Minute, ""), s
}

func traceProps() model.Properties {
	return model.Properties{
		model.PropModel:         "gpt-4o",
		model.PropProvider:      "openai",
		model.PropInputTokens:   12,
		model.PropLatency:       1.5,
		model.PropTraceID:       testTraceID,
		model.PropOperationName: "chat",
		"otel.http.method":      "POST",
	}
}

func logProps(content string) model.Properties {
	return model.Properties{
		model.PropInput:   []map[string]any{{"role": "user", "content": content}},
		model.PropModel:   "gpt-4o-from-log",
		model.PropTraceID: testTraceID,
	}
}

func keysExist(t *testing.T, m *Merger, s store.Store) (bool, bool) {
	var hasTrace, hasLogs bool
	traceKey, logsKey := m.TraceKey(testTraceID, testSpanID), m.LogsKey(testTraceID, testSpanID)
	err := s.Update(context.Background(), []string{traceKey, logsKey}, func(tx store.Tx) error {
		var err error
		if _, hasTrace, err = tx.Get(traceKey); err != nil {
			return err
		}
		_, hasLogs, err = tx.Get(logsKey)
		return err
	})
	require.NoError(t, err)
	return hasTrace, hasLogs
}

func TestKeys(t *testing.T) {
	m, _ := newTestMerger()
	assert.Equal(t, "otel_merge:trace:t:s", m.TraceKey("t", "s"))
	assert.Equal(t, "otel_merge:logs:t:s", m.LogsKey("t", "s"))
}

func TestOrderIndependence(t *testing.T) {
	ctx := context.Background()

	m1, _ := newTestMerger()
	res, ok := m1.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	assert.False(t, ok)
	assert.Nil(t, res)
	traceFirst, ok := m1.Merge(ctx, testTraceID, testSpanID, logProps("hi"), false)
	require.True(t, ok)

	m2, _ := newTestMerger()
	_, ok = m2.Merge(ctx, testTraceID, testSpanID, logProps("hi"), false)
	assert.False(t, ok)
	logsFirst, ok := m2.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)

	assert.Equal(t, traceFirst, logsFirst)
	assert.Equal(t, "gpt-4o", traceFirst[model.PropModel], "trace wins on collisions")
	assert.Equal(t, int64(12), traceFirst[model.PropInputTokens])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "hi"}}, traceFirst[model.PropInput])
}

func TestMultiLogAccumulation(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMerger()
	const n = 5
	for i := 0; i < n; i++ {
		props := logProps(fmt.Sprintf("turn %d", i))
		if i == n-1 {
			props[model.PropOutputChoices] = []any{map[string]any{"role": "assistant", "content": "answer"}}
		}
		_, ok := m.Merge(ctx, testTraceID, testSpanID, props, false)
		assert.False(t, ok)
	}
	hasTrace, hasLogs := keysExist(t, m, s)
	assert.False(t, hasTrace)
	assert.True(t, hasLogs)

	res, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)
	input := res[model.PropInput].([]any)
	require.Len(t, input, n)
	for i, msg := range input {
		assert.Equal(t, fmt.Sprintf("turn %d", i), msg.(map[string]any)["content"])
	}
	assert.Len(t, res[model.PropOutputChoices], 1)
}

func TestLogsAfterTraceAccumulate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMerger()
	existing := model.Properties{model.PropInput: []any{"a"}, "x": int64(1)}
	res := existing.Accumulate(model.Properties{model.PropInput: []any{"b"}, "x": int64(2)})
	assert.Equal(t, model.Properties{model.PropInput: []any{"a", "b"}, "x": int64(2)}, res)
	assert.Equal(t, []any{"a"}, existing[model.PropInput])

	_, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	assert.False(t, ok)
	res, ok = m.Merge(ctx, testTraceID, testSpanID, logProps("hi"), false)
	assert.True(t, ok)
	assert.Equal(t, "openai", res[model.PropProvider])
}

func TestKeyCleanup(t *testing.T) {
	ctx := context.Background()
	m, s := newTestMerger()
	m.Merge(ctx, testTraceID, testSpanID, logProps("a"), false)
	m.Merge(ctx, testTraceID, testSpanID, logProps("b"), false)
	_, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)
	hasTrace, hasLogs := keysExist(t, m, s)
	assert.False(t, hasTrace)
	assert.False(t, hasLogs)

	// same ids again start from scratch
	res, ok := m.Merge(ctx, testTraceID, testSpanID, logProps("c"), false)
	assert.False(t, ok)
	assert.Nil(t, res)
	res, ok = m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)
	assert.Len(t, res[model.PropInput], 1)
}

type fakeClock struct {
	mtx sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.now = c.now.Add(d)
}

func TestTTLLoss(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var expired []string
	s := store.NewMemoryStore(32*1024*1024, store.WithClock(clock.Now),
		store.WithMemoryExpiredHandler(func(key string) { expired = append(expired, key) }))
	m := New(s, 2*time.Second, "")

	_, ok := m.Merge(ctx, testTraceID, testSpanID, logProps("lost"), false)
	assert.False(t, ok)
	clock.Advance(3 * time.Second)

	res, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	assert.False(t, ok, "expired logs must not merge")
	assert.Nil(t, res)
	assert.Equal(t, []string{m.LogsKey(testTraceID, testSpanID)}, expired)
	m.OnExpired(expired[0])

	hasTrace, hasLogs := keysExist(t, m, s)
	assert.True(t, hasTrace)
	assert.False(t, hasLogs)
}

func TestAccumulationRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := store.NewMemoryStore(32*1024*1024, store.WithClock(clock.Now))
	m := New(s, 2*time.Second, "")

	_, ok := m.Merge(ctx, testTraceID, testSpanID, logProps("first"), false)
	assert.False(t, ok)
	clock.Advance(1500 * time.Millisecond)
	_, ok = m.Merge(ctx, testTraceID, testSpanID, logProps("second"), false)
	assert.False(t, ok)
	// past the first delivery's expiry, within the second's
	clock.Advance(1500 * time.Millisecond)

	res, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)
	input := res[model.PropInput].([]any)
	require.Len(t, input, 2)
	assert.Equal(t, "first", input[0].(map[string]any)["content"])
	assert.Equal(t, "second", input[1].(map[string]any)["content"])

	hasTrace, hasLogs := keysExist(t, m, s)
	assert.False(t, hasTrace)
	assert.False(t, hasLogs)
}

type mockStore struct {
	mock.Mock
}

func (s *mockStore) Update(ctx context.Context, keys []string, fn func(tx store.Tx) error) error {
	return s.Called(keys).Error(0)
}

func (s *mockStore) Ping(ctx context.Context) error {
	return s.Called().Error(0)
}

func (s *mockStore) Close() error {
	return nil
}

type failingTx struct{}

func (failingTx) Get(key string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingTx) SetEX(key string, ttl time.Duration, v []byte) {}
func (failingTx) Del(keys ...string)                            {}

type failingGetStore struct{}

func (failingGetStore) Update(ctx context.Context, keys []string, fn func(tx store.Tx) error) error {
	return fn(failingTx{})
}

func (failingGetStore) Ping(ctx context.Context) error { return nil }
func (failingGetStore) Close() error                   { return nil }

func TestStoreFailureFallback(t *testing.T) {
	ctx := context.Background()
	props := traceProps()

	m := New(failingGetStore{}, time.Minute, "")
	res, ok := m.Merge(ctx, testTraceID, testSpanID, props, true)
	assert.True(t, ok)
	assert.Equal(t, props, res)

	s := &mockStore{}
	s.On("Update", []string{"otel_merge:trace:" + testTraceID + ":" + testSpanID,
		"otel_merge:logs:" + testTraceID + ":" + testSpanID}).Return(errors.New("i/o timeout"))
	m = New(s, time.Minute, "")
	lp := logProps("x")
	res, ok = m.Merge(ctx, testTraceID, testSpanID, lp, false)
	assert.True(t, ok)
	assert.Equal(t, lp, res)
	s.AssertExpectations(t)
}

func TestMissingIDs(t *testing.T) {
	s := &mockStore{}
	m := New(s, time.Minute, "")
	props := logProps("x")
	res, ok := m.Merge(context.Background(), "", testSpanID, props, false)
	assert.True(t, ok)
	assert.Equal(t, props, res)
	s.AssertNotCalled(t, "Update", mock.Anything)
}

func TestConcurrentLogDeliveries(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMerger()
	const n = 50
	g := errgroup.Group{}
	var mtx sync.Mutex
	var merged []model.Properties
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, ok := m.Merge(ctx, testTraceID, testSpanID, logProps(fmt.Sprintf("m%d", i)), false)
			if ok {
				mtx.Lock()
				merged = append(merged, res)
				mtx.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Empty(t, merged)

	res, ok := m.Merge(ctx, testTraceID, testSpanID, traceProps(), true)
	require.True(t, ok)
	input := res[model.PropInput].([]any)
	assert.Len(t, input, n)
	seen := map[string]bool{}
	for _, msg := range input {
		seen[msg.(map[string]any)["content"].(string)] = true
	}
	assert.Len(t, seen, n)
}

func TestConcurrentTraceAndLogs(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		m, _ := newTestMerger()
		spanID := fmt.Sprintf("%016x", round)
		var mtx sync.Mutex
		emitted := 0
		g := errgroup.Group{}
		for i := 0; i < 4; i++ {
			g.Go(func() error {
				if _, ok := m.Merge(ctx, testTraceID, spanID, logProps("x"), false); ok {
					mtx.Lock()
					emitted++
					mtx.Unlock()
				}
				return nil
			})
		}
		g.Go(func() error {
			if _, ok := m.Merge(ctx, testTraceID, spanID, traceProps(), true); ok {
				mtx.Lock()
				emitted++
				mtx.Unlock()
			}
			return nil
		})
		require.NoError(t, g.Wait())
		assert.Equal(t, 1, emitted, "exactly one side completes the merge")
	}
}
