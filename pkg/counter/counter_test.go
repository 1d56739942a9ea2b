package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"

	"github.com/andydunstall/rumor/pkg/log"
)

// fakeKV is an in-memory KV. conflicts is the number of compare-and-swap
// calls to reject before accepting.
type fakeKV struct {
	values    map[string]uint64
	conflicts int
	readErr   error

	cas int

	mu sync.Mutex
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		values: make(map[string]uint64),
	}
}

func (kv *fakeKV) Read(_ context.Context, key string) (uint64, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	if kv.readErr != nil {
		return 0, kv.readErr
	}
	v, ok := kv.values[key]
	if !ok {
		return 0, ErrKeyNotFound
	}
	return v, nil
}

func (kv *fakeKV) CompareAndSwap(_ context.Context, key string, from, to uint64, create bool) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.cas++

	if kv.conflicts > 0 {
		kv.conflicts--
		return ErrPreconditionFailed
	}

	v, ok := kv.values[key]
	if !ok {
		if !create {
			return ErrKeyNotFound
		}
		kv.values[key] = to
		return nil
	}
	if v != from {
		return ErrPreconditionFailed
	}
	kv.values[key] = to
	return nil
}

var _ KV = &fakeKV{}

func TestCounter_Add(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		kv := newFakeKV()
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		require.NoError(t, counter.Add(context.Background(), 5))
		assert.Equal(t, uint64(5), kv.values["counter"])

		require.NoError(t, counter.Add(context.Background(), 3))
		assert.Equal(t, uint64(8), kv.values["counter"])
	})

	t.Run("retry on conflict", func(t *testing.T) {
		kv := newFakeKV()
		kv.values["counter"] = 10
		kv.conflicts = 2
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		require.NoError(t, counter.Add(context.Background(), 1))
		assert.Equal(t, uint64(11), kv.values["counter"])
		assert.Equal(t, 3, kv.cas)
	})

	t.Run("concurrent", func(t *testing.T) {
		kv := newFakeKV()
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		var wg sync.WaitGroup
		for i := 0; i != 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, counter.Add(context.Background(), 2))
			}()
		}
		wg.Wait()

		value, err := counter.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(20), value)
	})

	t.Run("cancelled", func(t *testing.T) {
		kv := newFakeKV()
		kv.conflicts = 1000000
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
		defer cancel()

		err := counter.Add(ctx, 1)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("read error", func(t *testing.T) {
		kv := newFakeKV()
		kv.readErr = errors.New("unavailable")
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		assert.Error(t, counter.Add(context.Background(), 1))
	})
}

func TestCounter_Read(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		kv := newFakeKV()
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		value, err := counter.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), value)
	})

	t.Run("confirms value", func(t *testing.T) {
		kv := newFakeKV()
		kv.values["counter"] = 7
		kv.conflicts = 1
		counter := NewCounter(kv, "counter", log.NewNopLogger())

		value, err := counter.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(7), value)
		assert.Equal(t, 2, kv.cas)
	})
}

func TestConfig_Validate(t *testing.T) {
	conf := Config{Backend: BackendNone}
	assert.NoError(t, conf.Validate())
	assert.False(t, conf.Enabled())

	conf = Config{Backend: BackendEtcd, Key: "counter"}
	assert.ErrorContains(t, conf.Validate(), "missing etcd endpoints")

	conf.Etcd.Endpoints = []string{"localhost:2379"}
	conf.Etcd.DialTimeout = time.Second
	assert.NoError(t, conf.Validate())
	assert.True(t, conf.Enabled())

	conf = Config{Backend: "redis"}
	assert.ErrorContains(t, conf.Validate(), "unsupported backend")
}

func TestParseValue(t *testing.T) {
	value, err := parseValue(&mvccpb.KeyValue{
		Key:   []byte("/rumor/counter"),
		Value: []byte("42"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)

	_, err = parseValue(&mvccpb.KeyValue{
		Key:   []byte("/rumor/counter"),
		Value: []byte("foo"),
	})
	assert.ErrorContains(t, err, "parse value: /rumor/counter")
}
