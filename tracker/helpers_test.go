package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"task-tracker/domain"
	"task-tracker/storage"
)

var errStorageDown = errors.New("storage unavailable")

// flakyKV wraps Memory and can be told to fail individual operations.
type flakyKV struct {
	*storage.Memory

	mu         sync.Mutex
	failGet    bool
	failSet    bool
	failRemove bool
	sets       int
}

func newFlakyKV() *flakyKV {
	return &flakyKV{Memory: storage.NewMemory()}
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return nil, false, errStorageDown
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet
	f.sets++
	f.mu.Unlock()
	if fail {
		return errStorageDown
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyKV) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failRemove
	f.mu.Unlock()
	if fail {
		return errStorageDown
	}
	return f.Memory.Remove(ctx, key)
}

func (f *flakyKV) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func (f *flakyKV) setFailures(get, set, remove bool) {
	f.mu.Lock()
	f.failGet, f.failSet, f.failRemove = get, set, remove
	f.mu.Unlock()
}

// fixedClock always returns the same instant unless advanced.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 1, 15, 10, 0, 0, 123456789, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func quietLogger() (*log.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	return logger, hook
}

func storedTasks(t *testing.T, kv storage.KeyValue) ([]domain.Task, bool) {
	t.Helper()
	data, ok, err := kv.Get(context.Background(), storage.TasksKey)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !ok {
		return nil, false
	}
	tasks, err := domain.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return tasks, true
}
