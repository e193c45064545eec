package tracker

import (
	"errors"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"task-tracker/domain"
)

// reporter logs storage failures and remembers the latest one per key until
// a later write to that key succeeds.
type reporter struct {
	logger *log.Logger

	mu     sync.Mutex
	failed map[string]*domain.StorageError
}

func newReporter(logger *log.Logger) *reporter {
	return &reporter{logger: logger, failed: map[string]*domain.StorageError{}}
}

func (r *reporter) fail(op, key string, err error) *domain.StorageError {
	serr := &domain.StorageError{Op: op, Key: key, Err: err}
	r.logger.WithError(err).WithFields(log.Fields{"op": op, "key": key}).Error("storage failure; keeping in-memory state")

	r.mu.Lock()
	r.failed[key] = serr
	r.mu.Unlock()
	return serr
}

func (r *reporter) succeed(key string) {
	r.mu.Lock()
	delete(r.failed, key)
	r.mu.Unlock()
}

func (r *reporter) failing(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.failed[key]
	return ok
}

// err joins every outstanding failure, ordered by key.
func (r *reporter) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.failed))
	for k := range r.failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	errs := make([]error, 0, len(keys))
	for _, k := range keys {
		errs = append(errs, r.failed[k])
	}
	return errors.Join(errs...)
}
