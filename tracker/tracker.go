package tracker

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"task-tracker/domain"
	"task-tracker/storage"
)

// Tracker is the single owned state container: a Session gating a TaskStore.
// It is safe for concurrent use; operations are applied one at a time.
type Tracker struct {
	mu      sync.Mutex
	opts    options
	report  *reporter
	session *Session
	store   *TaskStore
	// cleared is set by LogOut so the next LogIn starts empty even when the
	// persisted snapshot could not be removed.
	cleared bool

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New builds a Tracker over kv and restores any persisted session and tasks.
func New(ctx context.Context, kv storage.KeyValue, opts ...Option) *Tracker {
	o := buildOptions(opts)
	r := newReporter(o.logger)
	t := &Tracker{
		opts:    o,
		report:  r,
		session: newSession(kv, o, r),
		store:   newTaskStore(kv, o, r),
		subs:    map[int]chan struct{}{},
	}
	if t.session.Restore(ctx) {
		t.store.Load(ctx)
		o.logger.WithFields(log.Fields{"user": t.session.Name(), "tasks": t.store.Len()}).Info("session restored")
	}
	return t
}

// User returns the logged-in display name.
func (t *Tracker) User() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Name(), t.session.LoggedIn()
}

// LogIn sets the display name. Logging in from a logged-out state loads the
// persisted snapshot, which is empty after a logout.
func (t *Tracker) LogIn(ctx context.Context, name string) error {
	t.mu.Lock()
	wasLoggedIn := t.session.LoggedIn()
	if err := t.session.LogIn(ctx, name); err != nil {
		t.mu.Unlock()
		return err
	}
	if !wasLoggedIn {
		if t.cleared {
			t.store.Reset()
			if t.report.failing(storage.TasksKey) {
				t.store.persist(ctx)
			}
		} else {
			t.store.Load(ctx)
		}
		t.cleared = false
	}
	t.opts.logger.WithField("user", t.session.Name()).Info("user logged in")
	t.mu.Unlock()

	t.notify()
	return nil
}

// LogOut ends the session and clears every persisted and in-memory task.
func (t *Tracker) LogOut(ctx context.Context) {
	t.mu.Lock()
	name := t.session.Name()
	t.session.LogOut(ctx)
	t.store.Reset()
	t.cleared = true
	t.opts.logger.WithField("user", name).Info("user logged out")
	t.mu.Unlock()

	t.notify()
}

// Add creates a task.
func (t *Tracker) Add(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	t.mu.Lock()
	if !t.session.LoggedIn() {
		t.mu.Unlock()
		return domain.Task{}, domain.ErrNoSession
	}
	task, err := t.store.Add(ctx, fields)
	t.mu.Unlock()

	if err == nil {
		t.notify()
	}
	return task, err
}

// Update edits the title and description of a task.
func (t *Tracker) Update(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error) {
	t.mu.Lock()
	if !t.session.LoggedIn() {
		t.mu.Unlock()
		return domain.Task{}, domain.ErrNoSession
	}
	task, err := t.store.Update(ctx, id, fields)
	t.mu.Unlock()

	if err == nil {
		t.notify()
	}
	return task, err
}

// ToggleComplete flips the completion flag of a task.
func (t *Tracker) ToggleComplete(ctx context.Context, id int64) (domain.Task, error) {
	t.mu.Lock()
	if !t.session.LoggedIn() {
		t.mu.Unlock()
		return domain.Task{}, domain.ErrNoSession
	}
	task, err := t.store.ToggleComplete(ctx, id)
	t.mu.Unlock()

	if err == nil {
		t.notify()
	}
	return task, err
}

// Delete removes a task. Deleting an unknown id succeeds and reports false.
func (t *Tracker) Delete(ctx context.Context, id int64) (bool, error) {
	t.mu.Lock()
	if !t.session.LoggedIn() {
		t.mu.Unlock()
		return false, domain.ErrNoSession
	}
	removed := t.store.Delete(ctx, id)
	t.mu.Unlock()

	if removed {
		t.notify()
	}
	return removed, nil
}

// Get returns a single task.
func (t *Tracker) Get(id int64) (domain.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.session.LoggedIn() {
		return domain.Task{}, domain.ErrNoSession
	}
	return t.store.Get(id)
}

// Tasks returns a copy of the collection in stored order.
func (t *Tracker) Tasks() ([]domain.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.session.LoggedIn() {
		return nil, domain.ErrNoSession
	}
	return t.store.Tasks(), nil
}

// View returns the filtered, searched and sorted projection of the tasks.
func (t *Tracker) View(filter domain.Filter, search string) ([]domain.Task, error) {
	tasks, err := t.Tasks()
	if err != nil {
		return nil, err
	}
	return domain.View(tasks, filter, search), nil
}

// Counts returns totals over the whole collection.
func (t *Tracker) Counts() (domain.Counts, error) {
	tasks, err := t.Tasks()
	if err != nil {
		return domain.Counts{}, err
	}
	return domain.CountTasks(tasks), nil
}

// StorageErr returns outstanding storage failures, or nil when storage is in
// sync with memory.
func (t *Tracker) StorageErr() error {
	return t.report.err()
}

// Subscribe returns a channel signalled after every change. Signals coalesce,
// so a slow reader sees at least one signal after the latest change. Call the
// returned func to unsubscribe.
func (t *Tracker) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
		})
	}
}

func (t *Tracker) notify() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
