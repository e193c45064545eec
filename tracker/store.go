package tracker

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"task-tracker/domain"
	"task-tracker/storage"
)

// createdAt is kept at millisecond precision so snapshots round-trip exactly.
const timeResolution = time.Millisecond

// TaskStore owns the task collection for the current session. Every
// successful mutation writes the full snapshot under storage.TasksKey.
// Storage failures are reported and never fail the mutation.
type TaskStore struct {
	kv     storage.KeyValue
	opts   options
	report *reporter
	ids    idGenerator
	tasks  []domain.Task
}

// NewTaskStore creates an empty store. Call Load to read a persisted snapshot.
func NewTaskStore(kv storage.KeyValue, opts ...Option) *TaskStore {
	o := buildOptions(opts)
	return newTaskStore(kv, o, newReporter(o.logger))
}

func newTaskStore(kv storage.KeyValue, o options, r *reporter) *TaskStore {
	return &TaskStore{
		kv:     kv,
		opts:   o,
		report: r,
		ids:    idGenerator{now: o.now},
		tasks:  []domain.Task{},
	}
}

// Load replaces the in-memory collection with the persisted snapshot. A
// missing, unreadable or corrupt snapshot yields an empty collection.
func (s *TaskStore) Load(ctx context.Context) {
	s.tasks = []domain.Task{}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()
	data, ok, err := s.kv.Get(sctx, storage.TasksKey)
	if err != nil {
		s.report.fail("get", storage.TasksKey, err)
		return
	}
	if !ok {
		return
	}
	tasks, err := domain.DecodeSnapshot(data)
	if err != nil {
		s.report.fail("decode", storage.TasksKey, err)
		return
	}
	s.tasks = s.sanitize(tasks)
}

// sanitize drops entries that would break the store invariants.
func (s *TaskStore) sanitize(tasks []domain.Task) []domain.Task {
	seen := make(map[int64]struct{}, len(tasks))
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.TrimSpace(t.Title) == "" {
			s.opts.logger.WithField("task", t.ID).Warn("dropping stored task with empty title")
			continue
		}
		if _, dup := seen[t.ID]; dup {
			s.opts.logger.WithField("task", t.ID).Warn("dropping stored task with duplicate id")
			continue
		}
		seen[t.ID] = struct{}{}
		s.ids.observe(t.ID)
		out = append(out, t)
	}
	return out
}

// Reset empties the in-memory collection without touching storage.
func (s *TaskStore) Reset() {
	s.tasks = []domain.Task{}
}

// Tasks returns a copy of the collection in stored (newest insertion first) order.
func (s *TaskStore) Tasks() []domain.Task {
	return append([]domain.Task(nil), s.tasks...)
}

// Len returns the number of tasks.
func (s *TaskStore) Len() int { return len(s.tasks) }

// Get returns the task with the given id.
func (s *TaskStore) Get(id int64) (domain.Task, error) {
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return s.tasks[i], nil
}

// Add creates a pending task and prepends it to the collection.
func (s *TaskStore) Add(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	fields, err := fields.Normalize()
	if err != nil {
		return domain.Task{}, err
	}

	id := s.ids.next()
	for s.indexOf(id) >= 0 {
		s.ids.observe(id)
		id = s.ids.next()
	}
	task := domain.Task{
		ID:          id,
		Title:       fields.Title,
		Description: fields.Description,
		Completed:   false,
		CreatedAt:   s.opts.now().UTC().Truncate(timeResolution),
	}
	s.tasks = append([]domain.Task{task}, s.tasks...)
	s.persist(ctx)
	return task, nil
}

// Update replaces title and description of an existing task.
func (s *TaskStore) Update(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error) {
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	fields, err := fields.Normalize()
	if err != nil {
		return domain.Task{}, err
	}
	s.tasks[i].Title = fields.Title
	s.tasks[i].Description = fields.Description
	s.persist(ctx)
	return s.tasks[i], nil
}

// ToggleComplete flips the completion flag of one task.
func (s *TaskStore) ToggleComplete(ctx context.Context, id int64) (domain.Task, error) {
	i := s.indexOf(id)
	if i < 0 {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.persist(ctx)
	return s.tasks[i], nil
}

// Delete removes a task and reports whether it existed. Unknown ids are a
// no-op and nothing is written.
func (s *TaskStore) Delete(ctx context.Context, id int64) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.persist(ctx)
	return true
}

func (s *TaskStore) indexOf(id int64) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *TaskStore) persist(ctx context.Context) {
	data, err := domain.EncodeSnapshot(s.tasks)
	if err != nil {
		s.report.fail("encode", storage.TasksKey, err)
		return
	}

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()
	if err := s.kv.Set(sctx, storage.TasksKey, data); err != nil {
		s.report.fail("set", storage.TasksKey, err)
		return
	}
	s.report.succeed(storage.TasksKey)
	s.opts.logger.WithFields(log.Fields{"tasks": len(s.tasks), "bytes": len(data)}).Debug("task snapshot saved")
}

// StorageErr returns outstanding storage failures, or nil when the persisted
// state is in sync.
func (s *TaskStore) StorageErr() error {
	return s.report.err()
}
