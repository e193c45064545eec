package api

import (
	"context"
	"errors"
	"sync"

	"task-tracker/domain"
)

// ErrNotEditing is returned by SaveEdit when no task is being edited.
var ErrNotEditing = errors.New("no task is being edited")

// DashboardState is everything the task list screen renders.
type DashboardState struct {
	User     string        `json:"user"`
	LoggedIn bool          `json:"loggedIn"`
	Filter   domain.Filter `json:"filter"`
	Search   string        `json:"search"`
	Editing  *int64        `json:"editing"`
	Tasks    []domain.Task `json:"tasks"`
	Counts   domain.Counts `json:"counts"`
}

// Dashboard holds display state on top of a Tracker: the active filter, the
// search text and the task currently being edited.
type Dashboard struct {
	tr Tracker

	mu      sync.Mutex
	filter  domain.Filter
	search  string
	editing *int64
}

func NewDashboard(tr Tracker) *Dashboard {
	return &Dashboard{tr: tr, filter: domain.FilterAll}
}

func (d *Dashboard) SetFilter(f domain.Filter) {
	d.mu.Lock()
	d.filter = f
	d.mu.Unlock()
}

func (d *Dashboard) SetSearch(search string) {
	d.mu.Lock()
	d.search = search
	d.mu.Unlock()
}

// Query returns the active filter and search text.
func (d *Dashboard) Query() (domain.Filter, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter, d.search
}

// StartEdit marks a task as being edited.
func (d *Dashboard) StartEdit(id int64) error {
	if _, err := d.tr.Get(id); err != nil {
		return err
	}
	d.mu.Lock()
	d.editing = &id
	d.mu.Unlock()
	return nil
}

func (d *Dashboard) CancelEdit() {
	d.mu.Lock()
	d.editing = nil
	d.mu.Unlock()
}

// SaveEdit applies fields to the task being edited. The edit state is kept
// when the update is rejected.
func (d *Dashboard) SaveEdit(ctx context.Context, fields domain.TaskFields) (domain.Task, error) {
	d.mu.Lock()
	editing := d.editing
	d.mu.Unlock()
	if editing == nil {
		return domain.Task{}, ErrNotEditing
	}

	task, err := d.tr.Update(ctx, *editing, fields)
	if err != nil {
		if domain.IsNotFound(err) {
			d.clearEdit(*editing)
		}
		return domain.Task{}, err
	}
	d.clearEdit(*editing)
	return task, nil
}

// Delete removes a task and leaves edit mode if it was being edited.
func (d *Dashboard) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := d.tr.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	d.clearEdit(id)
	return removed, nil
}

// LogOut ends the session and resets all display state.
func (d *Dashboard) LogOut(ctx context.Context) {
	d.tr.LogOut(ctx)
	d.mu.Lock()
	d.filter = domain.FilterAll
	d.search = ""
	d.editing = nil
	d.mu.Unlock()
}

// State renders the dashboard. A logged-out tracker yields an empty list.
func (d *Dashboard) State() (DashboardState, error) {
	d.mu.Lock()
	st := DashboardState{Filter: d.filter, Search: d.search, Tasks: []domain.Task{}}
	if d.editing != nil {
		id := *d.editing
		st.Editing = &id
	}
	d.mu.Unlock()

	st.User, st.LoggedIn = d.tr.User()
	if !st.LoggedIn {
		st.Editing = nil
		return st, nil
	}

	tasks, err := d.tr.View(st.Filter, st.Search)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			st.User, st.LoggedIn, st.Editing = "", false, nil
			return st, nil
		}
		return DashboardState{}, err
	}
	counts, err := d.tr.Counts()
	if err != nil && !errors.Is(err, domain.ErrNoSession) {
		return DashboardState{}, err
	}
	st.Tasks = tasks
	st.Counts = counts

	if st.Editing != nil {
		if _, err := d.tr.Get(*st.Editing); err != nil {
			d.clearEdit(*st.Editing)
			st.Editing = nil
		}
	}
	return st, nil
}

func (d *Dashboard) clearEdit(id int64) {
	d.mu.Lock()
	if d.editing != nil && *d.editing == id {
		d.editing = nil
	}
	d.mu.Unlock()
}
