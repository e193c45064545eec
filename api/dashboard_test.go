package api

import (
	"context"
	"errors"
	"testing"

	"task-tracker/domain"
	"task-tracker/storage"
	"task-tracker/tracker"
)

func newTestDashboard(t *testing.T) (*Dashboard, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New(context.Background(), storage.NewMemory())
	if err := tr.LogIn(context.Background(), "ivy"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return NewDashboard(tr), tr
}

func TestDashboardEditing(t *testing.T) {
	dash, tr := newTestDashboard(t)
	ctx := context.Background()
	task, _ := tr.Add(ctx, domain.TaskFields{Title: "draft"})

	if _, err := dash.SaveEdit(ctx, domain.TaskFields{Title: "x"}); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing, got %v", err)
	}
	if err := dash.StartEdit(task.ID + 1); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := dash.StartEdit(task.ID); err != nil {
		t.Fatalf("start edit: %v", err)
	}

	if _, err := dash.SaveEdit(ctx, domain.TaskFields{Title: ""}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	st, _ := dash.State()
	if st.Editing == nil || *st.Editing != task.ID {
		t.Fatalf("rejected save must stay in edit mode: %+v", st.Editing)
	}

	saved, err := dash.SaveEdit(ctx, domain.TaskFields{Title: "done", Description: "d"})
	if err != nil || saved.Title != "done" {
		t.Fatalf("save = %+v, %v", saved, err)
	}
	if st, _ := dash.State(); st.Editing != nil {
		t.Fatalf("successful save must leave edit mode")
	}

	_ = dash.StartEdit(task.ID)
	dash.CancelEdit()
	if st, _ := dash.State(); st.Editing != nil {
		t.Fatalf("cancel must leave edit mode")
	}
}

func TestDashboardDeleteClearsOnlyMatchingEdit(t *testing.T) {
	dash, tr := newTestDashboard(t)
	ctx := context.Background()
	a, _ := tr.Add(ctx, domain.TaskFields{Title: "a"})
	b, _ := tr.Add(ctx, domain.TaskFields{Title: "b"})

	_ = dash.StartEdit(a.ID)
	if removed, err := dash.Delete(ctx, b.ID); err != nil || !removed {
		t.Fatalf("delete b = %v, %v", removed, err)
	}
	if st, _ := dash.State(); st.Editing == nil || *st.Editing != a.ID {
		t.Fatalf("deleting another task must keep edit mode")
	}

	if removed, err := dash.Delete(ctx, a.ID); err != nil || !removed {
		t.Fatalf("delete a = %v, %v", removed, err)
	}
	if st, _ := dash.State(); st.Editing != nil {
		t.Fatalf("deleting the edited task must leave edit mode")
	}
	if removed, err := dash.Delete(ctx, a.ID); err != nil || removed {
		t.Fatalf("repeat delete = %v, %v", removed, err)
	}
}

func TestDashboardState(t *testing.T) {
	dash, tr := newTestDashboard(t)
	ctx := context.Background()
	milk, _ := tr.Add(ctx, domain.TaskFields{Title: "Buy milk"})
	_, _ = tr.Add(ctx, domain.TaskFields{Title: "Walk dog"})
	_, _ = tr.ToggleComplete(ctx, milk.ID)

	dash.SetFilter(domain.FilterCompleted)
	dash.SetSearch("milk")
	st, err := dash.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.User != "ivy" || !st.LoggedIn {
		t.Fatalf("unexpected user %q/%v", st.User, st.LoggedIn)
	}
	if len(st.Tasks) != 1 || st.Tasks[0].ID != milk.ID {
		t.Fatalf("unexpected view %+v", st.Tasks)
	}
	if st.Counts != (domain.Counts{All: 2, Completed: 1, Pending: 1}) {
		t.Fatalf("counts must ignore the filter, got %+v", st.Counts)
	}

	dash.SetSearch("nothing")
	if st, _ := dash.State(); len(st.Tasks) != 0 {
		t.Fatalf("expected empty view, got %+v", st.Tasks)
	}
}

func TestDashboardLogOut(t *testing.T) {
	dash, tr := newTestDashboard(t)
	ctx := context.Background()
	task, _ := tr.Add(ctx, domain.TaskFields{Title: "x"})
	dash.SetFilter(domain.FilterPending)
	dash.SetSearch("x")
	_ = dash.StartEdit(task.ID)

	dash.LogOut(ctx)
	st, err := dash.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.LoggedIn || st.Editing != nil || st.Filter != domain.FilterAll || st.Search != "" || len(st.Tasks) != 0 {
		t.Fatalf("logout must reset the dashboard, got %+v", st)
	}
}
