package api

import (
	"context"

	"task-tracker/domain"
)

// Tracker is the state container the handlers drive. *tracker.Tracker
// implements it.
type Tracker interface {
	User() (string, bool)
	LogIn(ctx context.Context, name string) error
	LogOut(ctx context.Context)
	Add(ctx context.Context, fields domain.TaskFields) (domain.Task, error)
	Update(ctx context.Context, id int64, fields domain.TaskFields) (domain.Task, error)
	ToggleComplete(ctx context.Context, id int64) (domain.Task, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Get(id int64) (domain.Task, error)
	View(filter domain.Filter, search string) ([]domain.Task, error)
	Counts() (domain.Counts, error)
	StorageErr() error
	Subscribe() (<-chan struct{}, func())
}

type sessionRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	User     string `json:"user"`
	LoggedIn bool   `json:"loggedIn"`
}

type tasksResponse struct {
	Tasks  []domain.Task `json:"tasks"`
	Counts domain.Counts `json:"counts"`
	Filter domain.Filter `json:"filter"`
	Search string        `json:"search"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Durable bool   `json:"durable"`
	Error   string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
