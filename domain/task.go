package domain

import (
	"strings"
	"time"
)

// Task represents a single to-do item in the tracker.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskFields carries the caller-editable part of a task.
type TaskFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Normalize trims both fields and validates the title.
func (f TaskFields) Normalize() (TaskFields, error) {
	out := TaskFields{
		Title:       strings.TrimSpace(f.Title),
		Description: strings.TrimSpace(f.Description),
	}
	if out.Title == "" {
		return TaskFields{}, &ValidationError{Field: "title", Reason: "task title is required"}
	}
	return out, nil
}

// Filter selects tasks by completion status.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterCompleted Filter = "completed"
	FilterPending   Filter = "pending"
)

// ParseFilter converts a raw filter value. The empty string selects all tasks.
func ParseFilter(raw string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterCompleted:
		return FilterCompleted, nil
	case FilterPending:
		return FilterPending, nil
	default:
		return "", &ValidationError{Field: "filter", Reason: "unknown filter " + raw}
	}
}

// Match reports whether the task passes the status filter.
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterCompleted:
		return t.Completed
	case FilterPending:
		return !t.Completed
	default:
		return true
	}
}

// Counts holds totals over the full, unfiltered collection.
type Counts struct {
	All       int `json:"all"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}
