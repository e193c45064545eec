package storage

import "context"

// Keys under which the tracker persists its state.
const (
	SessionKey = "taskTracker_username"
	TasksKey   = "taskTracker_tasks"
)

// KeyValue is the durable storage facility used by the tracker. Removing a
// missing key is not an error.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
