// Package tracker holds the task tracker's state: the logged-in display name
// and the task collection, both persisted to a storage.KeyValue after every
// change.
//
// Session and TaskStore are not safe for concurrent use on their own. Tracker
// composes them behind a single mutex so that each operation, including its
// storage write, completes before the next one starts.
package tracker
