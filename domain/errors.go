package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoSession is returned for task operations while nobody is logged in.
var ErrNoSession = errors.New("no active session")

// ValidationError reports rejected input. Nothing is mutated or persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// NotFoundError reports an unknown task id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return "task " + strconv.FormatInt(e.ID, 10) + " not found"
}

// StorageError reports a failed durable read or write. The in-memory state
// stays authoritative when one occurs.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
