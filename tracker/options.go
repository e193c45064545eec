package tracker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultStorageTimeout = 5 * time.Second

type options struct {
	now     func() time.Time
	logger  *log.Logger
	timeout time.Duration
}

// Option customizes a Tracker, Session or TaskStore.
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used to report storage failures.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStorageTimeout bounds every storage call. Zero disables the bound.
func WithStorageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.timeout = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:     time.Now,
		logger:  log.StandardLogger(),
		timeout: defaultStorageTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.timeout)
}
