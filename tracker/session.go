package tracker

import (
	"context"
	"strings"

	"github.com/bytedance/sonic"

	"task-tracker/domain"
	"task-tracker/storage"
)

// Session holds the logged-in display name.
type Session struct {
	kv     storage.KeyValue
	opts   options
	report *reporter
	name   string
}

// NewSession creates a logged-out session. Call Restore to pick up a
// previously persisted name.
func NewSession(kv storage.KeyValue, opts ...Option) *Session {
	o := buildOptions(opts)
	return newSession(kv, o, newReporter(o.logger))
}

func newSession(kv storage.KeyValue, o options, r *reporter) *Session {
	return &Session{kv: kv, opts: o, report: r}
}

// Name returns the display name, or "" when logged out.
func (s *Session) Name() string { return s.name }

// LoggedIn reports whether a display name is set.
func (s *Session) LoggedIn() bool { return s.name != "" }

// LogIn sets and persists the display name. A second call overwrites the
// previous name. A failed write is reported but does not fail the login.
func (s *Session) LogIn(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &domain.ValidationError{Field: "name", Reason: "display name is required"}
	}
	s.name = name

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()
	if err := s.kv.Set(sctx, storage.SessionKey, []byte(name)); err != nil {
		s.report.fail("set", storage.SessionKey, err)
		return nil
	}
	s.report.succeed(storage.SessionKey)
	return nil
}

// LogOut clears the session and removes both the persisted name and the
// persisted task snapshot.
func (s *Session) LogOut(ctx context.Context) {
	s.name = ""

	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()
	for _, key := range []string{storage.SessionKey, storage.TasksKey} {
		if err := s.kv.Remove(sctx, key); err != nil {
			s.report.fail("remove", key, err)
			continue
		}
		s.report.succeed(key)
	}
}

// Restore loads a persisted display name. Missing or unreadable values leave
// the session logged out.
func (s *Session) Restore(ctx context.Context) bool {
	sctx, cancel := s.opts.storageContext(ctx)
	defer cancel()

	data, ok, err := s.kv.Get(sctx, storage.SessionKey)
	if err != nil {
		s.report.fail("get", storage.SessionKey, err)
		s.name = ""
		return false
	}
	if !ok {
		s.name = ""
		return false
	}
	s.name = decodeSessionName(data)
	return s.name != ""
}

// decodeSessionName accepts both a raw name and a JSON encoded string.
func decodeSessionName(data []byte) string {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var name string
		if err := sonic.UnmarshalString(raw, &name); err == nil {
			return strings.TrimSpace(name)
		}
	}
	return raw
}
