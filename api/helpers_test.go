package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"task-tracker/storage"
	"task-tracker/tracker"
)

type testServer struct {
	e    *echo.Echo
	tr   *tracker.Tracker
	dash *Dashboard
	hook *test.Hook
}

func newTestServer(t *testing.T, kv storage.KeyValue) *testServer {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	tr := tracker.New(context.Background(), kv, tracker.WithLogger(logger))
	dash := NewDashboard(tr)

	e := echo.New()
	e.Use(RequestID(), GzipRequestBody())
	Register(e, tr, dash, logger)
	return &testServer{e: e, tr: tr, dash: dash, hook: hook}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, name string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/session", `{"name":"`+name+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := sonic.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return v
}

var errDown = errors.New("backend down")

// brokenWrites accepts reads and fails every write.
type brokenWrites struct {
	*storage.Memory
}

func (brokenWrites) Set(context.Context, string, []byte) error { return errDown }

func (brokenWrites) Remove(context.Context, string) error { return errDown }

// ctxWrites fails writes whose context is already done, like a remote store.
type ctxWrites struct {
	*storage.Memory
}

func (w ctxWrites) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.Memory.Set(ctx, key, value)
}
