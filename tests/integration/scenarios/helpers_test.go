package scenarios

import (
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"task-tracker/tests/internal/assertx"
	"task-tracker/tests/internal/httpclient"
)

type task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

type counts struct {
	All       int `json:"all"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

type taskList struct {
	Tasks  []task `json:"tasks"`
	Counts counts `json:"counts"`
}

type dashboard struct {
	User     string `json:"user"`
	LoggedIn bool   `json:"loggedIn"`
	Editing  *int64 `json:"editing"`
	Tasks    []task `json:"tasks"`
	Counts   counts `json:"counts"`
}

type settings struct {
	StreamEventTimeoutMs int `yaml:"stream_event_timeout_ms"`
	HealthTimeoutMs      int `yaml:"health_timeout_ms"`
}

func loadSettings() settings {
	s := settings{StreamEventTimeoutMs: 3000, HealthTimeoutMs: 2000}
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return s
	}
	var fromFile settings
	if err := yaml.Unmarshal(data, &fromFile); err == nil {
		if fromFile.StreamEventTimeoutMs > 0 {
			s.StreamEventTimeoutMs = fromFile.StreamEventTimeoutMs
		}
		if fromFile.HealthTimeoutMs > 0 {
			s.HealthTimeoutMs = fromFile.HealthTimeoutMs
		}
	}
	return s
}

func (s settings) streamTimeout() time.Duration {
	return time.Duration(s.StreamEventTimeoutMs) * time.Millisecond
}

// newClient returns a client for TRACKER_URL, skipping the test when no
// server answers there.
func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	base := os.Getenv("TRACKER_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	probe := &http.Client{Timeout: time.Duration(loadSettings().HealthTimeoutMs) * time.Millisecond}
	resp, err := probe.Get(base + "/healthz")
	if err != nil {
		t.Skipf("skipping, tracker not reachable: %v", err)
	}
	resp.Body.Close()
	return httpclient.New(base)
}

// freshSession logs out, which clears every task, and logs in as a unique user.
func freshSession(t *testing.T, client *httpclient.Client) string {
	t.Helper()
	resp, err := client.Delete("/api/session")
	assertx.Status(t, http.StatusNoContent, resp, err)

	name := "it-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	resp, err = client.PostJSON("/api/session", map[string]string{"name": name}, nil)
	assertx.Status(t, http.StatusOK, resp, err)
	return name
}

func createTask(t *testing.T, client *httpclient.Client, title, description string) task {
	t.Helper()
	var created task
	resp, err := client.PostJSON("/api/tasks", map[string]string{"title": title, "description": description}, &created)
	assertx.Status(t, http.StatusCreated, resp, err)
	return created
}

func taskPath(id int64) string {
	return "/api/tasks/" + itoa(id)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
