package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"task-tracker/tests/internal/httpclient"
)

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

type counters struct {
	events   atomic.Uint64
	attempts atomic.Uint64
	failures atomic.Uint64
	writes   atomic.Uint64
}

func main() {
	base := getenv("TRACKER_URL", "http://localhost:8080")
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	writeEvery := time.Duration(getenvInt("WRITE_INTERVAL_MS", 500)) * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	api := httpclient.New(base)
	if resp, err := api.PostJSON("/api/session", map[string]string{"name": "sse-load"}, nil); err != nil || resp.StatusCode != http.StatusOK {
		log.WithError(err).Fatal("login failed")
	}

	var c counters
	var wg sync.WaitGroup
	wg.Add(conns)
	for range conns {
		go func() {
			defer wg.Done()
			listen(ctx, base+"/api/stream", &c)
		}()
	}
	go write(ctx, api, writeEvery, &c)

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if c.events.Load() == 0 {
				log.Error("no events received in 60s")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	failures, attempts, events := c.failures.Load(), c.attempts.Load(), c.events.Load()
	failureRate := 0.0
	if attempts > 0 {
		failureRate = float64(failures) / float64(attempts)
	}
	log.WithFields(log.Fields{
		"connections":         conns,
		"duration_sec":        int(duration.Seconds()),
		"events_received":     events,
		"connection_failures": failures,
		"task_writes":         c.writes.Load(),
	}).Info("sse load finished")
	if events == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}

// listen holds one stream open, reconnecting with backoff until ctx ends.
func listen(ctx context.Context, url string, c *counters) {
	client := &http.Client{}
	backoff := time.Second
	retry := func() {
		c.failures.Add(1)
		time.Sleep(backoff)
		backoff = min(backoff*2, 5*time.Second)
	}
	for ctx.Err() == nil {
		c.attempts.Add(1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			retry()
			continue
		}
		resp, err := client.Do(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			if resp != nil {
				resp.Body.Close()
			}
			retry()
			continue
		}
		backoff = time.Second
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "data:") {
				c.events.Add(1)
			}
		}
		resp.Body.Close()
		if ctx.Err() != nil {
			return
		}
		retry()
	}
}

// write toggles a single task on an interval so every stream sees changes.
func write(ctx context.Context, api *httpclient.Client, every time.Duration, c *counters) {
	var created struct {
		ID int64 `json:"id"`
	}
	if _, err := api.PostJSON("/api/tasks", map[string]string{"title": "sse load"}, &created); err != nil {
		log.WithError(err).Error("create load task")
		return
	}
	path := "/api/tasks/" + strconv.FormatInt(created.ID, 10) + "/toggle"
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := api.PostJSON(path, nil, nil); err != nil {
				log.WithError(err).Warn("toggle load task")
				continue
			}
			c.writes.Add(1)
		}
	}
}
