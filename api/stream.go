package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const streamHeartbeat = 15 * time.Second

// streamDashboard pushes the dashboard state as server-sent events: once on
// connect and again after every change to the tracker.
func streamDashboard(tr Tracker, dash *Dashboard, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		w := c.Response()
		flusher, ok := w.Writer.(http.Flusher)
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError, "stream unsupported")
		}
		changes, unsubscribe := tr.Subscribe()
		defer unsubscribe()

		w.Header().Set(echo.HeaderContentType, "text/event-stream")
		w.Header().Set(echo.HeaderCacheControl, "no-cache")
		w.Header().Set(echo.HeaderConnection, "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		send := func() bool {
			st, err := dash.State()
			if err != nil {
				logger.WithError(err).Warn("stream: render dashboard")
				return true
			}
			data, err := sonic.Marshal(st)
			if err != nil {
				logger.WithError(err).Warn("stream: encode dashboard")
				return true
			}
			for _, chunk := range [][]byte{[]byte("event: dashboard\ndata: "), data, []byte("\n\n")} {
				if _, err := w.Write(chunk); err != nil {
					return false
				}
			}
			flusher.Flush()
			return true
		}

		if !send() {
			return nil
		}
		ctx := c.Request().Context()
		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-changes:
				if !send() {
					return nil
				}
			case <-ticker.C:
				if _, err := w.Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
