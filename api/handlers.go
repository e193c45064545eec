package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"task-tracker/domain"
)

const maxBodySize = 64 << 10

// writeContext keeps request values for storage writes but is not cancelled
// when the client goes away; the tracker's storage timeout still applies.
func writeContext(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, tr Tracker, dash *Dashboard, logger *log.Logger) {
	g := e.Group("/api", RequestMetrics(logger))

	g.GET("/session", getSession(tr))
	g.POST("/session", postSession(tr))
	g.DELETE("/session", deleteSession(dash))

	g.GET("/tasks", getTasks(tr, dash))
	g.GET("/tasks/counts", getCounts(tr))
	g.POST("/tasks", postTask(tr))
	g.PUT("/tasks/:id", putTask(tr))
	g.POST("/tasks/:id/toggle", toggleTask(tr))
	g.DELETE("/tasks/:id", deleteTask(dash))

	g.GET("/dashboard", getDashboard(dash))
	g.POST("/dashboard/edit/:id", startEdit(dash))
	g.DELETE("/dashboard/edit", cancelEdit(dash))
	g.PUT("/dashboard/edit", saveEdit(dash))

	g.GET("/stream", streamDashboard(tr, dash, logger))

	e.GET("/healthz", healthz(tr))
}

func healthz(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := healthResponse{Status: "ok", Durable: true}
		if err := tr.StorageErr(); err != nil {
			resp.Durable = false
			resp.Error = err.Error()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func getSession(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, ok := tr.User()
		return c.JSON(http.StatusOK, sessionResponse{User: name, LoggedIn: ok})
	}
}

func postSession(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sessionRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		start := time.Now()
		err := tr.LogIn(writeContext(c), req.Name)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		name, ok := tr.User()
		return c.JSON(http.StatusOK, sessionResponse{User: name, LoggedIn: ok})
	}
}

func deleteSession(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		dash.LogOut(writeContext(c))
		metricsFrom(c).ObserveStorage(time.Since(start))
		return c.NoContent(http.StatusNoContent)
	}
}

// getTasks returns the filtered view. Filter and search given on the query
// string also become the dashboard's active values.
func getTasks(tr Tracker, dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter, search := dash.Query()
		params := c.QueryParams()
		if _, ok := params["filter"]; ok {
			f, err := domain.ParseFilter(c.QueryParam("filter"))
			if err != nil {
				return writeError(c, err)
			}
			filter = f
			dash.SetFilter(f)
		}
		if _, ok := params["search"]; ok {
			search = c.QueryParam("search")
			dash.SetSearch(search)
		}

		tasks, err := tr.View(filter, search)
		if err != nil {
			return writeError(c, err)
		}
		counts, err := tr.Counts()
		if err != nil {
			return writeError(c, err)
		}
		metricsFrom(c).SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks, Counts: counts, Filter: filter, Search: search})
	}
}

func getCounts(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		counts, err := tr.Counts()
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, counts)
	}
}

func postTask(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return err
		}
		start := time.Now()
		task, err := tr.Add(writeContext(c), fields)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func putTask(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return err
		}
		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return err
		}
		start := time.Now()
		task, err := tr.Update(writeContext(c), id, fields)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func toggleTask(tr Tracker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return err
		}
		start := time.Now()
		task, err := tr.ToggleComplete(writeContext(c), id)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

// deleteTask answers 204 whether or not the task existed.
func deleteTask(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return err
		}
		start := time.Now()
		_, err = dash.Delete(writeContext(c), id)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getDashboard(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := dash.State()
		if err != nil {
			return writeError(c, err)
		}
		metricsFrom(c).SetTasksReturned(len(st.Tasks))
		return c.JSON(http.StatusOK, st)
	}
}

func startEdit(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return err
		}
		if err := dash.StartEdit(id); err != nil {
			return writeError(c, err)
		}
		return dashboardState(c, dash)
	}
}

func cancelEdit(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		dash.CancelEdit()
		return dashboardState(c, dash)
	}
}

func saveEdit(dash *Dashboard) echo.HandlerFunc {
	return func(c echo.Context) error {
		var fields domain.TaskFields
		if err := decodeBody(c, &fields); err != nil {
			return err
		}
		start := time.Now()
		_, err := dash.SaveEdit(writeContext(c), fields)
		metricsFrom(c).ObserveStorage(time.Since(start))
		if err != nil {
			return writeError(c, err)
		}
		return dashboardState(c, dash)
	}
}

func dashboardState(c echo.Context, dash *Dashboard) error {
	st, err := dash.State()
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		metricsFrom(c).SetErrorStage("invalid_id")
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}

// decodeBody reads a size limited JSON body and rejects unknown fields.
func decodeBody(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		metricsFrom(c).SetErrorStage("decode_body")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	return nil
}

func writeError(c echo.Context, err error) error {
	m := metricsFrom(c)
	var verr *domain.ValidationError
	var nerr *domain.NotFoundError
	switch {
	case errors.As(err, &verr):
		m.SetErrorStage("validation")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &nerr):
		m.SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Error: nerr.Error()})
	case errors.Is(err, domain.ErrNoSession):
		m.SetErrorStage("no_session")
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrNotEditing):
		m.SetErrorStage("not_editing")
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		m.SetErrorStage("internal")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
