package domain

import (
	"sort"
	"strings"
)

// View filters tasks by status and search text and orders them newest first.
// Ties on CreatedAt fall back to the higher id first. The input is not modified.
func View(tasks []Task, filter Filter, search string) []Task {
	// Blank input disables search; otherwise the query matches as typed.
	active := strings.TrimSpace(search) != ""
	query := strings.ToLower(search)

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if !filter.Match(t) {
			continue
		}
		if active && !matchesQuery(t, query) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matchesQuery(t Task, query string) bool {
	return strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query)
}

// CountTasks computes totals over the whole collection regardless of any
// active filter or search.
func CountTasks(tasks []Task) Counts {
	c := Counts{All: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		} else {
			c.Pending++
		}
	}
	return c
}
