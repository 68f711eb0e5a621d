package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/hrygo/aida/store"
)

const atomContentType = "application/atom+xml; charset=utf-8"

// taskFeed publishes the pending tasks as an Atom feed so a feed reader
// can follow the todo list.
func (s *Server) taskFeed(c echo.Context) error {
	m, err := s.taskManager()
	if err != nil {
		return err
	}
	opts, err := taskListOptions(c)
	if err != nil {
		return err
	}
	list, err := m.ListTasks(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list tasks").SetInternal(err)
	}

	base := c.Scheme() + "://" + c.Request().Host
	now := s.now()
	feed := &feeds.Feed{
		Title:       "Aida tasks",
		Link:        &feeds.Link{Href: base + "/api/v1/tasks"},
		Description: "Pending tasks",
		Author:      &feeds.Author{Name: "Aida"},
		Id:          base + "/api/v1/tasks/feed.atom",
		Updated:     now,
	}
	for _, task := range list {
		feed.Add(taskItem(task, base, m.FormatDue))
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render feed").SetInternal(err)
	}
	return c.Blob(http.StatusOK, atomContentType, []byte(atom))
}

func taskItem(t *store.Task, base string, formatDue func(time.Time) string) *feeds.Item {
	details := []string{string(t.Priority) + " priority"}
	if t.ProjectName != "" {
		details = append(details, "project "+t.ProjectName)
	}
	if t.DueTs != nil {
		details = append(details, "due "+formatDue(t.Due()))
	}
	return &feeds.Item{
		Id:          fmt.Sprintf("%s/api/v1/tasks/%d", base, t.ID),
		Title:       t.Title,
		Link:        &feeds.Link{Href: base + "/api/v1/tasks"},
		Description: strings.Join(details, ", "),
		Created:     unixTime(t.CreatedTs),
		Updated:     unixTime(t.UpdatedTs),
	}
}
