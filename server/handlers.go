package server

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/aida/ai/assistant"
	"github.com/hrygo/aida/ai/memory"
	"github.com/hrygo/aida/ai/tasks"
	"github.com/hrygo/aida/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

var (
	errMemoryDisabled = echo.NewHTTPError(http.StatusServiceUnavailable, "memory is disabled")
	errTasksDisabled  = echo.NewHTTPError(http.StatusServiceUnavailable, "tasks are disabled")
)

type messageRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
	// Speak plays the reply on the host when speech is configured.
	Speak bool `json:"speak,omitempty"`
}

func (s *Server) postMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Images) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if text == "" {
		text = assistant.DefaultImagePrompt
	}

	reply := s.assistant.ProcessMessage(c.Request().Context(), text, assistant.ProcessOptions{
		Speak:  req.Speak,
		Source: assistant.SourceAPI,
		Images: req.Images,
	})
	return c.JSON(http.StatusOK, reply)
}

func (s *Server) activate(c echo.Context) error {
	s.assistant.Activate(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]string{
		"state": s.assistant.Machine().State().String(),
	})
}

// pageParams reads limit and offset, clamping limit to maxPageSize.
func pageParams(c echo.Context) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
	}
	return min(limit, maxPageSize), offset, nil
}

func (s *Server) memoryManager() (*memory.Manager, error) {
	m := s.assistant.Memory()
	if m == nil {
		return nil, errMemoryDisabled
	}
	return m, nil
}

func (s *Server) listSessions(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	sessions, err := m.Store().ListSessions(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions").SetInternal(err)
	}
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, convertSession(session))
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": views})
}

func (s *Server) resumeSession(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	found, err := s.assistant.ResumeSession(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resume session").SetInternal(err)
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	session, err := m.Store().GetSession(ctx, id)
	if err != nil || session == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session": convertSession(session),
		"history": len(s.assistant.Loop().History()) - 1,
	})
}

func (s *Server) listSessionMessages(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	session, err := m.Store().GetSession(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get session").SetInternal(err)
	}
	if session == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}
	messages, err := m.Store().ListMessages(ctx, id, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list messages").SetInternal(err)
	}
	views := make([]messageView, 0, len(messages))
	for _, message := range messages {
		views = append(views, convertMessage(message))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session":  convertSession(session),
		"messages": views,
	})
}

func (s *Server) listFacts(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	var category *store.FactCategory
	if raw := c.QueryParam("category"); raw != "" {
		fc := store.FactCategory(strings.ToLower(raw))
		if !slices.Contains(store.FactCategories, fc) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown category "+raw)
		}
		category = &fc
	}
	facts, err := m.Store().ListFacts(c.Request().Context(), category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list facts").SetInternal(err)
	}
	views := make([]factView, 0, len(facts))
	for _, fact := range facts {
		views = append(views, convertFact(fact))
	}
	return c.JSON(http.StatusOK, map[string]any{"facts": views})
}

func (s *Server) searchMemory(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	results, err := m.SearchMemory(c.Request().Context(), query, memory.SearchOptions{
		IncludeFacts:         c.QueryParam("facts") != "false",
		IncludeConversations: c.QueryParam("conversations") != "false",
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to search memory").SetInternal(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) memorySummary(c echo.Context) error {
	m, err := s.memoryManager()
	if err != nil {
		return err
	}
	summary, err := m.UserSummary(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to summarize memory").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) taskManager() (*tasks.Manager, error) {
	m := s.assistant.Tasks()
	if m == nil {
		return nil, errTasksDisabled
	}
	return m, nil
}

// taskListOptions reads the priority and project filters.
func taskListOptions(c echo.Context) (tasks.ListOptions, error) {
	opts := tasks.ListOptions{Project: c.QueryParam("project")}
	switch priority := store.TaskPriority(strings.ToLower(c.QueryParam("priority"))); priority {
	case "":
	case store.TaskPriorityHigh, store.TaskPriorityMedium, store.TaskPriorityLow:
		opts.Priority = priority
	default:
		return opts, echo.NewHTTPError(http.StatusBadRequest, "priority must be high, medium or low")
	}
	return opts, nil
}

func (s *Server) listTasks(c echo.Context) error {
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
	now := s.now()
	views := make([]taskView, 0, len(list))
	for _, task := range list {
		views = append(views, convertTask(task, now))
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": views})
}

func (s *Server) taskStats(c echo.Context) error {
	m, err := s.taskManager()
	if err != nil {
		return err
	}
	stats, err := m.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count tasks").SetInternal(err)
	}
	return c.JSON(http.StatusOK, stats)
}
