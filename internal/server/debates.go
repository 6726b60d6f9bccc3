package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/albarami/wellbeing/internal/council"
	"github.com/albarami/wellbeing/internal/store"
)

type createDebateRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

func (s *Server) createDebate(c echo.Context) error {
	var req createDebateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	if req.Language == "" {
		req.Language = "en"
	}

	uid := userID(c)
	id, err := s.store.CreateDebate(c.Request().Context(), uid, req.Topic, req.Language)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	hub := newDebateHub()
	s.addHub(id, hub)
	go s.runDebate(id, req.Topic, req.Language, hub)

	return c.JSON(http.StatusAccepted, map[string]string{"id": id, "status": "running"})
}

// runDebate drives one debate to completion in the background, mirroring
// progress into Redis and persisting each task as it lands.
func (s *Server) runDebate(debateID, topic, language string, hub *debateHub) {
	defer s.dropHub(debateID)
	defer hub.Close()

	ctx := context.Background()
	total := s.pipeline.TaskCount()
	s.setRunStatus(ctx, debateID, "running", 0, total, "")

	onProgress := func(done, total int, res council.TaskResult) {
		if err := s.store.SaveTaskResult(ctx, debateID, res); err != nil {
			s.logger.Printf("debate %s: saving task %d: %v", debateID, res.TaskID, err)
		}
		s.setRunStatus(ctx, debateID, "running", done, total, res.TaskName)
	}

	run, err := s.pipeline.Run(ctx, topic, language, hub, onProgress)
	status := runStatus(run, total)
	if err != nil {
		s.logger.Printf("debate %s: run failed: %v", debateID, err)
		status = "failed"
	}

	if err := s.store.FinishDebate(ctx, debateID, status, run.Report); err != nil {
		s.logger.Printf("debate %s: finishing: %v", debateID, err)
	}
	if err := s.index.IndexRun(debateID, run); err != nil {
		s.logger.Printf("debate %s: indexing transcript: %v", debateID, err)
	}
	s.setRunStatus(ctx, debateID, status, run.Completed(), total, "")
}

func runStatus(run council.RunResult, total int) string {
	switch {
	case run.Completed() == 0:
		return "failed"
	case run.Completed() < total:
		return "partial"
	default:
		return "completed"
	}
}

func (s *Server) setRunStatus(ctx context.Context, debateID, status string, done, total int, current string) {
	err := s.runtime.SetRunStatus(ctx, store.RunStatus{
		DebateID:    debateID,
		Status:      status,
		TasksDone:   done,
		TasksTotal:  total,
		CurrentTask: current,
		UpdatedAt:   time.Now(),
	})
	if err != nil {
		s.logger.Printf("debate %s: updating run status: %v", debateID, err)
	}
}

func (s *Server) listDebates(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	debates, err := s.store.DebatesByUser(c.Request().Context(), userID(c), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"debates": debates})
}

func (s *Server) getDebate(c echo.Context) error {
	id := c.Param("id")
	debate, err := s.store.Debate(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "debate not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if debate.UserID != userID(c) {
		return echo.NewHTTPError(http.StatusNotFound, "debate not found")
	}
	tasks, err := s.store.DebateTasks(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"debate": debate, "tasks": tasks})
}

func (s *Server) debateStatus(c echo.Context) error {
	st, err := s.runtime.RunStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no live status for debate")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) searchDebates(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	hits, err := s.index.Search(q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"hits": hits})
}

// streamDebate replays and follows a live debate over server-sent events.
func (s *Server) streamDebate(c echo.Context) error {
	id := c.Param("id")
	hub := s.hub(id)
	if hub == nil {
		return echo.NewHTTPError(http.StatusNotFound, "debate is not running")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	replay, live := hub.Subscribe()
	defer hub.Unsubscribe(live)

	for _, f := range replay {
		writeFrame(w, f)
	}
	flusher.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-live:
			if !ok {
				return nil
			}
			writeFrame(w, f)
			flusher.Flush()
		}
	}
}

func writeFrame(w *echo.Response, f frame) {
	if f.Comment != "" {
		fmt.Fprintf(w, ": %s\n\n", f.Comment)
		return
	}
	if f.Event != "" {
		fmt.Fprintf(w, "event: %s\n", f.Event)
	}
	fmt.Fprintf(w, "data: %s\n\n", f.Data)
}
