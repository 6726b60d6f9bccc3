package server

import (
	"net/http"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"
)

type saveTopicRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
	CronSpec string `json:"cron_spec"`
}

func (s *Server) saveTopic(c echo.Context) error {
	var req saveTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	if req.Language == "" {
		req.Language = "en"
	}
	if req.CronSpec != "" {
		if _, err := cronexpr.Parse(req.CronSpec); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cron expression")
		}
	}
	id, err := s.store.SaveTopic(c.Request().Context(), userID(c), req.Topic, req.Language, req.CronSpec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) listTopics(c echo.Context) error {
	topics, err := s.store.TopicsByUser(c.Request().Context(), userID(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) deleteTopic(c echo.Context) error {
	if err := s.store.DeleteTopic(c.Request().Context(), userID(c), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
