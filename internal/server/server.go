package server

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albarami/wellbeing/config"
	"github.com/albarami/wellbeing/internal/council"
	"github.com/albarami/wellbeing/internal/council/telemetry"
	"github.com/albarami/wellbeing/internal/provider"
	"github.com/albarami/wellbeing/internal/store"
	"github.com/albarami/wellbeing/internal/tools"
)

// Server owns the HTTP surface plus the live debate hubs.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	runtime   *store.Runtime
	pipeline  *council.Pipeline
	index     *council.TranscriptIndex
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	mu   sync.Mutex
	hubs map[string]*debateHub
}

// Run wires a server from configuration and blocks serving HTTP.
func Run(cfg *config.Config) error {
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	ctx := context.Background()

	if err := store.Migrate("", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return err
	}
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	rt, err := store.NewRuntime(ctx, cfg.Storage.Redis)
	if err != nil {
		return err
	}

	prov, err := provider.New(cfg.LLM.Provider, cfg.ActiveProvider())
	if err != nil {
		return err
	}
	reg := council.NewRegistry(cfg.Council.ToolTimeout, nil)
	tools.RegisterAll(reg, cfg.Tools, nil)

	roster, err := config.LoadRoster(cfg.Council.File)
	if err != nil {
		return err
	}
	tel := telemetry.New()
	pipeline, err := council.NewPipeline(prov, reg, roster, cfg.Council, tel, nil)
	if err != nil {
		return err
	}
	idx, err := council.NewTranscriptIndex()
	if err != nil {
		return err
	}

	srv := &Server{
		cfg:       cfg,
		store:     st,
		runtime:   rt,
		pipeline:  pipeline,
		index:     idx,
		telemetry: tel,
		logger:    logger,
		hubs:      make(map[string]*debateHub),
	}

	sched := &Scheduler{
		Store:    st,
		Runtime:  rt,
		Pipeline: pipeline,
		Interval: cfg.Server.SchedulerInterval,
		Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
	go sched.Run(ctx)

	e := srv.routes()
	logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.cfg.Server.CORSOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	auth := &AuthHandler{Store: s.store, Secret: []byte(s.cfg.Server.JWTSecret)}
	auth.Register(e.Group("/api/auth"))

	api := e.Group("/api", withAuth([]byte(s.cfg.Server.JWTSecret)))
	api.POST("/debates", s.createDebate)
	api.GET("/debates", s.listDebates)
	api.GET("/debates/search", s.searchDebates)
	api.GET("/debates/:id", s.getDebate)
	api.GET("/debates/:id/status", s.debateStatus)
	api.GET("/debates/:id/stream", s.streamDebate)
	api.POST("/topics", s.saveTopic)
	api.GET("/topics", s.listTopics)
	api.DELETE("/topics/:id", s.deleteTopic)
	return e
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := "internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if code >= 500 {
		s.logger.Printf("%s %s -> %d: %v", c.Request().Method, c.Request().URL.Path, code, err)
	}
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

func (s *Server) hub(debateID string) *debateHub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[debateID]
}

func (s *Server) addHub(debateID string, h *debateHub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hubs[debateID] = h
}

func (s *Server) dropHub(debateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hubs, debateID)
}
