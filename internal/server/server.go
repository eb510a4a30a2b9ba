package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ontoforge/ontoforge/pkg/ai"
	"github.com/ontoforge/ontoforge/pkg/logger"
	"github.com/ontoforge/ontoforge/pkg/ontology"
	"github.com/ontoforge/ontoforge/pkg/query"
	"github.com/ontoforge/ontoforge/pkg/store"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Server exposes the query layer over HTTP: the schema listing and
// natural-language questions against the built graph.
type Server struct {
	ontoStore *ontology.FileStore
	storage   store.GraphStorage
	aiClient  ai.GraphAIClient
}

// NewServerParams configures a Server.
type NewServerParams struct {
	OntoStore *ontology.FileStore
	Storage   store.GraphStorage
	AIClient  ai.GraphAIClient
}

// NewServer creates a Server with the provided parameters.
func NewServer(params NewServerParams) *Server {
	return &Server{
		ontoStore: params.OntoStore,
		storage:   params.Storage,
		aiClient:  params.AIClient,
	}
}

// Run starts the HTTP server and blocks until the context is canceled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("[Server] Request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s.registerRoutes(e)

	go func() {
		logger.Info("[Server] Listening", "port", port)
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("[Server] Failed to start", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.GET("/schema", s.handleSchema)
	e.GET("/ask", s.handleAsk)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.storage.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type schemaRequest struct {
	Counts bool `query:"counts"`
}

func (s *Server) handleSchema(c echo.Context) error {
	var req schemaRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	onto, found, err := s.ontoStore.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no ontology available, run a build first")
	}

	report, err := query.Schema(c.Request().Context(), &onto, s.storage, req.Counts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

type askRequest struct {
	Question string `query:"q" validate:"required"`
}

type askResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing question parameter q")
	}

	onto, found, err := s.ontoStore.Load()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no ontology available, run a build first")
	}

	answer, err := query.Ask(c.Request().Context(), req.Question, &onto, s.storage, s.aiClient)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, askResponse{Question: req.Question, Answer: answer})
}
