// Package http implements the operations API of the notifier: health,
// decision preview, the delivery callback and manual run triggers.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/application/command"
	"github.com/alem-hub/pace-notifier/internal/application/query"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// DecisionPreviewer computes a dry-run decision for one student.
type DecisionPreviewer interface {
	Handle(ctx context.Context, q query.PreviewDecisionQuery) (*query.DecisionPreview, error)
}

// DeliveryRecorder records the outcome of a delivery attempt.
type DeliveryRecorder interface {
	Handle(ctx context.Context, cmd command.RecordDeliveryCommand) (*command.RecordDeliveryResult, error)
}

// RunExecutor runs evaluation batches on demand.
type RunExecutor interface {
	Execute(ctx context.Context, today time.Time) (*jobs.BatchReport, error)
	LastReport() *jobs.BatchReport
}

// JobRunner exposes the scheduler.
type JobRunner interface {
	ListJobs() []scheduler.JobInfo
	RunNow(ctx context.Context, name string) (*scheduler.JobResult, error)
}

// Dependencies contains everything the handlers call. A nil dependency
// leaves its routes unregistered.
type Dependencies struct {
	Preview  DecisionPreviewer
	Delivery DeliveryRecorder
	Runs     RunExecutor
	Jobs     JobRunner
	Health   *HealthChecker
	Logger   *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the operations API.
type Server struct {
	config config.HTTPConfig
	deps   Dependencies
	echo   *echo.Echo
	log    *slog.Logger
}

type appValidator struct {
	validate *validator.Validate
}

func (v appValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// newValidator reports fields by their json, param or query name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "param", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// NewServer builds the echo instance and registers routes.
func NewServer(cfg config.HTTPConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker("")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	s := &Server{
		config: cfg,
		deps:   deps,
		echo:   e,
		log:    deps.Logger.With(logger.Component("http")),
	}

	e.Validator = appValidator{validate: newValidator()}
	e.HTTPErrorHandler = s.handleError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.log.LogAttrs(c.Request().Context(), level, "http request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("request_id", v.RequestID),
				logger.Latency(v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/live", s.handleLive)

	v1 := s.echo.Group("/v1")
	if s.deps.Preview != nil {
		v1.GET("/students/:student_id/preview", s.handlePreview)
	}
	if s.deps.Delivery != nil {
		v1.POST("/deliveries/:outbox_id", s.handleDelivery)
	}
	if s.deps.Runs != nil {
		v1.POST("/runs", s.handleRun)
		v1.GET("/runs/last", s.handleLastRun)
	}
	if s.deps.Jobs != nil {
		v1.GET("/jobs", s.handleListJobs)
		v1.POST("/jobs/:name/run", s.handleRunJob)
	}
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens until Shutdown. http.ErrServerClosed is not reported.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.config.Addr)
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.config.Addr
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Response is the envelope of every JSON response.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Response{
		Success:   status < http.StatusBadRequest,
		Data:      data,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
		Timestamp: time.Now().UTC(),
	})
}
