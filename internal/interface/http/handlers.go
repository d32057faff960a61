package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/alem-hub/pace-notifier/internal/application/command"
	"github.com/alem-hub/pace-notifier/internal/application/query"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler"
)

const dateLayout = "2006-01-02"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c echo.Context) error {
	status := s.deps.Health.Check(c.Request().Context())
	if !status.Healthy {
		return c.JSON(http.StatusServiceUnavailable, status)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleLive(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISIONS
// ══════════════════════════════════════════════════════════════════════════════

type previewRequest struct {
	StudentID string `param:"student_id" validate:"required,max=64"`
	Date      string `query:"date" validate:"omitempty,datetime=2006-01-02"`
}

// handlePreview shows what a run on the given date would do for a student.
func (s *Server) handlePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	q := query.PreviewDecisionQuery{StudentID: req.StudentID}
	if req.Date != "" {
		q.Today, _ = time.Parse(dateLayout, req.Date)
	}

	preview, err := s.deps.Preview.Handle(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, preview)
}

type deliveryRequest struct {
	OutboxID  string     `param:"outbox_id" json:"-" validate:"required,uuid"`
	Delivered *bool      `json:"delivered" validate:"required"`
	SentAt    *time.Time `json:"sent_at"`
	Error     string     `json:"error" validate:"max=1000"`
}

// handleDelivery is the callback of the delivery collaborator.
func (s *Server) handleDelivery(c echo.Context) error {
	var req deliveryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	cmd := command.RecordDeliveryCommand{
		OutboxID:  req.OutboxID,
		Delivered: *req.Delivered,
		Error:     req.Error,
	}
	if req.SentAt != nil {
		cmd.SentAt = *req.SentAt
	}

	res, err := s.deps.Delivery.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// RUNS AND JOBS
// ══════════════════════════════════════════════════════════════════════════════

type runRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// handleRun evaluates the whole population synchronously.
func (s *Server) handleRun(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var today time.Time
	if req.Date != "" {
		today, _ = time.Parse(dateLayout, req.Date)
	}

	report, err := s.deps.Runs.Execute(c.Request().Context(), today)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, report)
}

func (s *Server) handleLastRun(c echo.Context) error {
	report := s.deps.Runs.LastReport()
	if report == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no run has completed yet")
	}
	return respond(c, http.StatusOK, report)
}

func (s *Server) handleListJobs(c echo.Context) error {
	return respond(c, http.StatusOK, s.deps.Jobs.ListJobs())
}

// handleRunJob runs a registered job now. A job that ran and failed is
// still a 200; its result carries the error.
func (s *Server) handleRunJob(c echo.Context) error {
	res, err := s.deps.Jobs.RunNow(c.Request().Context(), c.Param("name"))
	if errors.Is(err, scheduler.ErrJobNotFound) || errors.Is(err, scheduler.ErrJobRunning) {
		return err
	}
	return respond(c, http.StatusOK, res)
}
