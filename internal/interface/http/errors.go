package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler"
	"github.com/alem-hub/pace-notifier/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/pace-notifier/pkg/logger"
)

// classify maps an error to a status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, jobs.ErrRunInProgress), errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, shared.ErrAlreadyProcessed):
		return http.StatusConflict, "already_delivered"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case shared.IsNotFound(err), errors.Is(err, scheduler.ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_input"
	case shared.IsPrecondition(err):
		return http.StatusUnprocessableEntity, "precondition_failed"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsUpstreamQuery(err), shared.IsExternalService(err):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// handleError renders every error returned by a handler.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status  int
		apiErr  APIError
		verrs   validator.ValidationErrors
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
		apiErr = APIError{Code: "invalid_input", Message: "request validation failed", Fields: make(map[string]string, len(verrs))}
		for _, fe := range verrs {
			apiErr.Fields[fe.Field()] = fmt.Sprintf("failed on %q", fe.Tag())
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		apiErr = APIError{Code: statusCode(status), Message: fmt.Sprint(httpErr.Message)}
	default:
		var code string
		status, code = classify(err)
		apiErr = APIError{Code: code, Message: err.Error()}
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "uri", c.Request().RequestURI, logger.Err(err))
		if !c.Echo().Debug && status == http.StatusInternalServerError {
			apiErr.Message = http.StatusText(status)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, Response{
			Error:     &apiErr,
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			Timestamp: time.Now().UTC(),
		})
	}
	if err != nil {
		s.log.Warn("failed to write error response", logger.Err(err))
	}
}

// statusCode turns "Not Found" into "not_found".
func statusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}
