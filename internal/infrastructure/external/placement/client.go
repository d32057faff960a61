// Package placement implements the placement exam service client.
// The evaluation handler asks it how many placement attempts a student
// has left when the prerequisite is not met.
package placement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/circuitbreaker"
	"github.com/alem-hub/pace-notifier/pkg/logger"
	"github.com/alem-hub/pace-notifier/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// AttemptsDTO is the body of GET /students/{id}/placement-attempts.
type AttemptsDTO struct {
	StudentID         string `json:"student_id"`
	RemainingAttempts int    `json:"remaining_attempts"`
}

// APIErrorDTO is the error body returned with 4xx/5xx responses.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("placement api: status %d: %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("placement api: status %d: %s", e.StatusCode, msg)
}

// Temporary reports whether a retry may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client queries the placement service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *slog.Logger
}

// NewClient creates a new placement client.
func NewClient(cfg config.PlacementConfig, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.Component("placement"))

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, burst),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retrier: retry.PlacementRetrier(cfg.MaxRetries+1, cfg.RetryBaseDelay, cfg.RetryMaxDelay,
			func(attempt int, err error, delay time.Duration) {
				log.Debug("retrying placement request", "attempt", attempt, "delay", delay, logger.Err(err))
			}),
		breaker: circuitbreaker.PlacementBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, cfg.CircuitBreakerHalfOpenMax,
			func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}),
		log: log,
	}
}

// RemainingAttempts returns how many placement attempts the student has left.
func (c *Client) RemainingAttempts(ctx context.Context, studentID string) (int, error) {
	path := fmt.Sprintf("/students/%s/placement-attempts", url.PathEscape(studentID))
	start := time.Now()

	var dto AttemptsDTO
	// Client errors (4xx other than 429) are returned but don't trip the breaker.
	var clientErr error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.get(ctx, path, &dto)
		})
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			clientErr = err
			return nil
		}
		return err
	})
	if err == nil {
		err = clientErr
	}
	if err != nil {
		return 0, c.classify(err)
	}
	if dto.RemainingAttempts < 0 {
		return 0, shared.WrapError("placement", "RemainingAttempts", shared.ErrExternalService,
			"negative attempt count", errors.New(strconv.Itoa(dto.RemainingAttempts)))
	}

	c.log.Debug("placement attempts", logger.StudentID(studentID), "remaining", dto.RemainingAttempts, logger.Latency(time.Since(start)))
	return dto.RemainingAttempts, nil
}

// State exposes the breaker state for health reporting.
func (c *Client) State() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(err)
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var apiErr APIErrorDTO
		if json.Unmarshal(body, &apiErr) == nil {
			se.Code, se.Message = apiErr.Code, apiErr.Message
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				se.RetryAfter = time.Duration(seconds) * time.Second
			}
		}
		if se.Temporary() {
			return retry.Retryable(se)
		}
		return se
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// classify maps transport failures onto the shared placement errors.
func (c *Client) classify(err error) error {
	var se *StatusError
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return shared.WrapError("placement", "RemainingAttempts", shared.ErrServiceUnavailable, "circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("placement", "RemainingAttempts", shared.ErrTimeout, "request timeout", err)
	case errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests:
		return shared.WrapError("placement", "RemainingAttempts", shared.ErrRateLimited, "rate limited", err)
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return shared.WrapError("placement", "RemainingAttempts", shared.ErrNotFound, "student unknown to placement service", err)
	default:
		return shared.WrapError("placement", "RemainingAttempts", shared.ErrExternalService, "request failed", err)
	}
}
