// Package backend is the client for the external case management REST API
// that owns case records, lawyer assignments and persistence.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/models"
)

const (
	casesPath  = "/api/cases"
	searchPath = "/api/cases/search"
	healthPath = "/health"

	maxResponseBytes = 32 << 20

	tracerName = "github.com/tensai-22/penal-sub001/internal/backend"
)

// ErrInvalidConfig is returned by NewClient for an unusable base URL
var ErrInvalidConfig = errors.New("invalid backend client configuration")

// APIError is a non-2xx answer from the backend
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
	Operation  string `json:"operation"`

	// RetryAfter is the server's Retry-After hint, zero when absent
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: HTTP %d: %s [request_id=%s]", e.Operation, e.StatusCode, e.Message, e.RequestID)
}

// IsNotFound reports a 404 answer
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsRateLimited reports a 429 answer
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// IsServerError reports a 5xx answer
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// IsNotFound reports whether err is a backend 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotFound()
}

// RequestObserver receives the outcome of every backend call. status is the
// HTTP status code, or 0 when no response arrived.
type RequestObserver interface {
	ObserveBackendRequest(operation string, status int, d time.Duration)
}

// Client talks to the case management backend
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	log          *zap.Logger
	observer     RequestObserver
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// NewClient creates a backend client for baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base URL", ErrInvalidConfig)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be an absolute http(s) URL", ErrInvalidConfig)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		userAgent:    "casedesk/1.0",
		log:          zap.NewNop(),
		retryMax:     3,
		retryWaitMin: 250 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListCases fetches the case records matching filter
func (c *Client) ListCases(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error) {
	q := url.Values{}
	if filter.Query != "" {
		q.Set("query", filter.Query)
	}
	if filter.Abogado != "" {
		q.Set("abogado", filter.Abogado)
	}
	if filter.Estado != "" {
		q.Set("estado", filter.Estado)
	}
	if filter.Tab != "" {
		q.Set("tab", filter.Tab)
	}
	path := casesPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var records caseList
	if err := c.do(ctx, "list_cases", http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SearchCases runs the backend's free-text search
func (c *Client) SearchCases(ctx context.Context, term string) ([]models.CaseRecord, error) {
	path := searchPath + "?" + url.Values{"query": {term}}.Encode()
	var records caseList
	if err := c.do(ctx, "search_cases", http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetCase fetches one case record by registro_ppu
func (c *Client) GetCase(ctx context.Context, ppu string) (*models.CaseRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get_case", http.MethodGet, casesPath+"/"+url.PathEscape(ppu), nil, &raw); err != nil {
		return nil, err
	}
	return decodeCase(raw)
}

// Ping checks that the backend answers its health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, healthPath, nil, nil)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any, result any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("backend.operation", operation),
		),
	)
	defer span.End()

	err := c.send(ctx, operation, method, path, body, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.response.status_code", apiErr.StatusCode))
		}
	}
	return err
}

func (c *Client) send(ctx context.Context, operation, method, path string, body any, result any) error {
	fullURL := c.baseURL + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
				wait = min(apiErr.RetryAfter, c.retryWaitMax)
			}
			c.log.Debug("backend_retry",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		requestID := uuid.New().String()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		elapsed := time.Since(start)
		if err != nil {
			c.observe(operation, 0, elapsed)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("backend_request_failed",
				zap.String("operation", operation),
				zap.String("request_id", requestID),
				zap.String("error", logger.SanitizeError(err)),
			)
			lastErr = fmt.Errorf("backend %s: %w", operation, err)
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		c.observe(operation, resp.StatusCode, elapsed)
		if readErr != nil {
			lastErr = fmt.Errorf("failed to read backend response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				RequestID:  requestID,
				Operation:  operation,
				Message:    errorMessage(respBody, resp.Status),
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			}
			lastErr = apiErr
			if apiErr.IsServerError() || apiErr.IsRateLimited() {
				continue
			}
			return apiErr
		}

		c.log.Debug("backend_request",
			zap.String("operation", operation),
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", elapsed),
		)
		if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to decode backend %s response: %w", operation, err)
			}
		}
		return nil
	}

	return lastErr
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(operation, status, d)
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	wait := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > c.retryWaitMax || wait <= 0 {
		wait = c.retryWaitMax
	}
	if quarter := int64(wait / 4); quarter > 0 {
		wait += time.Duration(rand.Int63n(quarter))
	}
	return wait
}
