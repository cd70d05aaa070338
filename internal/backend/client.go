// Package backend is the HTTP client for the taste backend: catalog search,
// profile creation, listing and update, and profile-based recommendations.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/handsomefox/movie-taste/internal/logger"
	"github.com/handsomefox/movie-taste/internal/metrics"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 8 << 20
	breakerName    = "backend"

	SessionHeader   = "X-Session-ID"
	RequestIDHeader = "X-Request-ID"
)

// ErrUpdateRejected is returned when the backend answers an update with
// success=false.
var ErrUpdateRejected = errors.New("backend rejected profile update")

// StatusError is an HTTP error status returned by the backend.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// ServerError is an {"error": "..."} payload delivered with a 2xx status.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "backend error: " + e.Message }

type Config struct {
	BaseURL   string
	Token     string
	SessionID string
	Timeout   time.Duration
	// MinInterval spaces consecutive calls; zero disables pacing.
	MinInterval time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	baseURL   *url.URL
	token     string
	sessionID string
	http      *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[[]byte]
	log       *slog.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", cfg.BaseURL)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	c := &Client{
		baseURL:   base,
		token:     strings.TrimSpace(cfg.Token),
		sessionID: strings.TrimSpace(cfg.SessionID),
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, 1),
		log:       log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var statusErr *StatusError
			return errors.As(err, &statusErr) && statusErr.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return c, nil
}

func (c *Client) do(ctx context.Context, op, method string, path []string, query url.Values, body, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, query, body, out)
	metrics.BackendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(op, "error").Inc()
		c.log.Warn("backend call failed", slog.String("op", op), logger.Error(err))
		return err
	}
	metrics.BackendRequests.WithLabelValues(op, "ok").Inc()
	c.log.Debug("backend call", slog.String("op", op), slog.Duration("took", time.Since(start)))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, path []string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	endpoint := c.baseURL.JoinPath(path...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	payload, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader = http.NoBody
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
		if err != nil {
			return nil, err
		}
		c.applyHeaders(req, encoded != nil)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if cerr := resp.Body.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, &StatusError{Status: resp.StatusCode, Body: snippet(data)}
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if msg := embeddedError(payload); msg != "" {
		return &ServerError{Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) applyHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// embeddedError extracts the message of an {"error": "..."} body.
func embeddedError(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ""
	}
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &body); err != nil || len(body.Error) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(body.Error, &msg); err == nil {
		return strings.TrimSpace(msg)
	}
	if string(body.Error) == "null" {
		return ""
	}
	return string(body.Error)
}

func snippet(data []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
