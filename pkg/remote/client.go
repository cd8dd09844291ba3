// Package remote implements a backend that talks to the product-information service
// over HTTP. Reads are GET requests carrying the JSON payload in the q parameter; writes
// send it as the body. Every response is an envelope with either a data or an error
// member.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Headers used by the protocol
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	ContentTypeJSON     = "application/json"

	// QueryParam carries the JSON payload of a GET request
	QueryParam = "q"
)

// Envelope is the body of every response
type Envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Config holds configuration for the HTTP backend
type Config struct {
	// BaseURL is the service root, e.g. https://pim.example.com/api
	BaseURL string
	// Token is sent as a bearer token when set
	Token string
	// Timeout bounds one HTTP attempt
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for failed GET requests
	MaxRetries int
	// Backoff is the delay before the first retry; it doubles per attempt
	Backoff time.Duration
	// HTTPClient overrides the client built from Timeout
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// DefaultConfig returns the default client configuration for a base URL
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		Logger:     zap.NewNop(),
	}
}

// Client is the HTTP backend
type Client struct {
	base       *url.URL
	token      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

var _ backend.Backend = (*Client)(nil)

// New creates a client with the default configuration
func New(baseURL string) (*Client, error) {
	return NewWithConfig(DefaultConfig(baseURL))
}

// NewWithConfig creates a client with custom configuration
func NewWithConfig(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &Client{
		base:       base,
		token:      config.Token,
		maxRetries: config.MaxRetries,
		backoff:    config.Backoff,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}, nil
}

// Request implements backend.Backend
func (c *Client) Request(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
	var payload []byte
	if data != nil {
		var err error
		if payload, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempts := 1
	if method == backend.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.do(ctx, method, endpoint, payload)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
	}
	if attempts > 1 {
		return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks failures that never reached a response
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method backend.Method, endpoint string, payload []byte) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	requestID := req.Header.Get(HeaderRequestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("remote request",
		zap.String("method", string(method)),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)

	var env Envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = truncateForError(body)
		}
		return nil, &StatusError{
			Method:     string(method),
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    msg,
			RequestID:  requestID,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", decodeErr)
	}
	if env.Error != "" {
		return nil, &StatusError{
			Method:     string(method),
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    env.Error,
			RequestID:  requestID,
		}
	}
	if len(env.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return env.Data, nil
}

func (c *Client) newRequest(ctx context.Context, method backend.Method, endpoint string, payload []byte) (*http.Request, error) {
	u := c.base.JoinPath(endpoint)

	var body io.Reader
	if method == backend.MethodGet {
		if payload != nil {
			q := u.Query()
			q.Set(QueryParam, string(payload))
			u.RawQuery = q.Encode()
		}
	} else if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", ContentTypeJSON)
	if body != nil {
		req.Header.Set(HeaderContentType, ContentTypeJSON)
	}
	if c.token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+c.token)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req, nil
}
