package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/strangelove-ventures/fundlens/metrics"
	"go.uber.org/zap"
)

var (
	// ErrClientError marks a 4xx response. These are never retried.
	ErrClientError = errors.New("client error")
	// ErrServerError marks a 5xx response.
	ErrServerError = errors.New("server error")
	// ErrNetwork marks a transport failure or an attempt that hit its timeout.
	ErrNetwork = errors.New("network error")
)

// Options controls the timeout and retry behavior of a single Fetcher call.
type Options struct {
	// Timeout is enforced per attempt, not across the whole call.
	Timeout time.Duration
	// MaxRetries is the number of attempts made after the first one.
	MaxRetries uint
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// Backoff switches the fixed delay to exponential backoff with jitter.
	Backoff bool
}

// DefaultOptions returns the options used when a caller does not supply its own.
func DefaultOptions() Options {
	return Options{
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Second,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Error is returned once a call has failed for good. Status is the HTTP status of a terminal
// client error, or 0 when no attempt produced a usable response from the server.
type Error struct {
	Status   int
	Message  string
	Attempts uint
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request failed with status %d after %d attempt(s): %s", e.Status, e.Attempts, e.Message)
	}
	return fmt.Sprintf("request failed after %d attempt(s): %s", e.Attempts, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// attemptError is the failure of a single attempt, classified by kind.
type attemptError struct {
	kind   error
	status int
	err    error
}

func (e *attemptError) Error() string {
	return e.err.Error()
}

func (e *attemptError) Unwrap() error {
	return e.err
}

// Fetcher performs HTTP calls with a per-attempt timeout and bounded retries.
type Fetcher struct {
	client *http.Client
	log    *zap.Logger
}

// NewFetcher returns a Fetcher using client, or http.DefaultClient when client is nil.
func NewFetcher(log *zap.Logger, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client: client,
		log:    log.With(zap.String("sys", "fetch")),
	}
}

// Get issues a GET request for url.
func (f *Fetcher) Get(ctx context.Context, url string, opts Options) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.Do(ctx, req, opts)
}

// PostJSON issues a POST request for url with payload encoded as the JSON body.
func (f *Fetcher) PostJSON(ctx context.Context, url string, payload any, opts Options) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return f.Do(ctx, req, opts)
}

// Do executes req, retrying 5xx responses, network errors and timeouts up to opts.MaxRetries
// times. 4xx responses are returned on the first attempt.
func (f *Fetcher) Do(ctx context.Context, req *http.Request, opts Options) (*Response, error) {
	var attempts uint

	attempt := func() (*Response, error) {
		attempts++
		resp, err := f.attempt(ctx, req, opts.Timeout)
		f.logAttempt(req, attempts, resp, err)
		return resp, err
	}

	retryOpts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(opts.MaxRetries + 1),
		retry.Delay(opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			var ae *attemptError
			if errors.As(err, &ae) {
				return ae.kind != ErrClientError
			}
			return false
		}),
	}
	switch {
	case opts.Backoff && opts.RetryDelay > 0:
		retryOpts = append(retryOpts,
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.MaxJitter(opts.RetryDelay),
		)
	case opts.Backoff:
		// RandomDelay panics on a zero jitter.
		retryOpts = append(retryOpts, retry.DelayType(retry.BackOffDelay))
	}

	resp, err := retry.DoWithData(attempt, retryOpts...)
	if err == nil {
		return resp, nil
	}

	var ae *attemptError
	if errors.As(err, &ae) && ae.kind == ErrClientError {
		return nil, &Error{
			Status:   ae.status,
			Message:  ae.err.Error(),
			Attempts: attempts,
			Err:      ErrClientError,
		}
	}
	if ae != nil {
		return nil, &Error{
			Message:  ae.err.Error(),
			Attempts: attempts,
			Err:      fmt.Errorf("%w: %w", ae.kind, ae.err),
		}
	}
	return nil, &Error{
		Message:  err.Error(),
		Attempts: attempts,
		Err:      err,
	}
}

// attempt performs one request bounded by timeout and classifies its outcome.
func (f *Fetcher) attempt(ctx context.Context, req *http.Request, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultOptions().Timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := req.Clone(actx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, &attemptError{kind: ErrClientError, err: fmt.Errorf("failed to rewind request body: %w", err)}
		}
		r.Body = body
	}

	resp, err := f.client.Do(r)
	if err != nil {
		return nil, &attemptError{kind: ErrNetwork, err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{kind: ErrNetwork, err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &attemptError{
			kind:   ErrServerError,
			status: resp.StatusCode,
			err:    fmt.Errorf("server responded with status %d: %s", resp.StatusCode, message(resp.StatusCode, body)),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, &attemptError{
			kind:   ErrClientError,
			status: resp.StatusCode,
			err:    errors.New(message(resp.StatusCode, body)),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (f *Fetcher) logAttempt(req *http.Request, n uint, resp *Response, err error) {
	if err == nil {
		metrics.FetchAttemptsTotal.WithLabelValues("success").Inc()
		f.log.Debug(
			"Fetch succeeded",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Uint("attempt", n),
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	outcome := "network_error"
	status := 0
	var ae *attemptError
	if errors.As(err, &ae) {
		status = ae.status
		switch ae.kind {
		case ErrClientError:
			outcome = "client_error"
		case ErrServerError:
			outcome = "server_error"
		}
	}
	metrics.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
	f.log.Info(
		"Fetch attempt failed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Uint("attempt", n),
		zap.Int("status", status),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
}

// message prefers a JSON "error" or "message" field from body, then the raw body, then the
// status text.
func message(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if len(body) > 0 && len(body) <= 512 {
		return string(bytes.TrimSpace(body))
	}
	return http.StatusText(status)
}
