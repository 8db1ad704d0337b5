package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/basehub/basehub-go/config"
	"github.com/basehub/basehub-go/logging"
)

const maxResponseBytes = 1 << 20

// RetryPolicy bounds the retry loop for transient failures. Delays follow
// min(BaseDelay * 2^attempt, MaxDelay).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches the backend's expectations for transient
// failures.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   10 * time.Second,
}

// Request describes one logical call against the configured base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when set. RawBody wins when both are set and is
	// sent verbatim (callers set Content-Type themselves).
	Body    any
	RawBody []byte
	Headers map[string]string
	// BaseURL overrides the transport's base URL (storage service calls).
	BaseURL string
	// Timeout overrides the transport's per-request timeout.
	Timeout time.Duration
}

// Transport performs timed HTTP calls with bounded retries. It knows nothing
// about authentication; header computation lives in the auth manager.
type Transport struct {
	http   *http.Client
	cfg    config.Config
	retry  RetryPolicy
	logger *logging.Logger
}

func New(cfg config.Config, retry RetryPolicy, httpClient *http.Client, logger *logging.Logger) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	return &Transport{http: httpClient, cfg: cfg, retry: retry, logger: logger}
}

// Do executes one logical request, retrying network-level failures,
// timeouts, and 5xx responses with capped exponential backoff. A 4xx
// response fails immediately. Returns the raw response body on 2xx.
func (t *Transport) Do(ctx context.Context, req Request) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.retry.BaseDelay
	policy.MaxInterval = t.retry.MaxDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.Reset()

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		data, attemptErr := t.attempt(ctx, req)
		if attemptErr == nil {
			return data, nil
		}
		if !IsRetryable(attemptErr) {
			return nil, backoff.Permanent(attemptErr)
		}
		return nil, attemptErr
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(t.retry.MaxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.logger.Debug("retrying request",
				logging.Field("method", req.Method),
				logging.Field("path", req.Path),
				logging.Field("error", err),
				logging.Field("next_retry", next.String()),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (t *Transport) attempt(ctx context.Context, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.cfg.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := t.buildRequest(attemptCtx, req)
	if err != nil {
		return nil, ValidationError(err.Error(), nil)
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	t.logger.Debugf("%s %s -> %s", httpReq.Method, httpReq.URL, resp.Status)

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= http.StatusBadRequest {
		t.logger.Warn("request rejected",
			logging.Field("method", httpReq.Method),
			logging.Field("path", req.Path),
			logging.Field("status", resp.Status),
			logging.Field("response", logging.FormatHTTPPayload(data)),
		)
		return nil, APIError(resp.StatusCode, resp.Status, data)
	}
	return data, nil
}

func (t *Transport) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	base := req.BaseURL
	if base == "" {
		base = t.cfg.BaseURL
	}
	target := base
	if req.Path != "" {
		target += "/" + strings.TrimLeft(req.Path, "/")
	}
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	contentType := ""
	switch {
	case req.RawBody != nil:
		reader = bytes.NewReader(req.RawBody)
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, err
	}
	for key, value := range t.cfg.Headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	return httpReq, nil
}

func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutError(err)
	}
	return NetworkError(err)
}
