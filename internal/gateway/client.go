// Package gateway talks to the remote spreadsheet endpoint: one GET that
// returns every collection and a POST per mutation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tahfidz/internal/logging"
	"tahfidz/internal/metrics"
	"tahfidz/internal/model"
)

// ErrOffline is returned by Push when no endpoint is configured.
var ErrOffline = errors.New("spreadsheet endpoint not configured")

// TokenHeader carries the optional shared secret understood by sheetd.
const TokenHeader = "X-Sheet-Token"

// Client calls the spreadsheet endpoint.
type Client struct {
	URL     string
	Token   string
	HTTP    *http.Client
	Timeout time.Duration
	Backoff Backoff
	// PreSendJitter spreads concurrent writes apart before the first try.
	PreSendJitter time.Duration

	log *zap.Logger
}

// New creates a client. An empty url puts the client in offline mode.
func New(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		URL:           url,
		Timeout:       timeout,
		HTTP:          &http.Client{},
		Backoff:       DefaultBackoff(),
		PreSendJitter: 300 * time.Millisecond,
		log:           logging.OrNop(logger),
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.URL != ""
}

// Load fetches all collections. It returns false when the client is
// offline or every attempt failed; callers fall back to local data.
func (c *Client) Load(ctx context.Context) (*model.Collections, bool) {
	if !c.Configured() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var out model.Collections
	err := c.Backoff.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
		if err != nil {
			return err
		}
		c.authorize(req)
		resp, err := c.HTTP.Do(req)
		if err != nil {
			metrics.GatewayRequests.WithLabelValues("GET", "error").Inc()
			return Retryable(fmt.Errorf("spreadsheet request failed: %w", err))
		}
		defer resp.Body.Close()
		if err := statusError(resp); err != nil {
			metrics.GatewayRequests.WithLabelValues("GET", "status").Inc()
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			metrics.GatewayRequests.WithLabelValues("GET", "decode").Inc()
			return fmt.Errorf("failed to decode collections: %w", err)
		}
		metrics.GatewayRequests.WithLabelValues("GET", "ok").Inc()
		return nil
	}, c.onRetry("GET"))
	if err != nil {
		metrics.GatewayExhausted.WithLabelValues("GET").Inc()
		c.log.Warn("load from spreadsheet failed", zap.Error(err))
		return nil, false
	}
	c.log.Info("collections loaded from spreadsheet",
		zap.Int("users", len(out.Users)),
		zap.Int("students", len(out.Students)),
		zap.Int("records", len(out.Records)))
	return &out, true
}

// Push posts one mutation and retries transient failures. It is the write
// primitive behind the sync journal.
func (c *Client) Push(ctx context.Context, action model.Action, data any) error {
	if !c.Configured() {
		return ErrOffline
	}
	body, err := json.Marshal(struct {
		Action model.Action `json:"action"`
		Data   any          `json:"data"`
	}{Action: action, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", action, err)
	}
	if err := c.Backoff.sleep(ctx, c.Backoff.jitter(c.PreSendJitter)); err != nil {
		return err
	}

	err = c.Backoff.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)
		resp, err := c.HTTP.Do(req)
		if err != nil {
			metrics.GatewayRequests.WithLabelValues("POST", "error").Inc()
			return Retryable(fmt.Errorf("spreadsheet request failed: %w", err))
		}
		defer resp.Body.Close()
		if err := statusError(resp); err != nil {
			metrics.GatewayRequests.WithLabelValues("POST", "status").Inc()
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		metrics.GatewayRequests.WithLabelValues("POST", "ok").Inc()
		return nil
	}, c.onRetry("POST"))
	if err != nil {
		if IsRetryable(err) {
			metrics.GatewayExhausted.WithLabelValues("POST").Inc()
		}
		return fmt.Errorf("%s: %w", action, err)
	}
	c.log.Debug("data sent to spreadsheet", zap.String("action", string(action)))
	return nil
}

// Send is the fire-and-forget form of Push: failures are logged and
// swallowed because local state already holds the change.
func (c *Client) Send(ctx context.Context, action model.Action, data any) {
	if !c.Configured() {
		c.log.Debug("spreadsheet endpoint not configured, change kept locally", zap.String("action", string(action)))
		return
	}
	if err := c.Push(ctx, action, data); err != nil {
		c.log.Error("sync failed after retries", zap.String("action", string(action)), zap.Error(err))
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set(TokenHeader, c.Token)
	}
}

func (c *Client) onRetry(method string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		metrics.GatewayRetries.WithLabelValues(method).Inc()
		c.log.Warn("spreadsheet request failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
}

// statusError maps a non-2xx response to an error; 429 and 5xx are
// transient.
func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("spreadsheet error %s: %s", resp.Status, bytes.TrimSpace(bodyBytes))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Retryable(err)
	}
	return err
}
