// Package webhook delivers triggered-signal notifications: an HTTP
// POST with a bounded timeout, bounded retries on network error or
// 5xx, and an optional HMAC-SHA256 signature over the body.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout is the per-attempt request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultMaxRetries bounds the number of additional attempts after the
// first, on network error or 5xx.
const DefaultMaxRetries = 3

// SignatureHeader carries the HMAC-SHA256 signature over the raw
// request body when a shared secret is configured.
const SignatureHeader = "X-Sentinel-Signature"

// Payload is the JSON object POSTed to a signal's webhook URL.
type Payload struct {
	SignalID      string         `json:"signal_id"`
	SignalName    string         `json:"signal_name"`
	TriggeredAt   time.Time      `json:"triggered_at"`
	Scope         PayloadScope   `json:"scope"`
	ConditionsMet []ConditionMet `json:"conditions_met"`
	Context       PayloadContext `json:"context"`
}

// PayloadScope mirrors the signal's declared scope.
type PayloadScope struct {
	Chains    []int64  `json:"chains"`
	Markets   []string `json:"markets,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// ConditionMet describes one evaluated condition for the dispatched
// payload's diagnostic trail.
type ConditionMet struct {
	Type        string   `json:"type"`
	Triggered   bool     `json:"triggered"`
	Description string   `json:"description"`
	ActualValue *float64 `json:"actual_value,omitempty"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Details     string   `json:"details,omitempty"`
}

// PayloadContext carries the resolved evaluation context for the
// notification recipient.
type PayloadContext struct {
	AppUserID string `json:"app_user_id"`
	Address   string `json:"address,omitempty"`
	MarketID  string `json:"market_id,omitempty"`
	ChainID   *int64 `json:"chain_id,omitempty"`
}

// Result is the dispatcher's outcome.
type Result struct {
	Success    bool
	Status     int
	Error      string
	DurationMs int64
	Attempts   int
}

// Dispatcher POSTs signed webhook payloads with bounded retries.
type Dispatcher struct {
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(disp *Dispatcher) { disp.maxRetries = n }
}

// WithHTTPClient overrides the underlying http.Client (tests inject one
// pointed at an httptest.Server).
func WithHTTPClient(c *http.Client) Option {
	return func(disp *Dispatcher) { disp.client = c }
}

// New builds a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:     http.DefaultClient,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		logger:     slog.With("component", "webhook"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends payload to url, retrying on network error or 5xx. A
// 4xx response is a terminal failure. secret, if
// non-empty, adds the HMAC-SHA256 signature header over the raw body.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload Payload, secret string) Result {
	start := time.Now()
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("marshal payload: %v", err), DurationMs: time.Since(start).Milliseconds()}
	}

	var lastErr error
	var lastStatus int
	attempts := 0

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		attempts++
		status, err := d.attempt(ctx, url, body, secret)
		if err == nil {
			return Result{Success: true, Status: status, DurationMs: time.Since(start).Milliseconds(), Attempts: attempts}
		}
		lastErr = err
		lastStatus = status

		if status >= 400 && status < 500 {
			break // terminal: 4xx never retried
		}
		if attempt < d.maxRetries {
			d.logger.Warn("webhook attempt failed, retrying", "url", url, "attempt", attempts, "error", err)
		}
	}

	return Result{
		Success:    false,
		Status:     lastStatus,
		Error:      lastErr.Error(),
		DurationMs: time.Since(start).Milliseconds(),
		Attempts:   attempts,
	}
}

// attempt performs one HTTP POST, returning the response status (0 if
// the request never got a response) and an error for anything other
// than a 2xx.
func (d *Dispatcher) attempt(ctx context.Context, url string, body []byte, secret string) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, sign(secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

// sign computes hex(HMAC-SHA256(secret, raw_body)).
func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
