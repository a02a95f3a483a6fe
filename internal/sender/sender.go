// Package sender implements the HTTP delivery client. It POSTs report
// payloads as JSON to the collector's report endpoint, classifies failures
// once at this boundary, and keeps the report backlog in step with the
// outcome of every fresh delivery.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitalis-app/probe/internal/models"
)

const (
	// requestTimeout is the HTTP request timeout for each send attempt.
	requestTimeout = 10 * time.Second

	// reportsPath is the collector's ingestion endpoint.
	reportsPath = "/api/reports"

	// maxDrainBytes caps how much of a response body is read and discarded.
	maxDrainBytes = 64 << 10
)

// Backlog receives payloads whose fresh delivery failed and is cleared
// after any successful fresh delivery.
type Backlog interface {
	Cache(p models.ReportPayload)
	Clear()
}

// OutcomeRecorder is notified of every delivery attempt's outcome.
type OutcomeRecorder interface {
	DeliverySucceeded()
	DeliveryFailed(kind string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRecorder attaches a delivery outcome recorder.
func WithRecorder(r OutcomeRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client delivers reports to the collector.
type Client struct {
	client   *http.Client
	url      string
	backlog  Backlog
	logger   *zap.Logger
	recorder OutcomeRecorder
}

// New creates a Client for the collector at serverURL.
func New(serverURL string, backlog Backlog, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		url:     strings.TrimRight(serverURL, "/") + reportsPath,
		backlog: backlog,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver sends a freshly built payload. On success the whole backlog is
// cleared; on failure the payload is cached before the error is returned.
func (c *Client) Deliver(ctx context.Context, p models.ReportPayload) error {
	if err := c.Send(ctx, p); err != nil {
		if c.backlog != nil {
			c.backlog.Cache(p)
		}
		return err
	}

	if c.backlog != nil {
		c.backlog.Clear()
	}
	return nil
}

// Send performs a single delivery attempt without touching the backlog.
// It is the delivery function used for cached-entry retries.
func (c *Client) Send(ctx context.Context, p models.ReportPayload) error {
	err := c.doSend(ctx, p)
	if err != nil {
		c.logger.Warn("Report delivery failed",
			zap.String("kind", err.Kind.String()),
			zap.Error(err))
		if c.recorder != nil {
			c.recorder.DeliveryFailed(err.Kind.String())
		}
		return err
	}

	c.logger.Debug("Report delivered", zap.String("client_id", p.ClientID))
	if c.recorder != nil {
		c.recorder.DeliverySucceeded()
	}
	return nil
}

// doSend performs a single HTTP POST to the reports endpoint.
func (c *Client) doSend(ctx context.Context, p models.ReportPayload) *DeliveryError {
	data, err := json.Marshal(p)
	if err != nil {
		return &DeliveryError{Kind: KindOther, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return &DeliveryError{Kind: KindOther, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &DeliveryError{Kind: KindServer, StatusCode: resp.StatusCode}
}
