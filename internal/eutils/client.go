// Package eutils is a small client for the NCBI E-utilities esearch and
// esummary endpoints.
package eutils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litscout/backend/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	searchEndpoint  = "/esearch.fcgi"
	summaryEndpoint = "/esummary.fcgi"
	infoEndpoint    = "/einfo.fcgi"

	// upstream bodies are logged only below this size
	maxLoggedBody = 500
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	identity   url.Values
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

// WithIdentity adds the optional api_key, email and tool parameters NCBI
// asks heavy users to send. Empty values are not sent.
func WithIdentity(apiKey, email, tool string) Option {
	return func(c *Client) {
		for key, value := range map[string]string{"api_key": apiKey, "email": email, "tool": tool} {
			if value != "" {
				c.identity.Set(key, value)
			}
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		identity: url.Values{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs esearch against pubmed with JSON output.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*ESearchResponse, error) {
	params := url.Values{
		"db":      {Database},
		"term":    {req.Term},
		"retmode": {"json"},
		"retmax":  {strconv.Itoa(req.RetMax)},
	}
	if req.Sort != "" {
		params.Set("sort", req.Sort)
	}

	var response ESearchResponse
	if err := c.makeRequest(ctx, "esearch", searchEndpoint, params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Summary runs esummary for the given PMIDs, joined with commas in the
// order supplied.
func (c *Client) Summary(ctx context.Context, ids []string) (*ESummaryResponse, error) {
	params := url.Values{
		"db":      {Database},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}

	var response ESummaryResponse
	if err := c.makeRequest(ctx, "esummary", summaryEndpoint, params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Ping checks that einfo answers for the pubmed database.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{
		"db":      {Database},
		"retmode": {"json"},
	}
	return c.makeRequest(ctx, "einfo", infoEndpoint, params, nil)
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) makeRequest(ctx context.Context, operation, endpoint string, params url.Values, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveUpstream(operation, err, time.Since(start))
	}()

	for key, values := range c.identity {
		params[key] = values
	}
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &Error{Operation: operation, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{
		"operation": operation,
		"url":       c.baseURL + endpoint,
	}).Debug("Making E-utilities request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Operation: operation, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Operation: operation, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.WithFields(logrus.Fields{
		"operation":     operation,
		"status_code":   resp.StatusCode,
		"response_size": len(responseBody),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	}).Debug("E-utilities response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(responseBody, maxLoggedBody)),
		}
	}

	if result != nil {
		if err := json.Unmarshal(responseBody, result); err != nil {
			return &Error{Operation: operation, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
		}
	}

	return nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
