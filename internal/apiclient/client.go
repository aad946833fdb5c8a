// Package apiclient is the authenticated request layer of the console. It
// resolves the backend endpoint, attaches bearer credentials, performs a
// single transparent refresh-and-retry on 401 and classifies failures.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/refplatform/adminconsole/internal/endpoint"
	"github.com/refplatform/adminconsole/internal/session"
)

const maxResponseBytes = 8 << 20 // 8 MiB

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminconsole_backend_requests_total",
		Help: "Backend requests by method and status code",
	}, []string{"method", "status"})

	requestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminconsole_backend_errors_total",
		Help: "Classified request failures",
	}, []string{"kind"})

	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adminconsole_token_refreshes_total",
		Help: "Refresh-token exchanges by outcome",
	}, []string{"outcome"})
)

// Client issues authenticated calls against the resolved backend endpoint.
type Client struct {
	httpClient *http.Client
	resolver   *endpoint.Resolver
	session    *session.Store

	refreshMu sync.Mutex
	refresh   *refreshCall
}

// refreshCall is a single in-flight refresh exchange; concurrent 401s wait on
// done and share err instead of each invoking the refresh endpoint.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Config configures a Client.
type Config struct {
	Resolver *endpoint.Resolver
	Session  *session.Store
	// HTTPClient overrides the default 30s-timeout client.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("endpoint resolver is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("session store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		resolver:   cfg.Resolver,
		session:    cfg.Session,
	}, nil
}

// Session exposes the session store for callers that need login state.
func (c *Client) Session() *session.Store { return c.session }

// Resolver exposes the endpoint resolver for manual overrides.
func (c *Client) Resolver() *endpoint.Resolver { return c.resolver }

// Do issues method path against the resolved endpoint and returns the raw
// JSON payload. path must start with "/". A 401 with a refresh token on hand
// triggers exactly one refresh-and-retry; a second 401 clears the session and
// surfaces an auth-expired error.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	base, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve endpoint: %w", err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	requestID := uuid.NewString()

	resp, raw, err := c.attempt(ctx, method, base+path, payload, requestID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.session.Current().Refresh != "" {
		if err := c.refreshAccess(ctx, base); err != nil {
			requestErrorsTotal.WithLabelValues(string(KindAuthExpired)).Inc()
			return nil, err
		}
		resp, raw, err = c.attempt(ctx, method, base+path, payload, requestID)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			// The backend rejected a freshly refreshed token; retrying
			// further would loop. Hard authentication failure.
			if clearErr := c.session.Clear(); clearErr != nil {
				log.Printf("apiclient: clear session: %v", clearErr)
			}
			requestErrorsTotal.WithLabelValues(string(KindAuthExpired)).Inc()
			return nil, authExpiredError(fmt.Errorf("401 after refresh"))
		}
	}

	return c.decode(resp, raw)
}

// Get issues an authenticated GET.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post issues an authenticated POST. A nil body is sent as {} to match the
// backend's expectation of a JSON object on every action route.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = struct{}{}
	}
	return c.Do(ctx, http.MethodPost, path, body)
}

// Patch issues an authenticated PATCH.
func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = struct{}{}
	}
	return c.Do(ctx, http.MethodPatch, path, body)
}

// attempt performs one HTTP exchange and slurps the response body.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, requestID string) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access := c.session.Current().Access; access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestErrorsTotal.WithLabelValues(string(KindNetworkUnreachable)).Inc()
		return nil, nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		requestErrorsTotal.WithLabelValues(string(KindNetworkUnreachable)).Inc()
		return nil, nil, networkError(err)
	}

	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, raw, nil
}

// decode validates and classifies a completed response.
func (c *Client) decode(resp *http.Response, raw []byte) (json.RawMessage, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			return nil, nil
		}
		if looksLikeMarkup(resp.Header.Get("Content-Type"), trimmed) {
			requestErrorsTotal.WithLabelValues(string(KindUnexpectedNonJSON)).Inc()
			return nil, nonJSONError(resp.StatusCode)
		}
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("decode response: invalid JSON payload")
		}
		return json.RawMessage(trimmed), nil
	}

	requestErrorsTotal.WithLabelValues(string(KindHTTP)).Inc()
	return nil, httpError(resp.StatusCode, errorDetail(raw))
}

// errorDetail extracts a human-readable message from an error body: the DRF
// "detail" field when present, otherwise the raw text.
func errorDetail(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	if trimmed == "" {
		return "request failed"
	}
	return trimmed
}

// looksLikeMarkup reports whether the payload is a document rather than JSON.
func looksLikeMarkup(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") {
		return true
	}
	return len(body) > 0 && body[0] == '<'
}
