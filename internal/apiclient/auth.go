package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/refplatform/adminconsole/internal/session"
)

// tokenPair mirrors the backend token responses. The refresh endpoint may
// rotate the refresh token; its absence keeps the current one.
type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges credentials for a token pair and stores it. Bad credentials
// surface as "[<status>] <detail>" and leave the session cleared.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if username == "" {
		return validationError("username is required")
	}
	if password == "" {
		return validationError("password is required")
	}

	base, err := c.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve endpoint: %w", err)
	}

	status, raw, err := c.postUnauthenticated(ctx, base+"/auth/token/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		requestErrorsTotal.WithLabelValues(string(KindHTTP)).Inc()
		return httpError(status, errorDetail(raw))
	}

	var pair tokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if pair.Access == "" {
		return fmt.Errorf("token response missing access token")
	}

	return c.session.SetFromLogin(session.Credentials{
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

// Logout clears the stored credential pair.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// refreshAccess exchanges the refresh token for a new access token. A failed
// exchange clears the session and returns an auth-expired error. Concurrent
// callers share a single in-flight exchange.
func (c *Client) refreshAccess(ctx context.Context, base string) error {
	c.refreshMu.Lock()
	if call := c.refresh; call != nil {
		c.refreshMu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.refresh = call
	c.refreshMu.Unlock()

	call.err = c.doRefresh(ctx, base)
	close(call.done)

	c.refreshMu.Lock()
	c.refresh = nil
	c.refreshMu.Unlock()

	return call.err
}

func (c *Client) doRefresh(ctx context.Context, base string) error {
	refresh := c.session.Current().Refresh
	if refresh == "" {
		return authExpiredError(fmt.Errorf("no refresh token"))
	}

	fail := func(cause error) error {
		tokenRefreshesTotal.WithLabelValues("failure").Inc()
		if err := c.session.Clear(); err != nil {
			log.Printf("apiclient: clear session after failed refresh: %v", err)
		}
		return authExpiredError(cause)
	}

	status, raw, err := c.postUnauthenticated(ctx, base+"/auth/token/refresh/", map[string]string{
		"refresh": refresh,
	})
	if err != nil {
		return fail(err)
	}
	if status < 200 || status >= 300 {
		return fail(fmt.Errorf("refresh rejected with status %d", status))
	}

	var pair tokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return fail(fmt.Errorf("malformed refresh response: %w", err))
	}
	if pair.Access == "" {
		return fail(fmt.Errorf("refresh response missing access token"))
	}

	if pair.Refresh != "" {
		if err := c.session.SetFromLogin(session.Credentials{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
			return fmt.Errorf("store rotated tokens: %w", err)
		}
	} else if err := c.session.SetAccess(pair.Access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}

	tokenRefreshesTotal.WithLabelValues("success").Inc()
	return nil
}

// postUnauthenticated posts JSON without attaching bearer credentials; used
// by the token endpoints themselves.
func (c *Client) postUnauthenticated(ctx context.Context, url string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestErrorsTotal.WithLabelValues(string(KindNetworkUnreachable)).Inc()
		return 0, nil, networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, networkError(err)
	}
	return resp.StatusCode, raw, nil
}
