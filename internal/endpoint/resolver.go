// Package endpoint discovers which backend origin the console should talk to.
//
// A candidate is probed with a deliberately invalid credential exchange: a
// live API answers 400 or 401, anything else (connection refused, 404, 5xx)
// eliminates the candidate. The first passing candidate is persisted and
// reused on every subsequent start without further probing.
package endpoint

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/refplatform/adminconsole/internal/storage"
)

const stateKey = "api_base"

// probeBody is a credential exchange guaranteed to be rejected; it proves the
// auth contract exists without side effects on the backend.
const probeBody = `{"username":"__probe__","password":"__probe__"}`

// Resolver picks and remembers the active backend base URL.
type Resolver struct {
	state      storage.Store
	candidates []string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.Mutex
	resolved string
}

// Config configures a Resolver.
type Config struct {
	// State persists the chosen endpoint across restarts.
	State storage.Store
	// Candidates are probed in order; the first entry doubles as the
	// last-resort default when nothing answers.
	Candidates []string
	// HTTPClient is used for probes. When nil a client with a short
	// timeout is used so a dead candidate fails fast.
	HTTPClient *http.Client
	// ProbeInterval paces probe requests; zero means no pacing.
	ProbeInterval time.Duration
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if len(cfg.Candidates) == 0 {
		return nil, fmt.Errorf("at least one candidate endpoint is required")
	}

	candidates := make([]string, 0, len(cfg.Candidates))
	for _, c := range cfg.Candidates {
		normalized, err := Normalize(c)
		if err != nil {
			return nil, fmt.Errorf("candidate %q: %w", c, err)
		}
		candidates = append(candidates, normalized)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ProbeInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.ProbeInterval), 1)
	}

	return &Resolver{
		state:      cfg.State,
		candidates: candidates,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// Resolve returns the active base URL. A previously persisted endpoint is
// returned without probing; otherwise candidates are probed in order and the
// first live one is persisted. If nothing answers the first candidate is
// returned so callers are never left without a base URL.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved != "" {
		return r.resolved, nil
	}

	if stored, ok, err := r.state.Get(stateKey); err == nil && ok && stored != "" {
		r.resolved = stored
		return stored, nil
	}

	for _, candidate := range r.candidates {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
		if r.probe(ctx, candidate) {
			if err := r.state.Set(stateKey, candidate); err != nil {
				return "", fmt.Errorf("persist endpoint: %w", err)
			}
			r.resolved = candidate
			return candidate, nil
		}
	}

	// Nothing answered; fall back to the first candidate without
	// persisting it, so the next session probes again.
	r.resolved = r.candidates[0]
	return r.resolved, nil
}

// Override skips probing: the URL is normalized, persisted and becomes the
// resolved endpoint immediately. Used for manual environment switching.
func (r *Resolver) Override(rawURL string) (string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.Set(stateKey, normalized); err != nil {
		return "", fmt.Errorf("persist endpoint: %w", err)
	}
	r.resolved = normalized
	return normalized, nil
}

// probe reports whether candidate hosts the expected auth contract.
func (r *Resolver) probe(ctx context.Context, candidate string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		candidate+"/auth/token/", bytes.NewReader([]byte(probeBody)))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	// 400/401 prove a live API rejecting bogus credentials. 404 means the
	// route does not exist there, 5xx means something is broken behind it.
	return resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized
}

// Normalize validates a base URL and canonicalizes it: no trailing slash and
// guaranteed to end in the /api root segment.
func Normalize(rawURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	if trimmed == "" {
		return "", fmt.Errorf("endpoint URL is required")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("endpoint URL must be http or https")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("endpoint URL must include a host")
	}

	if !strings.HasSuffix(trimmed, "/api") {
		trimmed += "/api"
	}
	return trimmed, nil
}
