// Package session owns the access/refresh credential pair. Mutations persist
// synchronously; reads come from an in-memory copy hydrated once at startup.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/refplatform/adminconsole/internal/storage"
)

const (
	accessKey  = "access_token"
	refreshKey = "refresh_token"
)

// Credentials is the bearer credential pair. A non-empty access token means
// the user is considered logged in for UI purposes; only a successful call
// proves it is still valid server-side.
type Credentials struct {
	Access  string
	Refresh string
}

// Store holds the current credential pair.
type Store struct {
	mu    sync.RWMutex
	state storage.Store
	creds Credentials
}

// NewStore creates a Store hydrated from persistent state.
func NewStore(state storage.Store) (*Store, error) {
	if state == nil {
		return nil, fmt.Errorf("state store is required")
	}

	s := &Store{state: state}
	if v, ok, err := state.Get(accessKey); err != nil {
		return nil, fmt.Errorf("load access token: %w", err)
	} else if ok {
		s.creds.Access = v
	}
	if v, ok, err := state.Get(refreshKey); err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	} else if ok {
		s.creds.Refresh = v
	}
	return s, nil
}

// Current returns the credential pair.
func (s *Store) Current() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Authenticated reports whether an access token is present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Access != ""
}

// SetFromLogin stores a freshly issued credential pair.
func (s *Store) SetFromLogin(creds Credentials) error {
	if creds.Access == "" {
		return fmt.Errorf("access token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Set(accessKey, creds.Access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := s.state.Set(refreshKey, creds.Refresh); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	s.creds = creds
	return nil
}

// SetAccess replaces only the access token, keeping the refresh token. Used
// after a successful refresh exchange.
func (s *Store) SetAccess(token string) error {
	if token == "" {
		return fmt.Errorf("access token is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Set(accessKey, token); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	s.creds.Access = token
	return nil
}

// Clear wipes both tokens, in memory and on disk. Used on logout and on an
// unrecoverable refresh failure.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Delete(accessKey); err != nil {
		return fmt.Errorf("clear access token: %w", err)
	}
	if err := s.state.Delete(refreshKey); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.creds = Credentials{}
	return nil
}

// AccessExpiresAt decodes the access token without signature verification and
// returns its expiry claim. The console has no signing key; the claim is only
// a hint for display, never an authorization decision.
func (s *Store) AccessExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	token := s.creds.Access
	s.mu.RUnlock()

	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
