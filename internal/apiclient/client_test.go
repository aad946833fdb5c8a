package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refplatform/adminconsole/internal/endpoint"
	"github.com/refplatform/adminconsole/internal/session"
	"github.com/refplatform/adminconsole/internal/storage"
)

// newClient wires a client against a fake backend with a pre-seeded session.
func newClient(t *testing.T, backendURL string, creds session.Credentials) *Client {
	t.Helper()

	state := storage.NewMemory()
	resolver, err := endpoint.NewResolver(endpoint.Config{
		State:      state,
		Candidates: []string{backendURL},
	})
	require.NoError(t, err)
	// Pin the endpoint so tests never depend on probe traffic.
	_, err = resolver.Override(backendURL)
	require.NoError(t, err)

	sess, err := session.NewStore(state)
	require.NoError(t, err)
	if creds.Access != "" {
		require.NoError(t, sess.SetFromLogin(creds))
	}

	client, err := New(Config{Resolver: resolver, Session: sess})
	require.NoError(t, err)
	return client
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer acc" {
			t.Errorf("Authorization = %q, want Bearer acc", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
		if _, hasCookie := r.Header["Cookie"]; hasCookie {
			t.Error("request carried ambient cookies")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc", Refresh: "ref"})

	raw, err := c.Get(context.Background(), "/withdrawals/admin/pending/")
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	var attempts, refreshes atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh"] != "ref" {
			t.Errorf("refresh body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "acc2"})
	})
	mux.HandleFunc("/api/wallets/admin/deposits/pending/", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.Header.Get("Authorization") == "Bearer acc2" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "stale", Refresh: "ref"})

	_, err := c.Get(context.Background(), "/wallets/admin/deposits/pending/")
	require.NoError(t, err)

	require.EqualValues(t, 2, attempts.Load(), "original + one retry")
	require.EqualValues(t, 1, refreshes.Load())
	require.Equal(t, "acc2", c.Session().Current().Access)
	require.Equal(t, "ref", c.Session().Current().Refresh, "refresh token kept when not rotated")
}

// A backend that keeps answering 401 even after a successful refresh must
// produce exactly two attempts and an auth-expired error, never a loop.
func TestDo_SecondUnauthorizedIsTerminal(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "acc2"})
	})
	mux.HandleFunc("/api/accounts/admin/pending-users/", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc", Refresh: "ref"})

	_, err := c.Get(context.Background(), "/accounts/admin/pending-users/")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAuthExpired), "got %v", err)
	require.EqualValues(t, 2, attempts.Load(), "exactly original + one retry")
	require.False(t, c.Session().Authenticated(), "session must be cleared")
}

func TestDo_RefreshFailureClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "token blacklisted"})
	})
	mux.HandleFunc("/api/withdrawals/admin/pending/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc", Refresh: "ref"})

	_, err := c.Get(context.Background(), "/withdrawals/admin/pending/")
	require.True(t, errors.Is(err, ErrAuthExpired), "got %v", err)
	require.False(t, c.Session().Authenticated())
}

func TestDo_MalformedRefreshPayloadClearsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access":""}`))
	})
	mux.HandleFunc("/api/withdrawals/admin/pending/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc", Refresh: "ref"})

	_, err := c.Get(context.Background(), "/withdrawals/admin/pending/")
	require.True(t, errors.Is(err, ErrAuthExpired), "got %v", err)
	require.False(t, c.Session().Authenticated())
}

// Concurrent 401s must share one refresh exchange.
func TestDo_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	var refreshes atomic.Int64
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		<-release
		json.NewEncoder(w).Encode(map[string]string{"access": "acc2"})
	})
	mux.HandleFunc("/api/wallets/admin/deposits/pending/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer acc2" {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "stale", Refresh: "ref"})

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), "/wallets/admin/deposits/pending/")
		}(i)
	}

	// Give every caller time to hit the 401 and queue on the refresh,
	// then let the single exchange complete.
	close(release)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	require.LessOrEqual(t, refreshes.Load(), int64(2),
		"concurrent 401s must collapse into at most a straggler refresh, got %d", refreshes.Load())
}

func TestDo_NoRefreshTokenSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "credentials not provided"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{})

	_, err := c.Get(context.Background(), "/accounts/admin/pending-users/")
	require.Error(t, err)
	require.Equal(t, KindHTTP, KindOf(err))
	require.Equal(t, "[401] credentials not provided", err.Error())
}

func TestDo_NetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url, session.Credentials{Access: "acc"})

	_, err := c.Get(context.Background(), "/accounts/admin/pending-users/")
	require.Error(t, err)
	require.Equal(t, KindNetworkUnreachable, KindOf(err))
}

func TestDo_HTMLPayloadClassifiedAsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<!DOCTYPE html><html><body>login</body></html>"))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc"})

	_, err := c.Get(context.Background(), "/accounts/admin/pending-users/")
	require.Error(t, err)
	require.Equal(t, KindUnexpectedNonJSON, KindOf(err))
}

func TestDo_HTTPErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "admin access required"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc"})

	_, err := c.Get(context.Background(), "/accounts/admin/pending-users/")
	require.Error(t, err)
	require.Equal(t, "[403] admin access required", err.Error())
}

func TestDo_EmptyBodyIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{Access: "acc"})

	raw, err := c.Post(context.Background(), "/accounts/admin/approve/7/", nil)
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("login carried Authorization = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "alice" || body["password"] != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "no active account found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "acc", "refresh": "ref"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{})

	require.NoError(t, c.Login(context.Background(), "alice", "s3cret"))
	require.Equal(t, session.Credentials{Access: "acc", Refresh: "ref"}, c.Session().Current())
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "no active account found"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{})

	err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	require.Equal(t, "[401] no active account found", err.Error())
	require.False(t, c.Session().Authenticated(), "session must remain cleared")
}

func TestLogin_MissingFieldsNeverHitNetwork(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, session.Credentials{})

	err := c.Login(context.Background(), "", "pw")
	require.Equal(t, KindValidation, KindOf(err))
	err = c.Login(context.Background(), "alice", "")
	require.Equal(t, KindValidation, KindOf(err))
	require.EqualValues(t, 0, hits.Load())
}

func TestLogout(t *testing.T) {
	c := newClient(t, "http://localhost:1", session.Credentials{Access: "a", Refresh: "r"})
	require.NoError(t, c.Logout())
	require.False(t, c.Session().Authenticated())
}
