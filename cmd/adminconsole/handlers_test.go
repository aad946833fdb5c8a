package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/refplatform/adminconsole/internal/apiclient"
	"github.com/refplatform/adminconsole/internal/endpoint"
	"github.com/refplatform/adminconsole/internal/review"
	"github.com/refplatform/adminconsole/internal/session"
	"github.com/refplatform/adminconsole/internal/storage"
)

// newTestGateway wires a router against a fake backend.
func newTestGateway(t *testing.T, backend http.Handler, loggedIn bool) (*mux.Router, *review.Engine) {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	state := storage.NewMemory()
	resolver, err := endpoint.NewResolver(endpoint.Config{
		State:      state,
		Candidates: []string{srv.URL},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolver.Override(srv.URL); err != nil {
		t.Fatal(err)
	}

	sess, err := session.NewStore(state)
	if err != nil {
		t.Fatal(err)
	}
	if loggedIn {
		if err := sess.SetFromLogin(session.Credentials{Access: "acc", Refresh: "ref"}); err != nil {
			t.Fatal(err)
		}
	}

	client, err := apiclient.New(apiclient.Config{Resolver: resolver, Session: sess})
	if err != nil {
		t.Fatal(err)
	}
	engine, err := review.NewEngine(client)
	if err != nil {
		t.Fatal(err)
	}
	return newRouter(engine), engine
}

func TestLoginHandler(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/token/" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "acc", "refresh": "ref"})
	})
	router, engine := newTestGateway(t, backend, false)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"alice","password":"s3cret"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !engine.Client().Session().Authenticated() {
		t.Error("session not authenticated after login")
	}
}

func TestLoginHandler_BadCredentials(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "no active account found"})
	})
	router, _ := newTestGateway(t, backend, false)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "[401] no active account found" {
		t.Errorf("error = %q, want [401] no active account found", body["error"])
	}
}

func TestPendingHandler(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/withdrawals/admin/pending/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})
	router, _ := newTestGateway(t, backend, true)

	req := httptest.NewRequest(http.MethodGet, "/api/pending/withdrawals", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestPendingHandler_UnknownKind(t *testing.T) {
	router, _ := newTestGateway(t, http.NotFoundHandler(), true)

	req := httptest.NewRequest(http.MethodGet, "/api/pending/referrals", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestActionHandler_AuthExpiredMarksLoggedOut(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/token/refresh/" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	router, engine := newTestGateway(t, backend, true)

	req := httptest.NewRequest(http.MethodPost, "/api/pending/deposits/5/APPROVE",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["logged_out"] != true {
		t.Errorf("logged_out marker missing in %v", body)
	}
	if engine.Client().Session().Authenticated() {
		t.Error("session still authenticated after auth expiry")
	}
}

func TestActionHandler_InvalidVerb(t *testing.T) {
	router, _ := newTestGateway(t, http.NotFoundHandler(), true)

	req := httptest.NewRequest(http.MethodPost, "/api/pending/deposits/5/PAID",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOrderStatusHandler(t *testing.T) {
	var gotBody map[string]string
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/marketplace/admin/orders/42/status/" && r.Method == http.MethodPatch {
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{}`))
			return
		}
		http.NotFound(w, r)
	})
	router, engine := newTestGateway(t, backend, true)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/42/status",
		strings.NewReader(`{"status":"PAID"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	engine.WaitCascades()

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotBody["status"] != "PAID" {
		t.Errorf("backend body = %v, want status PAID", gotBody)
	}
}

func TestEndpointHandler_Override(t *testing.T) {
	router, engine := newTestGateway(t, http.NotFoundHandler(), false)

	req := httptest.NewRequest(http.MethodPost, "/api/endpoint",
		strings.NewReader(`{"url":"http://localhost:8000"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["endpoint"] != "http://localhost:8000/api" {
		t.Errorf("endpoint = %q, want normalized base", body["endpoint"])
	}

	base, err := engine.Client().Resolver().Resolve(req.Context())
	if err != nil {
		t.Fatal(err)
	}
	if base != "http://localhost:8000/api" {
		t.Errorf("Resolve() = %q after override", base)
	}
}

func TestHealthHandler(t *testing.T) {
	router, _ := newTestGateway(t, http.NotFoundHandler(), true)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
}
