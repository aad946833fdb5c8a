package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/refplatform/adminconsole/internal/apiclient"
	"github.com/refplatform/adminconsole/internal/review"
)

// =============================================================================
// Router
// =============================================================================

func newRouter(engine *review.Engine) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/healthz", healthHandler(engine)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", loginHandler(engine)).Methods(http.MethodPost)
	api.HandleFunc("/logout", logoutHandler(engine)).Methods(http.MethodPost)
	api.HandleFunc("/endpoint", endpointHandler(engine)).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/dashboard", dashboardHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/users", usersHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/pending/{kind}", pendingHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/pending/{kind}/{id:[0-9]+}/{verb}", actionHandler(engine)).Methods(http.MethodPost)

	api.HandleFunc("/referrals/summary", referralSummaryHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/earnings/overview", systemOverviewHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/earnings/global-pool", globalPoolHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/earnings/generate", generateEarningsHandler(engine)).Methods(http.MethodPost)

	api.HandleFunc("/products", productsHandler(engine)).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/products/{id:[0-9]+}/toggle", productToggleHandler(engine)).Methods(http.MethodPost)
	api.HandleFunc("/orders", ordersHandler(engine)).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/status", orderStatusHandler(engine)).Methods(http.MethodPost)

	return r
}

// =============================================================================
// Session & endpoint handlers
// =============================================================================

func healthHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := engine.Client().Session()
		payload := map[string]any{
			"status":        "ok",
			"authenticated": sess.Authenticated(),
		}
		if exp, ok := sess.AccessExpiresAt(); ok {
			payload["access_expires_at"] = exp
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func loginHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := engine.Client().Login(r.Context(), req.Username, req.Password); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logged_in": true})
	}
}

func logoutHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Client().Logout(); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
	}
}

func endpointHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolver := engine.Client().Resolver()

		if r.Method == http.MethodGet {
			base, err := resolver.Resolve(r.Context())
			if err != nil {
				jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"endpoint": base})
			return
		}

		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		base, err := resolver.Override(req.URL)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"endpoint": base})
	}
}

// =============================================================================
// Review handlers
// =============================================================================

func dashboardHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := engine.Dashboard(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func usersHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := review.UserFilter{
			Q:          q.Get("q"),
			JoinedFrom: q.Get("date_joined_from"),
			JoinedTo:   q.Get("date_joined_to"),
			OrderBy:    q.Get("order_by"),
			Descending: q.Get("desc") == "true",
		}
		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
		filter.IsApproved = parseBoolParam(q.Get("is_approved"))
		filter.IsActive = parseBoolParam(q.Get("is_active"))
		filter.IsStaff = parseBoolParam(q.Get("is_staff"))

		page, err := engine.Users(r.Context(), filter)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func pendingHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := review.ParseKind(mux.Vars(r)["kind"])
		if err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		raw, err := engine.List(r.Context(), kind)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if raw == nil {
			raw = json.RawMessage("[]")
		}
		writeRawJSON(w, http.StatusOK, raw)
	}
}

func actionHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		kind, err := review.ParseKind(vars["kind"])
		if err != nil {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		verb, err := review.ParseVerb(vars["verb"])
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		id, err := strconv.ParseInt(vars["id"], 10, 64)
		if err != nil {
			jsonError(w, "invalid item id", http.StatusBadRequest)
			return
		}

		var opts review.ActionOptions
		if r.Body != nil {
			// Optional body: {"status": "..."} for SET_STATUS.
			var req struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				opts.Status = req.Status
			}
		}

		if err := engine.Act(r.Context(), kind, id, verb, opts); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// =============================================================================
// Summary & marketplace handlers
// =============================================================================

func referralSummaryHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := engine.ReferralSummary(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func systemOverviewHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := engine.SystemOverview(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func globalPoolHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pool, err := engine.GlobalPool(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pool)
	}
}

func generateEarningsHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.GenerateEarnings(r.Context()); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func productsHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			products, err := engine.Products(r.Context())
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, products)
			return
		}

		var input review.ProductInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		created, err := engine.CreateProduct(r.Context(), input)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func productToggleHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			jsonError(w, "invalid product id", http.StatusBadRequest)
			return
		}
		if err := engine.Act(r.Context(), review.KindProduct, id, review.VerbToggle, review.ActionOptions{}); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func ordersHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := engine.Orders(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func orderStatusHandler(engine *review.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			jsonError(w, "invalid order id", http.StatusBadRequest)
			return
		}
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		err = engine.Act(r.Context(), review.KindOrder, id, review.VerbSetStatus,
			review.ActionOptions{Status: req.Status})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// =============================================================================
// Response helpers
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(raw); err != nil {
		log.Printf("write response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps classified client errors onto gateway responses.
// AuthExpired forces the UI back to a logged-out state via the marker field.
func writeEngineError(w http.ResponseWriter, err error) {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch apiErr.Kind {
	case apiclient.KindValidation:
		jsonError(w, apiErr.Error(), http.StatusBadRequest)
	case apiclient.KindAuthExpired:
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":      apiErr.Error(),
			"logged_out": true,
		})
	case apiclient.KindNetworkUnreachable:
		jsonError(w, apiErr.Error(), http.StatusBadGateway)
	case apiclient.KindUnexpectedNonJSON:
		jsonError(w, apiErr.Error(), http.StatusBadGateway)
	case apiclient.KindHTTP:
		status := apiErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		jsonError(w, apiErr.Error(), status)
	default:
		jsonError(w, apiErr.Error(), http.StatusInternalServerError)
	}
}

func parseBoolParam(v string) *bool {
	switch v {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	return nil
}
