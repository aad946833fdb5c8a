package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/refplatform/adminconsole/internal/apiclient"
)

// Engine dispatches listings and actions for every reviewable kind and
// cascades dependent view refreshes after successful mutations.
type Engine struct {
	client *apiclient.Client

	mu        sync.RWMutex
	snapshots map[string]Snapshot

	cascades sync.WaitGroup
}

// Snapshot is the last successfully fetched state of one view. Each view
// owns exactly one slot, so a slow response can only ever overwrite its own
// view, never another kind's.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewEngine creates an Engine on top of an authenticated client.
func NewEngine(client *apiclient.Client) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("api client is required")
	}
	return &Engine{
		client:    client,
		snapshots: make(map[string]Snapshot),
	}, nil
}

// Client returns the underlying request client.
func (e *Engine) Client() *apiclient.Client { return e.client }

// =============================================================================
// Listings
// =============================================================================

// List fetches the raw listing for a kind and records its snapshot.
func (e *Engine) List(ctx context.Context, kind Kind) (json.RawMessage, error) {
	path, ok := listPaths[kind]
	if !ok {
		return nil, validationErrorf("kind %q has no listing", kind)
	}
	raw, err := e.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	e.record(string(kind), raw)
	return raw, nil
}

// PendingUsers lists signups awaiting approval.
func (e *Engine) PendingUsers(ctx context.Context) ([]PendingUser, error) {
	return listAs[PendingUser](ctx, e, KindUserSignup)
}

// PendingDeposits lists deposits awaiting review.
func (e *Engine) PendingDeposits(ctx context.Context) ([]DepositRequest, error) {
	return listAs[DepositRequest](ctx, e, KindDeposit)
}

// PendingWithdrawals lists withdrawals awaiting review.
func (e *Engine) PendingWithdrawals(ctx context.Context) ([]WithdrawalRequest, error) {
	return listAs[WithdrawalRequest](ctx, e, KindWithdrawal)
}

// PendingProofs lists proof-of-payment documents awaiting review.
func (e *Engine) PendingProofs(ctx context.Context) ([]SignupProof, error) {
	return listAs[SignupProof](ctx, e, KindSignupProof)
}

// Products lists marketplace products.
func (e *Engine) Products(ctx context.Context) ([]Product, error) {
	return listAs[Product](ctx, e, KindProduct)
}

func listAs[T any](ctx context.Context, e *Engine, kind Kind) ([]T, error) {
	raw, err := e.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	items := []T{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s listing: %w", kind, err)
	}
	return items, nil
}

// Orders lists marketplace orders, optionally filtered by status.
func (e *Engine) Orders(ctx context.Context, status string) ([]Order, error) {
	path := listPaths[KindOrder]
	if status != "" {
		if err := validOrderStatus(status); err != nil {
			return nil, err
		}
		path += "?status=" + url.QueryEscape(status)
	}
	raw, err := e.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	e.record(string(KindOrder), raw)

	orders := []Order{}
	if len(raw) == 0 {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode order listing: %w", err)
	}
	return orders, nil
}

// Users fetches one page of the filtered user listing.
func (e *Engine) Users(ctx context.Context, filter UserFilter) (UserPage, error) {
	params := url.Values{}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	if filter.Q != "" {
		params.Set("q", filter.Q)
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			params.Set(key, strconv.FormatBool(*v))
		}
	}
	setBool("is_approved", filter.IsApproved)
	setBool("is_active", filter.IsActive)
	setBool("is_staff", filter.IsStaff)
	if filter.JoinedFrom != "" {
		params.Set("date_joined_from", filter.JoinedFrom)
	}
	if filter.JoinedTo != "" {
		params.Set("date_joined_to", filter.JoinedTo)
	}
	if filter.OrderBy != "" {
		orderBy := filter.OrderBy
		if filter.Descending {
			orderBy = "-" + orderBy
		}
		params.Set("order_by", orderBy)
	}

	raw, err := e.client.Get(ctx, "/accounts/admin/users/?"+params.Encode())
	if err != nil {
		return UserPage{}, err
	}
	e.record("users", raw)

	var pageOut UserPage
	if err := json.Unmarshal(raw, &pageOut); err != nil {
		return UserPage{}, fmt.Errorf("decode user page: %w", err)
	}
	if pageOut.Results == nil {
		pageOut.Results = []AdminUser{}
	}
	return pageOut, nil
}

// CreateProduct adds a marketplace listing.
func (e *Engine) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	if input.Title == "" {
		return Product{}, validationErrorf("product title is required")
	}
	if input.PriceUSD == "" {
		return Product{}, validationErrorf("product price is required")
	}

	raw, err := e.client.Post(ctx, listPaths[KindProduct], input)
	if err != nil {
		return Product{}, err
	}
	var created Product
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &created); err != nil {
			return Product{}, fmt.Errorf("decode created product: %w", err)
		}
	}
	return created, nil
}

// =============================================================================
// Summary views
// =============================================================================

// ReferralSummary fetches referral aggregates. The total lives under either
// "total" or "total_referrals" depending on backend version.
func (e *Engine) ReferralSummary(ctx context.Context) (ReferralSummary, error) {
	raw, err := e.client.Get(ctx, "/referrals/admin/summary/")
	if err != nil {
		return ReferralSummary{}, err
	}
	e.record("referral-summary", raw)
	return parseReferralSummary(raw), nil
}

func parseReferralSummary(raw []byte) ReferralSummary {
	summary := ReferralSummary{}
	total := gjson.GetBytes(raw, "total")
	if !total.Exists() {
		total = gjson.GetBytes(raw, "total_referrals")
	}
	summary.Total = total.Int()
	if v := gjson.GetBytes(raw, "level1_count"); v.Exists() {
		n := v.Int()
		summary.Level1Count = &n
	}
	if v := gjson.GetBytes(raw, "level2_count"); v.Exists() {
		n := v.Int()
		summary.Level2Count = &n
	}
	summary.TotalEarningsUSD = gjson.GetBytes(raw, "total_earnings_usd").String()
	return summary
}

// GlobalPool fetches the global pool balance view.
func (e *Engine) GlobalPool(ctx context.Context) (GlobalPool, error) {
	raw, err := e.client.Get(ctx, "/earnings/admin/global-pool/")
	if err != nil {
		return GlobalPool{}, err
	}
	e.record("global-pool", raw)

	var pool GlobalPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return GlobalPool{}, fmt.Errorf("decode global pool: %w", err)
	}
	return pool, nil
}

// SystemOverview fetches the economics configuration snapshot.
func (e *Engine) SystemOverview(ctx context.Context) (SystemOverview, error) {
	raw, err := e.client.Get(ctx, "/earnings/admin/system-overview/")
	if err != nil {
		return SystemOverview{}, err
	}
	e.record("system-overview", raw)

	var overview SystemOverview
	if err := json.Unmarshal(raw, &overview); err != nil {
		return SystemOverview{}, fmt.Errorf("decode system overview: %w", err)
	}
	return overview, nil
}

// GenerateEarnings triggers a server-side earnings run, then refreshes the
// views its aggregates feed.
func (e *Engine) GenerateEarnings(ctx context.Context) error {
	if _, err := e.client.Post(ctx, "/earnings/admin/generate-earnings/", nil); err != nil {
		return err
	}
	e.spawnCascade([]refreshTarget{refreshDashboard, refreshGlobalPool}, "")
	return nil
}

// Dashboard issues the four dashboard fetches concurrently and merges them.
// Each slot succeeds or fails on its own; one slow or broken listing never
// poisons the others.
func (e *Engine) Dashboard(ctx context.Context) (DashboardSummary, error) {
	summary := DashboardSummary{
		PendingUsers:       -1,
		PendingDeposits:    -1,
		PendingWithdrawals: -1,
		TotalReferrals:     -1,
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = map[string]string{}
	)

	fetch := func(name string, run func() (int64, error), slot *int64) {
		defer wg.Done()
		n, err := run()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs[name] = err.Error()
			return
		}
		*slot = n
	}

	wg.Add(4)
	go fetch("pending-users", func() (int64, error) {
		items, err := e.PendingUsers(ctx)
		return int64(len(items)), err
	}, &summary.PendingUsers)
	go fetch("pending-deposits", func() (int64, error) {
		items, err := e.PendingDeposits(ctx)
		return int64(len(items)), err
	}, &summary.PendingDeposits)
	go fetch("pending-withdrawals", func() (int64, error) {
		items, err := e.PendingWithdrawals(ctx)
		return int64(len(items)), err
	}, &summary.PendingWithdrawals)
	go fetch("referrals", func() (int64, error) {
		s, err := e.ReferralSummary(ctx)
		return s.Total, err
	}, &summary.TotalReferrals)
	wg.Wait()

	if len(errs) == 4 {
		return summary, fmt.Errorf("dashboard: all fetches failed: %v", errs)
	}
	if len(errs) > 0 {
		summary.Errors = errs
	}
	e.recordValue("dashboard", summary)
	return summary, nil
}

// =============================================================================
// Actions
// =============================================================================

// Act applies verb to item id of the given kind. A (kind, verb) pair outside
// the dispatch table is rejected before any network traffic. On success the
// dependent views refresh in the background; their failures are logged and do
// not affect the reported outcome.
func (e *Engine) Act(ctx context.Context, kind Kind, id int64, verb Verb, opts ActionOptions) error {
	verbs, ok := actionRoutes[kind]
	if !ok {
		return validationErrorf("kind %q supports no actions", kind)
	}
	route, ok := verbs[verb]
	if !ok {
		return validationErrorf("verb %s is not valid for kind %s", verb, kind)
	}
	if id <= 0 {
		return validationErrorf("item id is required")
	}
	if verb == VerbSetStatus {
		if err := validOrderStatus(opts.Status); err != nil {
			return err
		}
	}

	var err error
	switch route.method {
	case "POST":
		_, err = e.client.Post(ctx, route.path(id), route.body(verb, opts))
	case "PATCH":
		_, err = e.client.Patch(ctx, route.path(id), route.body(verb, opts))
	default:
		_, err = e.client.Do(ctx, route.method, route.path(id), route.body(verb, opts))
	}
	if err != nil {
		return err
	}

	if targets := cascadeTargets[kind]; len(targets) > 0 {
		e.spawnCascade(targets, kind)
	}
	return nil
}

func validOrderStatus(status string) error {
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return nil
	}
	return validationErrorf("invalid order status %q", status)
}

// =============================================================================
// Cascades & snapshots
// =============================================================================

// spawnCascade refreshes targets in the background. Fire-and-forget: the
// triggering call already reported its outcome, so failures are only logged.
func (e *Engine) spawnCascade(targets []refreshTarget, kind Kind) {
	e.cascades.Add(1)
	go func() {
		defer e.cascades.Done()

		// Detached from the caller's context: the action already
		// succeeded, the refreshes outlive the triggering request.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, target := range targets {
			var err error
			switch target {
			case refreshSelf:
				_, err = e.List(ctx, kind)
			case refreshDashboard:
				_, err = e.Dashboard(ctx)
			case refreshGlobalPool:
				_, err = e.GlobalPool(ctx)
			}
			if err != nil {
				log.Printf("review: cascade refresh %s failed: %v", target, err)
			}
		}
	}()
}

// WaitCascades blocks until in-flight cascade refreshes finish. Used on
// shutdown and in tests.
func (e *Engine) WaitCascades() {
	e.cascades.Wait()
}

// record stores raw JSON as the view's snapshot.
func (e *Engine) record(view string, data json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots[view] = Snapshot{Data: data, FetchedAt: time.Now().UTC()}
}

// recordValue marshals a derived value into the view's snapshot.
func (e *Engine) recordValue(view string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	e.record(view, data)
}

// Snapshot returns the last fetched state of a view, if any.
func (e *Engine) Snapshot(view string) (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.snapshots[view]
	return s, ok
}

func validationErrorf(format string, args ...any) error {
	return &apiclient.APIError{Kind: apiclient.KindValidation, Detail: fmt.Sprintf(format, args...)}
}
