package review

import (
	"fmt"
	"net/http"
)

// ActionOptions carries verb parameters; only SET_STATUS uses one.
type ActionOptions struct {
	// Status is the target order status for SET_STATUS.
	Status string
}

// actionRoute maps one (kind, verb) cell to its backend call. Adding a kind
// or verb is a table addition, not new control flow.
type actionRoute struct {
	method string
	path   func(id int64) string
	body   func(verb Verb, opts ActionOptions) any
}

// verbPayload is the {"action": VERB} body shared by the action endpoints.
func verbPayload(verb Verb, _ ActionOptions) any {
	return map[string]string{"action": string(verb)}
}

func noBody(Verb, ActionOptions) any { return nil }

var actionRoutes = map[Kind]map[Verb]actionRoute{
	KindUserSignup: {
		VerbApprove: {http.MethodPost, func(id int64) string {
			return fmt.Sprintf("/accounts/admin/approve/%d/", id)
		}, noBody},
		VerbReject: {http.MethodPost, func(id int64) string {
			return fmt.Sprintf("/accounts/admin/reject/%d/", id)
		}, noBody},
		VerbActivate: {http.MethodPost, func(id int64) string {
			return fmt.Sprintf("/accounts/admin/activate/%d/", id)
		}, noBody},
		VerbDeactivate: {http.MethodPost, func(id int64) string {
			return fmt.Sprintf("/accounts/admin/deactivate/%d/", id)
		}, noBody},
	},
	KindDeposit: {
		VerbApprove: depositAction,
		VerbReject:  depositAction,
		VerbCredit:  depositAction,
	},
	KindWithdrawal: {
		VerbApprove: withdrawalAction,
		VerbReject:  withdrawalAction,
		VerbPaid:    withdrawalAction,
	},
	KindSignupProof: {
		VerbApprove: proofAction,
		VerbReject:  proofAction,
	},
	KindOrder: {
		VerbSetStatus: {http.MethodPatch, func(id int64) string {
			return fmt.Sprintf("/marketplace/admin/orders/%d/status/", id)
		}, func(_ Verb, opts ActionOptions) any {
			return map[string]string{"status": opts.Status}
		}},
	},
	KindProduct: {
		VerbToggle: {http.MethodPatch, func(id int64) string {
			return fmt.Sprintf("/marketplace/admin/products/%d/toggle/", id)
		}, noBody},
	},
}

var depositAction = actionRoute{http.MethodPost, func(id int64) string {
	return fmt.Sprintf("/wallets/admin/deposits/action/%d/", id)
}, verbPayload}

var withdrawalAction = actionRoute{http.MethodPost, func(id int64) string {
	return fmt.Sprintf("/withdrawals/admin/action/%d/", id)
}, verbPayload}

var proofAction = actionRoute{http.MethodPost, func(id int64) string {
	return fmt.Sprintf("/accounts/admin/signup-proof/action/%d/", id)
}, verbPayload}

// listPaths maps each kind to its listing endpoint. Only the user listing is
// paginated; the rest are plain pending queues.
var listPaths = map[Kind]string{
	KindUserSignup:  "/accounts/admin/pending-users/",
	KindDeposit:     "/wallets/admin/deposits/pending/",
	KindWithdrawal:  "/withdrawals/admin/pending/",
	KindSignupProof: "/accounts/admin/pending-signup-proofs/",
	KindOrder:       "/marketplace/admin/orders/",
	KindProduct:     "/marketplace/admin/products/",
}

// refreshTarget names one dependent view re-fetched after a mutation.
type refreshTarget string

const (
	refreshSelf       refreshTarget = "self"
	refreshDashboard  refreshTarget = "dashboard"
	refreshGlobalPool refreshTarget = "global-pool"
)

// cascadeTargets lists the views whose aggregates depend on each kind.
// Orders and products carry no declared dependents.
var cascadeTargets = map[Kind][]refreshTarget{
	KindUserSignup:  {refreshSelf, refreshDashboard},
	KindSignupProof: {refreshSelf, refreshDashboard},
	KindDeposit:     {refreshSelf, refreshDashboard, refreshGlobalPool},
	KindWithdrawal:  {refreshSelf, refreshDashboard},
}
