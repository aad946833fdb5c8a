// Package review is the workflow engine of the console: a uniform
// list/act contract over every reviewable resource kind, with dependent view
// refreshes cascading after successful mutations.
package review

import "fmt"

// Kind identifies a reviewable resource class.
type Kind string

const (
	KindUserSignup  Kind = "UserSignup"
	KindDeposit     Kind = "Deposit"
	KindWithdrawal  Kind = "Withdrawal"
	KindSignupProof Kind = "SignupProof"
	KindOrder       Kind = "Order"
	KindProduct     Kind = "Product"
)

// Verb is an administrative action applied to one item. Not every verb is
// valid for every kind; the dispatch table is authoritative.
type Verb string

const (
	VerbApprove    Verb = "APPROVE"
	VerbReject     Verb = "REJECT"
	VerbCredit     Verb = "CREDIT"
	VerbPaid       Verb = "PAID"
	VerbActivate   Verb = "ACTIVATE"
	VerbDeactivate Verb = "DEACTIVATE"
	VerbToggle     Verb = "TOGGLE"
	VerbSetStatus  Verb = "SET_STATUS"
)

// Order statuses accepted by SET_STATUS.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

// ParseKind maps external input (CLI arguments, URL segments) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "UserSignup", "users", "pending-users":
		return KindUserSignup, nil
	case "Deposit", "deposits":
		return KindDeposit, nil
	case "Withdrawal", "withdrawals":
		return KindWithdrawal, nil
	case "SignupProof", "proofs", "signup-proofs":
		return KindSignupProof, nil
	case "Order", "orders":
		return KindOrder, nil
	case "Product", "products":
		return KindProduct, nil
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// ParseVerb maps external input to a Verb.
func ParseVerb(s string) (Verb, error) {
	switch Verb(s) {
	case VerbApprove, VerbReject, VerbCredit, VerbPaid,
		VerbActivate, VerbDeactivate, VerbToggle, VerbSetStatus:
		return Verb(s), nil
	}
	return "", fmt.Errorf("unknown verb %q", s)
}
