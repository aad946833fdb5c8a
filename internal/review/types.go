package review

import "encoding/json"

// Records below mirror the backend serializers verbatim. Monetary amounts
// arrive as decimal strings and timestamps as ISO 8601 strings; both are
// server-authoritative and rendered as received, never recomputed locally.

// UserRef is the embedded owner reference on deposits, withdrawals, proofs
// and orders.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PendingUser is a signup awaiting approval.
type PendingUser struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	SignupTxID     string `json:"signup_tx_id"`
	SignupProofURL string `json:"signup_proof_url"`
	SubmittedAt    string `json:"submitted_at"`
}

// DepositRequest is a pending deposit awaiting approve/reject/credit.
type DepositRequest struct {
	ID            int64   `json:"id"`
	User          UserRef `json:"user"`
	AmountPKR     string  `json:"amount_pkr"`
	AmountUSD     string  `json:"amount_usd"`
	FXRate        string  `json:"fx_rate"`
	TxID          string  `json:"tx_id"`
	BankName      string  `json:"bank_name"`
	AccountName   string  `json:"account_name"`
	ProofImageURL string  `json:"proof_image_url"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	ProcessedAt   string  `json:"processed_at"`
}

// WithdrawalRequest is a pending withdrawal awaiting approve/reject/paid.
type WithdrawalRequest struct {
	ID             int64          `json:"id"`
	User           UserRef        `json:"user"`
	AmountPKR      string         `json:"amount_pkr"`
	AmountUSD      string         `json:"amount_usd"`
	FXRate         string         `json:"fx_rate"`
	Method         string         `json:"method"`
	AccountDetails map[string]any `json:"account_details"`
	TxID           string         `json:"tx_id"`
	TaxUSD         string         `json:"tax_usd"`
	NetUSD         string         `json:"net_usd"`
	Status         string         `json:"status"`
	CreatedAt      string         `json:"created_at"`
	ProcessedAt    string         `json:"processed_at"`
}

// SignupProof is an uploaded proof-of-payment document awaiting review.
type SignupProof struct {
	ID            int64   `json:"id"`
	User          UserRef `json:"user"`
	File          string  `json:"file"`
	ProofImageURL string  `json:"proof_image_url"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	ProcessedAt   string  `json:"processed_at"`
}

// Product is a marketplace listing; TOGGLE flips IsActive.
type Product struct {
	ID          int64  `json:"id"`
	Seller      int64  `json:"seller"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceUSD    string `json:"price_usd"`
	ImageURL    string `json:"image_url"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// ProductInput creates a new marketplace listing.
type ProductInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PriceUSD    string `json:"price_usd"`
	ImageURL    string `json:"image_url,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Order is a marketplace order; its status moves via SET_STATUS.
type Order struct {
	ID         int64  `json:"id"`
	Buyer      *int64 `json:"buyer"`
	Product    int64  `json:"product"`
	Quantity   int64  `json:"quantity"`
	TotalUSD   string `json:"total_usd"`
	Status     string `json:"status"`
	GuestName  string `json:"guest_name"`
	GuestPhone string `json:"guest_phone"`
	GuestEmail string `json:"guest_email"`
	TxID       string `json:"tx_id"`
	CreatedAt  string `json:"created_at"`
}

// AdminUser is one row of the paginated user listing.
type AdminUser struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	IsActive       bool   `json:"is_active"`
	IsStaff        bool   `json:"is_staff"`
	IsApproved     bool   `json:"is_approved"`
	RewardsUSD     string `json:"rewards_usd"`
	ReferralsCount int64  `json:"referrals_count"`
	BankName       string `json:"bank_name"`
	AccountName    string `json:"account_name"`
	DateJoined     string `json:"date_joined"`
	LastLogin      string `json:"last_login"`
}

// UserPage is the paginated user-listing envelope.
type UserPage struct {
	Results []AdminUser `json:"results"`
	Count   int64       `json:"count"`
}

// UserFilter narrows the user listing. Zero values are omitted from the
// query string.
type UserFilter struct {
	Q          string
	Page       int
	PageSize   int
	IsApproved *bool
	IsActive   *bool
	IsStaff    *bool
	JoinedFrom string
	JoinedTo   string
	OrderBy    string
	Descending bool
}

// ReferralSummary aggregates referral counts. Deployed backends disagree on
// the field name for the total, so it is extracted tolerantly.
type ReferralSummary struct {
	Total            int64  `json:"total"`
	Level1Count      *int64 `json:"level1_count,omitempty"`
	Level2Count      *int64 `json:"level2_count,omitempty"`
	TotalEarningsUSD string `json:"total_earnings_usd,omitempty"`
}

// PassiveTotal is one row of the global pool's per-user passive earnings.
type PassiveTotal struct {
	UserID          int64  `json:"user_id"`
	Username        string `json:"username"`
	TotalPassiveUSD string `json:"total_passive_usd"`
}

// GlobalPoolPayout describes the most recent pool distribution.
type GlobalPoolPayout struct {
	AmountUSD     *string `json:"amount_usd"`
	DistributedOn string  `json:"distributed_on"`
}

// GlobalPool is the pool balance view.
type GlobalPool struct {
	PayoutDay      string           `json:"payout_day"`
	PoolBalanceUSD string           `json:"pool_balance_usd"`
	LastPayout     GlobalPoolPayout `json:"last_payout"`
	PerUserPassive []PassiveTotal   `json:"per_user_passive"`
}

// SystemOverview is the economics configuration snapshot. Rates are kept as
// json.Number so their backend precision survives round-tripping.
type SystemOverview struct {
	PassiveMode     string         `json:"PASSIVE_MODE"`
	UserWalletShare json.Number    `json:"USER_WALLET_SHARE"`
	WithdrawTax     json.Number    `json:"WITHDRAW_TAX"`
	GlobalPoolCut   json.Number    `json:"GLOBAL_POOL_CUT"`
	ReferralTiers   map[string]any `json:"REFERRAL_TIERS"`
	FXSource        string         `json:"FX_SOURCE"`
}

// DashboardSummary merges the four independent dashboard fetches. A slot
// whose fetch failed holds -1 and its error message appears under Errors
// keyed by view name; the other slots are unaffected.
type DashboardSummary struct {
	PendingUsers       int64             `json:"pending_users"`
	PendingDeposits    int64             `json:"pending_deposits"`
	PendingWithdrawals int64             `json:"pending_withdrawals"`
	TotalReferrals     int64             `json:"total_referrals"`
	Errors             map[string]string `json:"errors,omitempty"`
}
