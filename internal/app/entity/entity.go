package entity

// Amounts are integer minor currency units (paise/cents) everywhere.

type Category struct {
	CategoryID int64  `json:"id" db:"category_id"`
	Slug       string `json:"slug" db:"slug"`
	Name       string `json:"name" db:"name"`
}

type Resource struct {
	ResourceID    int64  `json:"id" db:"resource_id"`
	Slug          string `json:"slug" db:"slug"`
	Name          string `json:"name" db:"name"`
	Description   string `json:"description" db:"description"`
	URL           string `json:"url" db:"url"`
	CategoryID    int64  `json:"category_id" db:"category_id"`
	AuthorID      int64  `json:"author_id,omitempty" db:"author_id"`
	Price         int64  `json:"price" db:"price"`
	Currency      string `json:"currency" db:"currency"`
	SalesCount    int64  `json:"sales_count" db:"sales_count"`
	FeaturedUntil string `json:"featured_until,omitempty" db:"featured_until"`
	CreatedAt     string `json:"created_at" db:"created_at"`
}

// Purchase is immutable once Status is "completed".
// CreatorEarnings + PlatformFee == AmountTotal always holds: the fee is
// derived as the remainder, never supplied independently.
type Purchase struct {
	PurchaseID        int64  `json:"id" db:"purchase_id"`
	ResourceID        int64  `json:"resource_id" db:"resource_id"`
	BuyerID           int64  `json:"buyer_id" db:"buyer_id"`
	CreatorID         int64  `json:"creator_id" db:"creator_id"`
	AmountTotal       int64  `json:"amount_total" db:"amount_total"`
	CreatorEarnings   int64  `json:"creator_earnings" db:"creator_earnings"`
	PlatformFee       int64  `json:"platform_fee" db:"platform_fee"`
	CreatorPercent    int64  `json:"creator_percent" db:"creator_percent"`
	PlatformPercent   int64  `json:"platform_percent" db:"platform_percent"`
	Currency          string `json:"currency" db:"currency"`
	PaymentMethod     string `json:"payment_method" db:"payment_method"`
	ExternalOrderID   string `json:"external_order_id" db:"external_order_id"`
	ExternalPaymentID string `json:"external_payment_id" db:"external_payment_id"`
	Status            string `json:"status" db:"status"`
	CompletedAt       string `json:"completed_at" db:"completed_at"`
}

// Earnings is the creator dashboard read model, recomputed on every view.
// PendingBalance = TotalEarnings - sum of approved payout amounts.
type Earnings struct {
	TotalEarnings      int64 `json:"total_earnings" db:"total_earnings"`
	FirstTwoEarnings   int64 `json:"first_two_earnings" db:"first_two_earnings"`
	SubsequentEarnings int64 `json:"subsequent_earnings" db:"subsequent_earnings"`
	SalesCount         int64 `json:"sales_count" db:"sales_count"`
	PendingBalance     int64 `json:"pending_balance" db:"pending_balance"`
}

type PayoutRequest struct {
	PayoutID        int64  `json:"id" db:"payout_id"`
	CreatorID       int64  `json:"creator_id" db:"creator_id"`
	Amount          int64  `json:"amount" db:"amount"`
	Currency        string `json:"currency" db:"currency"`
	PaymentMethod   string `json:"payment_method" db:"payment_method"`
	AccountDetails  string `json:"account_details" db:"account_details"`
	Status          string `json:"status" db:"status"`
	AdminID         int64  `json:"admin_id,omitempty" db:"admin_id"`
	RejectionReason string `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ProcessedAt     string `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt       string `json:"created_at" db:"created_at"`
}
