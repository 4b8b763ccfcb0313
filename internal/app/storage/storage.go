package storage

import (
	"errors"
	"time"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
)

var ErrLoginExists = errors.New("login already in use")
var ErrNotFound = errors.New("not found")
var ErrNoCreator = errors.New("resource has no creator assigned")
var ErrInsufficientBalance = errors.New("pending balance below requested amount")
var ErrBelowMinimumBalance = errors.New("pending balance below payout minimum")
var ErrBadPaymentMethod = errors.New("unsupported payment method")
var ErrShortAccountDetails = errors.New("account details too short")
var ErrEmptyReason = errors.New("rejection reason required")
var ErrAlreadyProcessed = errors.New("payout request already processed")
var ErrSlugExists = errors.New("resource slug already in use")
var ErrPaymentRecorded = errors.New("payment already recorded")

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"

	PayoutPending  = "pending"
	PayoutApproved = "approved"
	PayoutRejected = "rejected"

	MethodRazorpay = "razorpay"
	MethodPaypal   = "paypal"

	OrderKindPurchase = "purchase"
	OrderKindFeatured = "featured"

	// MinPayoutBalance is the pending balance required before a payout
	// request may be created (minor units).
	MinPayoutBalance = 1000

	minAccountDetailsLen = 5
)

// ValidMethod reports whether m is a supported payout/payment method.
func ValidMethod(m string) bool {
	return m == MethodRazorpay || m == MethodPaypal
}

// PurchaseInput carries the facts of a gateway-verified payment. Amount is
// what the gateway captured, in minor units.
type PurchaseInput struct {
	ResourceID        int64
	BuyerID           string
	Amount            int64
	Currency          string
	PaymentMethod     string
	ExternalOrderID   string
	ExternalPaymentID string
}

// PayoutInput is a creator's withdrawal request before validation.
type PayoutInput struct {
	CreatorID      string
	Amount         int64
	Currency       string
	PaymentMethod  string
	AccountDetails string
}

// Validate checks the request shape. Balance checks happen in the
// repository, where the pending balance is visible.
func (in PayoutInput) Validate() error {
	if !ValidMethod(in.PaymentMethod) {
		return ErrBadPaymentMethod
	}
	if len(in.AccountDetails) < minAccountDetailsLen {
		return ErrShortAccountDetails
	}
	if in.Amount <= 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// GatewayOrder binds a gateway order id, created at checkout, to the
// resource it pays for. Payment confirmation resolves the resource from
// this record rather than trusting the client.
type GatewayOrder struct {
	ExternalOrderID string `db:"external_order_id"`
	ResourceID      int64  `db:"resource_id"`
	PaymentMethod   string `db:"payment_method"`
	Kind            string `db:"kind"`
}

// ResourceFilter narrows the public listing query. Zero values mean "all".
type ResourceFilter struct {
	CategorySlug string
	Query        string
	FeaturedOnly bool
}

type Repository interface {
	CreateUser(login string, passwordHash string) (string, error)
	AuthUser(login string, passwordHash string) (string, error)
	IsAdmin(userID string) (bool, error)

	GetCategories() ([]entity.Category, error)
	ListResources(f ResourceFilter) ([]entity.Resource, error)
	GetResourceBySlug(slug string) (entity.Resource, error)
	CreateResource(r entity.Resource) (int64, error)
	SetResourceFeatured(resourceID int64, until time.Time) error

	SaveGatewayOrder(o GatewayOrder) error
	GetGatewayOrder(externalOrderID string) (GatewayOrder, error)

	// RecordPurchase computes the commission split from the resource's
	// pre-sale sales count and persists the purchase; the count
	// increment and the insert are one atomic transaction.
	RecordPurchase(in PurchaseInput) (entity.Purchase, error)

	GetEarnings(creatorID string) (entity.Earnings, error)
	GetCreatorPurchases(creatorID string) ([]entity.Purchase, error)

	CreatePayoutRequest(in PayoutInput) (entity.PayoutRequest, error)
	GetPayoutRequests(creatorID string) ([]entity.PayoutRequest, error)
	ListPayoutRequests(status string) ([]entity.PayoutRequest, error)
	ApprovePayoutRequest(payoutID int64, adminID string) error
	RejectPayoutRequest(payoutID int64, adminID string, reason string) error

	Close()
}
