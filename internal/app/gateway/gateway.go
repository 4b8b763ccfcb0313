// Package gateway wraps the payment providers. The ledger only ever
// consumes the verified Payment fact; order creation and capture stay in
// here.
package gateway

import "errors"

var ErrPaymentNotCaptured = errors.New("payment not captured")
var ErrBadSignature = errors.New("payment signature mismatch")

// Confirmation is the completion proof a client or webhook hands back
// after paying at the provider.
type Confirmation struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Payment is a verified "payment completed with amount X" fact, amount in
// minor units.
type Payment struct {
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
}

type Gateway interface {
	// CreateOrder registers an order with the provider and returns the
	// provider's order id for the client to pay against.
	CreateOrder(amount int64, currency string, receipt string) (string, error)

	// VerifyPayment checks the confirmation against the provider and
	// returns the captured payment. It must not trust any amount from
	// the confirmation itself.
	VerifyPayment(conf Confirmation) (Payment, error)
}
