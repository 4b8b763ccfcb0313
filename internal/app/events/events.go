// Package events publishes ledger lifecycle events for out-of-band
// consumers such as the admin notifier. Delivery is best effort; the
// ledger's own writes never depend on it.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventPurchaseCompleted = "PurchaseCompleted"
	EventPayoutRequested   = "PayoutRequested"
	EventPayoutApproved    = "PayoutApproved"
	EventPayoutRejected    = "PayoutRejected"
)

type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type PurchaseCompletedPayload struct {
	PurchaseID      int64  `json:"purchase_id"`
	ResourceID      int64  `json:"resource_id"`
	CreatorID       int64  `json:"creator_id"`
	AmountTotal     int64  `json:"amount_total"`
	CreatorEarnings int64  `json:"creator_earnings"`
	PlatformFee     int64  `json:"platform_fee"`
	Currency        string `json:"currency"`
	PaymentMethod   string `json:"payment_method"`
}

type PayoutRequestedPayload struct {
	PayoutID      int64  `json:"payout_id"`
	CreatorID     int64  `json:"creator_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

type PayoutResolvedPayload struct {
	PayoutID int64  `json:"payout_id"`
	AdminID  string `json:"admin_id"`
	Reason   string `json:"reason,omitempty"`
}

// Wrap builds an envelope around a payload struct.
func Wrap(eventType string, producer string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now(),
		Producer:     producer,
		Payload:      raw,
	}, nil
}
