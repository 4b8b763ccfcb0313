package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

type razorpayOrder struct {
	ID string `json:"id"`
}

type razorpayPayment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type Razorpay struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewRazorpay(keyID string, keySecret string, timeout int) *Razorpay {
	return &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   razorpayBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout * int(time.Second)),
		},
	}
}

func (g *Razorpay) CreateOrder(amount int64, currency string, receipt string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("razorpay order create: status %d", res.StatusCode)
	}

	var order razorpayOrder
	if err := json.NewDecoder(res.Body).Decode(&order); err != nil {
		return "", err
	}
	return order.ID, nil
}

// checkSignature verifies the HMAC-SHA256 of "orderID|paymentID" that
// Razorpay signs with the key secret.
func (g *Razorpay) checkSignature(orderID string, paymentID string, signature string) bool {
	h := hmac.New(sha256.New, []byte(g.keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *Razorpay) VerifyPayment(conf Confirmation) (Payment, error) {
	var payment Payment
	if !g.checkSignature(conf.OrderID, conf.PaymentID, conf.Signature) {
		return payment, ErrBadSignature
	}

	req, err := http.NewRequest(http.MethodGet, g.baseURL+"/payments/"+conf.PaymentID, nil)
	if err != nil {
		return payment, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return payment, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return payment, fmt.Errorf("razorpay payment fetch: status %d", res.StatusCode)
	}

	var rp razorpayPayment
	if err := json.NewDecoder(res.Body).Decode(&rp); err != nil {
		return payment, err
	}
	if rp.Status != "captured" {
		return payment, ErrPaymentNotCaptured
	}
	if rp.OrderID != conf.OrderID {
		return payment, ErrBadSignature
	}

	payment = Payment{
		PaymentID: rp.ID,
		OrderID:   rp.OrderID,
		Amount:    rp.Amount,
		Currency:  rp.Currency,
	}
	return payment, nil
}
