package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const paypalBaseURL = "https://api-m.paypal.com"

type Paypal struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
}

func NewPaypal(clientID string, clientSecret string, timeout int) *Paypal {
	return &Paypal{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      paypalBaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout * int(time.Second)),
		},
	}
}

func (g *Paypal) accessToken() (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token: status %d", res.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func (g *Paypal) CreateOrder(amount int64, currency string, receipt string) (string, error) {
	token, err := g.accessToken()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": receipt,
			"amount":       paypalAmount{CurrencyCode: currency, Value: minorToDecimal(amount)},
		}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("paypal order create: status %d", res.StatusCode)
	}

	var order struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&order); err != nil {
		return "", err
	}
	return order.ID, nil
}

// VerifyPayment captures the approved order. PayPal's capture response is
// the completion proof; the confirmation's signature field is unused here.
func (g *Paypal) VerifyPayment(conf Confirmation) (Payment, error) {
	var payment Payment
	token, err := g.accessToken()
	if err != nil {
		return payment, err
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/v2/checkout/orders/"+conf.OrderID+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return payment, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return payment, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return payment, fmt.Errorf("paypal capture: status %d", res.StatusCode)
	}

	var captured struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string       `json:"id"`
					Amount paypalAmount `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(res.Body).Decode(&captured); err != nil {
		return payment, err
	}
	if captured.Status != "COMPLETED" {
		return payment, ErrPaymentNotCaptured
	}
	if len(captured.PurchaseUnits) == 0 || len(captured.PurchaseUnits[0].Payments.Captures) == 0 {
		return payment, ErrPaymentNotCaptured
	}

	capture := captured.PurchaseUnits[0].Payments.Captures[0]
	amount, err := decimalToMinor(capture.Amount.Value)
	if err != nil {
		return payment, err
	}

	payment = Payment{
		PaymentID: capture.ID,
		OrderID:   captured.ID,
		Amount:    amount,
		Currency:  capture.Amount.CurrencyCode,
	}
	return payment, nil
}

// minorToDecimal renders minor units as PayPal's decimal string ("4900" ->
// "49.00").
func minorToDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

func decimalToMinor(value string) (int64, error) {
	whole, frac, found := strings.Cut(value, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q", value)
	}
	if !found {
		return units * 100, nil
	}
	if len(frac) == 1 {
		frac += "0"
	}
	if len(frac) != 2 {
		return 0, fmt.Errorf("bad amount %q", value)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q", value)
	}
	return units*100 + cents, nil
}
