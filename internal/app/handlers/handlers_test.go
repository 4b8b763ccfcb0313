package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/gateway"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

const testSecret = "test-secret"

// fakeGateway approves any confirmation with signature "valid" and reports
// the amount it was configured with.
type fakeGateway struct {
	amount   int64
	currency string
	orders   int
}

func (g *fakeGateway) CreateOrder(amount int64, currency string, receipt string) (string, error) {
	g.orders++
	return fmt.Sprintf("order_%d", g.orders), nil
}

func (g *fakeGateway) VerifyPayment(conf gateway.Confirmation) (gateway.Payment, error) {
	if conf.Signature != "valid" {
		return gateway.Payment{}, gateway.ErrBadSignature
	}
	return gateway.Payment{
		PaymentID: "pay_" + conf.OrderID,
		OrderID:   conf.OrderID,
		Amount:    g.amount,
		Currency:  g.currency,
	}, nil
}

type recordedEvent struct {
	eventType string
	payload   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{eventType, payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

type env struct {
	srv  *httptest.Server
	repo *storage.RepoMem
	gw   *fakeGateway
	pub  *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo := storage.NewRepoMem()
	gw := &fakeGateway{amount: 4900, currency: "USD"}
	pub := &recordingPublisher{}

	bh := NewBaseHandler(Deps{
		Repo:          repo,
		SecretKey:     testSecret,
		Gateways:      map[string]gateway.Gateway{storage.MethodRazorpay: gw},
		Events:        pub,
		FeaturedPrice: 2900,
		FeaturedDays:  30,
	})

	srv := httptest.NewServer(bh)
	t.Cleanup(srv.Close)
	return &env{srv: srv, repo: repo, gw: gw, pub: pub}
}

func (e *env) do(t *testing.T, method string, path string, body interface{}, session string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if session != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: session})
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func decode(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

// registerUser signs up a login and returns a usable session cookie value.
func (e *env) registerUser(t *testing.T, login string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/user/register", Credentials{Login: login, Password: "secret"}, "")
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	for _, c := range res.Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func (e *env) submitResource(t *testing.T, session string, slug string, price int64) {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/resources", resourceSubmission{
		Slug:       slug,
		Name:       "Prompt Forge",
		CategoryID: 6,
		Price:      price,
	}, session)
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
}

func (e *env) buy(t *testing.T, session string, slug string) entity.Purchase {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/resources/"+slug+"/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, session)
	var order checkoutResponse
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &order)

	res = e.do(t, http.MethodPost, "/api/payments/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       order.OrderID,
		PaymentID:     "pay_" + order.OrderID,
		Signature:     "valid",
	}, session)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var purchase entity.Purchase
	decode(t, res, &purchase)
	return purchase
}

func TestAuth_RegisterLoginAndGuards(t *testing.T) {
	e := newEnv(t)

	session := e.registerUser(t, "creator")
	require.NotEmpty(t, session)

	// duplicate login
	res := e.do(t, http.MethodPost, "/api/user/register", Credentials{Login: "creator", Password: "x"}, "")
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	// wrong password
	res = e.do(t, http.MethodPost, "/api/user/login", Credentials{Login: "creator", Password: "nope"}, "")
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// protected route without session
	res = e.do(t, http.MethodGet, "/api/creator/earnings", nil, "")
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// garbage cookie
	res = e.do(t, http.MethodGet, "/api/creator/earnings", nil, "deadbeef")
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestDirectory_ListAndFilter(t *testing.T) {
	e := newEnv(t)
	session := e.registerUser(t, "creator")
	e.submitResource(t, session, "prompt-forge", 4900)

	var resources []entity.Resource
	res := e.do(t, http.MethodGet, "/api/resources?category=prompt-tools", nil, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &resources)
	require.Len(t, resources, 1)
	require.Equal(t, "prompt-forge", resources[0].Slug)

	res = e.do(t, http.MethodGet, "/api/resources?category=agents", nil, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &resources)
	require.Empty(t, resources)

	res = e.do(t, http.MethodGet, "/api/resources?q=forge", nil, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &resources)
	require.Len(t, resources, 1)

	var categories []entity.Category
	res = e.do(t, http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &categories)
	require.Len(t, categories, 6)
}

func TestPurchaseFlow_SplitsAndEarnings(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "prompt-forge", 4900)

	first := e.buy(t, buyer, "prompt-forge")
	require.Equal(t, int64(4900), first.CreatorEarnings)
	require.Equal(t, int64(0), first.PlatformFee)

	second := e.buy(t, buyer, "prompt-forge")
	require.Equal(t, int64(4900), second.CreatorEarnings)

	third := e.buy(t, buyer, "prompt-forge")
	require.Equal(t, int64(3920), third.CreatorEarnings)
	require.Equal(t, int64(980), third.PlatformFee)

	var earnings entity.Earnings
	res := e.do(t, http.MethodGet, "/api/creator/earnings", nil, creator)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &earnings)
	require.Equal(t, int64(13720), earnings.TotalEarnings)
	require.Equal(t, int64(3), earnings.SalesCount)

	require.Equal(t, []string{
		events.EventPurchaseCompleted,
		events.EventPurchaseCompleted,
		events.EventPurchaseCompleted,
	}, e.pub.types())
}

// checkout opens an order without confirming it, returning the order id.
func (e *env) checkout(t *testing.T, session string, slug string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/resources/"+slug+"/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, session)
	var order checkoutResponse
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &order)
	return order.OrderID
}

func TestConfirmPayment_BadSignature(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "prompt-forge", 4900)
	orderID := e.checkout(t, buyer, "prompt-forge")

	res := e.do(t, http.MethodPost, "/api/payments/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "forged",
	}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Empty(t, e.pub.types())
}

func TestConfirmPayment_ReplayRefused(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "prompt-forge", 4900)

	orderID := e.checkout(t, buyer, "prompt-forge")
	conf := paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "valid",
	}

	res := e.do(t, http.MethodPost, "/api/payments/confirm", conf, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// Confirming the same captured payment again must not write a second
	// purchase or publish a second event.
	res = e.do(t, http.MethodPost, "/api/payments/confirm", conf, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	var earnings entity.Earnings
	res = e.do(t, http.MethodGet, "/api/creator/earnings", nil, creator)
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &earnings)
	require.Equal(t, int64(4900), earnings.TotalEarnings)
	require.Equal(t, int64(1), earnings.SalesCount)
	require.Len(t, e.pub.types(), 1)
}

func TestConfirmPayment_OrderBoundToResource(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "cheap-tool", 100)
	e.submitResource(t, creator, "pricey-tool", 50000)

	// An order id the gateway never issued is refused outright.
	res := e.do(t, http.MethodPost, "/api/payments/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       "order_unissued",
		PaymentID:     "pay_order_unissued",
		Signature:     "valid",
	}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	// A capture is credited to the resource its checkout named, whatever
	// the caller would prefer.
	e.gw.amount = 100
	orderID := e.checkout(t, buyer, "cheap-tool")
	res = e.do(t, http.MethodPost, "/api/payments/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "valid",
	}, buyer)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var purchase entity.Purchase
	decode(t, res, &purchase)
	require.Equal(t, int64(100), purchase.AmountTotal)

	cheap, err := e.repo.GetResourceBySlug("cheap-tool")
	require.NoError(t, err)
	require.Equal(t, int64(1), cheap.SalesCount)
	pricey, err := e.repo.GetResourceBySlug("pricey-tool")
	require.NoError(t, err)
	require.Equal(t, int64(0), pricey.SalesCount)

	// Placement orders cannot be redeemed as purchases.
	res = e.do(t, http.MethodPost, "/api/resources/cheap-tool/feature/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, creator)
	var featureOrder checkoutResponse
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &featureOrder)

	res = e.do(t, http.MethodPost, "/api/payments/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       featureOrder.OrderID,
		PaymentID:     "pay_" + featureOrder.OrderID,
		Signature:     "valid",
	}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCheckout_RejectsUnsellableResources(t *testing.T) {
	e := newEnv(t)
	buyer := e.registerUser(t, "buyer")

	// No creator: the resource exists only at the storage layer.
	_, err := e.repo.CreateResource(entity.Resource{Slug: "orphan", Name: "Orphan", CategoryID: 1, Price: 1000, Currency: "USD"})
	require.NoError(t, err)

	res := e.do(t, http.MethodPost, "/api/resources/orphan/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/resources/missing/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/resources/orphan/checkout",
		checkoutRequest{PaymentMethod: "wire"}, buyer)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPayoutFlow_CreateApproveReject(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "prompt-forge", 4900)
	e.buy(t, buyer, "prompt-forge")

	// Below minimum details length.
	res := e.do(t, http.MethodPost, "/api/creator/payouts", payoutSubmission{
		Amount: 1000, PaymentMethod: storage.MethodRazorpay, AccountDetails: "abc",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	// More than the pending balance.
	res = e.do(t, http.MethodPost, "/api/creator/payouts", payoutSubmission{
		Amount: 99999, PaymentMethod: storage.MethodRazorpay, AccountDetails: "creator@upi",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusPaymentRequired, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/creator/payouts", payoutSubmission{
		Amount: 1000, PaymentMethod: storage.MethodRazorpay, AccountDetails: "creator@upi",
	}, creator)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var payout entity.PayoutRequest
	decode(t, res, &payout)
	require.Equal(t, storage.PayoutPending, payout.Status)

	// Pending requests do not reserve balance, so a second one is fine.
	res = e.do(t, http.MethodPost, "/api/creator/payouts", payoutSubmission{
		Amount: 1000, PaymentMethod: storage.MethodPaypal, AccountDetails: "creator@example.com",
	}, creator)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var second entity.PayoutRequest
	decode(t, res, &second)

	// Admin approves; second approval conflicts.
	adminID, err := e.repo.CreateUser("admin", "hash")
	require.NoError(t, err)
	e.repo.PromoteAdmin(adminID)
	admin := createSession(adminID, testSecret)

	// Non-admins cannot reach the admin surface.
	res = e.do(t, http.MethodGet, "/api/admin/payouts", nil, creator)
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	path := fmt.Sprintf("/api/admin/payouts/%d/approve", payout.PayoutID)
	res = e.do(t, http.MethodPost, path, nil, admin)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodPost, path, nil, admin)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	res = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/payouts/%d/reject", payout.PayoutID),
		rejection{Reason: "already paid"}, admin)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	// Rejection without a reason is a validation error on a pending one.
	res = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/payouts/%d/reject", second.PayoutID),
		rejection{}, admin)
	res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/payouts/%d/reject", second.PayoutID),
		rejection{Reason: "details unverifiable"}, admin)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Contains(t, e.pub.types(), events.EventPayoutRequested)
	require.Contains(t, e.pub.types(), events.EventPayoutApproved)
	require.Contains(t, e.pub.types(), events.EventPayoutRejected)
}

func TestAdminExport_ReturnsSpreadsheet(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	buyer := e.registerUser(t, "buyer")
	e.submitResource(t, creator, "prompt-forge", 4900)
	e.buy(t, buyer, "prompt-forge")

	res := e.do(t, http.MethodPost, "/api/creator/payouts", payoutSubmission{
		Amount: 1000, PaymentMethod: storage.MethodRazorpay, AccountDetails: "creator@upi",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	adminID, err := e.repo.CreateUser("admin", "hash")
	require.NoError(t, err)
	e.repo.PromoteAdmin(adminID)

	res = e.do(t, http.MethodGet, "/api/admin/payouts/export", nil, createSession(adminID, testSecret))
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		res.Header.Get("Content-Type"))
}

func (e *env) featureCheckout(t *testing.T, session string, slug string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/resources/"+slug+"/feature/checkout",
		checkoutRequest{PaymentMethod: storage.MethodRazorpay}, session)
	var order checkoutResponse
	require.Equal(t, http.StatusOK, res.StatusCode)
	decode(t, res, &order)
	return order.OrderID
}

func TestFeaturedPlacement(t *testing.T) {
	e := newEnv(t)
	creator := e.registerUser(t, "creator")
	e.submitResource(t, creator, "prompt-forge", 4900)
	e.submitResource(t, creator, "other-tool", 4900)

	// Gateway reports 4900 paid, placement costs 2900: accepted.
	orderID := e.featureCheckout(t, creator, "prompt-forge")
	res := e.do(t, http.MethodPost, "/api/resources/prompt-forge/feature/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "valid",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var resources []entity.Resource
	listRes := e.do(t, http.MethodGet, "/api/resources?featured=true", nil, "")
	require.Equal(t, http.StatusOK, listRes.StatusCode)
	decode(t, listRes, &resources)
	require.Len(t, resources, 1)
	require.Equal(t, "prompt-forge", resources[0].Slug)

	// A placement order pays for one listing only.
	orderID = e.featureCheckout(t, creator, "prompt-forge")
	res = e.do(t, http.MethodPost, "/api/resources/other-tool/feature/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "valid",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)

	// Underpayment is refused.
	e.gw.amount = 100
	orderID = e.featureCheckout(t, creator, "other-tool")
	res = e.do(t, http.MethodPost, "/api/resources/other-tool/feature/confirm", paymentConfirmation{
		PaymentMethod: storage.MethodRazorpay,
		OrderID:       orderID,
		PaymentID:     "pay_" + orderID,
		Signature:     "valid",
	}, creator)
	res.Body.Close()
	require.Equal(t, http.StatusPaymentRequired, res.StatusCode)
}
