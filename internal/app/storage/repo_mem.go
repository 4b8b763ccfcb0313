package storage

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/commission"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
)

type memUser struct {
	userID       int64
	login        string
	passwordHash string
	isAdmin      bool
}

// RepoMem is an in-memory Repository with the same semantics as RepoDB.
// It backs handler and ledger tests that must run without Postgres.
type RepoMem struct {
	mu sync.Mutex

	users      []memUser
	categories []entity.Category
	resources  []entity.Resource
	purchases  []entity.Purchase
	payouts    []entity.PayoutRequest
	orders     map[string]GatewayOrder

	nextUserID     int64
	nextResourceID int64
	nextPurchaseID int64
	nextPayoutID   int64
}

func NewRepoMem() *RepoMem {
	return &RepoMem{
		categories: []entity.Category{
			{CategoryID: 1, Slug: "code-assistants", Name: "Code Assistants"},
			{CategoryID: 2, Slug: "agents", Name: "Agent Frameworks"},
			{CategoryID: 3, Slug: "model-apis", Name: "Model APIs"},
			{CategoryID: 4, Slug: "vector-databases", Name: "Vector Databases"},
			{CategoryID: 5, Slug: "evals", Name: "Evals & Testing"},
			{CategoryID: 6, Slug: "prompt-tools", Name: "Prompt Tools"},
		},
		orders:         make(map[string]GatewayOrder),
		nextUserID:     1,
		nextResourceID: 1,
		nextPurchaseID: 1,
		nextPayoutID:   1,
	}
}

func (r *RepoMem) CreateUser(login string, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.login == login {
			return "", ErrLoginExists
		}
	}
	u := memUser{userID: r.nextUserID, login: login, passwordHash: passwordHash}
	r.nextUserID++
	r.users = append(r.users, u)
	return strconv.FormatInt(u.userID, 10), nil
}

func (r *RepoMem) AuthUser(login string, passwordHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.login == login && u.passwordHash == passwordHash {
			return strconv.FormatInt(u.userID, 10), nil
		}
	}
	return "", ErrNotFound
}

func (r *RepoMem) IsAdmin(userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(userID, 10, 64)
	for _, u := range r.users {
		if u.userID == id {
			return u.isAdmin, nil
		}
	}
	return false, ErrNotFound
}

// PromoteAdmin flags an existing user as admin. Test helper; the SQL repo
// relies on out-of-band grants instead.
func (r *RepoMem) PromoteAdmin(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(userID, 10, 64)
	for i := range r.users {
		if r.users[i].userID == id {
			r.users[i].isAdmin = true
		}
	}
}

func (r *RepoMem) GetCategories() ([]entity.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entity.Category, len(r.categories))
	copy(out, r.categories)
	return out, nil
}

func (r *RepoMem) categorySlug(categoryID int64) string {
	for _, c := range r.categories {
		if c.CategoryID == categoryID {
			return c.Slug
		}
	}
	return ""
}

func matchQuery(res entity.Resource, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(res.Name), q) ||
		strings.Contains(strings.ToLower(res.Description), q)
}

func featured(res entity.Resource) bool {
	if res.FeaturedUntil == "" {
		return false
	}
	until, err := time.Parse(time.RFC3339, res.FeaturedUntil)
	return err == nil && until.After(time.Now())
}

func (r *RepoMem) ListResources(f ResourceFilter) ([]entity.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.Resource
	for _, res := range r.resources {
		if f.CategorySlug != "" && r.categorySlug(res.CategoryID) != f.CategorySlug {
			continue
		}
		if f.Query != "" && !matchQuery(res, f.Query) {
			continue
		}
		if f.FeaturedOnly && !featured(res) {
			continue
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := featured(out[i]), featured(out[j])
		if fi != fj {
			return fi
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (r *RepoMem) GetResourceBySlug(slug string) (entity.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, res := range r.resources {
		if res.Slug == slug {
			return res, nil
		}
	}
	return entity.Resource{}, ErrNotFound
}

func (r *RepoMem) CreateResource(res entity.Resource) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.resources {
		if existing.Slug == res.Slug {
			return 0, ErrSlugExists
		}
	}
	res.ResourceID = r.nextResourceID
	r.nextResourceID++
	if res.CreatedAt == "" {
		res.CreatedAt = time.Now().Format(time.RFC3339Nano)
	}
	r.resources = append(r.resources, res)
	return res.ResourceID, nil
}

func (r *RepoMem) SetResourceFeatured(resourceID int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.resources {
		if r.resources[i].ResourceID == resourceID {
			r.resources[i].FeaturedUntil = until.Format(time.RFC3339)
			return nil
		}
	}
	return ErrNotFound
}

func (r *RepoMem) SaveGatewayOrder(o GatewayOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[o.ExternalOrderID] = o
	return nil
}

func (r *RepoMem) GetGatewayOrder(externalOrderID string) (GatewayOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[externalOrderID]
	if !ok {
		return GatewayOrder{}, ErrNotFound
	}
	return o, nil
}

func (r *RepoMem) RecordPurchase(in PurchaseInput) (entity.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if in.ExternalPaymentID != "" {
		for _, p := range r.purchases {
			if p.PaymentMethod == in.PaymentMethod && p.ExternalPaymentID == in.ExternalPaymentID {
				return entity.Purchase{}, ErrPaymentRecorded
			}
		}
	}

	var res *entity.Resource
	for i := range r.resources {
		if r.resources[i].ResourceID == in.ResourceID {
			res = &r.resources[i]
			break
		}
	}
	if res == nil {
		return entity.Purchase{}, ErrNotFound
	}
	if res.AuthorID == 0 {
		return entity.Purchase{}, ErrNoCreator
	}

	prior := res.SalesCount
	res.SalesCount++
	split := commission.Calculate(prior, in.Amount)

	buyerID, _ := strconv.ParseInt(in.BuyerID, 10, 64)
	purchase := entity.Purchase{
		PurchaseID:        r.nextPurchaseID,
		ResourceID:        in.ResourceID,
		BuyerID:           buyerID,
		CreatorID:         res.AuthorID,
		AmountTotal:       in.Amount,
		CreatorEarnings:   split.CreatorEarnings,
		PlatformFee:       split.PlatformFee,
		CreatorPercent:    split.CreatorPercent,
		PlatformPercent:   split.PlatformPercent,
		Currency:          in.Currency,
		PaymentMethod:     in.PaymentMethod,
		ExternalOrderID:   in.ExternalOrderID,
		ExternalPaymentID: in.ExternalPaymentID,
		Status:            PurchaseCompleted,
		CompletedAt:       time.Now().Truncate(time.Second).Format(time.RFC3339),
	}
	r.nextPurchaseID++
	r.purchases = append(r.purchases, purchase)
	return purchase, nil
}

func (r *RepoMem) earningsLocked(creatorID int64) entity.Earnings {
	var e entity.Earnings
	for _, p := range r.purchases {
		if p.CreatorID != creatorID || p.Status != PurchaseCompleted {
			continue
		}
		e.TotalEarnings += p.CreatorEarnings
		e.SalesCount++
		if p.CreatorPercent == 100 {
			e.FirstTwoEarnings += p.CreatorEarnings
		} else {
			e.SubsequentEarnings += p.CreatorEarnings
		}
	}
	var approved int64
	for _, pr := range r.payouts {
		if pr.CreatorID == creatorID && pr.Status == PayoutApproved {
			approved += pr.Amount
		}
	}
	e.PendingBalance = e.TotalEarnings - approved
	return e
}

func (r *RepoMem) GetEarnings(creatorID string) (entity.Earnings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(creatorID, 10, 64)
	return r.earningsLocked(id), nil
}

func (r *RepoMem) GetCreatorPurchases(creatorID string) ([]entity.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(creatorID, 10, 64)
	var out []entity.Purchase
	for _, p := range r.purchases {
		if p.CreatorID == id && p.Status == PurchaseCompleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *RepoMem) CreatePayoutRequest(in PayoutInput) (entity.PayoutRequest, error) {
	if err := in.Validate(); err != nil {
		return entity.PayoutRequest{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(in.CreatorID, 10, 64)
	pending := r.earningsLocked(id).PendingBalance
	if pending < MinPayoutBalance {
		return entity.PayoutRequest{}, ErrBelowMinimumBalance
	}
	if in.Amount > pending {
		return entity.PayoutRequest{}, ErrInsufficientBalance
	}

	payout := entity.PayoutRequest{
		PayoutID:       r.nextPayoutID,
		CreatorID:      id,
		Amount:         in.Amount,
		Currency:       in.Currency,
		PaymentMethod:  in.PaymentMethod,
		AccountDetails: in.AccountDetails,
		Status:         PayoutPending,
		CreatedAt:      time.Now().Format(time.RFC3339Nano),
	}
	r.nextPayoutID++
	r.payouts = append(r.payouts, payout)
	return payout, nil
}

func (r *RepoMem) GetPayoutRequests(creatorID string) ([]entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, _ := strconv.ParseInt(creatorID, 10, 64)
	var out []entity.PayoutRequest
	for _, pr := range r.payouts {
		if pr.CreatorID == id {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *RepoMem) ListPayoutRequests(status string) ([]entity.PayoutRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.PayoutRequest
	for _, pr := range r.payouts {
		if status == "" || pr.Status == status {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (r *RepoMem) transitionPayout(payoutID int64, adminID string, status string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.payouts {
		if r.payouts[i].PayoutID != payoutID {
			continue
		}
		if r.payouts[i].Status != PayoutPending {
			return ErrAlreadyProcessed
		}
		id, _ := strconv.ParseInt(adminID, 10, 64)
		r.payouts[i].Status = status
		r.payouts[i].AdminID = id
		r.payouts[i].RejectionReason = reason
		r.payouts[i].ProcessedAt = time.Now().Truncate(time.Second).Format(time.RFC3339)
		return nil
	}
	return ErrNotFound
}

func (r *RepoMem) ApprovePayoutRequest(payoutID int64, adminID string) error {
	return r.transitionPayout(payoutID, adminID, PayoutApproved, "")
}

func (r *RepoMem) RejectPayoutRequest(payoutID int64, adminID string, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return r.transitionPayout(payoutID, adminID, PayoutRejected, reason)
}

func (r *RepoMem) Close() {}
