package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/entity"
)

func newLedger(t *testing.T) (*RepoMem, string, int64) {
	t.Helper()
	repo := NewRepoMem()

	creatorID, err := repo.CreateUser("creator", "hash")
	require.NoError(t, err)

	resourceID, err := repo.CreateResource(entity.Resource{
		Slug:       "prompt-forge",
		Name:       "Prompt Forge",
		CategoryID: 6,
		AuthorID:   1,
		Price:      4900,
		Currency:   "USD",
	})
	require.NoError(t, err)

	return repo, creatorID, resourceID
}

func buy(t *testing.T, repo *RepoMem, resourceID int64, amount int64) entity.Purchase {
	t.Helper()
	p, err := repo.RecordPurchase(PurchaseInput{
		ResourceID:    resourceID,
		BuyerID:       "99",
		Amount:        amount,
		Currency:      "USD",
		PaymentMethod: MethodRazorpay,
	})
	require.NoError(t, err)
	return p
}

func TestRecordPurchase_CommissionTiers(t *testing.T) {
	repo, _, resourceID := newLedger(t)

	// First two sales: creator keeps everything.
	for i := 0; i < 2; i++ {
		p := buy(t, repo, resourceID, 4900)
		require.Equal(t, int64(4900), p.CreatorEarnings)
		require.Equal(t, int64(0), p.PlatformFee)
		require.Equal(t, int64(100), p.CreatorPercent)
	}

	// Third sale: 80/20.
	p := buy(t, repo, resourceID, 4900)
	require.Equal(t, int64(3920), p.CreatorEarnings)
	require.Equal(t, int64(980), p.PlatformFee)
	require.Equal(t, int64(20), p.PlatformPercent)

	res, err := repo.GetResourceBySlug("prompt-forge")
	require.NoError(t, err)
	require.Equal(t, int64(3), res.SalesCount)
}

func TestRecordPurchase_SplitInvariant(t *testing.T) {
	repo, _, resourceID := newLedger(t)

	for _, amount := range []int64{1, 99, 4900, 123457} {
		p := buy(t, repo, resourceID, amount)
		require.Equal(t, p.AmountTotal, p.CreatorEarnings+p.PlatformFee)
	}
}

func TestRecordPurchase_ReplayedPaymentRefused(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)

	in := PurchaseInput{
		ResourceID:        resourceID,
		BuyerID:           "99",
		Amount:            4900,
		Currency:          "USD",
		PaymentMethod:     MethodRazorpay,
		ExternalOrderID:   "order_1",
		ExternalPaymentID: "pay_1",
	}
	_, err := repo.RecordPurchase(in)
	require.NoError(t, err)

	// Confirming the same captured payment again must not create a second
	// ledger row or move the sales counter.
	_, err = repo.RecordPurchase(in)
	require.ErrorIs(t, err, ErrPaymentRecorded)

	res, err := repo.GetResourceBySlug("prompt-forge")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.SalesCount)

	earnings, err := repo.GetEarnings(creatorID)
	require.NoError(t, err)
	require.Equal(t, int64(4900), earnings.TotalEarnings)
	require.Equal(t, int64(1), earnings.SalesCount)

	// A different payment id on the same method is a new sale.
	in.ExternalPaymentID = "pay_2"
	_, err = repo.RecordPurchase(in)
	require.NoError(t, err)
}

func TestRecordPurchase_NoCreatorRefused(t *testing.T) {
	repo, _, _ := newLedger(t)

	orphanID, err := repo.CreateResource(entity.Resource{
		Slug:       "orphan-tool",
		Name:       "Orphan Tool",
		CategoryID: 1,
		Price:      1000,
		Currency:   "USD",
	})
	require.NoError(t, err)

	_, err = repo.RecordPurchase(PurchaseInput{ResourceID: orphanID, BuyerID: "99", Amount: 1000, Currency: "USD", PaymentMethod: MethodPaypal})
	require.ErrorIs(t, err, ErrNoCreator)

	// Nothing was written and the counter did not move.
	res, err := repo.GetResourceBySlug("orphan-tool")
	require.NoError(t, err)
	require.Equal(t, int64(0), res.SalesCount)
}

func TestRecordPurchase_ConcurrentSalesCountExact(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.RecordPurchase(PurchaseInput{
				ResourceID:    resourceID,
				BuyerID:       "99",
				Amount:        100,
				Currency:      "USD",
				PaymentMethod: MethodRazorpay,
			})
			if err != nil {
				t.Errorf("record purchase: %v", err)
			}
		}()
	}
	wg.Wait()

	res, err := repo.GetResourceBySlug("prompt-forge")
	require.NoError(t, err)
	require.Equal(t, int64(n), res.SalesCount)

	// Exactly two sales got the 100% rate, no matter the interleaving.
	earnings, err := repo.GetEarnings(creatorID)
	require.NoError(t, err)
	require.Equal(t, int64(n), earnings.SalesCount)
	require.Equal(t, int64(200), earnings.FirstTwoEarnings)
	require.Equal(t, int64((n-2)*80), earnings.SubsequentEarnings)
}

func TestGetEarnings_Aggregation(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)

	buy(t, repo, resourceID, 4900)
	buy(t, repo, resourceID, 4900)
	buy(t, repo, resourceID, 4900)

	earnings, err := repo.GetEarnings(creatorID)
	require.NoError(t, err)
	require.Equal(t, int64(4900+4900+3920), earnings.TotalEarnings)
	require.Equal(t, int64(9800), earnings.FirstTwoEarnings)
	require.Equal(t, int64(3920), earnings.SubsequentEarnings)
	require.Equal(t, int64(3), earnings.SalesCount)
	require.Equal(t, earnings.TotalEarnings, earnings.PendingBalance)
}

func payoutInput(creatorID string, amount int64) PayoutInput {
	return PayoutInput{
		CreatorID:      creatorID,
		Amount:         amount,
		Currency:       "USD",
		PaymentMethod:  MethodRazorpay,
		AccountDetails: "creator@upi",
	}
}

func TestCreatePayoutRequest_BalanceThreshold(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)

	// 999 < minimum: refused.
	buy(t, repo, resourceID, 999)
	_, err := repo.CreatePayoutRequest(payoutInput(creatorID, 500))
	require.ErrorIs(t, err, ErrBelowMinimumBalance)

	// Exactly at the threshold: allowed.
	buy(t, repo, resourceID, 1)
	payout, err := repo.CreatePayoutRequest(payoutInput(creatorID, 1000))
	require.NoError(t, err)
	require.Equal(t, PayoutPending, payout.Status)
}

func TestCreatePayoutRequest_Validation(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)
	buy(t, repo, resourceID, 5000)

	in := payoutInput(creatorID, 1000)
	in.PaymentMethod = "wire"
	_, err := repo.CreatePayoutRequest(in)
	require.ErrorIs(t, err, ErrBadPaymentMethod)

	in = payoutInput(creatorID, 1000)
	in.AccountDetails = "abc"
	_, err = repo.CreatePayoutRequest(in)
	require.ErrorIs(t, err, ErrShortAccountDetails)

	_, err = repo.CreatePayoutRequest(payoutInput(creatorID, 99999))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreatePayoutRequest_FullBalanceAndUnreservedPending(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)

	// $140.00 of completed earnings, no approved payouts.
	buy(t, repo, resourceID, 7000)
	buy(t, repo, resourceID, 7000)

	earnings, err := repo.GetEarnings(creatorID)
	require.NoError(t, err)
	require.Equal(t, int64(14000), earnings.PendingBalance)

	_, err = repo.CreatePayoutRequest(payoutInput(creatorID, 14000))
	require.NoError(t, err)

	// Pending requests do not reserve balance: a second request before the
	// first is resolved passes the same balance check.
	_, err = repo.CreatePayoutRequest(payoutInput(creatorID, 14000))
	require.NoError(t, err)
}

func TestApprovedPayoutsReducePendingBalance(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)
	buy(t, repo, resourceID, 10000)

	payout, err := repo.CreatePayoutRequest(payoutInput(creatorID, 9500))
	require.NoError(t, err)
	require.NoError(t, repo.ApprovePayoutRequest(payout.PayoutID, "7"))

	earnings, err := repo.GetEarnings(creatorID)
	require.NoError(t, err)
	require.Equal(t, int64(500), earnings.PendingBalance)

	// The remaining balance is below the minimum now.
	_, err = repo.CreatePayoutRequest(payoutInput(creatorID, 500))
	require.ErrorIs(t, err, ErrBelowMinimumBalance)
}

func TestPayoutTransitions_TerminalOnce(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)
	buy(t, repo, resourceID, 10000)

	approved, err := repo.CreatePayoutRequest(payoutInput(creatorID, 1000))
	require.NoError(t, err)
	rejected, err := repo.CreatePayoutRequest(payoutInput(creatorID, 1000))
	require.NoError(t, err)

	require.NoError(t, repo.ApprovePayoutRequest(approved.PayoutID, "7"))
	require.ErrorIs(t, repo.ApprovePayoutRequest(approved.PayoutID, "7"), ErrAlreadyProcessed)
	require.ErrorIs(t, repo.RejectPayoutRequest(approved.PayoutID, "7", "late"), ErrAlreadyProcessed)

	require.NoError(t, repo.RejectPayoutRequest(rejected.PayoutID, "7", "account details unverifiable"))
	require.ErrorIs(t, repo.ApprovePayoutRequest(rejected.PayoutID, "7"), ErrAlreadyProcessed)

	require.ErrorIs(t, repo.RejectPayoutRequest(approved.PayoutID, "7", ""), ErrEmptyReason)
	require.ErrorIs(t, repo.ApprovePayoutRequest(424242, "7"), ErrNotFound)
}

func TestConcurrentApproval_ExactlyOneWins(t *testing.T) {
	repo, creatorID, resourceID := newLedger(t)
	buy(t, repo, resourceID, 10000)

	payout, err := repo.CreatePayoutRequest(payoutInput(creatorID, 1000))
	require.NoError(t, err)

	const admins = 10
	var wg sync.WaitGroup
	wg.Add(admins)
	var mu sync.Mutex
	wins := 0
	for i := 0; i < admins; i++ {
		go func(i int) {
			defer wg.Done()
			err := repo.ApprovePayoutRequest(payout.PayoutID, fmt.Sprint(i))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrAlreadyProcessed) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
