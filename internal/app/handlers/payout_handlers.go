package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/report"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

func (bh *BaseHandler) getEarnings() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		earnings, err := bh.repo.GetEarnings(sessionUser(req))
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("earnings")
			return
		}
		bh.writeJSON(w, http.StatusOK, earnings)
	}
}

func (bh *BaseHandler) getCreatorPurchases() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		purchases, err := bh.repo.GetCreatorPurchases(sessionUser(req))
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("creator purchases")
			return
		}
		if purchases == nil {
			http.Error(w, "No purchases", http.StatusNoContent)
			return
		}
		bh.writeJSON(w, http.StatusOK, purchases)
	}
}

func (bh *BaseHandler) getPayoutRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payouts, err := bh.repo.GetPayoutRequests(sessionUser(req))
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("payout list")
			return
		}
		if payouts == nil {
			http.Error(w, "No payout requests", http.StatusNoContent)
			return
		}
		bh.writeJSON(w, http.StatusOK, payouts)
	}
}

type payoutSubmission struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentMethod  string `json:"payment_method"`
	AccountDetails string `json:"account_details"`
}

func (bh *BaseHandler) createPayoutRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var sub payoutSubmission
		if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}
		if sub.Currency == "" {
			sub.Currency = defaultCurrency
		}

		payout, err := bh.repo.CreatePayoutRequest(storage.PayoutInput{
			CreatorID:      sessionUser(req),
			Amount:         sub.Amount,
			Currency:       sub.Currency,
			PaymentMethod:  sub.PaymentMethod,
			AccountDetails: sub.AccountDetails,
		})
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrBadPaymentMethod),
				errors.Is(err, storage.ErrShortAccountDetails):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, storage.ErrBelowMinimumBalance),
				errors.Is(err, storage.ErrInsufficientBalance):
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			default:
				http.Error(w, internalError, http.StatusInternalServerError)
				logger.Logger.Err(err).Msg("payout create")
			}
			return
		}

		bh.events.Publish(events.EventPayoutRequested, events.PayoutRequestedPayload{
			PayoutID:      payout.PayoutID,
			CreatorID:     payout.CreatorID,
			Amount:        payout.Amount,
			Currency:      payout.Currency,
			PaymentMethod: payout.PaymentMethod,
		})

		bh.writeJSON(w, http.StatusCreated, payout)
	}
}

func (bh *BaseHandler) adminListPayouts() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payouts, err := bh.repo.ListPayoutRequests(req.URL.Query().Get("status"))
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("admin payout list")
			return
		}
		if payouts == nil {
			http.Error(w, "No payout requests", http.StatusNoContent)
			return
		}
		bh.writeJSON(w, http.StatusOK, payouts)
	}
}

func payoutID(req *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
}

// transition errors map the same way for approve and reject: a request
// already in a terminal state is a conflict, not a success.
func (bh *BaseHandler) payoutTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Payout request not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrAlreadyProcessed):
		http.Error(w, "Payout request already processed", http.StatusConflict)
	case errors.Is(err, storage.ErrEmptyReason):
		http.Error(w, "Rejection reason required", http.StatusBadRequest)
	default:
		http.Error(w, internalError, http.StatusInternalServerError)
		logger.Logger.Err(err).Msg("payout transition")
	}
}

func (bh *BaseHandler) adminApprovePayout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := payoutID(req)
		if err != nil {
			http.Error(w, "Invalid payout id", http.StatusBadRequest)
			return
		}

		adminID := sessionUser(req)
		if err := bh.repo.ApprovePayoutRequest(id, adminID); err != nil {
			bh.payoutTransitionError(w, err)
			return
		}

		bh.events.Publish(events.EventPayoutApproved, events.PayoutResolvedPayload{
			PayoutID: id,
			AdminID:  adminID,
		})
		w.WriteHeader(http.StatusOK)
	}
}

type rejection struct {
	Reason string `json:"reason"`
}

func (bh *BaseHandler) adminRejectPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := payoutID(req)
		if err != nil {
			http.Error(w, "Invalid payout id", http.StatusBadRequest)
			return
		}

		var rej rejection
		if err := json.NewDecoder(req.Body).Decode(&rej); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		adminID := sessionUser(req)
		if err := bh.repo.RejectPayoutRequest(id, adminID, rej.Reason); err != nil {
			bh.payoutTransitionError(w, err)
			return
		}

		bh.events.Publish(events.EventPayoutRejected, events.PayoutResolvedPayload{
			PayoutID: id,
			AdminID:  adminID,
			Reason:   rej.Reason,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (bh *BaseHandler) adminExportPayouts() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payouts, err := bh.repo.ListPayoutRequests(req.URL.Query().Get("status"))
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("payout export query")
			return
		}

		f, err := report.BuildPayoutReport(payouts)
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("payout export build")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="payout-requests.xlsx"`)
		if err := f.Write(w); err != nil {
			logger.Logger.Err(err).Msg("payout export write")
		}
	}
}
