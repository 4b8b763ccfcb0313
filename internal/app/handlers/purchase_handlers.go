package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/events"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/gateway"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
	"github.com/surajsatyarthi/antigravity-directory/internal/app/storage"
)

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type checkoutResponse struct {
	OrderID       string `json:"order_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
}

// checkout opens a gateway order for a resource. Attribution is checked
// here, before any money moves: a resource without a creator cannot be
// sold at all.
func (bh *BaseHandler) checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var cr checkoutRequest
		if err := json.NewDecoder(req.Body).Decode(&cr); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		gw, ok := bh.gateways[cr.PaymentMethod]
		if !ok {
			http.Error(w, "Unsupported payment method", http.StatusBadRequest)
			return
		}

		resource, err := bh.repo.GetResourceBySlug(chi.URLParam(req, "slug"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Resource not found", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("checkout lookup")
			return
		}
		if resource.AuthorID == 0 {
			http.Error(w, "Resource has no creator assigned", http.StatusUnprocessableEntity)
			return
		}
		if resource.Price <= 0 {
			http.Error(w, "Resource is not for sale", http.StatusUnprocessableEntity)
			return
		}

		orderID, err := gw.CreateOrder(resource.Price, resource.Currency, resource.Slug)
		if err != nil {
			http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
			logger.Logger.Err(err).Str("method", cr.PaymentMethod).Msg("gateway order")
			return
		}

		// The order is bound to the resource here. Confirmation resolves the
		// resource from this record, so a capture can only ever be redeemed
		// against the listing it paid for.
		err = bh.repo.SaveGatewayOrder(storage.GatewayOrder{
			ExternalOrderID: orderID,
			ResourceID:      resource.ResourceID,
			PaymentMethod:   cr.PaymentMethod,
			Kind:            storage.OrderKindPurchase,
		})
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("save gateway order")
			return
		}

		bh.writeJSON(w, http.StatusOK, checkoutResponse{
			OrderID:       orderID,
			Amount:        resource.Price,
			Currency:      resource.Currency,
			PaymentMethod: cr.PaymentMethod,
		})
	}
}

type paymentConfirmation struct {
	PaymentMethod string `json:"payment_method"`
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	Signature     string `json:"signature"`
}

// confirmPayment verifies the gateway's completion proof and writes the
// purchase. The resource comes from the order record written at checkout
// and the recorded amount is the captured one the gateway reports; neither
// is taken from the client.
func (bh *BaseHandler) confirmPayment() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var conf paymentConfirmation
		if err := json.NewDecoder(req.Body).Decode(&conf); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		gw, ok := bh.gateways[conf.PaymentMethod]
		if !ok {
			http.Error(w, "Unsupported payment method", http.StatusBadRequest)
			return
		}

		order, err := bh.repo.GetGatewayOrder(conf.OrderID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Unknown order", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("confirm order lookup")
			return
		}
		if order.Kind != storage.OrderKindPurchase || order.PaymentMethod != conf.PaymentMethod {
			http.Error(w, "Order mismatch", http.StatusConflict)
			return
		}

		payment, err := gw.VerifyPayment(gateway.Confirmation{
			OrderID:   conf.OrderID,
			PaymentID: conf.PaymentID,
			Signature: conf.Signature,
		})
		if err != nil {
			switch {
			case errors.Is(err, gateway.ErrBadSignature):
				http.Error(w, "Payment signature mismatch", http.StatusBadRequest)
			case errors.Is(err, gateway.ErrPaymentNotCaptured):
				http.Error(w, "Payment not captured", http.StatusPaymentRequired)
			default:
				http.Error(w, "Payment verification failed", http.StatusBadGateway)
				logger.Logger.Err(err).Msg("payment verify")
			}
			return
		}

		if payment.OrderID != conf.OrderID {
			http.Error(w, "Order mismatch", http.StatusConflict)
			return
		}

		purchase, err := bh.repo.RecordPurchase(storage.PurchaseInput{
			ResourceID:        order.ResourceID,
			BuyerID:           sessionUser(req),
			Amount:            payment.Amount,
			Currency:          payment.Currency,
			PaymentMethod:     conf.PaymentMethod,
			ExternalOrderID:   payment.OrderID,
			ExternalPaymentID: payment.PaymentID,
		})
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrPaymentRecorded):
				http.Error(w, "Payment already recorded", http.StatusConflict)
			case errors.Is(err, storage.ErrNoCreator):
				http.Error(w, "Resource has no creator assigned", http.StatusUnprocessableEntity)
			case errors.Is(err, storage.ErrNotFound):
				http.Error(w, "Resource not found", http.StatusNotFound)
			default:
				http.Error(w, internalError, http.StatusInternalServerError)
				logger.Logger.Err(err).Msg("record purchase")
			}
			return
		}

		bh.events.Publish(events.EventPurchaseCompleted, events.PurchaseCompletedPayload{
			PurchaseID:      purchase.PurchaseID,
			ResourceID:      purchase.ResourceID,
			CreatorID:       purchase.CreatorID,
			AmountTotal:     purchase.AmountTotal,
			CreatorEarnings: purchase.CreatorEarnings,
			PlatformFee:     purchase.PlatformFee,
			Currency:        purchase.Currency,
			PaymentMethod:   purchase.PaymentMethod,
		})

		bh.writeJSON(w, http.StatusOK, purchase)
	}
}

// featureCheckout opens a gateway order for a featured placement at the
// platform's fixed price.
func (bh *BaseHandler) featureCheckout() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var cr checkoutRequest
		if err := json.NewDecoder(req.Body).Decode(&cr); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		gw, ok := bh.gateways[cr.PaymentMethod]
		if !ok {
			http.Error(w, "Unsupported payment method", http.StatusBadRequest)
			return
		}

		resource, err := bh.repo.GetResourceBySlug(chi.URLParam(req, "slug"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Resource not found", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("feature checkout lookup")
			return
		}

		orderID, err := gw.CreateOrder(bh.featuredPrice, resource.Currency, resource.Slug)
		if err != nil {
			http.Error(w, "Payment gateway unavailable", http.StatusBadGateway)
			logger.Logger.Err(err).Str("method", cr.PaymentMethod).Msg("gateway order")
			return
		}

		err = bh.repo.SaveGatewayOrder(storage.GatewayOrder{
			ExternalOrderID: orderID,
			ResourceID:      resource.ResourceID,
			PaymentMethod:   cr.PaymentMethod,
			Kind:            storage.OrderKindFeatured,
		})
		if err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("save gateway order")
			return
		}

		bh.writeJSON(w, http.StatusOK, checkoutResponse{
			OrderID:       orderID,
			Amount:        bh.featuredPrice,
			Currency:      resource.Currency,
			PaymentMethod: cr.PaymentMethod,
		})
	}
}

// confirmFeatured verifies a placement payment and flips the listing's
// featured deadline. Placement revenue is the platform's, so nothing is
// written to the purchase ledger.
func (bh *BaseHandler) confirmFeatured() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var conf paymentConfirmation
		if err := json.NewDecoder(req.Body).Decode(&conf); err != nil {
			http.Error(w, invalidJSON, http.StatusBadRequest)
			return
		}

		gw, ok := bh.gateways[conf.PaymentMethod]
		if !ok {
			http.Error(w, "Unsupported payment method", http.StatusBadRequest)
			return
		}

		resource, err := bh.repo.GetResourceBySlug(chi.URLParam(req, "slug"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Resource not found", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("feature lookup")
			return
		}

		order, err := bh.repo.GetGatewayOrder(conf.OrderID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "Unknown order", http.StatusNotFound)
				return
			}
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("feature order lookup")
			return
		}
		if order.Kind != storage.OrderKindFeatured || order.ResourceID != resource.ResourceID ||
			order.PaymentMethod != conf.PaymentMethod {
			http.Error(w, "Order mismatch", http.StatusConflict)
			return
		}

		payment, err := gw.VerifyPayment(gateway.Confirmation{
			OrderID:   conf.OrderID,
			PaymentID: conf.PaymentID,
			Signature: conf.Signature,
		})
		if err != nil {
			http.Error(w, "Payment verification failed", http.StatusPaymentRequired)
			return
		}
		if payment.Amount < bh.featuredPrice {
			http.Error(w, "Payment below placement price", http.StatusPaymentRequired)
			return
		}

		until := time.Now().AddDate(0, 0, bh.featuredDays)
		if err := bh.repo.SetResourceFeatured(resource.ResourceID, until); err != nil {
			http.Error(w, internalError, http.StatusInternalServerError)
			logger.Logger.Err(err).Msg("set featured")
			return
		}

		bh.listings.Invalidate(req.Context())
		bh.writeJSON(w, http.StatusOK, map[string]string{"featured_until": until.Format(time.RFC3339)})
	}
}
