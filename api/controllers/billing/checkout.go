package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/api/middleware"
	"github.com/loomline/designvault/api/responses"
	"github.com/loomline/designvault/api/validators"
	checkoutsvc "github.com/loomline/designvault/internal/checkout"
	"github.com/loomline/designvault/pkg/db/models"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
)

type createOrderRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
}

type callbackRequest struct {
	PaymentID string `json:"payment_id" validate:"required,max=128"`
	Signature string `json:"signature" validate:"required,max=256"`
}

type failureRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type orderResponse struct {
	ID               uuid.UUID `json:"id"`
	PlanID           uuid.UUID `json:"plan_id"`
	Receipt          string    `json:"receipt"`
	AmountMinor      int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	GatewayPaymentID *string   `json:"gateway_payment_id,omitempty"`
	PaidAt           *string   `json:"paid_at,omitempty"`
}

type subscriptionResponse struct {
	ID                 uuid.UUID `json:"id"`
	PlanID             uuid.UUID `json:"plan_id"`
	OrderID            uuid.UUID `json:"order_id"`
	Status             string    `json:"status"`
	CurrentPeriodStart string    `json:"current_period_start"`
	CurrentPeriodEnd   string    `json:"current_period_end"`
}

type callbackResponse struct {
	Order        orderResponse        `json:"order"`
	Subscription subscriptionResponse `json:"subscription"`
}

// CheckoutCreateOrder opens a payment order for the caller and returns the
// hosted checkout handoff.
func CheckoutCreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if payload.PlanID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "plan_id is required"))
			return
		}
		handoff, err := svc.CreateOrder(ctx, userID, payload.PlanID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, handoff)
	}
}

// CheckoutCallback relays the gateway's success payload for verification.
func CheckoutCallback(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload callbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Callback(ctx, userID, orderID, checkoutsvc.CallbackInput{
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, callbackResponse{
			Order:        orderToResponse(&result.Order),
			Subscription: subscriptionToResponse(&result.Subscription),
		})
	}
}

// CheckoutFailure records a dismissed or failed hosted checkout.
func CheckoutFailure(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload failureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Fail(ctx, userID, orderID, payload.Reason); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "failed"})
	}
}

func SubscriptionMe(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sub, err := svc.CurrentSubscription(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subscriptionToResponse(sub))
	}
}

func orderToResponse(order *models.PaymentOrder) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		PlanID:           order.PlanID,
		Receipt:          order.Receipt,
		AmountMinor:      order.AmountMinor,
		Currency:         order.Currency,
		Status:           string(order.Status),
		GatewayPaymentID: order.GatewayPaymentID,
	}
	if order.PaidAt != nil {
		paid := order.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &paid
	}
	return resp
}

func subscriptionToResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		PlanID:             sub.PlanID,
		OrderID:            sub.OrderID,
		Status:             string(sub.Status),
		CurrentPeriodStart: formatTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   formatTime(sub.CurrentPeriodEnd),
	}
}
