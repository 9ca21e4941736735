package billing

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loomline/designvault/api/responses"
	"github.com/loomline/designvault/api/validators"
	checkoutsvc "github.com/loomline/designvault/internal/checkout"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/pagination"
)

type adminSubscriptionResponse struct {
	subscriptionResponse
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt string    `json:"created_at"`
}

type adminTransactionResponse struct {
	orderResponse
	UserID        uuid.UUID `json:"user_id"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     string    `json:"created_at"`
}

type adminSubscriptionListResponse struct {
	Subscriptions []adminSubscriptionResponse `json:"subscriptions"`
	Cursor        string                      `json:"cursor"`
}

type adminTransactionListResponse struct {
	Transactions []adminTransactionResponse `json:"transactions"`
	Cursor       string                     `json:"cursor"`
}

// AdminSubscriptionsList pages through every customer subscription, newest
// first, optionally filtered by user_id and status.
func AdminSubscriptionsList(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		params, err := adminListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.ListSubscriptions(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := adminSubscriptionListResponse{Subscriptions: make([]adminSubscriptionResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for i := range page.Items {
			sub := &page.Items[i]
			resp.Subscriptions = append(resp.Subscriptions, adminSubscriptionResponse{
				subscriptionResponse: subscriptionToResponse(sub),
				UserID:               sub.UserID,
				CreatedAt:            formatTime(sub.CreatedAt),
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminTransactionsList pages through payment orders of every status.
func AdminTransactionsList(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		params, err := adminListParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := svc.ListOrders(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := adminTransactionListResponse{Transactions: make([]adminTransactionResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for i := range page.Items {
			order := &page.Items[i]
			resp.Transactions = append(resp.Transactions, adminTransactionResponse{
				orderResponse: orderToResponse(order),
				UserID:        order.UserID,
				FailureReason: order.FailureReason,
				CreatedAt:     formatTime(order.CreatedAt),
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

func adminListParams(r *http.Request) (checkoutsvc.ListParams, error) {
	query := r.URL.Query()
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return checkoutsvc.ListParams{}, err
	}
	params := checkoutsvc.ListParams{
		Limit:  limit,
		Cursor: strings.TrimSpace(query.Get("cursor")),
		Status: strings.TrimSpace(query.Get("status")),
	}
	if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return checkoutsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id")
		}
		params.UserID = &userID
	}
	return params, nil
}
