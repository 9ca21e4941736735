package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loomline/designvault/api/middleware"
	checkoutsvc "github.com/loomline/designvault/internal/checkout"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/pagination"
)

type stubCheckoutService struct {
	userID   uuid.UUID
	planID   uuid.UUID
	orderID  uuid.UUID
	callback checkoutsvc.CallbackInput
	reason   string
	sub      *models.Subscription
	list     checkoutsvc.ListParams
	orders   []models.PaymentOrder
}

func (s *stubCheckoutService) CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*checkoutsvc.Handoff, error) {
	s.userID, s.planID = userID, planID
	return &checkoutsvc.Handoff{KeyID: "key", OrderID: uuid.New(), AmountMinor: 49950, Currency: "INR", PlanName: "Pro"}, nil
}

func (s *stubCheckoutService) Callback(ctx context.Context, userID, orderID uuid.UUID, input checkoutsvc.CallbackInput) (*checkoutsvc.CallbackResult, error) {
	s.userID, s.orderID, s.callback = userID, orderID, input
	if input.Signature != "good" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment signature mismatch")
	}
	paid := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &checkoutsvc.CallbackResult{
		Order: models.PaymentOrder{ID: orderID, Status: enums.PaymentOrderStatusPaid, PaidAt: &paid, AmountMinor: 49950},
		Subscription: models.Subscription{
			ID:                 uuid.New(),
			OrderID:            orderID,
			Status:             enums.SubscriptionStatusActive,
			CurrentPeriodStart: paid,
			CurrentPeriodEnd:   paid.AddDate(0, 1, 0),
		},
	}, nil
}

func (s *stubCheckoutService) Fail(ctx context.Context, userID, orderID uuid.UUID, reason string) error {
	s.userID, s.orderID, s.reason = userID, orderID, reason
	return nil
}

func (s *stubCheckoutService) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return s.sub, nil
}

func (s *stubCheckoutService) ListSubscriptions(ctx context.Context, params checkoutsvc.ListParams) (*checkoutsvc.SubscriptionPage, error) {
	s.list = params
	if s.sub == nil {
		return &checkoutsvc.SubscriptionPage{}, nil
	}
	return &checkoutsvc.SubscriptionPage{Items: []models.Subscription{*s.sub}}, nil
}

func (s *stubCheckoutService) ListOrders(ctx context.Context, params checkoutsvc.ListParams) (*checkoutsvc.OrderPage, error) {
	s.list = params
	if params.Status == "refunded" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	return &checkoutsvc.OrderPage{Items: s.orders, Cursor: "next-page"}, nil
}

func checkoutRouter(svc checkoutsvc.Service) http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout/orders", CheckoutCreateOrder(svc, nil))
	r.Post("/checkout/orders/{orderId}/callback", CheckoutCallback(svc, nil))
	r.Post("/checkout/orders/{orderId}/failure", CheckoutFailure(svc, nil))
	r.Get("/subscriptions/me", SubscriptionMe(svc, nil))
	r.Get("/admin/subscriptions", AdminSubscriptionsList(svc, nil))
	r.Get("/admin/transactions", AdminTransactionsList(svc, nil))
	return r
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCheckoutCreateOrder(t *testing.T) {
	svc := &stubCheckoutService{}
	user, plan := uuid.New(), uuid.New()
	req := asUser(httptest.NewRequest(http.MethodPost, "/checkout/orders", strings.NewReader(`{"plan_id":"`+plan.String()+`"}`)), user)

	resp := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.userID != user || svc.planID != plan {
		t.Fatalf("unexpected create call %s %s", svc.userID, svc.planID)
	}
	var body struct {
		Data checkoutsvc.Handoff `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.AmountMinor != 49950 || body.Data.Currency != "INR" {
		t.Fatalf("unexpected handoff %+v", body.Data)
	}
}

func TestCheckoutCreateOrderRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		user   uuid.UUID
		status int
	}{
		{"anonymous", `{"plan_id":"` + uuid.NewString() + `"}`, uuid.Nil, http.StatusUnauthorized},
		{"missing plan", `{}`, uuid.New(), http.StatusBadRequest},
		{"bad plan id", `{"plan_id":"nope"}`, uuid.New(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/checkout/orders", strings.NewReader(tt.body))
			if tt.user != uuid.Nil {
				req = asUser(req, tt.user)
			}
			resp := httptest.NewRecorder()
			checkoutRouter(&stubCheckoutService{}).ServeHTTP(resp, req)
			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
		})
	}
}

func TestCheckoutCallback(t *testing.T) {
	svc := &stubCheckoutService{}
	user, order := uuid.New(), uuid.New()
	path := "/checkout/orders/" + order.String() + "/callback"

	resp := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(resp, asUser(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"payment_id":"pay_1","signature":"good"}`)), user))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.orderID != order || svc.callback.PaymentID != "pay_1" {
		t.Fatalf("unexpected callback call %s %+v", svc.orderID, svc.callback)
	}
	var body struct {
		Data callbackResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Order.Status != "paid" || body.Data.Order.PaidAt == nil || *body.Data.Order.PaidAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected order %+v", body.Data.Order)
	}
	if body.Data.Subscription.CurrentPeriodEnd != "2026-02-02T03:04:05Z" {
		t.Fatalf("unexpected subscription %+v", body.Data.Subscription)
	}

	resp = httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(resp, asUser(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"payment_id":"pay_1","signature":"bad"}`)), user))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on signature mismatch, got %d", resp.Code)
	}
}

func TestCheckoutFailureAndSubscription(t *testing.T) {
	svc := &stubCheckoutService{}
	user, order := uuid.New(), uuid.New()
	h := checkoutRouter(svc)

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, asUser(httptest.NewRequest(http.MethodPost, "/checkout/orders/"+order.String()+"/failure", strings.NewReader(`{"reason":"dismissed"}`)), user))
	if resp.Code != http.StatusOK || svc.reason != "dismissed" || svc.orderID != order {
		t.Fatalf("unexpected failure handling %d %q", resp.Code, svc.reason)
	}

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, asUser(httptest.NewRequest(http.MethodGet, "/subscriptions/me", nil), user))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without subscription, got %d", resp.Code)
	}

	svc.sub = &models.Subscription{ID: uuid.New(), Status: enums.SubscriptionStatusActive}
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, asUser(httptest.NewRequest(http.MethodGet, "/subscriptions/me", nil), user))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAdminTransactionsList(t *testing.T) {
	buyer := uuid.New()
	reason := "card declined"
	svc := &stubCheckoutService{orders: []models.PaymentOrder{
		{ID: uuid.New(), UserID: buyer, Receipt: "rcpt_1", AmountMinor: 49950, Currency: "INR", Status: enums.PaymentOrderStatusFailed,
			FailureReason: &reason, CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}}

	resp := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/admin/transactions?limit=5&status=failed&user_id="+buyer.String()+"&cursor=abc", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.list.Limit != 5 || svc.list.Status != "failed" || svc.list.Cursor != "abc" || svc.list.UserID == nil || *svc.list.UserID != buyer {
		t.Fatalf("unexpected list params %+v", svc.list)
	}
	var body struct {
		Data struct {
			Transactions []struct {
				UserID        uuid.UUID `json:"user_id"`
				Status        string    `json:"status"`
				Amount        int64     `json:"amount"`
				FailureReason string    `json:"failure_reason"`
				CreatedAt     string    `json:"created_at"`
			} `json:"transactions"`
			Cursor string `json:"cursor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Transactions) != 1 || body.Data.Cursor != "next-page" {
		t.Fatalf("unexpected page %+v", body.Data)
	}
	got := body.Data.Transactions[0]
	if got.UserID != buyer || got.Status != "failed" || got.Amount != 49950 || got.FailureReason != reason || got.CreatedAt != "2026-02-01T00:00:00Z" {
		t.Fatalf("unexpected transaction %+v", got)
	}
}

func TestAdminListingsRejectBadQuery(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"bad user id", "/admin/subscriptions?user_id=nope"},
		{"limit too large", "/admin/transactions?limit=1000"},
		{"unknown status", "/admin/transactions?status=refunded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			checkoutRouter(&stubCheckoutService{}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestAdminSubscriptionsList(t *testing.T) {
	start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{ID: uuid.New(), UserID: uuid.New(), Status: enums.SubscriptionStatusExpired,
		CurrentPeriodStart: start, CurrentPeriodEnd: start.AddDate(0, 1, 0), CreatedAt: start}
	svc := &stubCheckoutService{sub: sub}

	resp := httptest.NewRecorder()
	checkoutRouter(svc).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/admin/subscriptions", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.list.Limit != pagination.DefaultLimit || svc.list.UserID != nil {
		t.Fatalf("unexpected default params %+v", svc.list)
	}
	if !strings.Contains(resp.Body.String(), `"user_id":"`+sub.UserID.String()+`"`) || !strings.Contains(resp.Body.String(), `"status":"expired"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}
