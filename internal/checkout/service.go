package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type planLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
}

// Service runs the hosted checkout handoff and records its outcome.
type Service interface {
	CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*Handoff, error)
	Callback(ctx context.Context, userID, orderID uuid.UUID, input CallbackInput) (*CallbackResult, error)
	Fail(ctx context.Context, userID, orderID uuid.UUID, reason string) error
	CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListSubscriptions(ctx context.Context, params ListParams) (*SubscriptionPage, error)
	ListOrders(ctx context.Context, params ListParams) (*OrderPage, error)
}

// ListParams page through subscriptions or orders for the admin console.
type ListParams struct {
	Limit  int
	Cursor string
	UserID *uuid.UUID
	Status string
}

type SubscriptionPage struct {
	Items  []models.Subscription
	Cursor string
}

type OrderPage struct {
	Items  []models.PaymentOrder
	Cursor string
}

// Handoff is what the client needs to open the hosted checkout.
type Handoff struct {
	KeyID       string    `json:"key_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Receipt     string    `json:"receipt"`
	AmountMinor int64     `json:"amount"`
	Currency    string    `json:"currency"`
	PlanName    string    `json:"plan_name"`
	CompanyName string    `json:"company_name"`
}

// CallbackInput is the gateway's success payload relayed by the client.
type CallbackInput struct {
	PaymentID string
	Signature string
}

// CallbackResult reports a verified payment.
type CallbackResult struct {
	Order        models.PaymentOrder `json:"order"`
	Subscription models.Subscription `json:"subscription"`
}

type service struct {
	tx    txRunner
	repo  Repository
	plans planLoader
	cfg   config.PaymentsConfig
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the checkout service.
func NewService(tx txRunner, repo Repository, plans planLoader, cfg config.PaymentsConfig, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "checkout repository required")
	}
	if plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plan loader required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		tx:    tx,
		repo:  repo,
		plans: plans,
		cfg:   cfg,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID, planID uuid.UUID) (*Handoff, error) {
	if !s.cfg.Enabled() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing plan not found")
	}

	currency := plan.CurrencyCode
	if currency == "" {
		currency = s.cfg.Currency
	}
	order := &models.PaymentOrder{
		ID:          uuid.New(),
		UserID:      userID,
		PlanID:      plan.ID,
		AmountMinor: plan.PriceAmount.Shift(2).Round(0).IntPart(),
		Currency:    currency,
		Status:      enums.PaymentOrderStatusCreated,
	}
	order.Receipt = receiptFor(order.ID, s.now())
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID, "plan_id": plan.ID, "amount_minor": order.AmountMinor})
	s.logg.Info(logCtx, "payment order created")

	return &Handoff{
		KeyID:       s.cfg.KeyID,
		OrderID:     order.ID,
		Receipt:     order.Receipt,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		PlanName:    plan.Name,
		CompanyName: s.cfg.CompanyName,
	}, nil
}

func (s *service) Callback(ctx context.Context, userID, orderID uuid.UUID, input CallbackInput) (*CallbackResult, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" || strings.TrimSpace(input.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and signature are required")
	}
	valid := VerifySignature(orderID.String(), paymentID, input.Signature, s.cfg.KeySecret)

	var result CallbackResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.PaymentOrderStatusPaid:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		case enums.PaymentOrderStatusFailed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already failed; open a new checkout")
		}

		if !valid {
			reason := "signature mismatch"
			order.Status = enums.PaymentOrderStatusFailed
			order.FailureReason = &reason
			if err := repo.UpdateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment order")
			}
			return nil
		}

		plan, err := s.plans.Get(ctx, order.PlanID)
		if err != nil {
			return err
		}
		now := s.now()
		order.Status = enums.PaymentOrderStatusPaid
		order.GatewayPaymentID = &paymentID
		order.FailureReason = nil
		order.PaidAt = &now
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment order")
		}

		sub := models.Subscription{
			ID:                 uuid.New(),
			UserID:             order.UserID,
			PlanID:             order.PlanID,
			OrderID:            order.ID,
			Status:             enums.SubscriptionStatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   PeriodEnd(now, plan.Interval),
		}
		if err := repo.CreateSubscription(ctx, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		result = CallbackResult{Order: *order, Subscription: sub}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(ctx, "order_id", orderID)
	if !valid {
		s.logg.Warn(logCtx, "payment callback signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment verification failed")
	}
	s.logg.Info(logCtx, "payment verified; subscription active")
	return &result, nil
}

func (s *service) Fail(ctx context.Context, userID, orderID uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "checkout dismissed"
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOwnedOrder(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if order.Status == enums.PaymentOrderStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		}
		order.Status = enums.PaymentOrderStatusFailed
		order.FailureReason = &reason
		if err := repo.UpdateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment order")
		}
		return nil
	})
}

func (s *service) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindCurrentSubscription(ctx, userID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	return sub, nil
}

func (s *service) ListSubscriptions(ctx context.Context, params ListParams) (*SubscriptionPage, error) {
	q, err := listQuery(params, func(v string) error {
		_, err := enums.ParseSubscriptionStatus(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	subs, next, err := s.repo.ListSubscriptions(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	page := &SubscriptionPage{Items: subs}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func (s *service) ListOrders(ctx context.Context, params ListParams) (*OrderPage, error) {
	q, err := listQuery(params, func(v string) error {
		_, err := enums.ParsePaymentOrderStatus(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	orders, next, err := s.repo.ListOrders(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment orders")
	}
	page := &OrderPage{Items: orders}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

func listQuery(params ListParams, checkStatus func(string) error) (ListQuery, error) {
	q := ListQuery{Limit: params.Limit, UserID: params.UserID, Status: strings.TrimSpace(params.Status)}
	if q.Status != "" {
		if err := checkStatus(q.Status); err != nil {
			return ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return ListQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		q.Cursor = cursor
	}
	return q, nil
}

func (s *service) loadOwnedOrder(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.PaymentOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	return order, nil
}

// PeriodEnd adds one billing interval to start.
func PeriodEnd(start time.Time, interval enums.BillingInterval) time.Time {
	if interval == enums.BillingIntervalYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

func receiptFor(orderID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("rcpt_%s_%s", at.Format("20060102"), strings.ReplaceAll(orderID.String(), "-", "")[:12])
}
