package plans

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages billing plans.
type Service interface {
	List(ctx context.Context, status *enums.PlanStatus) ([]models.BillingPlan, error)
	ListActive(ctx context.Context) ([]models.BillingPlan, error)
	Get(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
	Create(ctx context.Context, input PlanInput) (*models.BillingPlan, error)
	Update(ctx context.Context, id uuid.UUID, input PlanInput) (*models.BillingPlan, error)
}

// PlanInput is the admin-editable part of a plan.
type PlanInput struct {
	Name         string
	Description  string
	Status       string
	Interval     string
	PriceAmount  string
	CurrencyCode string
	Features     []string
	IsDefault    bool
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService builds the plans service.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plans repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) List(ctx context.Context, status *enums.PlanStatus) ([]models.BillingPlan, error) {
	plans, err := s.repo.List(ctx, ListQuery{Status: status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing plans")
	}
	return plans, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.BillingPlan, error) {
	active := enums.PlanStatusActive
	return s.List(ctx, &active)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing plan not found")
	}
	return plan, nil
}

func (s *service) Create(ctx context.Context, input PlanInput) (*models.BillingPlan, error) {
	plan, err := buildPlan(input)
	if err != nil {
		return nil, err
	}
	plan.ID = uuid.New()
	if err := s.save(ctx, plan, true); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input PlanInput) (*models.BillingPlan, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	plan, err := buildPlan(input)
	if err != nil {
		return nil, err
	}
	plan.ID = existing.ID
	plan.CreatedAt = existing.CreatedAt
	if err := s.save(ctx, plan, false); err != nil {
		return nil, err
	}
	return plan, nil
}

// save writes plan and, when it is the default, clears the flag on every other plan.
func (s *service) save(ctx context.Context, plan *models.BillingPlan, create bool) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if plan.IsDefault {
			if err := repo.ClearDefault(ctx, plan.ID); err != nil {
				return err
			}
		}
		if create {
			return repo.Create(ctx, plan)
		}
		return repo.Update(ctx, plan)
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "a plan with this name already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save billing plan")
	}
	return nil
}

func buildPlan(input PlanInput) (*models.BillingPlan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	status, err := enums.ParsePlanStatus(strings.TrimSpace(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}
	interval, err := enums.ParseBillingInterval(strings.TrimSpace(input.Interval))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interval")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(input.PriceAmount))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_amount")
	}
	if price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price amount must be non-negative")
	}
	if !price.Equal(price.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price amount allows at most two decimal places")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.CurrencyCode))
	if len(currency) != 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency_code must be a three-letter code")
	}

	features := make([]string, 0, len(input.Features))
	for _, feature := range input.Features {
		if trimmed := strings.TrimSpace(feature); trimmed != "" {
			features = append(features, trimmed)
		}
	}

	return &models.BillingPlan{
		Name:         name,
		Description:  strings.TrimSpace(input.Description),
		Status:       status,
		IsDefault:    input.IsDefault && status == enums.PlanStatusActive,
		Interval:     interval,
		PriceAmount:  price,
		CurrencyCode: currency,
		Features:     pq.StringArray(features),
	}, nil
}
