package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeRepository struct {
	plans        map[uuid.UUID]models.BillingPlan
	listQuery    ListQuery
	clearedFor   *uuid.UUID
	createErr    error
	findByIDFunc func(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{plans: map[uuid.UUID]models.BillingPlan{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, plan *models.BillingPlan) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.plans[plan.ID] = *plan
	return nil
}

func (f *fakeRepository) Update(ctx context.Context, plan *models.BillingPlan) error {
	f.plans[plan.ID] = *plan
	return nil
}

func (f *fakeRepository) List(ctx context.Context, query ListQuery) ([]models.BillingPlan, error) {
	f.listQuery = query
	var out []models.BillingPlan
	for _, plan := range f.plans {
		if query.Status == nil || plan.Status == *query.Status {
			out = append(out, plan)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	if f.findByIDFunc != nil {
		return f.findByIDFunc(ctx, id)
	}
	plan, ok := f.plans[id]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (f *fakeRepository) ClearDefault(ctx context.Context, except uuid.UUID) error {
	f.clearedFor = &except
	return nil
}

func validInput() PlanInput {
	return PlanInput{
		Name:         " Gold ",
		Status:       "active",
		Interval:     "monthly",
		PriceAmount:  "499.00",
		CurrencyCode: "inr",
		Features:     []string{"unlimited downloads", " ", "worksheets"},
		IsDefault:    true,
	}
}

func TestCreatePlanNormalizesInput(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(stubTx{}, repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	plan, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.Name != "Gold" || plan.CurrencyCode != "INR" {
		t.Fatalf("unexpected normalized plan %+v", plan)
	}
	if !plan.PriceAmount.Equal(decimal.RequireFromString("499")) {
		t.Fatalf("unexpected price %s", plan.PriceAmount)
	}
	if len(plan.Features) != 2 {
		t.Fatalf("expected blank features dropped, got %v", plan.Features)
	}
	if repo.clearedFor == nil || *repo.clearedFor != plan.ID {
		t.Fatalf("expected other defaults cleared")
	}
}

func TestCreatePlanValidation(t *testing.T) {
	cases := map[string]func(*PlanInput){
		"name":     func(in *PlanInput) { in.Name = "" },
		"status":   func(in *PlanInput) { in.Status = "archived" },
		"interval": func(in *PlanInput) { in.Interval = "weekly" },
		"price":    func(in *PlanInput) { in.PriceAmount = "abc" },
		"negative": func(in *PlanInput) { in.PriceAmount = "-1" },
		"cents":    func(in *PlanInput) { in.PriceAmount = "1.005" },
		"currency": func(in *PlanInput) { in.CurrencyCode = "RUPEE" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := NewService(stubTx{}, newFakeRepository())
			input := validInput()
			mutate(&input)
			_, err := svc.Create(context.Background(), input)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestInactivePlanCannotBeDefault(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(stubTx{}, repo)
	input := validInput()
	input.Status = "inactive"

	plan, err := svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.IsDefault {
		t.Fatal("inactive plan must not be default")
	}
	if repo.clearedFor != nil {
		t.Fatal("no defaults should be cleared for a non-default plan")
	}
}

func TestUpdateKeepsIdentity(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(stubTx{}, repo)
	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	input := validInput()
	input.PriceAmount = "999"
	updated, err := svc.Update(context.Background(), created.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected id %s, got %s", created.ID, updated.ID)
	}
	if !repo.plans[created.ID].PriceAmount.Equal(decimal.NewFromInt(999)) {
		t.Fatalf("expected stored price updated")
	}
}

func TestGetMissingPlan(t *testing.T) {
	svc, _ := NewService(stubTx{}, newFakeRepository())
	if _, err := svc.Get(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}

	repo := newFakeRepository()
	repo.findByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
		return nil, errors.New("db down")
	}
	svc, _ = NewService(stubTx{}, repo)
	if _, err := svc.Get(context.Background(), uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestListActiveFiltersStatus(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(stubTx{}, repo)
	if _, err := svc.ListActive(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.listQuery.Status == nil || *repo.listQuery.Status != enums.PlanStatusActive {
		t.Fatalf("expected active status filter, got %+v", repo.listQuery)
	}
}

func TestCreatePlanDuplicateNameConflicts(t *testing.T) {
	repo := newFakeRepository()
	repo.createErr = gorm.ErrDuplicatedKey
	svc, err := NewService(stubTx{}, repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Create(context.Background(), validInput())
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
