package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
)

// Repository handles billing plan persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, plan *models.BillingPlan) error
	Update(ctx context.Context, plan *models.BillingPlan) error
	List(ctx context.Context, query ListQuery) ([]models.BillingPlan, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error)
	ClearDefault(ctx context.Context, except uuid.UUID) error
}

// ListQuery filters plan listings.
type ListQuery struct {
	Status *enums.PlanStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, plan *models.BillingPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) Update(ctx context.Context, plan *models.BillingPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.BillingPlan, error) {
	q := r.db.WithContext(ctx).Model(&models.BillingPlan{})
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	var plans []models.BillingPlan
	if err := q.Order("is_default DESC, price_amount ASC, name ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ClearDefault(ctx context.Context, except uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BillingPlan{}).
		Where("is_default AND id <> ?", except).
		Update("is_default", false).Error
}
