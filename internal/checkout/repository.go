package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	"github.com/loomline/designvault/pkg/pagination"
)

// Repository persists payment orders and the subscriptions they grant.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.PaymentOrder) error
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error)
	UpdateOrder(ctx context.Context, order *models.PaymentOrder) error
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	FindCurrentSubscription(ctx context.Context, userID uuid.UUID, at time.Time) (*models.Subscription, error)
	ExpireSubscriptions(ctx context.Context, at time.Time) (int64, error)
	ListSubscriptions(ctx context.Context, q ListQuery) ([]models.Subscription, *pagination.Cursor, error)
	ListOrders(ctx context.Context, q ListQuery) ([]models.PaymentOrder, *pagination.Cursor, error)
}

// ListQuery filters an admin listing ordered newest first. Empty filters
// match every row.
type ListQuery struct {
	Limit  int
	Cursor *pagination.Cursor
	UserID *uuid.UUID
	Status string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a checkout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentOrder, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.PaymentOrder
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindCurrentSubscription(ctx context.Context, userID uuid.UUID, at time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND current_period_end > ?", userID, enums.SubscriptionStatusActive, at).
		Order("current_period_end DESC").
		First(&sub).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ExpireSubscriptions(ctx context.Context, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND current_period_end <= ?", enums.SubscriptionStatusActive, at).
		Updates(map[string]any{"status": enums.SubscriptionStatusExpired, "updated_at": at})
	return result.RowsAffected, result.Error
}

func (r *repository) ListSubscriptions(ctx context.Context, q ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	var subs []models.Subscription
	if err := r.listQuery(ctx, &models.Subscription{}, q).Find(&subs).Error; err != nil {
		return nil, nil, err
	}
	return trimPage(subs, q.Limit, func(s models.Subscription) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
}

func (r *repository) ListOrders(ctx context.Context, q ListQuery) ([]models.PaymentOrder, *pagination.Cursor, error) {
	var orders []models.PaymentOrder
	if err := r.listQuery(ctx, &models.PaymentOrder{}, q).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	return trimPage(orders, q.Limit, func(o models.PaymentOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
}

func (r *repository) listQuery(ctx context.Context, model any, q ListQuery) *gorm.DB {
	query := r.db.WithContext(ctx).Model(model)
	if q.UserID != nil {
		query = query.Where("user_id = ?", *q.UserID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}
	return query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(q.Limit))
}

// trimPage drops the look-ahead row and returns the cursor of the last kept
// row when another page exists.
func trimPage[T any](rows []T, limit int, cursorOf func(T) pagination.Cursor) ([]T, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)
	if len(rows) <= normalized {
		return rows, nil, nil
	}
	rows = rows[:normalized]
	next := cursorOf(rows[normalized-1])
	return rows, &next, nil
}
