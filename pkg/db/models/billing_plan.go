package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/loomline/designvault/pkg/enums"
)

// BillingPlan is a subscription plan customers can buy through checkout.
type BillingPlan struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name         string                `gorm:"column:name;not null"`
	Description  string                `gorm:"column:description;not null;default:''"`
	Status       enums.PlanStatus      `gorm:"column:status;type:plan_status;not null"`
	IsDefault    bool                  `gorm:"column:is_default;not null;default:false"`
	Interval     enums.BillingInterval `gorm:"column:interval;type:billing_interval;not null"`
	PriceAmount  decimal.Decimal       `gorm:"column:price_amount;type:numeric(12,2);not null"`
	CurrencyCode string                `gorm:"column:currency_code;not null"`
	Features     pq.StringArray        `gorm:"column:features;type:text[]"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
