package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomline/designvault/pkg/enums"
)

// PaymentOrder is one hosted checkout attempt. AmountMinor is in the smallest
// currency unit the gateway expects.
type PaymentOrder struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID           uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Receipt          string                   `gorm:"column:receipt;not null;uniqueIndex"`
	AmountMinor      int64                    `gorm:"column:amount_minor;not null"`
	Currency         string                   `gorm:"column:currency;not null"`
	Status           enums.PaymentOrderStatus `gorm:"column:status;type:payment_order_status;not null"`
	GatewayPaymentID *string                  `gorm:"column:gateway_payment_id"`
	FailureReason    *string                  `gorm:"column:failure_reason"`
	PaidAt           *time.Time               `gorm:"column:paid_at"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
