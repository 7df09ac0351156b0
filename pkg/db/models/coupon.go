package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Coupon is an order-level discount. UsesSoFar only moves when an order it
// was applied to reaches PAID. A nil SellerID makes the coupon
// platform-global; nil validity bounds leave that side of the window open.
type Coupon struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string           `gorm:"column:code;not null;uniqueIndex"`
	Kind           enums.CouponKind `gorm:"column:kind;type:text;not null"`
	Value          decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderAmount decimal.Decimal  `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxUses        *int             `gorm:"column:max_uses"`
	UsesSoFar      int              `gorm:"column:uses_so_far;not null;default:0"`
	SellerID       *uuid.UUID       `gorm:"column:seller_id;type:uuid"`
	ValidFrom      *time.Time       `gorm:"column:valid_from"`
	ValidUntil     *time.Time       `gorm:"column:valid_until"`
	IsActive       bool             `gorm:"column:is_active;not null;default:true"`
	CreatedBy      uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
