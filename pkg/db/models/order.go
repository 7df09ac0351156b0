package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Order is the buyer-facing order assembled at checkout. Money fields are
// snapshots; later price or coupon edits never change them.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Currency       enums.Currency    `gorm:"column:currency;type:text;not null;default:'MXN'"`
	Subtotal       decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	ShippingCost   decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	Total          decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	CouponID       *uuid.UUID        `gorm:"column:coupon_id;type:uuid"`
	CouponCode     *string           `gorm:"column:coupon_code"`

	ShippingLine1      string  `gorm:"column:shipping_line1;not null"`
	ShippingLine2      *string `gorm:"column:shipping_line2"`
	ShippingCity       string  `gorm:"column:shipping_city;not null"`
	ShippingState      string  `gorm:"column:shipping_state;not null"`
	ShippingPostalCode string  `gorm:"column:shipping_postal_code;not null"`
	ShippingCountry    string  `gorm:"column:shipping_country;not null"`

	Notes *string `gorm:"column:notes"`

	LineItems []OrderLineItem  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	SubOrders []SellerSubOrder `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments  []Payment        `gorm:"foreignKey:OrderID"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
