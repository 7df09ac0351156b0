package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// SellerSubOrder is the per-seller slice of an order. Sellers advance its
// status independently; the parent order aggregates.
type SellerSubOrder struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index:idx_sub_orders_order_seller,unique"`
	SellerID  uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index:idx_sub_orders_order_seller,unique"`
	Status    enums.SubOrderStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	Subtotal  decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Items     []OrderLineItem      `gorm:"foreignKey:SubOrderID"`
	ShippedAt *time.Time           `gorm:"column:shipped_at"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
