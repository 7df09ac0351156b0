package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one variant line in a cart. Quantity merges on re-add; price
// is read from the variant at checkout, never stored here.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;index:idx_cart_items_cart_variant,unique"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null;index:idx_cart_items_cart_variant,unique"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
