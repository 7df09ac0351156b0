package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is buyer feedback on a product. One review per buyer per product,
// and only after a delivered order containing it.
type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_reviews_product_user,unique"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_reviews_product_user,unique"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   *string   `gorm:"column:comment"`
	IsHidden  bool      `gorm:"column:is_hidden;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
