package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/juan12312121/mercado-backend/pkg/enums"
)

// Product is a catalog listing owned by a seller. The purchasable unit is
// the ProductVariant; the product itself carries listing metadata.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	CategoryID  uuid.UUID           `gorm:"column:category_id;type:uuid;not null;index"`
	Name        string              `gorm:"column:name;not null"`
	Slug        string              `gorm:"column:slug;not null;uniqueIndex"`
	Description *string             `gorm:"column:description"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	IsFeatured  bool                `gorm:"column:is_featured;not null;default:false"`
	Variants    []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
